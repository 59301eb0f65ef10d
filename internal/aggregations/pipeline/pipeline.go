// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pipeline implements the aggregation pipeline (§4.6): a sequence of Stages,
// each consuming an upstream DocumentsIterator and producing a new one.
//
// Stages that only inspect one document at a time ($match, $project, $addFields,
// $unwind, $limit, $skip, $count) are lazy: they wrap the upstream iterator and do work
// only as the downstream side calls Next. Stages that need the whole input before
// producing their first output ($group, $sort) are blocking: they drain the upstream
// iterator eagerly on the first Next call, then serve results from memory.
package pipeline

import (
	"context"
	"fmt"

	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
)

// Error is a pipeline compilation or evaluation error carrying a stable numeric code (§7).
type Error struct {
	Code int
	Msg  string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("pipeline (%d): %s", e.Code, e.Msg)
}

func newError(code int, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// DocumentsIterator is the stream of documents flowing between stages.
type DocumentsIterator = iterator.Interface[int, *types.Document]

// LookupFunc resolves a $lookup's "from" collection name to every document currently in
// it. Supplied by the caller (the collection manager, §4.8) since this package has no
// storage access of its own.
type LookupFunc func(ctx context.Context, collection string) ([]*types.Document, error)

// Stage is one pipeline step.
type Stage interface {
	// Process wraps iter, returning an iterator over this stage's output.
	Process(ctx context.Context, iter DocumentsIterator) (DocumentsIterator, error)
}

// Compile compiles a pipeline (an array of single-key stage documents) into an ordered
// list of Stages.
func Compile(stages *types.Array, lookup LookupFunc) ([]Stage, error) {
	if stages == nil {
		return nil, nil
	}

	result := make([]Stage, 0, stages.Len())

	for i := 0; i < stages.Len(); i++ {
		elem, _ := stages.Get(i)

		doc, ok := elem.(*types.Document)
		if !ok || doc.Len() != 1 {
			return nil, newError(40323, "a pipeline stage specification object must contain exactly one field")
		}

		name := doc.Keys()[0]
		val, _ := doc.Get(name)

		stage, err := compileStage(name, val, lookup)
		if err != nil {
			return nil, err
		}

		result = append(result, stage)
	}

	return result, nil
}

func compileStage(name string, val any, lookup LookupFunc) (Stage, error) {
	switch name {
	case "$match":
		return newMatchStage(val)
	case "$project":
		return newProjectStage(val)
	case "$addFields", "$set":
		return newAddFieldsStage(val)
	case "$unwind":
		return newUnwindStage(val)
	case "$group":
		return newGroupStage(val)
	case "$sort":
		return newSortStage(val)
	case "$limit":
		return newLimitStage(val)
	case "$skip":
		return newSkipStage(val)
	case "$count":
		return newCountStage(val)
	case "$replaceRoot":
		return newReplaceRootStage(val, "$replaceRoot")
	case "$replaceWith":
		return newReplaceRootStage(val, "$replaceWith")
	case "$sample":
		return newSampleStage(val)
	case "$lookup":
		return newLookupStage(val, lookup)
	case "$out", "$merge":
		return newOutStage(name, val)
	default:
		return nil, newError(40324, "Unrecognized pipeline stage name: %q", name)
	}
}

// Run compiles and executes stages in sequence, returning the final output iterator.
func Run(ctx context.Context, stages []Stage, input DocumentsIterator) (DocumentsIterator, error) {
	cur := input

	for _, s := range stages {
		next, err := s.Process(ctx, cur)
		if err != nil {
			return nil, err
		}

		cur = next
	}

	return cur, nil
}

// lazyStage adapts a per-document transform function (which may drop the document by
// returning ok=false) into a Stage, via iterator.ForFunc, preserving laziness.
func lazyStage(f func(doc *types.Document) (*types.Document, bool, error)) func(context.Context, DocumentsIterator) (DocumentsIterator, error) {
	return func(_ context.Context, upstream DocumentsIterator) (DocumentsIterator, error) {
		next := iterator.ForFunc(func() (int, *types.Document, error) {
			for {
				_, doc, err := upstream.Next()
				if err != nil {
					return 0, nil, err
				}

				out, ok, err := f(doc)
				if err != nil {
					return 0, nil, err
				}

				if ok {
					return 0, out, nil
				}
			}
		})

		return iterator.Values(next), nil
	}
}

// blockingStage drains upstream entirely and produces its output from the given
// function, for stages that cannot emit until they have seen every input document.
func blockingStage(f func(docs []*types.Document) ([]*types.Document, error)) func(context.Context, DocumentsIterator) (DocumentsIterator, error) {
	return func(_ context.Context, upstream DocumentsIterator) (DocumentsIterator, error) {
		docs, err := iterator.ConsumeValues(upstream)
		if err != nil {
			return nil, err
		}

		out, err := f(docs)
		if err != nil {
			return nil, err
		}

		return iterator.ForSlice(out), nil
	}
}
