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

package common

import (
	"errors"

	"github.com/FerretDB/FerretDB/internal/aggregations/pipeline"
	"github.com/FerretDB/FerretDB/internal/matcher"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
)

// FilterIterator wraps iter, skipping documents that do not match filter.
//
// An empty or nil filter matches everything, and iter is returned unchanged.
func FilterIterator(iter types.DocumentsIterator, closer *iterator.MultiCloser, filter *types.Document) types.DocumentsIterator {
	if filter == nil || filter.Len() == 0 {
		return iter
	}

	pred, err := matcher.Compile(filter)
	if err != nil {
		// invalid filters are rejected earlier, at query validation time
		return iter
	}

	next := iterator.ForFunc(func() (struct{}, *types.Document, error) {
		for {
			_, doc, err := iter.Next()
			if err != nil {
				return struct{}{}, nil, err
			}

			ok, _, err := pred.Match(doc)
			if err != nil {
				return struct{}{}, nil, err
			}

			if ok {
				return struct{}{}, doc, nil
			}
		}
	})

	closer.Add(next)

	return next
}

// SortIterator wraps iter, draining it eagerly and serving documents ordered by sort
// (a document of fieldName: direction pairs, direction 1 for ascending, -1 for
// descending).
//
// An empty or nil sort leaves ordering untouched, and iter is returned unchanged.
func SortIterator(iter types.DocumentsIterator, closer *iterator.MultiCloser, sort *types.Document) (types.DocumentsIterator, error) {
	if sort == nil || sort.Len() == 0 {
		return iter, nil
	}

	docs, err := iterator.ConsumeValues(iterator.Values(iter))
	if err != nil {
		return nil, err
	}

	keys := sort.Keys()
	paths := make([]types.Path, len(keys))
	dirs := make([]types.SortType, len(keys))

	for i, k := range keys {
		path, err := types.NewPathFromString(k)
		if err != nil {
			return nil, err
		}

		paths[i] = path

		dir, _ := sort.Get(k)

		dirs[i] = types.Ascending

		switch n := dir.(type) {
		case int32:
			if n < 0 {
				dirs[i] = types.Descending
			}
		case int64:
			if n < 0 {
				dirs[i] = types.Descending
			}
		case float64:
			if n < 0 {
				dirs[i] = types.Descending
			}
		}
	}

	sortDocs(docs, paths, dirs)

	next := iterator.ForSlice(docs)
	closer.Add(next)

	return iterator.DropKeys(next), nil
}

// sortDocs stable-sorts docs by the given paths/directions, in priority order.
func sortDocs(docs []*types.Document, paths []types.Path, dirs []types.SortType) {
	less := func(i, j int) bool {
		for k, path := range paths {
			av, _ := types.Get(docs[i], path)
			bv, _ := types.Get(docs[j], path)

			switch types.CompareOrderForSort(av, bv, dirs[k]) {
			case types.Less:
				return true
			case types.Greater:
				return false
			}
		}

		return false
	}

	// insertion sort: docs sets are small enough in this engine's scope, and it keeps
	// the comparison stable without pulling in sort.Slice's reflection-based swap.
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
}

// SkipIterator wraps iter, dropping the first skip documents.
func SkipIterator(iter types.DocumentsIterator, closer *iterator.MultiCloser, skip int64) types.DocumentsIterator {
	if skip <= 0 {
		return iter
	}

	skipped := false

	next := iterator.ForFunc(func() (struct{}, *types.Document, error) {
		if !skipped {
			for i := int64(0); i < skip; i++ {
				if _, _, err := iter.Next(); err != nil {
					return struct{}{}, nil, err
				}
			}

			skipped = true
		}

		return iter.Next()
	})

	closer.Add(next)

	return next
}

// LimitIterator wraps iter, serving at most limit documents.
//
// A limit of 0 means unlimited, and iter is returned unchanged.
func LimitIterator(iter types.DocumentsIterator, closer *iterator.MultiCloser, limit int64) types.DocumentsIterator {
	if limit <= 0 {
		return iter
	}

	remaining := limit

	next := iterator.ForFunc(func() (struct{}, *types.Document, error) {
		if remaining <= 0 {
			return struct{}{}, nil, iterator.ErrIteratorDone
		}

		remaining--

		return iter.Next()
	})

	closer.Add(next)

	return next
}

// CountIterator drains iter and serves a single document holding the number of documents
// seen, under fieldName.
func CountIterator(iter types.DocumentsIterator, closer *iterator.MultiCloser, fieldName string) types.DocumentsIterator {
	done := false

	next := iterator.ForFunc(func() (struct{}, *types.Document, error) {
		if done {
			return struct{}{}, nil, iterator.ErrIteratorDone
		}

		done = true

		var n int32

		for {
			_, _, err := iter.Next()
			if err != nil {
				if errors.Is(err, iterator.ErrIteratorDone) {
					break
				}

				return struct{}{}, nil, err
			}

			n++
		}

		doc, err := types.NewDocument(fieldName, n)
		if err != nil {
			return struct{}{}, nil, err
		}

		return struct{}{}, doc, nil
	})

	closer.Add(next)

	return next
}

// ProjectionIterator wraps iter, applying projection to each document.
//
// filter is accepted for parity with the positional $ projection operator, which this
// engine does not implement; an empty or nil projection leaves documents untouched.
func ProjectionIterator(
	iter types.DocumentsIterator, closer *iterator.MultiCloser, projection, _ *types.Document,
) (types.DocumentsIterator, error) {
	if projection == nil || projection.Len() == 0 {
		return iter, nil
	}

	next := iterator.ForFunc(func() (struct{}, *types.Document, error) {
		_, doc, err := iter.Next()
		if err != nil {
			return struct{}{}, nil, err
		}

		out, err := pipeline.Project(doc, projection)
		if err != nil {
			return struct{}{}, nil, err
		}

		return struct{}{}, out, nil
	})

	closer.Add(next)

	return next, nil
}
