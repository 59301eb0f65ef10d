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

// Package commonpath provides document path resolution shared by commands
// (such as `distinct`) that need every value reachable at a dotted path,
// rather than the single fanned-out Array internal/types.GetCollectionAware returns.
package commonpath

import (
	"strconv"

	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/must"
)

// FindValuesOpts sets the optional behaviors of FindValues.
type FindValuesOpts struct {
	// FindArrayIndex allows a numeric path fragment to index into an array.
	FindArrayIndex bool

	// FindArrayDocuments allows a field-name path fragment to project across
	// every Document element of an array, collecting one result per matching element.
	FindArrayDocuments bool
}

// FindValues returns every value reachable by path in doc.
//
// Unlike types.GetCollectionAware, which fans array projections into a single Array,
// FindValues returns the flat list of matches (zero, one, or many), which is what
// `distinct`-style commands need to deduplicate across.
func FindValues(doc *types.Document, path types.Path, opts *FindValuesOpts) ([]any, error) {
	if opts == nil {
		opts = new(FindValuesOpts)
	}

	return findValues(doc, path.Slice(), opts), nil
}

// findValues recursively resolves fragments against cur.
func findValues(cur any, fragments []string, opts *FindValuesOpts) []any {
	if len(fragments) == 0 {
		return []any{cur}
	}

	fragment := fragments[0]
	rest := fragments[1:]

	switch v := cur.(type) {
	case *types.Document:
		val, err := v.Get(fragment)
		if err != nil {
			return nil
		}

		return findValues(val, rest, opts)

	case *types.Array:
		if idx, err := strconv.Atoi(fragment); err == nil {
			if !opts.FindArrayIndex || idx < 0 || idx >= v.Len() {
				return nil
			}

			return findValues(must.NotFail(v.Get(idx)), rest, opts)
		}

		if !opts.FindArrayDocuments {
			return nil
		}

		var res []any

		for i := 0; i < v.Len(); i++ {
			// the fragment still names a field inside each element, so the element
			// is matched against the same, unconsumed fragment list.
			res = append(res, findValues(must.NotFail(v.Get(i)), fragments, opts)...)
		}

		return res

	default:
		return nil
	}
}
