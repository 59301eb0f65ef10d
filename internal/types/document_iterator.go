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

package types

import (
	"sync"

	"github.com/FerretDB/FerretDB/internal/util/iterator"
)

// field is a key/value pair, used internally to describe expected iteration results in tests.
type field struct {
	key   string
	value any
}

// documentIterator iterates over a Document's fields in insertion order.
type documentIterator struct {
	doc *Document
	n   int
	m   sync.Mutex
}

// Iterator returns an iterator over the document's fields, in insertion order.
//
// Both the key (field name) and the value are returned on each call to Next.
func (d *Document) Iterator() iterator.Interface[string, any] {
	return &documentIterator{doc: d}
}

// Next implements iterator.Interface.
func (iter *documentIterator) Next() (string, any, error) {
	iter.m.Lock()
	defer iter.m.Unlock()

	if iter.doc == nil || iter.n >= iter.doc.Len() {
		return "", nil, iterator.ErrIteratorDone
	}

	key := iter.doc.keys[iter.n]
	value := iter.doc.m[key]
	iter.n++

	return key, value, nil
}

// Close implements iterator.Interface.
func (iter *documentIterator) Close() {
	iter.m.Lock()
	defer iter.m.Unlock()

	iter.doc = nil
}

// DocumentsIterator is an iterator over a stream of documents, as produced by a query,
// an aggregation pipeline, or a cursor's getMore.
type DocumentsIterator = iterator.Interface[struct{}, *Document]
