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

// arrayIterator iterates over an Array's elements in order, indices as keys.
type arrayIterator struct {
	arr *Array
	n   int
	m   sync.Mutex
}

// Iterator returns an iterator over the array's elements.
func (a *Array) Iterator() iterator.Interface[int, any] {
	return &arrayIterator{arr: a}
}

// Next implements iterator.Interface.
func (iter *arrayIterator) Next() (int, any, error) {
	iter.m.Lock()
	defer iter.m.Unlock()

	if iter.arr == nil || iter.n >= iter.arr.Len() {
		return 0, nil, iterator.ErrIteratorDone
	}

	n := iter.n
	v := iter.arr.s[n]
	iter.n++

	return n, v, nil
}

// Close implements iterator.Interface.
func (iter *arrayIterator) Close() {
	iter.m.Lock()
	defer iter.m.Unlock()

	iter.arr = nil
}
