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

// Package iterator provides generic interfaces for iterators, plus a few implementations
// used to compose them (slice-backed iterators, function-backed iterators, multi-closers).
package iterator

import (
	"errors"
	"sync"
)

// ErrIteratorDone is returned by Interface.Next when the iterator is read to the end.
//
// It is also returned by all subsequent calls to Next, unlike a typical Go io.EOF
// convention, so callers don't need a separate "done" flag.
var ErrIteratorDone = errors.New("iterator is done")

// Interface is a generic interface for iterators, parameterized by the key and value types.
//
// Next returns ErrIteratorDone once exhausted; Close must be safe to call multiple times
// and should be called (typically via defer) even when the iterator is drained normally.
type Interface[K, V any] interface {
	Next() (K, V, error)
	Close()
}

// ConsumeValues reads all values from the iterator, ignoring keys, until it is done,
// then closes it.
func ConsumeValues[K, V any](iter Interface[K, V]) ([]V, error) {
	defer iter.Close()

	var res []V

	for {
		_, v, err := iter.Next()
		if errors.Is(err, ErrIteratorDone) {
			return res, nil
		}

		if err != nil {
			return nil, err
		}

		res = append(res, v)
	}
}

// ConsumeValuesN reads up to n values from the iterator, without closing it.
//
// It returns a nil slice (not an error) once the iterator is exhausted, so that callers
// driving batched reads (getMore, §4.7) can use it as their end-of-stream signal.
func ConsumeValuesN[K, V any](iter Interface[K, V], n int) ([]V, error) {
	var res []V

	for i := 0; i < n; i++ {
		_, v, err := iter.Next()
		if errors.Is(err, ErrIteratorDone) {
			return res, nil
		}

		if err != nil {
			return nil, err
		}

		res = append(res, v)
	}

	return res, nil
}

// ForEach calls f for every item in the iterator, stopping early if f returns an error,
// then closes the iterator.
func ForEach[K, V any](iter Interface[K, V], f func(K, V) error) error {
	defer iter.Close()

	for {
		k, v, err := iter.Next()
		if errors.Is(err, ErrIteratorDone) {
			return nil
		}

		if err != nil {
			return err
		}

		if err = f(k, v); err != nil {
			return err
		}
	}
}

// sliceIterator iterates over a Go slice.
type sliceIterator[V any] struct {
	s []V
	n int
	m sync.Mutex
}

// ForSlice returns an iterator over the given slice, indices as keys.
func ForSlice[V any](s []V) Interface[int, V] {
	return &sliceIterator[V]{s: s}
}

// Next implements Interface.
func (it *sliceIterator[V]) Next() (int, V, error) {
	it.m.Lock()
	defer it.m.Unlock()

	var zero V

	if it.s == nil || it.n >= len(it.s) {
		return 0, zero, ErrIteratorDone
	}

	v := it.s[it.n]
	i := it.n
	it.n++

	return i, v, nil
}

// Close implements Interface.
func (it *sliceIterator[V]) Close() {
	it.m.Lock()
	defer it.m.Unlock()

	it.s = nil
}

// valuesIterator adapts an Interface[K, V] to drop keys, renumbering them from 0.
type valuesIterator[K, V any] struct {
	inner Interface[K, V]
	n     int
}

// Values wraps iter, replacing its keys with a 0-based position counter.
func Values[K, V any](iter Interface[K, V]) Interface[int, V] {
	return &valuesIterator[K, V]{inner: iter}
}

// Next implements Interface.
func (it *valuesIterator[K, V]) Next() (int, V, error) {
	_, v, err := it.inner.Next()
	if err != nil {
		var zero V
		return 0, zero, err
	}

	n := it.n
	it.n++

	return n, v, nil
}

// Close implements Interface.
func (it *valuesIterator[K, V]) Close() {
	it.inner.Close()
}

// dropKeysIterator adapts an Interface[K, V] to present struct{} keys, for callers that
// only ever wrap slices/filters but must satisfy a struct{}-keyed interface such as
// types.DocumentsIterator.
type dropKeysIterator[K, V any] struct {
	inner Interface[K, V]
}

// DropKeys wraps iter, discarding its keys in favor of struct{}{}.
func DropKeys[K, V any](iter Interface[K, V]) Interface[struct{}, V] {
	return &dropKeysIterator[K, V]{inner: iter}
}

// Next implements Interface.
func (it *dropKeysIterator[K, V]) Next() (struct{}, V, error) {
	_, v, err := it.inner.Next()
	return struct{}{}, v, err
}

// Close implements Interface.
func (it *dropKeysIterator[K, V]) Close() {
	it.inner.Close()
}

// closeIterator wraps iter, additionally invoking close when the iterator itself is closed.
type closeIterator[K, V any] struct {
	inner Interface[K, V]
	close func()
}

// WithClose wraps iter so that close is invoked (once) as part of Close, after the
// iterator's own cleanup. It is used to tie an aggregation pipeline's upstream
// resources (§4.6) to the lifetime of the cursor wrapping it.
func WithClose[K, V any](iter Interface[K, V], close func()) Interface[K, V] {
	return &closeIterator[K, V]{inner: iter, close: close}
}

// Next implements Interface.
func (it *closeIterator[K, V]) Next() (K, V, error) {
	return it.inner.Next()
}

// Close implements Interface.
func (it *closeIterator[K, V]) Close() {
	it.inner.Close()

	if it.close != nil {
		it.close()
	}
}

// funcIterator adapts a plain function to the Interface interface.
type funcIterator[K, V any] struct {
	f func() (K, V, error)
	m sync.Mutex
}

// ForFunc returns an iterator that calls f for each Next.
func ForFunc[K, V any](f func() (K, V, error)) Interface[K, V] {
	return &funcIterator[K, V]{f: f}
}

// Next implements Interface.
func (it *funcIterator[K, V]) Next() (K, V, error) {
	it.m.Lock()
	defer it.m.Unlock()

	return it.f()
}

// Close implements Interface.
func (it *funcIterator[K, V]) Close() {}

// MultiCloser closes several registered closeable resources together, in LIFO order.
//
// Aggregation stages (§4.6) that wrap an upstream iterator with their own resources
// (for example $lookup's secondary collection cursor) register those resources here so
// that closing the top-level pipeline iterator cleans up every stage transitively.
type MultiCloser struct {
	mu      sync.Mutex
	closers []func()
}

// closeable is satisfied by Interface and by any other type exposing a bare Close method.
type closeable interface {
	Close()
}

// CloserFunc adapts a plain func() to the closeable interface, so that a cancel
// function can be registered with a MultiCloser alongside iterators.
type CloserFunc func()

// Close implements closeable.
func (f CloserFunc) Close() {
	f()
}

// NewMultiCloser creates a MultiCloser, optionally pre-registering the given closeables.
func NewMultiCloser(closers ...closeable) *MultiCloser {
	mc := new(MultiCloser)

	for _, c := range closers {
		mc.Add(c)
	}

	return mc
}

// Add registers c to be closed (via its Close method) when the MultiCloser is closed.
func (mc *MultiCloser) Add(c closeable) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.closers = append(mc.closers, c.Close)
}

// Close calls all registered closers, in reverse registration order.
func (mc *MultiCloser) Close() {
	mc.mu.Lock()
	closers := mc.closers
	mc.closers = nil
	mc.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
