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
	"fmt"
)

// Array represents a BSON array: an ordered sequence of values.
type Array struct {
	s []any
}

// NewArray creates a new Array from the given values.
func NewArray(values ...any) (*Array, error) {
	if len(values) == 0 {
		return new(Array), nil
	}

	arr := &Array{s: make([]any, 0, len(values))}

	for _, v := range values {
		if err := arr.Append(v); err != nil {
			return nil, fmt.Errorf("types.NewArray: %w", err)
		}
	}

	return arr, nil
}

// MustNewArray is a NewArray variant that panics on error.
func MustNewArray(values ...any) *Array {
	arr, err := NewArray(values...)
	if err != nil {
		panic(err)
	}

	return arr
}

// MakeArray creates a new, empty Array with pre-allocated capacity for at least the
// given number of elements.
func MakeArray(cap int) *Array {
	if cap == 0 {
		return new(Array)
	}

	return &Array{s: make([]any, 0, cap)}
}

// ConvertArray converts a non-nil array-like value to *Array, panicking otherwise.
func ConvertArray(a any) *Array {
	if a == nil {
		panic("types.ConvertArray: a is nil")
	}

	arr, ok := a.(*Array)
	if !ok {
		panic(fmt.Sprintf("types.ConvertArray: unexpected type %T", a))
	}

	return arr
}

// Len returns the number of elements, it is safe to call it on nil Array.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}

	return len(a.s)
}

// Get returns an element by index.
func (a *Array) Get(index int) (any, error) {
	if a == nil || index < 0 || index >= len(a.s) {
		return nil, fmt.Errorf("types.Array.Get: index %d is out of bounds [0-%d)", index, a.Len())
	}

	return a.s[index], nil
}

// Set sets the element at the given index, which must already exist.
func (a *Array) Set(index int, value any) error {
	if index < 0 || index >= len(a.s) {
		return fmt.Errorf("types.Array.Set: index %d is out of bounds [0-%d)", index, a.Len())
	}

	if err := validateValue(value); err != nil {
		return fmt.Errorf("types.Array.Set: %w", err)
	}

	a.s[index] = value

	return nil
}

// Append appends a new element to the end of the array.
func (a *Array) Append(value any) error {
	if err := validateValue(value); err != nil {
		return fmt.Errorf("types.Array.Append: %w", err)
	}

	a.s = append(a.s, value)

	return nil
}

// RemoveByIndex removes the element at the given index, shifting subsequent elements
// down by one. It does nothing if index is out of bounds.
func (a *Array) RemoveByIndex(index int) {
	if a == nil || index < 0 || index >= len(a.s) {
		return
	}

	a.s = append(a.s[:index], a.s[index+1:]...)
}

// PadWithNulls extends the array with Null up to the given length, if it's shorter.
func (a *Array) PadWithNulls(length int) {
	for a.Len() < length {
		a.s = append(a.s, Null)
	}
}

// Subslice returns elements[i:j], following Go slicing semantics.
func (a *Array) Subslice(i, j int) (*Array, error) {
	if i < 0 || j > a.Len() || i > j {
		return nil, fmt.Errorf("types.Array.Subslice: invalid range [%d:%d) for length %d", i, j, a.Len())
	}

	res := &Array{s: make([]any, j-i)}
	copy(res.s, a.s[i:j])

	return res, nil
}

// DeepCopy returns a deep copy of this Array.
func (a *Array) DeepCopy() *Array {
	if a == nil {
		return nil
	}

	return deepCopy(a).(*Array)
}

// String returns a string representation for logging purposes only.
func (a *Array) String() string {
	return FormatAnyValue(a)
}
