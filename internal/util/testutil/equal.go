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

package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FerretDB/FerretDB/internal/types"
)

// valuesEqual reports whether a and b are the same BSON-ish value.
//
// Unlike reflect.DeepEqual, times compare by instant regardless of location, and unlike
// types.Compare, float64 zero signs are distinguished (+0 != -0) since tests care about
// the exact bit pattern a codec produced.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case *types.Document:
		bv, ok := b.(*types.Document)
		if !ok || av.Len() != bv.Len() {
			return false
		}

		akeys, bkeys := av.Keys(), bv.Keys()
		for i, k := range akeys {
			if bkeys[i] != k {
				return false
			}

			aval, _ := av.Get(k)
			bval, _ := bv.Get(k)

			if !valuesEqual(aval, bval) {
				return false
			}
		}

		return true

	case *types.Array:
		bv, ok := b.(*types.Array)
		if !ok || av.Len() != bv.Len() {
			return false
		}

		for i := 0; i < av.Len(); i++ {
			aval, _ := av.Get(i)
			bval, _ := bv.Get(i)

			if !valuesEqual(aval, bval) {
				return false
			}
		}

		return true

	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}

		if math.IsNaN(av) || math.IsNaN(bv) {
			return math.IsNaN(av) && math.IsNaN(bv)
		}

		return math.Float64bits(av) == math.Float64bits(bv)

	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)

	default:
		return a == b
	}
}

// AssertEqual asserts that expected and actual represent the same BSON value, comparing
// documents/arrays recursively and times by instant rather than by wall clock/location.
func AssertEqual(tb testing.TB, expected, actual any) bool {
	tb.Helper()

	if valuesEqual(expected, actual) {
		return true
	}

	return assert.Equal(tb, expected, actual)
}

// AssertNotEqual is the inverse of AssertEqual.
func AssertNotEqual(tb testing.TB, expected, actual any) bool {
	tb.Helper()

	return assert.False(tb, valuesEqual(expected, actual), "expected %v to not equal %v", expected, actual)
}

// AssertEqualSlices asserts that expected and actual have the same length and that each
// pair of elements is AssertEqual.
func AssertEqualSlices[T any](tb testing.TB, expected, actual []T) bool {
	tb.Helper()

	if !assert.Len(tb, actual, len(expected)) {
		return false
	}

	ok := true

	for i := range expected {
		if !AssertEqual(tb, expected[i], actual[i]) {
			ok = false
		}
	}

	return ok
}
