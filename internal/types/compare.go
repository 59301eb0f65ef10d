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
	"math"
	"time"
)

// typeOrder assigns every BSON type its position in the canonical cross-type ordering
// used for sorting and for comparisons between values of different types ("BSON order").
func typeOrder(v any) int {
	switch v.(type) {
	case MinKeyType:
		return 0
	case UndefinedType:
		return 1
	case NullType, MissingType:
		return 2
	case float64, int32, int64, Decimal128:
		return 3
	case string:
		return 4
	case *Document:
		return 5
	case *Array:
		return 6
	case Binary:
		return 7
	case ObjectID:
		return 8
	case bool:
		return 9
	case time.Time:
		return 10
	case Timestamp:
		return 11
	case Regex:
		return 12
	case MaxKeyType:
		return 13
	default:
		return 99
	}
}

// isNumber returns true if v is one of the numeric BSON types.
func isNumber(v any) bool {
	switch v.(type) {
	case float64, int32, int64, Decimal128:
		return true
	default:
		return false
	}
}

// compareNumbers compares two numeric values, with -0.0 == 0.0 and NaN unordered
// with respect to everything, including itself (matched as NotEqual).
func compareNumbers(a, b any) CompareResult {
	af, aExact, aIsNaN := numberToFloat(a)
	bf, bExact, bIsNaN := numberToFloat(b)

	if aIsNaN || bIsNaN {
		return NotEqual
	}

	// when both sides fit into an exact int64 representation, compare as integers to
	// avoid losing precision for large longs that can't be represented exactly as float64
	if ai, aok := asExactInt64(a); aok {
		if bi, bok := asExactInt64(b); bok {
			switch {
			case ai < bi:
				return Less
			case ai > bi:
				return Greater
			default:
				return Equal
			}
		}
	}

	_ = aExact
	_ = bExact

	switch {
	case af < bf:
		return Less
	case af > bf:
		return Greater
	default:
		return Equal
	}
}

// asExactInt64 returns the int64 representation of v and true if v is int32 or int64.
func asExactInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// numberToFloat widens any numeric BSON value to float64 for comparison purposes.
func numberToFloat(v any) (f float64, exact bool, isNaN bool) {
	switch v := v.(type) {
	case float64:
		return v, false, math.IsNaN(v)
	case int32:
		return float64(v), true, false
	case int64:
		return float64(v), true, false
	case Decimal128:
		// Decimal128 arithmetic is out of scope; widen via its bit pattern is not
		// meaningful, so we treat every Decimal128 as equal to itself and unordered
		// otherwise unless compared against another Decimal128 with the same bits.
		return 0, false, false
	default:
		return 0, false, false
	}
}

// Compare compares two values and returns Equal, Less, Greater, or NotEqual.
//
// Composite values are compared recursively: Documents key-by-key in order (equal only
// with the same keys, in the same order, with equal values - otherwise NotEqual unless
// used via CompareOrder, which provides a total order across documents of different
// shapes too), Arrays elementwise.
func Compare(a, b any) CompareResult {
	if isNumber(a) && isNumber(b) {
		return compareNumbers(a, b)
	}

	to1, to2 := typeOrder(a), typeOrder(b)
	if to1 != to2 {
		return NotEqual
	}

	switch a := a.(type) {
	case *Document:
		return compareDocuments(a, b.(*Document))
	case *Array:
		return compareArrays(a, b.(*Array))
	case string:
		return compareAny(a, b.(string))
	case Binary:
		return compareBinary(a, b.(Binary))
	case ObjectID:
		return compareObjectIDs(a, b.(ObjectID))
	case bool:
		return compareBool(a, b.(bool))
	case time.Time:
		return compareAny(a.UnixMilli(), b.(time.Time).UnixMilli())
	case Timestamp:
		return a.Compare(b.(Timestamp))
	case NullType, MinKeyType, MaxKeyType, UndefinedType, MissingType:
		return Equal
	case Regex:
		bb := b.(Regex)
		if a == bb {
			return Equal
		}

		return NotEqual
	default:
		return NotEqual
	}
}

// compareObjectIDs compares two ObjectIDs byte-by-byte.
func compareObjectIDs(a, b ObjectID) CompareResult {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return Less
			}

			return Greater
		}
	}

	return Equal
}

// compareAny compares two values of the same, already-known, ordered Go type.
func compareAny(a, b any) CompareResult {
	switch a := a.(type) {
	case string:
		bs := b.(string)
		switch {
		case a < bs:
			return Less
		case a > bs:
			return Greater
		default:
			return Equal
		}
	case int64:
		bi := b.(int64)
		switch {
		case a < bi:
			return Less
		case a > bi:
			return Greater
		default:
			return Equal
		}
	default:
		return NotEqual
	}
}

// compareBool orders false before true.
func compareBool(a, b bool) CompareResult {
	switch {
	case a == b:
		return Equal
	case !a && b:
		return Less
	default:
		return Greater
	}
}

// compareBinary compares binary values by subtype, then by byte content.
func compareBinary(a, b Binary) CompareResult {
	if a.Subtype != b.Subtype {
		if a.Subtype < b.Subtype {
			return Less
		}

		return Greater
	}

	n := len(a.B)
	if len(b.B) < n {
		n = len(b.B)
	}

	for i := 0; i < n; i++ {
		if a.B[i] != b.B[i] {
			if a.B[i] < b.B[i] {
				return Less
			}

			return Greater
		}
	}

	switch {
	case len(a.B) < len(b.B):
		return Less
	case len(a.B) > len(b.B):
		return Greater
	default:
		return Equal
	}
}

// compareDocuments compares documents key-by-key, in insertion order; documents with
// different keys (or key order) are NotEqual.
func compareDocuments(a, b *Document) CompareResult {
	if a.Len() != b.Len() {
		return NotEqual
	}

	for i, key := range a.Keys() {
		if b.Keys()[i] != key {
			return NotEqual
		}

		av := a.m[key]
		bv := b.m[key]

		if r := Compare(av, bv); r != Equal {
			return NotEqual
		}
	}

	return Equal
}

// compareArrays compares arrays elementwise; arrays of different length are NotEqual.
func compareArrays(a, b *Array) CompareResult {
	if a.Len() != b.Len() {
		return NotEqual
	}

	for i := 0; i < a.Len(); i++ {
		if r := Compare(a.s[i], b.s[i]); r != Equal {
			return NotEqual
		}
	}

	return Equal
}

// Identical returns true if a and b have exactly the same BSON type and value, without
// the numeric cross-type widening that Compare/equality matching perform. It is used by
// $addToSet and $setOnInsert semantics that require strict type identity.
func Identical(a, b any) bool {
	if typeOrder(a) != typeOrder(b) {
		return false
	}

	switch a.(type) {
	case int32, int64, float64, Decimal128:
		if fullTypeName(a) != fullTypeName(b) {
			return false
		}
	}

	return Compare(a, b) == Equal
}

// fullTypeName returns a Go-level type name, used only to distinguish e.g. int32 from
// int64 when Identical needs strict type matching.
func fullTypeName(v any) string {
	switch v.(type) {
	case int32:
		return "int32"
	case int64:
		return "int64"
	case float64:
		return "double"
	case Decimal128:
		return "decimal128"
	default:
		return ""
	}
}

// CompareOrder compares two values the way a query predicate's scalar comparison
// operators ($gt, $lt, ...) do: values of different BSON types are ordered by their
// canonical type order rather than reported as merely "not equal".
func CompareOrder(a, b any, order SortType) CompareResult {
	res := compareOrderAscending(a, b)

	if order == Descending {
		switch res {
		case Less:
			return Greater
		case Greater:
			return Less
		default:
			return res
		}
	}

	return res
}

// compareOrderAscending is CompareOrder with implicit ascending order.
func compareOrderAscending(a, b any) CompareResult {
	if isNumber(a) && isNumber(b) {
		return compareNumbers(a, b)
	}

	to1, to2 := typeOrder(a), typeOrder(b)
	if to1 != to2 {
		switch {
		case to1 < to2:
			return Less
		default:
			return Greater
		}
	}

	if r := Compare(a, b); r != NotEqual {
		return r
	}

	// same BSON type, but Compare reported NotEqual (composite values of different
	// shape); fall back to a structural comparison so a total order still exists
	return compareSameTypeStructural(a, b)
}

// compareSameTypeStructural provides a deterministic fallback ordering for values that
// share a BSON type but that Compare treats as structurally incomparable (documents with
// different keys, regexes, etc).
func compareSameTypeStructural(a, b any) CompareResult {
	switch a := a.(type) {
	case *Document:
		bd := b.(*Document)
		return compareDocumentsOrdered(a, bd)
	case *Array:
		bd := b.(*Array)
		return compareArraysOrdered(a, bd)
	case Regex:
		bd := b.(Regex)

		switch {
		case a.Pattern != bd.Pattern:
			return compareAny(a.Pattern, bd.Pattern)
		default:
			return compareAny(a.Options, bd.Options)
		}
	default:
		return Equal
	}
}

// compareDocumentsOrdered orders documents first by field count, then key-by-key.
func compareDocumentsOrdered(a, b *Document) CompareResult {
	if a.Len() != b.Len() {
		if a.Len() < b.Len() {
			return Less
		}

		return Greater
	}

	for i, key := range a.Keys() {
		bk := b.Keys()[i]
		if key != bk {
			return compareAny(key, bk)
		}

		if r := compareOrderAscending(a.m[key], b.m[bk]); r != Equal {
			return r
		}
	}

	return Equal
}

// compareArraysOrdered orders arrays lexicographically, element by element, then by length.
func compareArraysOrdered(a, b *Array) CompareResult {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}

	for i := 0; i < n; i++ {
		if r := compareOrderAscending(a.s[i], b.s[i]); r != Equal {
			return r
		}
	}

	switch {
	case a.Len() < b.Len():
		return Less
	case a.Len() > b.Len():
		return Greater
	default:
		return Equal
	}
}

// CompareOrderForSort is CompareOrder specialized for $sort (§4.6): a non-empty array
// sorts by its minimum (Ascending) or maximum (Descending) element, and an empty array
// is treated as greater than any non-array, matching the observed reference behavior.
func CompareOrderForSort(a, b any, order SortType) CompareResult {
	av, aIsArr := a.(*Array)
	bv, bIsArr := b.(*Array)

	switch {
	case aIsArr && bIsArr:
		if av.Len() == 0 && bv.Len() == 0 {
			return Equal
		}

		if av.Len() == 0 {
			return Greater
		}

		if bv.Len() == 0 {
			return Less
		}

		return CompareOrder(arrayExtreme(av, order), arrayExtreme(bv, order), order)
	case aIsArr:
		if av.Len() == 0 {
			return Less
		}

		return CompareOrder(arrayExtreme(av, order), b, order)
	case bIsArr:
		if bv.Len() == 0 {
			return Greater
		}

		return CompareOrder(a, arrayExtreme(bv, order), order)
	default:
		return CompareOrder(a, b, order)
	}
}

// arrayExtreme returns the element that would sort first in the given order: the
// minimum for Ascending, the maximum for Descending.
func arrayExtreme(a *Array, order SortType) any {
	best := a.s[0]

	for _, v := range a.s[1:] {
		r := CompareOrder(v, best, order)
		if r == Less {
			best = v
		}
	}

	return best
}

// Truthy reports whether v is considered true in a boolean context: false for Missing,
// Null, Undefined, zero numbers, and NaN; true for everything else, including an empty
// string and an empty document or array.
func Truthy(v any) bool {
	switch v := v.(type) {
	case MissingType, NullType, UndefinedType:
		return false
	case bool:
		return v
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	default:
		return true
	}
}
