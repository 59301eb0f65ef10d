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

// Package types provides the document data model: a tagged value union shared by the
// query matcher, the update engine, the expression evaluator, and the aggregation pipeline.
//
// # Value types
//
// Any Go value of the following types represents a BSON-compatible value:
//
//   - *Document;
//   - *Array;
//   - float64;
//   - string;
//   - Binary;
//   - ObjectID;
//   - bool;
//   - time.Time;
//   - NullType;
//   - Regex;
//   - int32;
//   - Timestamp;
//   - int64;
//   - Decimal128;
//   - MissingType (returned by path lookups, never stored inside a Document or Array);
//   - MinKeyType, MaxKeyType, UndefinedType.
//
// Composite types (Document and Array) are passed around as pointers to make it clear
// that they are never passed by value, and to make modifications observable by all holders
// of that pointer.
package types

import (
	"fmt"
)

// NullType represents BSON scalar type null.
type NullType struct{}

// Null represents a BSON value of type null.
var Null = NullType{}

// MissingType represents the absence of a value.
//
// Missing is never stored inside a Document or an Array; it is only ever returned by
// path lookups (Path Engine, §4.2) to distinguish "the path does not exist" from
// "the path exists and is null". It is a distinct sentinel, not a nullable-of-nullable.
type MissingType struct{}

// Missing represents the absence of a value at a given path.
var Missing = MissingType{}

// MinKeyType represents BSON scalar type minKey.
type MinKeyType struct{}

// MinKey represents a BSON value of type minKey, less than any other value.
var MinKey = MinKeyType{}

// MaxKeyType represents BSON scalar type maxKey.
type MaxKeyType struct{}

// MaxKey represents a BSON value of type maxKey, greater than any other value.
var MaxKey = MaxKeyType{}

// UndefinedType represents the legacy BSON scalar type undefined.
type UndefinedType struct{}

// Undefined represents a BSON value of the legacy type undefined.
var Undefined = UndefinedType{}

// CompareResult represents the result of a three-way comparison.
type CompareResult int

const (
	_ CompareResult = iota

	// Equal means two values are equal.
	Equal

	// Less means the first value is less than the second one.
	Less

	// Greater means the first value is greater than the second one.
	Greater

	// NotEqual means that types are not comparable or comparison isn't supported for the type
	// (for example, for regular expressions or documents with different sets of keys).
	NotEqual
)

// String returns a string representation for logging.
func (r CompareResult) String() string {
	switch r {
	case Equal:
		return "Equal"
	case Less:
		return "Less"
	case Greater:
		return "Greater"
	case NotEqual:
		return "NotEqual"
	default:
		return fmt.Sprintf("CompareResult(%d)", int(r))
	}
}

// SortType represents sort order of a $sort stage or a find's sort parameter.
type SortType int

const (
	// Ascending sort order.
	Ascending SortType = iota + 1

	// Descending sort order.
	Descending
)

