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

// Package typeutil provides low-level helpers for working with BSON scalar values
// that don't belong to the types package itself (it must stay free of any
// handler-level error vocabulary so lower layers, such as backends, can use it too).
package typeutil

import (
	"errors"
	"math"

	"github.com/FerretDB/FerretDB/internal/types"
)

// Sentinel errors returned by GetWholeNumberParam. Callers distinguish them with errors.Is
// and decide on the wire-facing error code themselves.
var (
	// ErrUnexpectedType indicates that value is not a BSON number (or null).
	ErrUnexpectedType = errors.New("unexpected type")

	// ErrNotWholeNumber indicates that value is a float with a fractional part.
	ErrNotWholeNumber = errors.New("not a whole number")

	// ErrLongExceededPositive indicates that value overflows int64 on the positive side.
	ErrLongExceededPositive = errors.New("long exceeded, positive")

	// ErrLongExceededNegative indicates that value overflows int64 on the negative side.
	ErrLongExceededNegative = errors.New("long exceeded, negative")
)

// GetWholeNumberParam converts a BSON numeric value (int32, int64, or a float64 without
// a fractional part) to int64.
//
// It returns ErrUnexpectedType if value isn't a number, ErrNotWholeNumber if it's a float
// with a fractional part, and ErrLongExceededPositive/ErrLongExceededNegative if a float
// doesn't fit in an int64.
func GetWholeNumberParam(value any) (int64, error) {
	switch value := value.(type) {
	case float64:
		if value > float64(math.MaxInt64) {
			return 0, ErrLongExceededPositive
		}

		if value < float64(math.MinInt64) {
			return 0, ErrLongExceededNegative
		}

		if value != math.Trunc(value) {
			return 0, ErrNotWholeNumber
		}

		return int64(value), nil
	case int32:
		return int64(value), nil
	case int64:
		return value, nil
	case types.NullType:
		return 0, ErrUnexpectedType
	default:
		return 0, ErrUnexpectedType
	}
}
