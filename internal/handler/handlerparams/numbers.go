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

package handlerparams

import (
	"errors"
	"fmt"
	"math"

	"github.com/FerretDB/FerretDB/internal/handler/handlererrors"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
)

// GetWholeNumberParam converts a BSON numeric value (int32, int64, or a float64 without
// a fractional part) to int64.
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
	default:
		return 0, ErrUnexpectedType
	}
}

// GetValidatedNumberParamWithMinValue converts and validates a value into a number.
//
// The function checks the type, ensures it can be represented as a whole number,
// isn't negative and falls within a given minimum value and the limit of a 32-bit integer.
func GetValidatedNumberParamWithMinValue(command, param string, value any, minValue int32) (int64, error) {
	whole, err := GetWholeNumberParam(value)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnexpectedType):
			if _, ok := value.(types.NullType); ok {
				return int64(minValue), nil
			}

			return 0, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf(
					`BSON field '%s.%s' is the wrong type '%s', expected types '[long, int, decimal, double]'`,
					command, param, AliasFromType(value),
				),
				command,
			)
		case errors.Is(err, ErrNotWholeNumber):
			if math.Signbit(value.(float64)) {
				return 0, handlererrors.NewCommandErrorMsgWithArgument(
					handlererrors.ErrValueNegative,
					fmt.Sprintf(
						"BSON field '%s' value must be >= %d, actual value '%d'",
						param, minValue, int(math.Ceil(value.(float64))),
					),
					command,
				)
			}

			return int64(math.Floor(value.(float64))), nil
		case errors.Is(err, ErrLongExceededPositive):
			return math.MaxInt32, nil
		case errors.Is(err, ErrLongExceededNegative):
			return 0, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrValueNegative,
				fmt.Sprintf(
					"BSON field '%s' value must be >= %d, actual value '%d'",
					param, minValue, int(math.Ceil(value.(float64))),
				),
				command,
			)
		default:
			return 0, lazyerrors.Error(err)
		}
	}

	if whole < int64(minValue) {
		return 0, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrValueNegative,
			fmt.Sprintf("BSON field '%s' value must be >= %d, actual value '%d'", param, minValue, whole),
			command,
		)
	}

	if whole > math.MaxInt32 {
		return math.MaxInt32, nil
	}

	return whole, nil
}

// GetBoolOptionalParam returns a bool for a BSON value used as an optional boolean
// command flag: BSON bool, a whole number (nonzero is true), or null/missing (false).
func GetBoolOptionalParam(name string, value any) (bool, error) {
	switch value := value.(type) {
	case bool:
		return value, nil
	case int32:
		return value != 0, nil
	case int64:
		return value != 0, nil
	case float64:
		return value != 0, nil
	case types.NullType:
		return false, nil
	default:
		return false, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrTypeMismatch,
			fmt.Sprintf("%s must be a boolean", name),
			name,
		)
	}
}

// addNumbersSameType adds two BSON numbers of the same underlying kind, promoting
// int32 to int64 on overflow instead of wrapping.
func addNumbersSameType(v1, v2 any) (any, error) {
	switch v1 := v1.(type) {
	case int32:
		v2, ok := v2.(int32)
		if !ok {
			return nil, ErrUnexpectedRightOpType
		}

		sum := int64(v1) + int64(v2)
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return nil, ErrIntExceeded
		}

		return int32(sum), nil
	case int64:
		v2, ok := v2.(int64)
		if !ok {
			return nil, ErrUnexpectedRightOpType
		}

		return v1 + v2, nil
	case float64:
		v2, ok := v2.(float64)
		if !ok {
			return nil, ErrUnexpectedRightOpType
		}

		return v1 + v2, nil
	default:
		return nil, ErrUnexpectedLeftOpType
	}
}

// AddNumbers adds two BSON numeric values together, promoting to the wider type
// (int32 < int64 < float64) when the operands differ, matching $inc's semantics.
func AddNumbers(v1, v2 any) (any, error) {
	switch v1.(type) {
	case int32, int64, float64:
	default:
		return nil, ErrUnexpectedRightOpType
	}

	switch v2.(type) {
	case int32, int64, float64:
	default:
		return nil, ErrUnexpectedLeftOpType
	}

	rank := func(v any) int {
		switch v.(type) {
		case int32:
			return 0
		case int64:
			return 1
		default:
			return 2
		}
	}

	if rank(v1) == rank(v2) {
		return addNumbersSameType(v1, v2)
	}

	if rank(v1) < rank(v2) {
		v1 = promote(v1, rank(v2))
	} else {
		v2 = promote(v2, rank(v1))
	}

	return addNumbersSameType(v1, v2)
}

// MultiplyNumbers multiplies two BSON numeric values together, promoting to the wider
// type (int32 < int64 < float64) when the operands differ, matching $mul's semantics.
func MultiplyNumbers(v1, v2 any) (any, error) {
	switch v1.(type) {
	case int32, int64, float64:
	default:
		return nil, ErrUnexpectedRightOpType
	}

	switch v2.(type) {
	case int32, int64, float64:
	default:
		return nil, ErrUnexpectedLeftOpType
	}

	rank := func(v any) int {
		switch v.(type) {
		case int32:
			return 0
		case int64:
			return 1
		default:
			return 2
		}
	}

	r := rank(v1)
	if rank(v2) > r {
		r = rank(v2)
	}

	v1 = promote(v1, r)
	v2 = promote(v2, r)

	switch v1 := v1.(type) {
	case int32:
		product := int64(v1) * int64(v2.(int32))
		if product > math.MaxInt32 || product < math.MinInt32 {
			return nil, ErrIntExceeded
		}

		return int32(product), nil
	case int64:
		return v1 * v2.(int64), nil
	default:
		return v1.(float64) * v2.(float64), nil
	}
}

// promote converts a BSON number to the type identified by rank (0=int32, 1=int64, 2=float64).
func promote(v any, rank int) any {
	switch rank {
	case 0:
		return v
	case 1:
		if i, ok := v.(int32); ok {
			return int64(i)
		}

		return v
	default:
		switch v := v.(type) {
		case int32:
			return float64(v)
		case int64:
			return float64(v)
		default:
			return v
		}
	}
}
