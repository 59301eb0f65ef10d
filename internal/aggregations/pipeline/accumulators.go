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

package pipeline

import (
	"github.com/FerretDB/FerretDB/internal/types"
)

// accumulatorState accumulates one $group output field's value across every document
// that falls into its bucket.
type accumulatorState struct {
	op     string
	sum    float64
	sumInt bool
	count  int
	first  any
	last   any
	hasAny bool
	minMax any
	values []any
}

func newAccumulatorState(op string) *accumulatorState {
	return &accumulatorState{op: op, sumInt: true}
}

func (s *accumulatorState) add(v any) error {
	s.count++

	if !s.hasAny {
		s.first = v
	}

	s.last = v
	s.hasAny = true

	switch s.op {
	case "$sum":
		f, isInt32 := numeric(v)
		s.sum += f
		s.sumInt = s.sumInt && isInt32
	case "$avg":
		f, _ := numeric(v)
		s.sum += f
	case "$min":
		if s.minMax == nil || types.CompareOrder(v, s.minMax, types.Ascending) == types.Less {
			s.minMax = v
		}
	case "$max":
		if s.minMax == nil || types.CompareOrder(v, s.minMax, types.Ascending) == types.Greater {
			s.minMax = v
		}
	case "$push":
		s.values = append(s.values, v)
	case "$addToSet":
		for _, existing := range s.values {
			if types.Compare(existing, v) == types.Equal {
				return nil
			}
		}

		s.values = append(s.values, v)
	case "$first", "$last", "$count":
		// handled via s.first/s.last/s.count directly
	default:
		return newError(15952, "unknown group operator %q", s.op)
	}

	return nil
}

func (s *accumulatorState) result() any {
	switch s.op {
	case "$sum":
		return narrow(s.sum, s.sumInt)
	case "$avg":
		if s.count == 0 {
			return types.Null
		}

		return s.sum / float64(s.count)
	case "$min", "$max":
		if s.minMax == nil {
			return types.Null
		}

		return s.minMax
	case "$push":
		arr := types.MakeArray(len(s.values))
		for _, v := range s.values {
			_ = arr.Append(v)
		}

		return arr
	case "$addToSet":
		arr := types.MakeArray(len(s.values))
		for _, v := range s.values {
			_ = arr.Append(v)
		}

		return arr
	case "$first":
		if !s.hasAny {
			return types.Null
		}

		return s.first
	case "$last":
		if !s.hasAny {
			return types.Null
		}

		return s.last
	case "$count":
		return int32(s.count)
	default:
		return types.Null
	}
}

// narrow mirrors expression.narrow locally: widen-back a $sum accumulation to int32/
// int64 when every contributing value was an integer type and the total still fits.
func narrow(f float64, allInt bool) any {
	if !allInt {
		return f
	}

	if f == float64(int32(f)) {
		return int32(f)
	}

	if f == float64(int64(f)) {
		return int64(f)
	}

	return f
}

// numeric widens v to float64, reporting whether it was an int32 (for $sum's result
// narrowing), matching the update package's helper of the same shape.
func numeric(v any) (f float64, isInt32 bool) {
	switch v := v.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), false
	case float64:
		return v, false
	default:
		return 0, false
	}
}
