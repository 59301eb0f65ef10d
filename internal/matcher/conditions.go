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

package matcher

import (
	"github.com/FerretDB/FerretDB/internal/types"
)

// condition is one field-level operator ($eq, $gt, $elemMatch, ...). eval receives both
// the strict (non-fanned) value at the field's path and the collection-aware (fanned)
// value, since different operators need different array semantics.
type condition interface {
	// eval returns whether the condition holds, and, if it was satisfied by a specific
	// array element, that element's index (-1 otherwise).
	eval(raw, fan any) (bool, int, error)
}

// valueTest is a condition that applies a scalar test elementwise across an array field
// (matching if the whole value matches, or any element does), mirroring MongoDB's
// "implicit array traversal" semantics for most query operators.
type valueTest struct {
	test func(v any) bool
}

func (c valueTest) eval(raw, fan any) (bool, int, error) {
	if c.test(raw) {
		return true, -1, nil
	}

	if arr, ok := raw.(*types.Array); ok {
		for i := 0; i < arr.Len(); i++ {
			elem, _ := arr.Get(i)
			if c.test(elem) {
				return true, i, nil
			}
		}
	}

	if fanArr, ok := fan.(*types.Array); ok {
		for i := 0; i < fanArr.Len(); i++ {
			elem, _ := fanArr.Get(i)
			if c.test(elem) {
				return true, i, nil
			}
		}
	} else if c.test(fan) {
		return true, -1, nil
	}

	return false, -1, nil
}

// wholeValueTest is a condition that applies only to the field's value as a whole,
// never fanning out across array elements ($size, $exists, $type, $all, $elemMatch).
type wholeValueTest struct {
	test func(v any) (bool, error)
}

func (c wholeValueTest) eval(raw, _ any) (bool, int, error) {
	ok, err := c.test(raw)
	return ok, -1, err
}

func eqCondition(expected any) condition {
	return valueTest{test: func(v any) bool {
		return types.Compare(v, expected) == types.Equal
	}}
}

func compileOperator(op string, val any) (condition, error) {
	switch op {
	case "$eq":
		return eqCondition(val), nil
	case "$ne":
		eq := eqCondition(val)
		return wholeValueTest{test: func(raw any) (bool, error) {
			ok, _, err := eq.eval(raw, raw)
			return !ok, err
		}}, nil
	case "$gt":
		return scalarOrder(val, types.Greater, false), nil
	case "$gte":
		return scalarOrder(val, types.Greater, true), nil
	case "$lt":
		return scalarOrder(val, types.Less, false), nil
	case "$lte":
		return scalarOrder(val, types.Less, true), nil
	case "$in":
		return inCondition(val, false)
	case "$nin":
		return inCondition(val, true)
	case "$exists":
		want := types.Truthy(val)

		return wholeValueTest{test: func(raw any) (bool, error) {
			_, isMissing := raw.(types.MissingType)
			return !isMissing == want, nil
		}}, nil
	case "$type":
		name, ok := types.TypeAlias(val)
		if !ok {
			return nil, newError(2, "$type given unknown type name")
		}

		return wholeValueTest{test: func(raw any) (bool, error) {
			if name == "number" {
				switch raw.(type) {
				case int32, int64, float64, types.Decimal128:
					return true, nil
				default:
					return false, nil
				}
			}

			return types.TypeName(raw) == name, nil
		}}, nil
	case "$regex":
		return regexCondition(val, "")
	case "$options":
		// handled together with $regex by the caller ordering; a bare $options (regex
		// provided via a separate key in the same operator document) is validated there
		return wholeValueTest{test: func(any) (bool, error) { return true, nil }}, nil
	case "$mod":
		return modCondition(val)
	case "$size":
		n, ok := asInt(val)
		if !ok {
			return nil, newError(2, "$size requires a numeric argument")
		}

		return wholeValueTest{test: func(raw any) (bool, error) {
			arr, ok := raw.(*types.Array)
			if !ok {
				return false, nil
			}

			return arr.Len() == n, nil
		}}, nil
	case "$all":
		return allCondition(val)
	case "$elemMatch":
		return elemMatchCondition(val)
	case "$not":
		return notCondition(val)
	default:
		return nil, newError(2, "unknown query operator: %s", op)
	}
}

func scalarOrder(expected any, want types.CompareResult, orEqual bool) condition {
	return valueTest{test: func(v any) bool {
		r := types.CompareOrder(v, expected, types.Ascending)
		if r == want {
			return true
		}

		return orEqual && r == types.Equal
	}}
}

func inCondition(val any, negate bool) (condition, error) {
	arr, ok := val.(*types.Array)
	if !ok {
		return nil, newError(2, "$in/$nin requires an array")
	}

	values := make([]any, arr.Len())

	for i := range values {
		values[i], _ = arr.Get(i)
	}

	test := func(v any) bool {
		for _, want := range values {
			if types.Compare(v, want) == types.Equal {
				return true
			}
		}

		return false
	}

	if !negate {
		return valueTest{test: test}, nil
	}

	return wholeValueTest{test: func(raw any) (bool, error) {
		vt := valueTest{test: test}
		ok, _, err := vt.eval(raw, raw)

		return !ok, err
	}}, nil
}

func regexCondition(val any, options string) (condition, error) {
	var re types.Regex

	switch v := val.(type) {
	case types.Regex:
		re = v
	case string:
		re = types.Regex{Pattern: v, Options: options}
	default:
		return nil, newError(2, "$regex has to be a string or regular expression")
	}

	compiled, err := re.Compile()
	if err != nil {
		return nil, newError(51091, "invalid regular expression: %s", err)
	}

	return valueTest{test: func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}

		return compiled.MatchString(s)
	}}, nil
}

func modCondition(val any) (condition, error) {
	arr, ok := val.(*types.Array)
	if !ok || arr.Len() != 2 {
		return nil, newError(2, "$mod requires a 2-element array")
	}

	divisor, ok1 := asInt(mustGet(arr, 0))
	remainder, ok2 := asInt(mustGet(arr, 1))

	if !ok1 || !ok2 || divisor == 0 {
		return nil, newError(2, "$mod requires numeric divisor and remainder")
	}

	return valueTest{test: func(v any) bool {
		n, ok := asInt(v)
		if !ok {
			return false
		}

		return n%divisor == remainder
	}}, nil
}

func allCondition(val any) (condition, error) {
	arr, ok := val.(*types.Array)
	if !ok {
		return nil, newError(2, "$all requires an array")
	}

	wanted := make([]any, arr.Len())

	for i := range wanted {
		wanted[i], _ = arr.Get(i)
	}

	return wholeValueTest{test: func(raw any) (bool, error) {
		field, ok := raw.(*types.Array)
		if !ok {
			return false, nil
		}

		for _, w := range wanted {
			found := false

			for i := 0; i < field.Len(); i++ {
				elem, _ := field.Get(i)
				if types.Compare(elem, w) == types.Equal {
					found = true
					break
				}
			}

			if !found {
				return false, nil
			}
		}

		return true, nil
	}}, nil
}

func elemMatchCondition(val any) (condition, error) {
	sub, ok := val.(*types.Document)
	if !ok {
		return nil, newError(2, "$elemMatch requires an object")
	}

	pred, err := compileDocument(sub)
	if err != nil {
		return nil, err
	}

	// an $elemMatch sub-document made only of comparison operators (e.g. {$gt: 1}) is
	// applied directly to each scalar element, rather than treating the element as a
	// document to traverse into.
	scalarMode := isOperatorDocument(sub)

	var scalarConds []condition

	if scalarMode {
		scalarConds = make([]condition, 0, sub.Len())

		for _, k := range sub.Keys() {
			v, _ := sub.Get(k)

			c, err := compileOperator(k, v)
			if err != nil {
				return nil, err
			}

			scalarConds = append(scalarConds, c)
		}
	}

	return wholeValueTest{test: func(raw any) (bool, error) {
		arr, ok := raw.(*types.Array)
		if !ok {
			return false, nil
		}

		for i := 0; i < arr.Len(); i++ {
			elem, _ := arr.Get(i)

			if scalarMode {
				allOK := true

				for _, c := range scalarConds {
					ok, _, err := c.eval(elem, elem)
					if err != nil {
						return false, err
					}

					if !ok {
						allOK = false
						break
					}
				}

				if allOK {
					return true, nil
				}

				continue
			}

			elemDoc, ok := elem.(*types.Document)
			if !ok {
				continue
			}

			ok, err := pred.match(elemDoc, &context{index: -1})
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	}}, nil
}

func notCondition(val any) (condition, error) {
	var inner condition

	switch v := val.(type) {
	case *types.Document:
		if !isOperatorDocument(v) {
			return nil, newError(2, "$not requires a query operator document")
		}

		conds := make([]condition, 0, v.Len())

		for _, k := range v.Keys() {
			ov, _ := v.Get(k)

			c, err := compileOperator(k, ov)
			if err != nil {
				return nil, err
			}

			conds = append(conds, c)
		}

		inner = wholeValueTest{test: func(raw any) (bool, error) {
			for _, c := range conds {
				ok, _, err := c.eval(raw, raw)
				if err != nil {
					return false, err
				}

				if !ok {
					return false, nil
				}
			}

			return true, nil
		}}
	case types.Regex:
		rc, err := regexCondition(v, "")
		if err != nil {
			return nil, err
		}

		inner = rc
	default:
		return nil, newError(2, "$not requires a query operator document or regex")
	}

	return wholeValueTest{test: func(raw any) (bool, error) {
		ok, _, err := inner.eval(raw, raw)
		return !ok, err
	}}, nil
}

func asInt(v any) (int, bool) {
	switch v := v.(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func mustGet(arr *types.Array, i int) any {
	v, _ := arr.Get(i)
	return v
}
