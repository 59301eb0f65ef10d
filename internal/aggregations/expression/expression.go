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

// Package expression evaluates aggregation expressions (§4.3): pure functions from an
// expression value and a variable scope to a result Value.
package expression

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
)

// Error is an expression-evaluation error carrying a stable numeric code (§7).
type Error struct {
	Code int
	Msg  string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("expression (%d): %s", e.Code, e.Msg)
}

func newError(code int, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Variables is the evaluator's variable scope: the aggregation pipeline's root
// document, the current value ($$CURRENT, and the implicit "$field" shorthand), and
// any user-bound names introduced by $let/$map/$filter/$reduce.
type Variables struct {
	root    *types.Document
	current any
	named   map[string]any
}

// NewVariables creates the top-level variable scope for a pipeline stage processing doc.
func NewVariables(doc *types.Document) *Variables {
	return &Variables{root: doc, current: doc, named: map[string]any{}}
}

// WithCurrent returns a copy of v with $$CURRENT (and the bare "$field" shorthand)
// rebound to cur, as $map/$filter/$reduce do for their element variable.
func (v *Variables) WithCurrent(cur any) *Variables {
	cp := *v
	cp.current = cur

	return &cp
}

// WithNamed returns a copy of v with an additional user-bound variable.
func (v *Variables) WithNamed(name string, val any) *Variables {
	named := make(map[string]any, len(v.named)+1)
	for k, ov := range v.named {
		named[k] = ov
	}

	named[name] = val

	cp := *v
	cp.named = named

	return &cp
}

// resolve looks up a "$$name"-style variable.
func (v *Variables) resolve(name string) (any, error) {
	switch name {
	case "ROOT":
		return v.root, nil
	case "CURRENT":
		if v.current == nil {
			return v.root, nil
		}

		return v.current, nil
	default:
		val, ok := v.named[name]
		if !ok {
			return nil, newError(17276, "Use of undefined variable: %s", name)
		}

		return val, nil
	}
}

// Evaluate evaluates expr (a field reference, literal, operator document, array
// literal, or plain scalar) against vars and returns the resulting Value.
func Evaluate(expr any, vars *Variables) (any, error) {
	switch e := expr.(type) {
	case string:
		switch {
		case strings.HasPrefix(e, "$$"):
			return evalVariableRef(e[2:], vars)
		case strings.HasPrefix(e, "$"):
			return evalFieldRef(e[1:], vars)
		default:
			return e, nil
		}
	case *types.Document:
		if e.Len() == 1 {
			key := e.Keys()[0]
			if strings.HasPrefix(key, "$") {
				val, _ := e.Get(key)
				return evalOperator(key, val, vars)
			}
		}

		return evalLiteralDocument(e, vars)
	case *types.Array:
		result := types.MakeArray(e.Len())

		if err := forEachArray(e, func(v any) error {
			ev, err := Evaluate(v, vars)
			if err != nil {
				return err
			}

			return result.Append(ev)
		}); err != nil {
			return nil, err
		}

		return result, nil
	default:
		return expr, nil
	}
}

// forEachArray iterates an array's elements via its iterator, for consistency with the
// rest of the engine's streaming style even where a plain index loop would also do.
func forEachArray(a *types.Array, f func(v any) error) error {
	iter := a.Iterator()
	defer iter.Close()

	for {
		_, v, err := iter.Next()
		if errors.Is(err, iterator.ErrIteratorDone) {
			return nil
		}

		if err != nil {
			return err
		}

		if err = f(v); err != nil {
			return err
		}
	}
}

func evalVariableRef(expr string, vars *Variables) (any, error) {
	parts := strings.SplitN(expr, ".", 2)

	val, err := vars.resolve(parts[0])
	if err != nil {
		return nil, err
	}

	if len(parts) == 1 {
		return val, nil
	}

	doc, ok := val.(*types.Document)
	if !ok {
		return types.Missing, nil
	}

	path, err := types.NewPathFromString(parts[1])
	if err != nil {
		return nil, err
	}

	return types.GetCollectionAware(doc, path)
}

func evalFieldRef(expr string, vars *Variables) (any, error) {
	cur := vars.current

	doc, ok := cur.(*types.Document)
	if !ok {
		doc = vars.root
	}

	if expr == "" {
		if doc == nil {
			return types.Missing, nil
		}

		return doc, nil
	}

	path, err := types.NewPathFromString(expr)
	if err != nil {
		return nil, err
	}

	return types.GetCollectionAware(doc, path)
}

func evalLiteralDocument(doc *types.Document, vars *Variables) (any, error) {
	result := types.MakeDocument(doc.Len())

	for _, key := range doc.Keys() {
		v, _ := doc.Get(key)

		ev, err := Evaluate(v, vars)
		if err != nil {
			return nil, err
		}

		if err = result.Set(key, ev); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// evalArgs evaluates an operator's raw argument expression into a slice of Values: an
// Array literal becomes one element per item; anything else becomes a single-element
// slice, matching MongoDB's acceptance of either form for single/multi-arg operators.
func evalArgs(args any, vars *Variables) ([]any, error) {
	var raw []any

	if arr, ok := args.(*types.Array); ok {
		if err := forEachArray(arr, func(v any) error {
			raw = append(raw, v)
			return nil
		}); err != nil {
			return nil, err
		}
	} else {
		raw = []any{args}
	}

	out := make([]any, len(raw))

	for i, r := range raw {
		v, err := Evaluate(r, vars)
		if err != nil {
			return nil, err
		}

		out[i] = v
	}

	return out, nil
}

// numericArg requires v to be a numeric Value and widens it to float64.
func numericArg(op string, v any) (float64, error) {
	switch v := v.(type) {
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, newError(28765, "%s only supports numeric types, not %s", op, types.TypeName(v))
	}
}

// narrow converts a float64 result back to int32/int64 when it fits exactly, mirroring
// MongoDB's behavior of keeping arithmetic results in the narrowest type that holds them
// when every input was already an integer type.
func narrow(f float64, allInt bool) any {
	if !allInt {
		return f
	}

	if f == float64(int32(f)) {
		return int32(f)
	}

	return int64(f)
}

func allInt(args []any) bool {
	for _, a := range args {
		switch a.(type) {
		case int32, int64:
		default:
			return false
		}
	}

	return true
}

// timeArg requires v to be a BSON date.
func timeArg(op string, v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, newError(16006, "can't convert from %s to Date for %s", types.TypeName(v), op)
	}

	return t, nil
}
