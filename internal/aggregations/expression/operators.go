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

package expression

import (
	"fmt"
	"strings"
	"time"

	"github.com/FerretDB/FerretDB/internal/types"
)

// operatorFunc evaluates one operator's raw (unevaluated) argument expression.
type operatorFunc func(args any, vars *Variables) (any, error)

// operators dispatches a single-key operator Document (e.g. {"$abs": "$x"}) to its
// implementation. Operators that need control over evaluation order (conditionals,
// variable binding, short-circuiting) receive the raw args and call Evaluate themselves;
// the rest go through evalArgs.
var operators map[string]operatorFunc

//nolint:gochecknoinits // one-time dispatch table construction
func init() {
	operators = map[string]operatorFunc{
		"$abs":         opAbs,
		"$add":         opAdd,
		"$multiply":    opMultiply,
		"$subtract":    opSubtract,
		"$divide":      opDivide,
		"$arrayElemAt": opArrayElemAt,
		"$cond":        opCond,
		"$ifNull":      opIfNull,
		"$size":        opSize,
		"$concat":      opConcat,
		"$substr":      opSubstr,
		"$substrBytes": opSubstr,
		"$toLower":     opToLower,
		"$toUpper":     opToUpper,
		"$literal":     opLiteral,
		"$let":         opLet,
		"$map":         opMap,
		"$filter":      opFilter,
		"$reduce":      opReduce,
		"$switch":      opSwitch,
		"$eq":          opCmp(types.Equal),
		"$ne":          opCmpNot(types.Equal),
		"$gt":          opCmp(types.Greater),
		"$gte":         opCmpGTE,
		"$lt":          opCmp(types.Less),
		"$lte":         opCmpLTE,
		"$and":         opAnd,
		"$or":          opOr,
		"$not":         opNot,
		"$year":        opDatePart(func(t time.Time) any { return int32(t.UTC().Year()) }),
		"$month":       opDatePart(func(t time.Time) any { return int32(t.UTC().Month()) }),
		"$dayOfMonth":  opDatePart(func(t time.Time) any { return int32(t.UTC().Day()) }),
		"$dateToString": opDateToString,
		"$type":        opType,
	}
}

func evalOperator(name string, args any, vars *Variables) (any, error) {
	f, ok := operators[name]
	if !ok {
		return nil, newError(168, "Unrecognized expression '%s'", name)
	}

	return f(args, vars)
}

func opAbs(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) != 1 {
		return nil, newError(16020, "$abs only supports 1 argument")
	}

	f, err := numericArg("$abs", vs[0])
	if err != nil {
		return nil, err
	}

	if f < 0 {
		f = -f
	}

	return narrow(f, allInt(vs)), nil
}

func opAdd(args any, vars *Variables) (any, error) {
	return arithmeticFold(args, vars, "$add", 0, func(acc, v float64) float64 { return acc + v })
}

func opMultiply(args any, vars *Variables) (any, error) {
	return arithmeticFold(args, vars, "$multiply", 1, func(acc, v float64) float64 { return acc * v })
}

func arithmeticFold(args any, vars *Variables, op string, seed float64, fold func(acc, v float64) float64) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	acc := seed

	for _, v := range vs {
		f, err := numericArg(op, v)
		if err != nil {
			return nil, err
		}

		acc = fold(acc, f)
	}

	return narrow(acc, allInt(vs)), nil
}

func opSubtract(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) != 2 {
		return nil, newError(16020, "$subtract requires exactly 2 arguments")
	}

	if ta, ok := vs[0].(time.Time); ok {
		if tb, ok := vs[1].(time.Time); ok {
			return ta.Sub(tb).Milliseconds(), nil
		}
	}

	a, err := numericArg("$subtract", vs[0])
	if err != nil {
		return nil, err
	}

	b, err := numericArg("$subtract", vs[1])
	if err != nil {
		return nil, err
	}

	return narrow(a-b, allInt(vs)), nil
}

func opDivide(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) != 2 {
		return nil, newError(16020, "$divide requires exactly 2 arguments")
	}

	a, err := numericArg("$divide", vs[0])
	if err != nil {
		return nil, err
	}

	b, err := numericArg("$divide", vs[1])
	if err != nil {
		return nil, err
	}

	if b == 0 {
		return nil, newError(16608, "$divide by zero")
	}

	return a / b, nil
}

func opArrayElemAt(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) != 2 {
		return nil, newError(16020, "$arrayElemAt requires exactly 2 arguments")
	}

	arr, ok := vs[0].(*types.Array)
	if !ok {
		return nil, newError(28689, "$arrayElemAt's first argument must be an array, not %s", types.TypeName(vs[0]))
	}

	idx, err := numericArg("$arrayElemAt", vs[1])
	if err != nil {
		return nil, err
	}

	i := int(idx)
	if i < 0 {
		i += arr.Len()
	}

	v, err := arr.Get(i)
	if err != nil {
		return types.Missing, nil //nolint:nilerr // out-of-bounds index yields missing, not an error
	}

	return v, nil
}

func opCond(args any, vars *Variables) (any, error) {
	var ifExpr, thenExpr, elseExpr any

	switch a := args.(type) {
	case *types.Array:
		if a.Len() != 3 {
			return nil, newError(16020, "$cond requires exactly 3 arguments")
		}

		ifExpr, _ = a.Get(0)
		thenExpr, _ = a.Get(1)
		elseExpr, _ = a.Get(2)
	case *types.Document:
		var err error

		if ifExpr, err = a.Get("if"); err != nil {
			return nil, newError(17080, "$cond missing 'if'")
		}

		if thenExpr, err = a.Get("then"); err != nil {
			return nil, newError(17080, "$cond missing 'then'")
		}

		if elseExpr, err = a.Get("else"); err != nil {
			return nil, newError(17080, "$cond missing 'else'")
		}
	default:
		return nil, newError(17080, "$cond requires an array or document argument")
	}

	cond, err := Evaluate(ifExpr, vars)
	if err != nil {
		return nil, err
	}

	if types.Truthy(cond) {
		return Evaluate(thenExpr, vars)
	}

	return Evaluate(elseExpr, vars)
}

func opIfNull(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) == 0 {
		return nil, newError(16020, "$ifNull requires at least 1 argument")
	}

	for _, v := range vs[:len(vs)-1] {
		if !isNullish(v) {
			return v, nil
		}
	}

	return vs[len(vs)-1], nil
}

func isNullish(v any) bool {
	switch v.(type) {
	case types.NullType, types.MissingType, types.UndefinedType:
		return true
	default:
		return false
	}
}

func opSize(args any, vars *Variables) (any, error) {
	v, err := Evaluate(args, vars)
	if err != nil {
		return nil, err
	}

	arr, ok := v.(*types.Array)
	if !ok {
		return nil, newError(17124, "$size requires an array, found %s", types.TypeName(v))
	}

	return int32(arr.Len()), nil
}

func opConcat(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder

	for _, v := range vs {
		if isNullish(v) {
			return types.Null, nil
		}

		s, ok := v.(string)
		if !ok {
			return nil, newError(16702, "$concat only supports strings, not %s", types.TypeName(v))
		}

		sb.WriteString(s)
	}

	return sb.String(), nil
}

func opSubstr(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) != 3 {
		return nil, newError(16020, "$substr requires exactly 3 arguments")
	}

	s, ok := vs[0].(string)
	if !ok {
		return nil, newError(16007, "$substr's first argument must be a string")
	}

	start, err := numericArg("$substr", vs[1])
	if err != nil {
		return nil, err
	}

	length, err := numericArg("$substr", vs[2])
	if err != nil {
		return nil, err
	}

	b := []byte(s)
	i := int(start)

	if i < 0 || i > len(b) {
		return "", nil
	}

	j := len(b)
	if length >= 0 && i+int(length) < j {
		j = i + int(length)
	}

	return string(b[i:j]), nil
}

func opToLower(args any, vars *Variables) (any, error) {
	return stringUnary(args, vars, "$toLower", strings.ToLower)
}

func opToUpper(args any, vars *Variables) (any, error) {
	return stringUnary(args, vars, "$toUpper", strings.ToUpper)
}

func stringUnary(args any, vars *Variables, op string, f func(string) string) (any, error) {
	v, err := Evaluate(args, vars)
	if err != nil {
		return nil, err
	}

	if isNullish(v) {
		return "", nil
	}

	s, ok := v.(string)
	if !ok {
		return nil, newError(16007, "%s requires a string argument, found: %s", op, types.TypeName(v))
	}

	return f(s), nil
}

func opLiteral(args any, _ *Variables) (any, error) {
	return args, nil
}

func opLet(args any, vars *Variables) (any, error) {
	doc, ok := args.(*types.Document)
	if !ok {
		return nil, newError(17081, "$let only supports an object as its argument")
	}

	varsDoc, err := doc.Get("vars")
	if err != nil {
		return nil, newError(17081, "$let requires 'vars'")
	}

	inExpr, err := doc.Get("in")
	if err != nil {
		return nil, newError(17081, "$let requires 'in'")
	}

	varsDocument, ok := varsDoc.(*types.Document)
	if !ok {
		return nil, newError(17081, "$let 'vars' must be an object")
	}

	scope := vars

	for _, key := range varsDocument.Keys() {
		raw, _ := varsDocument.Get(key)

		v, err := Evaluate(raw, scope)
		if err != nil {
			return nil, err
		}

		scope = scope.WithNamed(key, v)
	}

	return Evaluate(inExpr, scope)
}

func opMap(args any, vars *Variables) (any, error) {
	doc, ok := args.(*types.Document)
	if !ok {
		return nil, newError(16878, "$map only supports an object as its argument")
	}

	inputExpr, err := doc.Get("input")
	if err != nil {
		return nil, newError(16878, "$map requires 'input'")
	}

	asName := "this"
	if v, err := doc.Get("as"); err == nil {
		if s, ok := v.(string); ok {
			asName = s
		}
	}

	inExpr, err := doc.Get("in")
	if err != nil {
		return nil, newError(16878, "$map requires 'in'")
	}

	inputVal, err := Evaluate(inputExpr, vars)
	if err != nil {
		return nil, err
	}

	if isNullish(inputVal) {
		return types.Null, nil
	}

	arr, ok := inputVal.(*types.Array)
	if !ok {
		return nil, newError(16883, "input to $map must be an array not %s", types.TypeName(inputVal))
	}

	result := types.MakeArray(arr.Len())

	if err = forEachArray(arr, func(v any) error {
		scope := vars.WithNamed(asName, v).WithCurrent(v)

		ev, err := Evaluate(inExpr, scope)
		if err != nil {
			return err
		}

		return result.Append(ev)
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func opFilter(args any, vars *Variables) (any, error) {
	doc, ok := args.(*types.Document)
	if !ok {
		return nil, newError(28646, "$filter only supports an object as its argument")
	}

	inputExpr, err := doc.Get("input")
	if err != nil {
		return nil, newError(28646, "$filter requires 'input'")
	}

	asName := "this"
	if v, err := doc.Get("as"); err == nil {
		if s, ok := v.(string); ok {
			asName = s
		}
	}

	condExpr, err := doc.Get("cond")
	if err != nil {
		return nil, newError(28646, "$filter requires 'cond'")
	}

	inputVal, err := Evaluate(inputExpr, vars)
	if err != nil {
		return nil, err
	}

	arr, ok := inputVal.(*types.Array)
	if !ok {
		return nil, newError(28651, "input to $filter must be an array not %s", types.TypeName(inputVal))
	}

	result := types.MakeArray(arr.Len())

	if err = forEachArray(arr, func(v any) error {
		scope := vars.WithNamed(asName, v).WithCurrent(v)

		cond, err := Evaluate(condExpr, scope)
		if err != nil {
			return err
		}

		if types.Truthy(cond) {
			return result.Append(v)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func opReduce(args any, vars *Variables) (any, error) {
	doc, ok := args.(*types.Document)
	if !ok {
		return nil, newError(40075, "$reduce requires an object argument")
	}

	inputExpr, err := doc.Get("input")
	if err != nil {
		return nil, newError(40075, "$reduce requires 'input'")
	}

	initExpr, err := doc.Get("initialValue")
	if err != nil {
		return nil, newError(40075, "$reduce requires 'initialValue'")
	}

	inExpr, err := doc.Get("in")
	if err != nil {
		return nil, newError(40075, "$reduce requires 'in'")
	}

	inputVal, err := Evaluate(inputExpr, vars)
	if err != nil {
		return nil, err
	}

	arr, ok := inputVal.(*types.Array)
	if !ok {
		return nil, newError(40080, "input to $reduce must be an array not %s", types.TypeName(inputVal))
	}

	acc, err := Evaluate(initExpr, vars)
	if err != nil {
		return nil, err
	}

	if err = forEachArray(arr, func(v any) error {
		scope := vars.WithNamed("value", acc).WithNamed("this", v)

		next, err := Evaluate(inExpr, scope)
		if err != nil {
			return err
		}

		acc = next

		return nil
	}); err != nil {
		return nil, err
	}

	return acc, nil
}

func opSwitch(args any, vars *Variables) (any, error) {
	doc, ok := args.(*types.Document)
	if !ok {
		return nil, newError(40060, "$switch requires an object argument")
	}

	branchesVal, err := doc.Get("branches")
	if err != nil {
		return nil, newError(40060, "$switch requires 'branches'")
	}

	branches, ok := branchesVal.(*types.Array)
	if !ok {
		return nil, newError(40061, "$switch 'branches' must be an array")
	}

	var result any

	found := false

	if err = forEachArray(branches, func(v any) error {
		if found {
			return nil
		}

		branch, ok := v.(*types.Document)
		if !ok {
			return newError(40062, "$switch 'branches' must be objects")
		}

		caseExpr, err := branch.Get("case")
		if err != nil {
			return newError(40062, "$switch branch requires 'case'")
		}

		thenExpr, err := branch.Get("then")
		if err != nil {
			return newError(40062, "$switch branch requires 'then'")
		}

		cond, err := Evaluate(caseExpr, vars)
		if err != nil {
			return err
		}

		if types.Truthy(cond) {
			result, err = Evaluate(thenExpr, vars)
			found = true

			return err
		}

		return nil
	}); err != nil {
		return nil, err
	}

	if found {
		return result, nil
	}

	defaultExpr, err := doc.Get("default")
	if err != nil {
		return nil, newError(40066, "$switch has no default and no branch matched")
	}

	return Evaluate(defaultExpr, vars)
}

func opCmp(want types.CompareResult) operatorFunc {
	return func(args any, vars *Variables) (any, error) {
		vs, err := evalArgs(args, vars)
		if err != nil {
			return nil, err
		}

		if len(vs) != 2 {
			return nil, newError(16020, "comparison operator requires exactly 2 arguments")
		}

		return types.CompareOrder(vs[0], vs[1], types.Ascending) == want, nil
	}
}

func opCmpNot(not types.CompareResult) operatorFunc {
	return func(args any, vars *Variables) (any, error) {
		vs, err := evalArgs(args, vars)
		if err != nil {
			return nil, err
		}

		if len(vs) != 2 {
			return nil, newError(16020, "comparison operator requires exactly 2 arguments")
		}

		return types.CompareOrder(vs[0], vs[1], types.Ascending) != not, nil
	}
}

func opCmpGTE(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) != 2 {
		return nil, newError(16020, "$gte requires exactly 2 arguments")
	}

	r := types.CompareOrder(vs[0], vs[1], types.Ascending)

	return r == types.Greater || r == types.Equal, nil
}

func opCmpLTE(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	if len(vs) != 2 {
		return nil, newError(16020, "$lte requires exactly 2 arguments")
	}

	r := types.CompareOrder(vs[0], vs[1], types.Ascending)

	return r == types.Less || r == types.Equal, nil
}

func opAnd(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	for _, v := range vs {
		if !types.Truthy(v) {
			return false, nil
		}
	}

	return true, nil
}

func opOr(args any, vars *Variables) (any, error) {
	vs, err := evalArgs(args, vars)
	if err != nil {
		return nil, err
	}

	for _, v := range vs {
		if types.Truthy(v) {
			return true, nil
		}
	}

	return false, nil
}

func opNot(args any, vars *Variables) (any, error) {
	v, err := Evaluate(args, vars)
	if err != nil {
		return nil, err
	}

	return !types.Truthy(v), nil
}

func opDatePart(extract func(time.Time) any) operatorFunc {
	return func(args any, vars *Variables) (any, error) {
		v, err := Evaluate(args, vars)
		if err != nil {
			return nil, err
		}

		t, err := timeArg("date part operator", v)
		if err != nil {
			return nil, err
		}

		return extract(t), nil
	}
}

func opDateToString(args any, vars *Variables) (any, error) {
	doc, ok := args.(*types.Document)
	if !ok {
		return nil, newError(18629, "$dateToString requires an object argument")
	}

	dateExpr, err := doc.Get("date")
	if err != nil {
		return nil, newError(18628, "$dateToString requires 'date'")
	}

	dateVal, err := Evaluate(dateExpr, vars)
	if err != nil {
		return nil, err
	}

	t, err := timeArg("$dateToString", dateVal)
	if err != nil {
		return nil, err
	}

	format := "%Y-%m-%dT%H:%M:%S.%LZ"

	if fv, err := doc.Get("format"); err == nil {
		ev, err := Evaluate(fv, vars)
		if err != nil {
			return nil, err
		}

		if s, ok := ev.(string); ok {
			format = s
		}
	}

	return formatDate(t.UTC(), format), nil
}

// formatDate implements MongoDB's %-style $dateToString format specifiers.
func formatDate(t time.Time, format string) string {
	replacer := strings.NewReplacer(
		"%Y", fmt.Sprintf("%04d", t.Year()),
		"%m", fmt.Sprintf("%02d", t.Month()),
		"%d", fmt.Sprintf("%02d", t.Day()),
		"%H", fmt.Sprintf("%02d", t.Hour()),
		"%M", fmt.Sprintf("%02d", t.Minute()),
		"%S", fmt.Sprintf("%02d", t.Second()),
		"%L", fmt.Sprintf("%03d", t.Nanosecond()/1_000_000),
		"%%", "%",
	)

	return replacer.Replace(format)
}

func opType(args any, vars *Variables) (any, error) {
	v, err := Evaluate(args, vars)
	if err != nil {
		return nil, err
	}

	return types.TypeName(v), nil
}
