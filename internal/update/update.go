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

// Package update applies update Documents (§4.5) to a target document: either a
// replacement document, or an operator document ($set, $inc, $push, ...).
package update

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/FerretDB/FerretDB/internal/matcher"
	"github.com/FerretDB/FerretDB/internal/types"
)

// Error is an update-engine error carrying a stable numeric code (§7).
type Error struct {
	Code int
	Msg  string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("update (%d): %s", e.Code, e.Msg)
}

func newError(code int, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// operatorOrder is the order MongoDB documents for applying update operators: ones
// that introduce values first, then ones that reshape or remove them.
var operatorOrder = []string{
	"$currentDate", "$inc", "$min", "$max", "$mul", "$rename", "$setOnInsert", "$set",
	"$unset", "$addToSet", "$pop", "$pull", "$push", "$pullAll", "$bit",
}

// Params carries everything Apply needs beyond the target document and the update
// document itself.
type Params struct {
	// ArrayFilters binds identifiers used by "a.$[identifier].b"-style paths to a
	// condition each matching array element must satisfy (§4.5).
	ArrayFilters []*types.Document

	// MatchIndex is the positional index the query matched at, if any (for "a.$.b").
	MatchIndex int

	// IsInsert is true when applying the update as part of an upsert's insert path,
	// so that $setOnInsert operators take effect.
	IsInsert bool
}

// Apply applies update to doc in place, returning whether doc was actually modified.
func Apply(doc *types.Document, update *types.Document, params *Params) (bool, error) {
	if params == nil {
		params = &Params{MatchIndex: -1}
	}

	hasOperators, err := classify(update)
	if err != nil {
		return false, err
	}

	if !hasOperators {
		return applyReplacement(doc, update)
	}

	return applyOperators(doc, update, params)
}

// classify reports whether update is an operator document (all top-level keys start
// with "$"), a plain replacement document (none do), or returns an error if it mixes
// both kinds, which MongoDB rejects outright.
func classify(update *types.Document) (bool, error) {
	var operators, plain int

	for _, k := range update.Keys() {
		if strings.HasPrefix(k, "$") {
			operators++
		} else {
			plain++
		}
	}

	switch {
	case operators > 0 && plain > 0:
		return false, newError(9, "Unknown modifier: the update document must either contain only update operators or only field:value pairs")
	default:
		return operators > 0, nil
	}
}

func applyReplacement(doc *types.Document, replacement *types.Document) (bool, error) {
	for _, k := range replacement.Keys() {
		if strings.HasPrefix(k, "$") {
			if _, ok := referenceKeys[k]; !ok {
				return false, newError(52, "The replacement document must not contain update operators: %s", k)
			}
		}
	}

	before := doc.DeepCopy()

	if err := doc.ReplaceWith(replacement); err != nil {
		return false, err
	}

	return types.Compare(doc, before) != types.Equal, nil
}

var referenceKeys = map[string]struct{}{"$ref": {}, "$id": {}, "$db": {}}

// fieldOp is one (field path, raw value) pair taken from one operator's sub-document.
type fieldOp struct {
	operator string
	rawPath  string
	value    any
}

func applyOperators(doc *types.Document, update *types.Document, params *Params) (bool, error) {
	var ops []fieldOp

	for _, opName := range operatorOrder {
		val, err := update.Get(opName)
		if err != nil {
			continue
		}

		sub, ok := val.(*types.Document)
		if !ok {
			return false, newError(9, "%s must be an object", opName)
		}

		for _, field := range sub.Keys() {
			v, _ := sub.Get(field)
			ops = append(ops, fieldOp{operator: opName, rawPath: field, value: v})
		}
	}

	for _, k := range update.Keys() {
		found := false

		for _, known := range operatorOrder {
			if k == known {
				found = true
				break
			}
		}

		if !found {
			return false, newError(9, "Unknown modifier: %s", k)
		}
	}

	if err := checkConflicts(ops); err != nil {
		return false, err
	}

	sort.SliceStable(ops, func(i, j int) bool { return ops[i].rawPath < ops[j].rawPath })

	filters, err := compileArrayFilters(params.ArrayFilters)
	if err != nil {
		return false, err
	}

	before := doc.DeepCopy()

	for _, op := range ops {
		if op.operator == "$setOnInsert" && !params.IsInsert {
			continue
		}

		if err := applyOne(doc, op, params.MatchIndex, filters); err != nil {
			return false, err
		}
	}

	return types.Compare(doc, before) != types.Equal, nil
}

// checkConflicts rejects update documents where two operators target paths where one
// is a fragment-wise prefix of the other ("a" and "a.b" in the same update), which
// MongoDB rejects as ambiguous.
func checkConflicts(ops []fieldOp) error {
	paths := make([]types.Path, 0, len(ops))

	for _, op := range ops {
		p, err := staticPath(op.rawPath)
		if err != nil {
			continue
		}

		paths = append(paths, p)
	}

	for i := 0; i < len(paths); i++ {
		for j := i + 1; j < len(paths); j++ {
			if paths[i].Equal(paths[j]) {
				return newError(40, "Updating the path %q would create a conflict at %q", ops[j].rawPath, ops[i].rawPath)
			}

			if _, conflict := types.ShorterPrefix(paths[i], paths[j]); conflict {
				return newError(40, "Updating the path %q would create a conflict at %q", ops[j].rawPath, ops[i].rawPath)
			}
		}
	}

	return nil
}

// staticPath builds a Path from a raw update path string, tolerating array-filter
// tokens ("$[i]", "$[]") as ordinary fragments for the purposes of conflict detection.
func staticPath(raw string) (types.Path, error) {
	return types.NewPathFromString(raw)
}

func applyOne(doc *types.Document, op fieldOp, matchIndex int, filters map[string]*matcher.Predicate) error {
	fragments := strings.Split(op.rawPath, ".")

	prefix, token, suffix, hasArrayFilter := splitArrayFilterFragment(fragments)
	if !hasArrayFilter {
		return applyScalar(doc, op.operator, op.rawPath, op.value, matchIndex)
	}

	return applyWithArrayFilter(doc, op, prefix, token, suffix, filters)
}

// applyScalar applies op to the single field addressed by rawPath (no array-filter
// tokens involved; "$" positional fragments are resolved via matchIndex as usual).
func applyScalar(doc *types.Document, operator, rawPath string, value any, matchIndex int) error {
	path, err := types.NewPathFromString(rawPath)
	if err != nil {
		return err
	}

	return applyAtPath(doc, operator, path, value, matchIndex)
}

func applyAtPath(doc *types.Document, operator string, path types.Path, value any, matchIndex int) error {
	switch operator {
	case "$set":
		return types.Set(doc, path, value, matchIndex)
	case "$setOnInsert":
		return types.Set(doc, path, value, matchIndex)
	case "$unset":
		types.Remove(doc, path)
		return nil
	case "$inc":
		return arithmetic(doc, path, value, matchIndex, func(a, b float64) float64 { return a + b })
	case "$mul":
		return arithmetic(doc, path, value, matchIndex, func(a, b float64) float64 { return a * b })
	case "$min":
		return extremum(doc, path, value, matchIndex, types.Less)
	case "$max":
		return extremum(doc, path, value, matchIndex, types.Greater)
	case "$rename":
		return rename(doc, path, value)
	case "$currentDate":
		return currentDate(doc, path, value, matchIndex)
	case "$push":
		return push(doc, path, value, matchIndex)
	case "$addToSet":
		return addToSet(doc, path, value, matchIndex)
	case "$pop":
		return pop(doc, path, value, matchIndex)
	case "$pull":
		return pull(doc, path, value, matchIndex)
	case "$pullAll":
		return pullAll(doc, path, value, matchIndex)
	case "$bit":
		return bitwise(doc, path, value, matchIndex)
	default:
		return newError(9, "unsupported update operator: %s", operator)
	}
}

// numeric widens v to float64, along with whether v was an int32 (used to decide
// whether an arithmetic result should narrow back to int32 rather than int64).
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

func narrowLike(f float64, isInt32 bool) any {
	if f == float64(int32(f)) && isInt32 {
		return int32(f)
	}

	if f == float64(int64(f)) {
		return int64(f)
	}

	return f
}

func arithmetic(doc *types.Document, path types.Path, delta any, matchIndex int, fold func(a, b float64) float64) error {
	switch delta.(type) {
	case int32, int64, float64:
	default:
		return newError(14, "Cannot apply arithmetic operation to non-numeric value")
	}

	deltaF, deltaIsInt32 := numeric(delta)

	cur, err := types.Get(doc, path)
	if err != nil {
		return err
	}

	if _, isMissing := cur.(types.MissingType); isMissing {
		return types.Set(doc, path, delta, matchIndex)
	}

	curF, curIsInt32 := numeric(cur)

	switch cur.(type) {
	case int32, int64, float64:
	default:
		return newError(14, "Cannot apply arithmetic operation to a value of non-numeric type")
	}

	result := fold(curF, deltaF)

	return types.Set(doc, path, narrowLike(result, curIsInt32 && deltaIsInt32), matchIndex)
}

func extremum(doc *types.Document, path types.Path, value any, matchIndex int, want types.CompareResult) error {
	cur, err := types.Get(doc, path)
	if err != nil {
		return err
	}

	if _, isMissing := cur.(types.MissingType); isMissing {
		return types.Set(doc, path, value, matchIndex)
	}

	if types.CompareOrder(value, cur, types.Ascending) == want {
		return types.Set(doc, path, value, matchIndex)
	}

	return nil
}

func rename(doc *types.Document, src types.Path, dstRaw any) error {
	dstStr, ok := dstRaw.(string)
	if !ok {
		return newError(2, "$rename target must be a string")
	}

	dst, err := types.NewPathFromString(dstStr)
	if err != nil {
		return err
	}

	if !types.Has(doc, src) {
		return nil
	}

	val := types.Remove(doc, src)

	return types.Set(doc, dst, val, -1)
}

func currentDate(doc *types.Document, path types.Path, value any, matchIndex int) error {
	now := time.Now().UTC()

	switch v := value.(type) {
	case bool:
		if !v {
			return nil
		}

		return types.Set(doc, path, now, matchIndex)
	case *types.Document:
		typ, _ := v.Get("$type")

		switch typ {
		case "timestamp":
			return types.Set(doc, path, types.NextTimestamp(now), matchIndex)
		default:
			return types.Set(doc, path, now, matchIndex)
		}
	default:
		return newError(2, "$currentDate value must be true or {$type: ...}")
	}
}

func currentArray(doc *types.Document, path types.Path) (*types.Array, error) {
	cur, err := types.Get(doc, path)
	if err != nil {
		return nil, err
	}

	switch v := cur.(type) {
	case types.MissingType:
		return types.MakeArray(0), nil
	case *types.Array:
		return v, nil
	default:
		return nil, newError(10, "The field %q must be an array", path.String())
	}
}

func push(doc *types.Document, path types.Path, value any, matchIndex int) error {
	arr, err := currentArray(doc, path)
	if err != nil {
		return err
	}

	each := []any{value}
	var slice *int
	var sortSpec any
	var position *int

	if mod, ok := value.(*types.Document); ok && isPushModifier(mod) {
		each = nil

		if eachVal, err := mod.Get("$each"); err == nil {
			eachArr, ok := eachVal.(*types.Array)
			if !ok {
				return newError(2, "$each requires an array")
			}

			for i := 0; i < eachArr.Len(); i++ {
				v, _ := eachArr.Get(i)
				each = append(each, v)
			}
		}

		if sliceVal, err := mod.Get("$slice"); err == nil {
			if n, ok := asInt(sliceVal); ok {
				slice = &n
			}
		}

		if s, err := mod.Get("$sort"); err == nil {
			sortSpec = s
		}

		if posVal, err := mod.Get("$position"); err == nil {
			if n, ok := asInt(posVal); ok {
				position = &n
			}
		}
	}

	if position != nil {
		idx := *position
		if idx < 0 {
			idx = arr.Len() + idx
		}

		if idx < 0 {
			idx = 0
		}

		if idx > arr.Len() {
			idx = arr.Len()
		}

		rebuilt := types.MakeArray(arr.Len() + len(each))

		for i := 0; i < idx; i++ {
			v, _ := arr.Get(i)
			_ = rebuilt.Append(v)
		}

		for _, v := range each {
			_ = rebuilt.Append(v)
		}

		for i := idx; i < arr.Len(); i++ {
			v, _ := arr.Get(i)
			_ = rebuilt.Append(v)
		}

		arr = rebuilt
	} else {
		for _, v := range each {
			if err := arr.Append(v); err != nil {
				return err
			}
		}
	}

	if sortSpec != nil {
		sortArrayInPlace(arr, sortSpec)
	}

	if slice != nil {
		arr = sliceArray(arr, *slice)
	}

	return types.Set(doc, path, arr, matchIndex)
}

func isPushModifier(doc *types.Document) bool {
	for _, k := range doc.Keys() {
		switch k {
		case "$each", "$slice", "$sort", "$position":
		default:
			return false
		}
	}

	return doc.Has("$each")
}

func sliceArray(arr *types.Array, n int) *types.Array {
	l := arr.Len()

	var from, to int

	switch {
	case n >= 0:
		from, to = 0, n
		if to > l {
			to = l
		}
	default:
		from = l + n
		if from < 0 {
			from = 0
		}

		to = l
	}

	res, _ := arr.Subslice(from, to)

	return res
}

func sortArrayInPlace(arr *types.Array, spec any) {
	elems := make([]any, arr.Len())
	for i := range elems {
		elems[i], _ = arr.Get(i)
	}

	sort.SliceStable(elems, func(i, j int) bool {
		return compareBySpec(elems[i], elems[j], spec) < 0
	})

	for i, v := range elems {
		_ = arr.Set(i, v)
	}
}

// compareBySpec compares two array elements by a $sort modifier's spec: either a plain
// direction (1 ascending, -1 descending) for scalar arrays, or a sort document for
// arrays of sub-documents.
func compareBySpec(a, b any, spec any) int {
	switch s := spec.(type) {
	case *types.Document:
		for _, key := range s.Keys() {
			dirVal, _ := s.Get(key)

			dir, _ := asInt(dirVal)

			av, bv := fieldOf(a, key), fieldOf(b, key)

			switch types.CompareOrder(av, bv, types.Ascending) {
			case types.Less:
				if dir >= 0 {
					return -1
				}

				return 1
			case types.Greater:
				if dir >= 0 {
					return 1
				}

				return -1
			}
		}

		return 0
	default:
		dir, _ := asInt(spec)

		switch types.CompareOrder(a, b, types.Ascending) {
		case types.Less:
			if dir >= 0 {
				return -1
			}

			return 1
		case types.Greater:
			if dir >= 0 {
				return 1
			}

			return -1
		default:
			return 0
		}
	}
}

func fieldOf(v any, key string) any {
	doc, ok := v.(*types.Document)
	if !ok {
		return types.Missing
	}

	val, err := doc.Get(key)
	if err != nil {
		return types.Missing
	}

	return val
}

func addToSet(doc *types.Document, path types.Path, value any, matchIndex int) error {
	arr, err := currentArray(doc, path)
	if err != nil {
		return err
	}

	var each []any

	if mod, ok := value.(*types.Document); ok && mod.Has("$each") && isEachOnly(mod) {
		eachVal, _ := mod.Get("$each")

		eachArr, ok := eachVal.(*types.Array)
		if !ok {
			return newError(2, "$each requires an array")
		}

		for i := 0; i < eachArr.Len(); i++ {
			v, _ := eachArr.Get(i)
			each = append(each, v)
		}
	} else {
		each = []any{value}
	}

	for _, v := range each {
		found := false

		for i := 0; i < arr.Len(); i++ {
			elem, _ := arr.Get(i)
			if types.Compare(elem, v) == types.Equal {
				found = true
				break
			}
		}

		if !found {
			if err := arr.Append(v); err != nil {
				return err
			}
		}
	}

	return types.Set(doc, path, arr, matchIndex)
}

func isEachOnly(doc *types.Document) bool {
	return doc.Len() == 1 && doc.Has("$each")
}

func pop(doc *types.Document, path types.Path, value any, matchIndex int) error {
	arr, err := currentArray(doc, path)
	if err != nil {
		return err
	}

	if arr.Len() == 0 {
		return nil
	}

	n, _ := asInt(value)

	if n < 0 {
		arr.RemoveByIndex(0)
	} else {
		arr.RemoveByIndex(arr.Len() - 1)
	}

	return types.Set(doc, path, arr, matchIndex)
}

// isAllOperatorKeys reports whether every key of doc is a query operator, meaning a
// $pull condition document describes a per-element scalar test rather than a
// sub-document query.
func isAllOperatorKeys(doc *types.Document) bool {
	for _, k := range doc.Keys() {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}

	return true
}

func pull(doc *types.Document, path types.Path, value any, matchIndex int) error {
	arr, err := currentArray(doc, path)
	if err != nil {
		return err
	}

	var test func(v any) (bool, error)

	if sub, ok := value.(*types.Document); ok && sub.Len() > 0 && isAllOperatorKeys(sub) {
		// {$pull: {field: {$gt: 1, ...}}}: the condition applies directly to each
		// scalar array element, by wrapping it the same way array filters do.
		wrapQuery, err := types.NewDocument("elem", sub)
		if err != nil {
			return err
		}

		pred, err := matcher.Compile(wrapQuery)
		if err != nil {
			return err
		}

		test = func(v any) (bool, error) {
			wrapper, err := types.NewDocument("elem", v)
			if err != nil {
				return false, err
			}

			ok, _, err := pred.Match(wrapper)

			return ok, err
		}
	} else if sub, ok := value.(*types.Document); ok {
		pred, err := matcher.Compile(sub)
		if err != nil {
			return err
		}

		test = func(v any) (bool, error) {
			elemDoc, ok := v.(*types.Document)
			if !ok {
				return false, nil
			}

			ok, _, err := pred.Match(elemDoc)

			return ok, err
		}
	} else {
		test = func(v any) (bool, error) {
			return types.Compare(v, value) == types.Equal, nil
		}
	}

	result := types.MakeArray(arr.Len())

	for i := 0; i < arr.Len(); i++ {
		elem, _ := arr.Get(i)

		matched, err := test(elem)
		if err != nil {
			return err
		}

		if !matched {
			_ = result.Append(elem)
		}
	}

	return types.Set(doc, path, result, matchIndex)
}

func pullAll(doc *types.Document, path types.Path, value any, matchIndex int) error {
	toRemove, ok := value.(*types.Array)
	if !ok {
		return newError(2, "$pullAll requires an array argument")
	}

	arr, err := currentArray(doc, path)
	if err != nil {
		return err
	}

	result := types.MakeArray(arr.Len())

	for i := 0; i < arr.Len(); i++ {
		elem, _ := arr.Get(i)

		remove := false

		for j := 0; j < toRemove.Len(); j++ {
			w, _ := toRemove.Get(j)
			if types.Compare(elem, w) == types.Equal {
				remove = true
				break
			}
		}

		if !remove {
			_ = result.Append(elem)
		}
	}

	return types.Set(doc, path, result, matchIndex)
}

func bitwise(doc *types.Document, path types.Path, value any, matchIndex int) error {
	mod, ok := value.(*types.Document)
	if !ok {
		return newError(2, "$bit requires an object")
	}

	cur, err := types.Get(doc, path)
	if err != nil {
		return err
	}

	var curInt int64
	var isInt32 bool

	switch v := cur.(type) {
	case types.MissingType:
		curInt, isInt32 = 0, true
	case int32:
		curInt, isInt32 = int64(v), true
	case int64:
		curInt = v
	default:
		return newError(14, "Cannot apply $bit to a value of non-integral type")
	}

	for _, op := range mod.Keys() {
		operandRaw, _ := mod.Get(op)

		operand, ok := asInt64(operandRaw)
		if !ok {
			return newError(14, "$bit operand must be an integer")
		}

		switch op {
		case "and":
			curInt &= operand
		case "or":
			curInt |= operand
		case "xor":
			curInt ^= operand
		default:
			return newError(2, "$bit sub-operator must be and, or, or xor")
		}
	}

	if isInt32 && curInt >= -(1<<31) && curInt < (1<<31) {
		return types.Set(doc, path, int32(curInt), matchIndex)
	}

	return types.Set(doc, path, curInt, matchIndex)
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

func asInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
