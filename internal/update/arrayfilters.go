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

package update

import (
	"strings"

	"github.com/FerretDB/FerretDB/internal/matcher"
	"github.com/FerretDB/FerretDB/internal/types"
)

// splitArrayFilterFragment scans path fragments for an arrayFilters placeholder,
// "$[]" (matches every element) or "$[identifier]" (matches only elements the
// corresponding arrayFilters entry selects), returning the fragments before and after
// it. found is false if no such fragment is present, in which case the path is handled
// by the plain "$" positional-operator machinery instead.
func splitArrayFilterFragment(fragments []string) (prefix []string, token string, suffix []string, found bool) {
	for i, f := range fragments {
		if strings.HasPrefix(f, "$[") && strings.HasSuffix(f, "]") {
			return fragments[:i], f[2 : len(f)-1], fragments[i+1:], true
		}
	}

	return fragments, "", nil, false
}

// compileArrayFilters compiles each arrayFilters entry (e.g. {"i.x": {$gt: 0}}) into a
// predicate matched against one array element, keyed by the bound identifier.
//
// Each element (scalar or document) is wrapped as {"elem": <element>} before matching,
// so that both a bare identifier condition ("i": {$gt: 0}, testing the element itself)
// and a dotted one ("i.x": ..., testing a sub-field) can be compiled the same way: the
// arrayFilters key's identifier prefix is simply rewritten to "elem".
func compileArrayFilters(filters []*types.Document) (map[string]*matcher.Predicate, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	byIdent := make(map[string]*types.Document, len(filters))

	for _, filter := range filters {
		for _, key := range filter.Keys() {
			ident, rest := splitIdentifier(key)

			val, _ := filter.Get(key)

			doc, ok := byIdent[ident]
			if !ok {
				doc = types.MakeDocument(1)
				byIdent[ident] = doc
			}

			if err := doc.Set("elem"+rest, val); err != nil {
				return nil, err
			}
		}
	}

	out := make(map[string]*matcher.Predicate, len(byIdent))

	for ident, condDoc := range byIdent {
		pred, err := matcher.Compile(condDoc)
		if err != nil {
			return nil, err
		}

		out[ident] = pred
	}

	return out, nil
}

// splitIdentifier splits an arrayFilters key ("i" or "i.x") into its bound identifier
// and the remaining path suffix to test under the synthetic "elem" wrapper ("" for a
// bare identifier, meaning the element itself is compared directly).
func splitIdentifier(key string) (ident, rest string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}

	return parts[0], "." + parts[1]
}

// applyWithArrayFilter applies op to every element of the array at prefix that matches
// the array-filter condition bound to token ("" for $[], matching unconditionally).
func applyWithArrayFilter(
	doc *types.Document,
	op fieldOp,
	prefix []string,
	token string,
	suffix []string,
	filters map[string]*matcher.Predicate,
) error {
	if len(prefix) == 0 {
		return newError(2, "array filter placeholder cannot be the first path fragment")
	}

	prefixPath, err := types.NewPath(prefix...)
	if err != nil {
		return err
	}

	arrVal, err := types.Get(doc, prefixPath)
	if err != nil {
		return err
	}

	arr, ok := arrVal.(*types.Array)
	if !ok {
		return newError(2, "cannot apply array filter to non-array field %q", prefixPath.String())
	}

	var pred *matcher.Predicate

	if token != "" {
		p, ok := filters[token]
		if !ok {
			return newError(2, "no array filter found for identifier %q in path %q", token, op.rawPath)
		}

		pred = p
	}

	for i := 0; i < arr.Len(); i++ {
		elem, _ := arr.Get(i)

		if pred != nil {
			wrapper, err := types.NewDocument("elem", elem)
			if err != nil {
				return err
			}

			matched, _, err := pred.Match(wrapper)
			if err != nil {
				return err
			}

			if !matched {
				continue
			}
		}

		if len(suffix) == 0 {
			if err := arr.Set(i, op.value); err != nil {
				return err
			}

			continue
		}

		elemDoc, isDoc := elem.(*types.Document)
		if !isDoc {
			return newError(2, "cannot apply update to a non-object array element at %q", prefixPath.String())
		}

		suffixPath, err := types.NewPath(suffix...)
		if err != nil {
			return err
		}

		if err := applyAtPath(elemDoc, op.operator, suffixPath, op.value, -1); err != nil {
			return err
		}
	}

	return nil
}
