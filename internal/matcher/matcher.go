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

// Package matcher compiles query Documents (§4.4) into a predicate that can be
// evaluated repeatedly against candidate documents without re-parsing.
package matcher

import (
	"fmt"
	"strings"

	"github.com/FerretDB/FerretDB/internal/aggregations/expression"
	"github.com/FerretDB/FerretDB/internal/types"
)

// Error is a query-matcher compilation or evaluation error carrying a stable code (§7).
type Error struct {
	Code int
	Msg  string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("matcher (%d): %s", e.Code, e.Msg)
}

func newError(code int, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Predicate is a compiled query, ready to be matched against many documents.
type Predicate struct {
	root node
}

// context threads the positional match index (the array index the query matched at,
// if any) through a single Match call, per §4.2's "explicit parameter, not thread-local"
// design note.
type context struct {
	index int
}

// node is one compiled predicate fragment.
type node interface {
	match(doc *types.Document, ctx *context) (bool, error)
}

// Compile compiles query into a reusable Predicate.
func Compile(query *types.Document) (*Predicate, error) {
	root, err := compileDocument(query)
	if err != nil {
		return nil, err
	}

	return &Predicate{root: root}, nil
}

// Match reports whether doc satisfies the predicate, and the positional match index
// (-1 if none was captured) for use by the update engine's "$" resolution.
func (p *Predicate) Match(doc *types.Document) (bool, int, error) {
	ctx := &context{index: -1}

	ok, err := p.root.match(doc, ctx)
	if err != nil {
		return false, -1, err
	}

	return ok, ctx.index, nil
}

// andNode requires every child to match.
type andNode struct{ children []node }

func (n *andNode) match(doc *types.Document, ctx *context) (bool, error) {
	for _, c := range n.children {
		ok, err := c.match(doc, ctx)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// orNode requires at least one child to match.
type orNode struct{ children []node }

func (n *orNode) match(doc *types.Document, ctx *context) (bool, error) {
	for _, c := range n.children {
		ok, err := c.match(doc, ctx)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// norNode requires every child to not match.
type norNode struct{ children []node }

func (n *norNode) match(doc *types.Document, ctx *context) (bool, error) {
	ok, err := (&orNode{children: n.children}).match(doc, ctx)
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// exprNode evaluates an aggregation expression and checks its truthiness (§4.3, $expr).
type exprNode struct{ expr any }

func (n *exprNode) match(doc *types.Document, _ *context) (bool, error) {
	v, err := expression.Evaluate(n.expr, expression.NewVariables(doc))
	if err != nil {
		return false, err
	}

	return types.Truthy(v), nil
}

// trueNode always matches; used for $comment, which carries no matching semantics.
type trueNode struct{}

func (trueNode) match(*types.Document, *context) (bool, error) { return true, nil }

// emptyNode matches everything; returned for an empty query Document.
var emptyNode = trueNode{}

func compileDocument(query *types.Document) (node, error) {
	if query == nil || query.Len() == 0 {
		return emptyNode, nil
	}

	children := make([]node, 0, query.Len())

	for _, key := range query.Keys() {
		val, _ := query.Get(key)

		var (
			n   node
			err error
		)

		switch {
		case strings.HasPrefix(key, "$"):
			n, err = compileCombinator(key, val)
		default:
			n, err = compileField(key, val)
		}

		if err != nil {
			return nil, err
		}

		children = append(children, n)
	}

	if len(children) == 1 {
		return children[0], nil
	}

	return &andNode{children: children}, nil
}

func compileCombinator(key string, val any) (node, error) {
	switch key {
	case "$and", "$or", "$nor":
		arr, ok := val.(*types.Array)
		if !ok {
			return nil, newError(40225, "%s must be an array", key)
		}

		if arr.Len() == 0 {
			return nil, newError(40218, "%s must be a nonempty array", key)
		}

		children := make([]node, 0, arr.Len())

		for i := 0; i < arr.Len(); i++ {
			elem, _ := arr.Get(i)

			sub, ok := elem.(*types.Document)
			if !ok {
				return nil, newError(40225, "%s entry must be an object", key)
			}

			n, err := compileDocument(sub)
			if err != nil {
				return nil, err
			}

			children = append(children, n)
		}

		switch key {
		case "$and":
			return &andNode{children: children}, nil
		case "$or":
			return &orNode{children: children}, nil
		default:
			return &norNode{children: children}, nil
		}
	case "$expr":
		return &exprNode{expr: val}, nil
	case "$comment":
		return trueNode{}, nil
	case "$where":
		return nil, newError(139, "$where is not supported")
	case "$text":
		return nil, newError(27, "$text requires a text index, which is not supported")
	default:
		return nil, newError(2, "unknown top-level operator: %s", key)
	}
}

func compileField(key string, val any) (node, error) {
	path, err := types.NewPathFromString(key)
	if err != nil {
		return nil, err
	}

	doc, isDoc := val.(*types.Document)

	if isDoc && isOperatorDocument(doc) {
		ops := make([]condition, 0, doc.Len())

		var options string
		if ov, err := doc.Get("$options"); err == nil {
			if s, ok := ov.(string); ok {
				options = s
			}
		}

		for _, opKey := range doc.Keys() {
			opVal, _ := doc.Get(opKey)

			switch opKey {
			case "$options":
				continue
			case "$regex":
				c, err := regexCondition(opVal, options)
				if err != nil {
					return nil, err
				}

				ops = append(ops, c)

				continue
			}

			c, err := compileOperator(opKey, opVal)
			if err != nil {
				return nil, err
			}

			ops = append(ops, c)
		}

		return &fieldNode{path: path, conditions: ops}, nil
	}

	return &fieldNode{path: path, conditions: []condition{eqCondition(val)}}, nil
}

// isOperatorDocument reports whether doc's keys are all query operators, i.e. the
// document describes a set of conditions on a field rather than a literal value to
// compare for equality. An empty document is NOT an operator document: {field: {}}
// means "field equals the empty document".
func isOperatorDocument(doc *types.Document) bool {
	if doc.Len() == 0 {
		return false
	}

	for _, k := range doc.Keys() {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}

	return true
}

// fieldNode matches all of its conditions against the value(s) found at path.
type fieldNode struct {
	path       types.Path
	conditions []condition
}

func (n *fieldNode) match(doc *types.Document, ctx *context) (bool, error) {
	raw, err := types.Get(doc, n.path)
	if err != nil {
		return false, err
	}

	fan, err := types.GetCollectionAware(doc, n.path)
	if err != nil {
		return false, err
	}

	for _, c := range n.conditions {
		ok, idx, err := c.eval(raw, fan)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}

		if idx >= 0 {
			ctx.index = idx
		}
	}

	return true, nil
}
