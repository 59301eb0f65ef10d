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
	"context"
	"sort"
	"strings"

	"github.com/FerretDB/FerretDB/internal/aggregations/expression"
	"github.com/FerretDB/FerretDB/internal/matcher"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
)

// funcStage adapts a Process function (built by lazyStage or blockingStage) to Stage.
type funcStage struct {
	process func(context.Context, DocumentsIterator) (DocumentsIterator, error)
}

func (s *funcStage) Process(ctx context.Context, iter DocumentsIterator) (DocumentsIterator, error) {
	return s.process(ctx, iter)
}

// --- $match ---

func newMatchStage(val any) (Stage, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, newError(15959, "the $match filter must be an expression in an object")
	}

	pred, err := matcher.Compile(doc)
	if err != nil {
		return nil, err
	}

	return &funcStage{process: lazyStage(func(doc *types.Document) (*types.Document, bool, error) {
		ok, _, err := pred.Match(doc)
		return doc, ok, err
	})}, nil
}

// --- $project ---

// Project applies a projection specification to a single document, outside of any
// pipeline (the shape a `find` command needs, as opposed to an `aggregate` command's
// `$project` stage). It shares projectStage's inclusion/exclusion/computed-field logic
// so both entry points agree on the same semantics.
func Project(doc *types.Document, spec *types.Document) (*types.Document, error) {
	if spec.Len() == 0 {
		return nil, newError(40177, "specification must have at least one field")
	}

	out, _, err := (&projectStage{spec: spec}).apply(doc)
	if err != nil {
		return nil, err
	}

	return out, nil
}

type projectStage struct {
	spec *types.Document
}

func newProjectStage(val any) (Stage, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, newError(40181, "$project specification must be an object")
	}

	if doc.Len() == 0 {
		return nil, newError(40177, "specification must have at least one field")
	}

	return &funcStage{process: lazyStage((&projectStage{spec: doc}).apply)}, nil
}

func (s *projectStage) apply(doc *types.Document) (*types.Document, bool, error) {
	var inclusion bool

	for _, k := range s.spec.Keys() {
		if k == "_id" {
			continue
		}

		v, _ := s.spec.Get(k)
		if n, ok := asProjectFlag(v); ok && n != 0 {
			inclusion = true
		}
	}

	result := types.MakeDocument(s.spec.Len())

	if inclusion {
		idExcluded := false

		if v, err := s.spec.Get("_id"); err == nil {
			if n, ok := asProjectFlag(v); ok && n == 0 {
				idExcluded = true
			}
		}

		if !idExcluded && doc.Has("_id") {
			id, _ := doc.Get("_id")
			_ = result.Set("_id", id)
		}

		for _, k := range s.spec.Keys() {
			if k == "_id" {
				continue
			}

			v, _ := s.spec.Get(k)

			if n, ok := asProjectFlag(v); ok {
				if n == 0 {
					continue
				}

				fieldVal, err := expression.Evaluate("$"+k, expression.NewVariables(doc))
				if err != nil {
					return nil, false, err
				}

				if _, missing := fieldVal.(types.MissingType); !missing {
					_ = result.Set(k, fieldVal)
				}

				continue
			}

			ev, err := expression.Evaluate(v, expression.NewVariables(doc))
			if err != nil {
				return nil, false, err
			}

			_ = result.Set(k, ev)
		}
	} else {
		result = doc.DeepCopy()

		for _, k := range s.spec.Keys() {
			if v, _ := s.spec.Get(k); isProjectExclude(v) {
				result.RemoveByPath(strings.Split(k, ".")...)
			}
		}
	}

	return result, true, nil
}

func asProjectFlag(v any) (int, bool) {
	switch v := v.(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

func isProjectExclude(v any) bool {
	n, ok := asProjectFlag(v)
	return ok && n == 0
}

// --- $addFields / $set ---

func newAddFieldsStage(val any) (Stage, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, newError(40272, "$addFields specification must be an object")
	}

	return &funcStage{process: lazyStage(func(d *types.Document) (*types.Document, bool, error) {
		result := d.DeepCopy()

		for _, k := range doc.Keys() {
			v, _ := doc.Get(k)

			ev, err := expression.Evaluate(v, expression.NewVariables(d))
			if err != nil {
				return nil, false, err
			}

			if err := result.Set(k, ev); err != nil {
				return nil, false, err
			}
		}

		return result, true, nil
	})}, nil
}

// --- $unwind ---

func newUnwindStage(val any) (Stage, error) {
	var path string
	var preserveNull bool
	var includeArrayIndex string

	switch v := val.(type) {
	case string:
		path = strings.TrimPrefix(v, "$")
	case *types.Document:
		p, err := getStringField(v, "path")
		if err != nil {
			return nil, err
		}

		path = strings.TrimPrefix(p, "$")

		if b, err := v.Get("preserveNullAndEmptyArrays"); err == nil {
			preserveNull, _ = b.(bool)
		}

		if s, err := v.Get("includeArrayIndex"); err == nil {
			includeArrayIndex, _ = s.(string)
		}
	default:
		return nil, newError(28812, "$unwind specification must be a string or object")
	}

	fieldPath, err := types.NewPathFromString(path)
	if err != nil {
		return nil, err
	}

	return &funcStage{process: func(_ context.Context, upstream DocumentsIterator) (DocumentsIterator, error) {
		pending := make([]*types.Document, 0)

		next := func() (int, *types.Document, error) {
			for {
				if len(pending) > 0 {
					d := pending[0]
					pending = pending[1:]

					return 0, d, nil
				}

				_, doc, err := upstream.Next()
				if err != nil {
					return 0, nil, err
				}

				val, err := types.Get(doc, fieldPath)
				if err != nil {
					return 0, nil, err
				}

				arr, isArray := val.(*types.Array)

				switch {
				case isArray && arr.Len() == 0:
					if preserveNull {
						cp := doc.DeepCopy()
						types.Remove(cp, fieldPath)
						pending = append(pending, cp)
					}
				case isArray:
					for i := 0; i < arr.Len(); i++ {
						elem, _ := arr.Get(i)

						cp := doc.DeepCopy()
						_ = types.Set(cp, fieldPath, elem, -1)

						if includeArrayIndex != "" {
							_ = cp.Set(includeArrayIndex, int32(i))
						}

						pending = append(pending, cp)
					}
				default:
					if _, isMissing := val.(types.MissingType); isMissing {
						if preserveNull {
							pending = append(pending, doc)
						}
					} else {
						pending = append(pending, doc)
					}
				}
			}
		}

		return iterator.Values(iterator.ForFunc(next)), nil
	}}, nil
}

func getStringField(doc *types.Document, key string) (string, error) {
	v, err := doc.Get(key)
	if err != nil {
		return "", newError(28812, "$unwind requires a %q field", key)
	}

	s, ok := v.(string)
	if !ok {
		return "", newError(28812, "$unwind's %q field must be a string", key)
	}

	return s, nil
}

// --- $group ---

type accumulatorSpec struct {
	field string
	op    string
	expr  any
}

func newGroupStage(val any) (Stage, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, newError(15947, "a group's fields must be specified in an object")
	}

	idExpr, err := doc.Get("_id")
	if err != nil {
		return nil, newError(15955, "a group specification must include an _id")
	}

	var accumulators []accumulatorSpec

	for _, k := range doc.Keys() {
		if k == "_id" {
			continue
		}

		sub, ok := doc.GetDefault(k, nil).(*types.Document)
		if !ok || sub.Len() != 1 {
			return nil, newError(40234, "the field %q must be an accumulator object", k)
		}

		op := sub.Keys()[0]
		expr, _ := sub.Get(op)

		accumulators = append(accumulators, accumulatorSpec{field: k, op: op, expr: expr})
	}

	return &funcStage{process: blockingStage(func(docs []*types.Document) ([]*types.Document, error) {
		type bucket struct {
			key  any
			accs map[string]*accumulatorState
			seq  []*types.Document
		}

		order := make([]any, 0)
		buckets := make(map[string]*bucket)

		for _, doc := range docs {
			keyVal, err := expression.Evaluate(idExpr, expression.NewVariables(doc))
			if err != nil {
				return nil, err
			}

			keyStr := types.FormatAnyValue(keyVal)

			b, ok := buckets[keyStr]
			if !ok {
				b = &bucket{key: keyVal, accs: map[string]*accumulatorState{}}

				for _, acc := range accumulators {
					b.accs[acc.field] = newAccumulatorState(acc.op)
				}

				buckets[keyStr] = b
				order = append(order, keyStr)
			}

			b.seq = append(b.seq, doc)

			for _, acc := range accumulators {
				v, err := expression.Evaluate(acc.expr, expression.NewVariables(doc))
				if err != nil {
					return nil, err
				}

				if err := b.accs[acc.field].add(v); err != nil {
					return nil, err
				}
			}
		}

		result := make([]*types.Document, 0, len(order))

		for _, keyStr := range order {
			b := buckets[keyStr.(string)]

			out := types.MakeDocument(len(accumulators) + 1)
			_ = out.Set("_id", b.key)

			for _, acc := range accumulators {
				_ = out.Set(acc.field, b.accs[acc.field].result())
			}

			result = append(result, out)
		}

		return result, nil
	})}, nil
}

// --- $sort ---

func newSortStage(val any) (Stage, error) {
	spec, ok := val.(*types.Document)
	if !ok || spec.Len() == 0 {
		return nil, newError(15976, "$sort stage must have at least one sort key")
	}

	return &funcStage{process: blockingStage(func(docs []*types.Document) ([]*types.Document, error) {
		out := make([]*types.Document, len(docs))
		copy(out, docs)

		sort.SliceStable(out, func(i, j int) bool {
			for _, key := range spec.Keys() {
				dirVal, _ := spec.Get(key)
				dir, _ := asProjectFlag(dirVal)

				path, err := types.NewPathFromString(key)
				if err != nil {
					continue
				}

				av, _ := types.Get(out[i], path)
				bv, _ := types.Get(out[j], path)

				switch types.CompareOrder(av, bv, types.Ascending) {
				case types.Less:
					return dir >= 0
				case types.Greater:
					return dir < 0
				}
			}

			return false
		})

		return out, nil
	})}, nil
}

// --- $limit / $skip / $count ---

func newLimitStage(val any) (Stage, error) {
	n, ok := asProjectFlag(val)
	if !ok || n < 0 {
		return nil, newError(15958, "the limit must be specified as a number")
	}

	return &funcStage{process: func(_ context.Context, upstream DocumentsIterator) (DocumentsIterator, error) {
		remaining := n

		return iterator.Values(iterator.ForFunc(func() (int, *types.Document, error) {
			if remaining <= 0 {
				return 0, nil, iterator.ErrIteratorDone
			}

			remaining--

			_, doc, err := upstream.Next()

			return 0, doc, err
		})), nil
	}}, nil
}

func newSkipStage(val any) (Stage, error) {
	n, ok := asProjectFlag(val)
	if !ok || n < 0 {
		return nil, newError(15956, "the skip must be specified as a number")
	}

	return &funcStage{process: func(_ context.Context, upstream DocumentsIterator) (DocumentsIterator, error) {
		skipped := false

		return iterator.Values(iterator.ForFunc(func() (int, *types.Document, error) {
			if !skipped {
				for i := 0; i < n; i++ {
					if _, _, err := upstream.Next(); err != nil {
						return 0, nil, err
					}
				}

				skipped = true
			}

			return upstream.Next()
		})), nil
	}}, nil
}

func newCountStage(val any) (Stage, error) {
	field, ok := val.(string)
	if !ok || field == "" || strings.Contains(field, ".") {
		return nil, newError(40159, "the count field must be a non-empty string that does not contain '.'")
	}

	return &funcStage{process: blockingStage(func(docs []*types.Document) ([]*types.Document, error) {
		out, err := types.NewDocument(field, int32(len(docs)))
		if err != nil {
			return nil, err
		}

		return []*types.Document{out}, nil
	})}, nil
}

// --- $replaceRoot / $replaceWith ---

func newReplaceRootStage(val any, name string) (Stage, error) {
	expr := val

	if name == "$replaceRoot" {
		doc, ok := val.(*types.Document)
		if !ok {
			return nil, newError(40229, "%s specification stage must be an object", name)
		}

		newRoot, err := doc.Get("newRoot")
		if err != nil {
			return nil, newError(40231, "%s requires a newRoot field", name)
		}

		expr = newRoot
	}

	return &funcStage{process: lazyStage(func(doc *types.Document) (*types.Document, bool, error) {
		v, err := expression.Evaluate(expr, expression.NewVariables(doc))
		if err != nil {
			return nil, false, err
		}

		newDoc, ok := v.(*types.Document)
		if !ok {
			return nil, false, newError(40228, "%s's newRoot expression must evaluate to an object", name)
		}

		return newDoc, true, nil
	})}, nil
}

// --- $sample ---

func newSampleStage(val any) (Stage, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, newError(28745, "$sample stage specification must be an object")
	}

	nVal, err := doc.Get("size")
	if err != nil {
		return nil, newError(28746, "$sample stage requires a size field")
	}

	n, ok := asProjectFlag(nVal)
	if !ok || n < 0 {
		return nil, newError(28746, "$sample stage's size field must be a non-negative number")
	}

	return &funcStage{process: blockingStage(func(docs []*types.Document) ([]*types.Document, error) {
		if n >= len(docs) {
			return docs, nil
		}

		return docs[:n], nil
	})}, nil
}

// --- $lookup ---

func newLookupStage(val any, lookup LookupFunc) (Stage, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, newError(40319, "$lookup specification must be an object")
	}

	from, err := getStringField(doc, "from")
	if err != nil {
		return nil, err
	}

	localField, err := getStringField(doc, "localField")
	if err != nil {
		return nil, err
	}

	foreignField, err := getStringField(doc, "foreignField")
	if err != nil {
		return nil, err
	}

	as, err := getStringField(doc, "as")
	if err != nil {
		return nil, err
	}

	localPath, err := types.NewPathFromString(localField)
	if err != nil {
		return nil, err
	}

	foreignPath, err := types.NewPathFromString(foreignField)
	if err != nil {
		return nil, err
	}

	return &funcStage{process: lazyStage(func(d *types.Document) (*types.Document, bool, error) {
		if lookup == nil {
			return nil, false, newError(40319, "$lookup is not supported without a collection resolver")
		}

		foreignDocs, err := lookup(context.Background(), from)
		if err != nil {
			return nil, false, err
		}

		localVal, _ := types.Get(d, localPath)

		matches := types.MakeArray(0)

		for _, fd := range foreignDocs {
			fv, _ := types.Get(fd, foreignPath)

			if types.Compare(localVal, fv) == types.Equal {
				_ = matches.Append(fd)
			}
		}

		result := d.DeepCopy()
		_ = result.Set(as, matches)

		return result, true, nil
	})}, nil
}

// --- $out / $merge ---

// outStage records its target collection name; actually writing the pipeline's final
// output there is the collection manager's responsibility (§4.8), since this package
// has no storage access. The pipeline run returns the documents unchanged so that a
// caller which doesn't wire a sink still gets the computed result back.
type outStage struct {
	target string
}

func (s *outStage) Process(_ context.Context, iter DocumentsIterator) (DocumentsIterator, error) {
	return iter, nil
}

func newOutStage(name string, val any) (Stage, error) {
	switch v := val.(type) {
	case string:
		return &outStage{target: v}, nil
	case *types.Document:
		coll, err := getStringField(v, "into")
		if err != nil {
			coll, err = getStringField(v, "coll")
		}

		if err != nil {
			return nil, newError(51016, "%s requires a target collection", name)
		}

		return &outStage{target: coll}, nil
	default:
		return nil, newError(51016, "%s specification must be a string or object", name)
	}
}
