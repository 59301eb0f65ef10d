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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/FerretDB/internal/types"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

func TestApplySet(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("a", int32(1)))
	update := must(types.NewDocument("$set", must(types.NewDocument("a", int32(2), "b", int32(3)))))

	modified, err := Apply(doc, update, &Params{MatchIndex: -1})
	require.NoError(t, err)
	assert.True(t, modified)

	a, err := doc.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), a)

	b, err := doc.Get("b")
	require.NoError(t, err)
	assert.Equal(t, int32(3), b)
}

func TestApplyReplacementPreservesID(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("_id", int32(1), "a", int32(1)))
	replacement := must(types.NewDocument("b", int32(2)))

	modified, err := Apply(doc, replacement, &Params{MatchIndex: -1})
	require.NoError(t, err)
	assert.True(t, modified)

	assert.False(t, doc.Has("a"))

	id, err := doc.Get("_id")
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	b, err := doc.Get("b")
	require.NoError(t, err)
	assert.Equal(t, int32(2), b)
}

func TestApplyIncOnMissingField(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("a", int32(1)))
	update := must(types.NewDocument("$inc", must(types.NewDocument("counter", int32(5)))))

	_, err := Apply(doc, update, &Params{MatchIndex: -1})
	require.NoError(t, err)

	v, err := doc.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)
}

func TestApplyMinMax(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("a", int32(5)))

	_, err := Apply(doc, must(types.NewDocument("$min", must(types.NewDocument("a", int32(10))))), &Params{MatchIndex: -1})
	require.NoError(t, err)

	v, _ := doc.Get("a")
	assert.Equal(t, int32(5), v, "$min should not raise a value that's already lower")

	_, err = Apply(doc, must(types.NewDocument("$max", must(types.NewDocument("a", int32(10))))), &Params{MatchIndex: -1})
	require.NoError(t, err)

	v, _ = doc.Get("a")
	assert.Equal(t, int32(10), v)
}

func TestApplyRename(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("old", int32(1)))
	update := must(types.NewDocument("$rename", must(types.NewDocument("old", "new"))))

	_, err := Apply(doc, update, &Params{MatchIndex: -1})
	require.NoError(t, err)

	assert.False(t, doc.Has("old"))

	v, err := doc.Get("new")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestApplyPush(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("tags", must(types.NewArray("a"))))
	update := must(types.NewDocument("$push", must(types.NewDocument("tags", "b"))))

	_, err := Apply(doc, update, &Params{MatchIndex: -1})
	require.NoError(t, err)

	v, err := doc.Get("tags")
	require.NoError(t, err)

	arr := v.(*types.Array)
	require.Equal(t, 2, arr.Len())

	last, _ := arr.Get(1)
	assert.Equal(t, "b", last)
}

func TestApplyPushEachSlice(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("scores", must(types.NewArray(int32(1), int32(2)))))

	mod := must(types.NewDocument(
		"$each", must(types.NewArray(int32(3), int32(4))),
		"$slice", int32(-3),
	))
	update := must(types.NewDocument("$push", must(types.NewDocument("scores", mod))))

	_, err := Apply(doc, update, &Params{MatchIndex: -1})
	require.NoError(t, err)

	v, _ := doc.Get("scores")
	arr := v.(*types.Array)
	require.Equal(t, 3, arr.Len())

	first, _ := arr.Get(0)
	assert.Equal(t, int32(2), first)
}

func TestApplyAddToSetDeduplicates(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("tags", must(types.NewArray("a", "b"))))
	update := must(types.NewDocument("$addToSet", must(types.NewDocument("tags", "a"))))

	modified, err := Apply(doc, update, &Params{MatchIndex: -1})
	require.NoError(t, err)
	assert.False(t, modified)

	v, _ := doc.Get("tags")
	assert.Equal(t, 2, v.(*types.Array).Len())
}

func TestApplyPullWithCondition(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("scores", must(types.NewArray(int32(1), int32(2), int32(3), int32(4)))))
	update := must(types.NewDocument("$pull", must(types.NewDocument(
		"scores", must(types.NewDocument("$gt", int32(2))),
	))))

	_, err := Apply(doc, update, &Params{MatchIndex: -1})
	require.NoError(t, err)

	v, _ := doc.Get("scores")
	arr := v.(*types.Array)
	require.Equal(t, 2, arr.Len())
}

func TestApplyConflictingOperators(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("a", must(types.NewDocument("b", int32(1)))))
	update := must(types.NewDocument(
		"$set", must(types.NewDocument("a", int32(1))),
		"$unset", must(types.NewDocument("a.b", "")),
	))

	_, err := Apply(doc, update, &Params{MatchIndex: -1})
	assert.Error(t, err)
}

func TestApplyMixedOperatorAndReplacementRejected(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("a", int32(1)))
	update := must(types.NewDocument("$set", must(types.NewDocument("a", int32(2))), "b", int32(3)))

	_, err := Apply(doc, update, &Params{MatchIndex: -1})
	assert.Error(t, err)
}

func TestApplyArrayFilterSelectsMatchingElements(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("items", must(types.NewArray(
		must(types.NewDocument("qty", int32(1))),
		must(types.NewDocument("qty", int32(10))),
	))))

	update := must(types.NewDocument("$set", must(types.NewDocument("items.$[elem].qty", int32(0)))))

	params := &Params{
		MatchIndex:   -1,
		ArrayFilters: []*types.Document{must(types.NewDocument("elem.qty", must(types.NewDocument("$gte", int32(5)))))},
	}

	_, err := Apply(doc, update, params)
	require.NoError(t, err)

	v, _ := doc.Get("items")
	arr := v.(*types.Array)

	first, _ := arr.Get(0)
	second, _ := arr.Get(1)

	assert.Equal(t, int32(1), must(first.(*types.Document).Get("qty")))
	assert.Equal(t, int32(0), must(second.(*types.Document).Get("qty")))
}
