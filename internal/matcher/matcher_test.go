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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/FerretDB/internal/types"
)

func TestMatchScalarOperators(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("x", int32(5), "s", "hello"))

	for name, tc := range map[string]struct {
		query *types.Document
		want  bool
	}{
		"EqMatch":      {must(types.NewDocument("x", int32(5))), true},
		"EqNoMatch":    {must(types.NewDocument("x", int32(6))), false},
		"GtMatch":      {must(types.NewDocument("x", must(types.NewDocument("$gt", int32(1))))), true},
		"GtNoMatch":    {must(types.NewDocument("x", must(types.NewDocument("$gt", int32(10))))), false},
		"InMatch":      {must(types.NewDocument("x", must(types.NewDocument("$in", must(types.NewArray(int32(5), int32(6))))))), true},
		"NinNoMatch":   {must(types.NewDocument("x", must(types.NewDocument("$nin", must(types.NewArray(int32(5))))))), false},
		"ExistsTrue":   {must(types.NewDocument("s", must(types.NewDocument("$exists", true)))), true},
		"ExistsFalse":  {must(types.NewDocument("missing", must(types.NewDocument("$exists", false)))), true},
		"RegexMatch":   {must(types.NewDocument("s", types.Regex{Pattern: "^hel"})), true},
		"RegexNoMatch": {must(types.NewDocument("s", types.Regex{Pattern: "^bye"})), false},
	} {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			pred, err := Compile(tc.query)
			require.NoError(t, err)

			ok, _, err := pred.Match(doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestMatchRegexWithOptions(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("s", "HELLO"))

	query := must(types.NewDocument("s", must(types.NewDocument("$regex", "^hello", "$options", "i"))))

	pred, err := Compile(query)
	require.NoError(t, err)

	ok, _, err := pred.Match(doc)
	require.NoError(t, err)
	assert.True(t, ok, "$regex combined with a sibling $options should apply the flag")
}

func TestMatchElemMatchCapturesPositionalIndex(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("arr", must(types.NewArray(
		must(types.NewDocument("x", int32(0))),
		must(types.NewDocument("x", int32(1))),
		must(types.NewDocument("x", int32(1))),
	))))

	query := must(types.NewDocument("arr", must(types.NewDocument(
		"$elemMatch", must(types.NewDocument("x", int32(1))),
	))))

	pred, err := Compile(query)
	require.NoError(t, err)

	ok, _, err := pred.Match(doc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchPositionalIndexFromFieldCondition(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("arr", must(types.NewArray(int32(0), int32(1), int32(1)))))

	query := must(types.NewDocument("arr", int32(1)))

	pred, err := Compile(query)
	require.NoError(t, err)

	ok, idx, err := pred.Match(doc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestMatchLogicalCombinators(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("x", int32(5)))

	and := must(types.NewDocument("$and", must(types.NewArray(
		must(types.NewDocument("x", must(types.NewDocument("$gt", int32(1))))),
		must(types.NewDocument("x", must(types.NewDocument("$lt", int32(10))))),
	))))

	pred, err := Compile(and)
	require.NoError(t, err)

	ok, _, err := pred.Match(doc)
	require.NoError(t, err)
	assert.True(t, ok)

	nor := must(types.NewDocument("$nor", must(types.NewArray(
		must(types.NewDocument("x", int32(5))),
	))))

	pred, err = Compile(nor)
	require.NoError(t, err)

	ok, _, err = pred.Match(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchExpr(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("a", int32(2), "b", int32(2)))

	query := must(types.NewDocument("$expr", must(types.NewDocument(
		"$eq", must(types.NewArray("$a", "$b")),
	))))

	pred, err := Compile(query)
	require.NoError(t, err)

	ok, _, err := pred.Match(doc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchEmptyQuery(t *testing.T) {
	t.Parallel()

	pred, err := Compile(must(types.NewDocument()))
	require.NoError(t, err)

	ok, _, err := pred.Match(must(types.NewDocument("x", int32(1))))
	require.NoError(t, err)
	assert.True(t, ok)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}
