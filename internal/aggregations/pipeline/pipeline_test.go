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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

func runPipeline(t *testing.T, stagesJSON *types.Array, docs []*types.Document) []*types.Document {
	t.Helper()

	stages, err := Compile(stagesJSON, nil)
	require.NoError(t, err)

	out, err := Run(context.Background(), stages, iterator.Values(iterator.ForSlice(docs)))
	require.NoError(t, err)

	result, err := iterator.ConsumeValues(out)
	require.NoError(t, err)

	return result
}

func TestMatchProjectSort(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		must(types.NewDocument("_id", int32(1), "category", "a", "price", int32(10))),
		must(types.NewDocument("_id", int32(2), "category", "a", "price", int32(5))),
		must(types.NewDocument("_id", int32(3), "category", "b", "price", int32(1))),
	}

	stages := must(types.NewArray(
		must(types.NewDocument("$match", must(types.NewDocument("category", "a")))),
		must(types.NewDocument("$sort", must(types.NewDocument("price", int32(1))))),
		must(types.NewDocument("$project", must(types.NewDocument("price", int32(1))))),
	))

	result := runPipeline(t, stages, docs)

	require.Len(t, result, 2)
	assert.Equal(t, int32(5), must(result[0].Get("price")))
	assert.Equal(t, int32(10), must(result[1].Get("price")))
	assert.False(t, result[0].Has("category"))
}

func TestGroupSum(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		must(types.NewDocument("category", "a", "qty", int32(3))),
		must(types.NewDocument("category", "a", "qty", int32(4))),
		must(types.NewDocument("category", "b", "qty", int32(1))),
	}

	stages := must(types.NewArray(
		must(types.NewDocument("$group", must(types.NewDocument(
			"_id", "$category",
			"total", must(types.NewDocument("$sum", "$qty")),
		)))),
		must(types.NewDocument("$sort", must(types.NewDocument("_id", int32(1))))),
	))

	result := runPipeline(t, stages, docs)

	require.Len(t, result, 2)
	assert.Equal(t, "a", must(result[0].Get("_id")))
	assert.Equal(t, int32(7), must(result[0].Get("total")))
	assert.Equal(t, "b", must(result[1].Get("_id")))
	assert.Equal(t, int32(1), must(result[1].Get("total")))
}

func TestUnwindAndLimit(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		must(types.NewDocument("_id", int32(1), "tags", must(types.NewArray("x", "y", "z")))),
	}

	stages := must(types.NewArray(
		must(types.NewDocument("$unwind", "$tags")),
		must(types.NewDocument("$limit", int32(2))),
	))

	result := runPipeline(t, stages, docs)

	require.Len(t, result, 2)
	assert.Equal(t, "x", must(result[0].Get("tags")))
	assert.Equal(t, "y", must(result[1].Get("tags")))
}

func TestProjectInclusionWithComputedField(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("_id", int32(1), "a", int32(10), "b", int32(20), "c", int32(-30)))
	spec := must(types.NewDocument("_id", int32(0), "x", must(types.NewDocument("$abs", "$c")), "b", int32(1)))

	out, err := Project(doc, spec)
	require.NoError(t, err)

	expected := must(types.NewDocument("x", int32(30), "b", int32(20)))
	assert.Equal(t, expected, out)
}

func TestProjectNestedExclusionThroughArray(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("_id", int32(1), "x", must(types.NewArray(
		must(types.NewDocument("a", int32(1), "b", int32(2), "c", int32(3))),
		must(types.NewDocument("a", int32(2))),
	))))
	spec := must(types.NewDocument("x.b", int32(0)))

	out, err := Project(doc, spec)
	require.NoError(t, err)

	expected := must(types.NewDocument("_id", int32(1), "x", must(types.NewArray(
		must(types.NewDocument("a", int32(1), "c", int32(3))),
		must(types.NewDocument("a", int32(2))),
	))))
	assert.Equal(t, expected, out)
}

func TestProjectEmptySpecFails(t *testing.T) {
	t.Parallel()

	doc := must(types.NewDocument("a", int32(1)))

	_, err := Project(doc, types.MakeDocument(0))
	require.Error(t, err)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 40177, pe.Code)
}

func TestCountStage(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		must(types.NewDocument("a", int32(1))),
		must(types.NewDocument("a", int32(2))),
	}

	stages := must(types.NewArray(must(types.NewDocument("$count", "total"))))

	result := runPipeline(t, stages, docs)

	require.Len(t, result, 1)
	assert.Equal(t, int32(2), must(result[0].Get("total")))
}
