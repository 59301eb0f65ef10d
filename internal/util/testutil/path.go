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

package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FerretDB/FerretDB/internal/types"
)

// SetByPath sets doc's value at path, failing the test on error.
func SetByPath(tb testing.TB, doc *types.Document, value any, path types.Path) {
	tb.Helper()

	require.NoError(tb, types.Set(doc, path, value, -1))
}

// GetExactByPath returns doc's value at path, failing the test if it is not present.
func GetExactByPath(tb testing.TB, doc *types.Document, path types.Path) any {
	tb.Helper()

	v, err := types.Get(doc, path)
	require.NoError(tb, err)

	return v
}
