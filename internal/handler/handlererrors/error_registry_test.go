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

package handlererrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandErrorMsgWithArgument(t *testing.T) {
	t.Parallel()

	err := NewCommandErrorMsgWithArgument(ErrConflictingUpdateOperators, "conflict at a.b", "update")

	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrConflictingUpdateOperators, ce.Code())
	assert.Equal(t, "ConflictingUpdateOperators", ce.Code().String())
	assert.Contains(t, ce.Error(), "conflict at a.b")
}

func TestNewCommandErrorIdempotentOnCommandError(t *testing.T) {
	t.Parallel()

	inner := NewCommandErrorMsg(ErrBadValue, "bad")
	wrapped := NewCommandError(ErrTypeMismatch, inner)

	var ce *CommandError
	require.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, ErrBadValue, ce.Code(), "re-wrapping a CommandError must keep its original code")
}

func TestErrorCodeStringFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ErrorCode(999999)", ErrorCode(999999).String())
}
