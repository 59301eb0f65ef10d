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

// Package commonerrors re-exports the handlererrors registry under its previous name,
// kept for the handler code that was written against it.
package commonerrors

import "github.com/FerretDB/FerretDB/internal/handler/handlererrors"

// CommandError is an alias for handlererrors.CommandError.
type CommandError = handlererrors.CommandError

// ErrorCode is an alias for handlererrors.ErrorCode.
type ErrorCode = handlererrors.ErrorCode

// Error codes used by the commonparams package.
const (
	ErrBadValue             = handlererrors.ErrBadValue
	ErrTypeMismatch         = handlererrors.ErrTypeMismatch
	ErrValueNegative        = handlererrors.ErrValueNegative
	ErrInvalidNamespace     = handlererrors.ErrInvalidNamespace
	ErrEmptyFieldPath       = handlererrors.ErrEmptyFieldPath
	ErrFieldPathInvalidName = handlererrors.ErrFieldPathInvalidName
	ErrPathContainsEmptyElement = handlererrors.ErrPathContainsEmptyElement
	ErrSortBadValue         = handlererrors.ErrSortBadValue
	ErrSortBadOrder         = handlererrors.ErrSortBadOrder
)

// NewCommandErrorMsgWithArgument is an alias for handlererrors.NewCommandErrorMsgWithArgument.
var NewCommandErrorMsgWithArgument = handlererrors.NewCommandErrorMsgWithArgument
