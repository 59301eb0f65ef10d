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

// Package handlererrors provides the stable numeric error code registry (§7) and the
// CommandError type that carries a code across the boundary between the core
// components (types, matcher, update, aggregations — each of which raises small local
// sentinel errors of its own to avoid importing this package) and the command
// handlers, which translate those local errors into a CommandError with the matching
// code before returning a response.
package handlererrors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a MongoDB wire protocol compatible error code.
type ErrorCode int32

const (
	errUnset = ErrorCode(0) // unset

	// ErrInternalError indicates an internal server error.
	ErrInternalError = ErrorCode(1) // InternalError

	// ErrBadValue indicates wrong input.
	ErrBadValue = ErrorCode(2) // BadValue

	// ErrFailedToParse indicates a query parsing error.
	ErrFailedToParse = ErrorCode(9) // FailedToParse

	// ErrTypeMismatch indicates a type mismatch for a given operator/argument.
	ErrTypeMismatch = ErrorCode(14) // TypeMismatch

	// ErrIllegalOperation indicates an unsupported combination of options.
	ErrIllegalOperation = ErrorCode(20) // IllegalOperation

	// ErrNamespaceNotFound indicates that a collection does not exist.
	ErrNamespaceNotFound = ErrorCode(26) // NamespaceNotFound

	// ErrPathNotViable indicates that a path traverses a non-document, non-array value.
	ErrPathNotViable = ErrorCode(28) // PathNotViable

	// ErrConflictingUpdateOperators indicates that two update operators target
	// overlapping paths.
	ErrConflictingUpdateOperators = ErrorCode(40) // ConflictingUpdateOperators

	// ErrCursorNotFound indicates an unknown or expired cursor id.
	ErrCursorNotFound = ErrorCode(43) // CursorNotFound

	// ErrImmutableField indicates an attempt to change an immutable field (_id).
	ErrImmutableField = ErrorCode(66) // ImmutableField

	// ErrInvalidOptions indicates invalid command options.
	ErrInvalidOptions = ErrorCode(72) // InvalidOptions

	// ErrInvalidNamespace indicates an invalid database/collection name.
	ErrInvalidNamespace = ErrorCode(73) // InvalidNamespace

	// ErrOperationFailed is a generic operation failure.
	ErrOperationFailed = ErrorCode(96) // OperationFailed

	// ErrDuplicateKeyInsert indicates a unique index violation on insert.
	ErrDuplicateKeyInsert = ErrorCode(11000) // DuplicateKey

	// ErrUnsuitableValueType indicates an update operator applied to an incompatible
	// existing value type.
	ErrUnsuitableValueType = ErrorCode(14845) // UnsuitableValueType

	// ErrNotImplemented indicates a recognized but unimplemented feature.
	ErrNotImplemented = ErrorCode(238) // NotImplemented

	// ErrQueryCanceled indicates cooperative cancellation of a running query.
	ErrQueryCanceled = ErrorCode(237) // QueryCanceled

	// ErrMaxTimeMSExpired indicates a maxTimeMS deadline was exceeded.
	ErrMaxTimeMSExpired = ErrorCode(50) // MaxTimeMSExpired

	// ErrEmptyName indicates an empty field name where one is required.
	ErrEmptyName = ErrorCode(56) // EmptyFieldName

	// ErrEmptyFieldPath indicates an empty path where one is required.
	ErrEmptyFieldPath = ErrorCode(40352) // Location40352

	// ErrMissingField indicates a required field was not supplied.
	ErrMissingField = ErrorCode(40414) // Location40414

	// ErrDollarPrefixedFieldName indicates a top-level `$`-prefixed key in a
	// replacement document.
	ErrDollarPrefixedFieldName = ErrorCode(52) // DollarPrefixedFieldName

	// ErrInvalidID indicates an _id value that cannot be used (e.g. an array).
	ErrInvalidID = ErrorCode(53) // InvalidIDValue

	// ErrValueNegative indicates a numeric option that must be non-negative.
	ErrValueNegative = ErrorCode(51024) // Location51024

	// ErrStringProhibited indicates a string value where one is not accepted.
	ErrStringProhibited = ErrorCode(51) // Location51

	// ErrPathContainsEmptyElement indicates an empty path fragment (leading, trailing,
	// or doubled `.`).
	ErrPathContainsEmptyElement = ErrorCode(15998) // Location15998

	// ErrStageGroupID indicates a missing or invalid $group "_id" field.
	ErrStageGroupID = ErrorCode(15955) // Location15955

	// ErrStageGroupUnaryOperator indicates a $group accumulator with other than one
	// operator key.
	ErrStageGroupUnaryOperator = ErrorCode(15951) // Location15951

	// ErrStageCountNonString indicates a non-string $count argument.
	ErrStageCountNonString = ErrorCode(40156) // Location40156

	// ErrStageCountNonEmptyString indicates an empty $count field name.
	ErrStageCountNonEmptyString = ErrorCode(40157) // Location40157

	// ErrStageCountBadPrefix indicates a $count field name starting with `$`.
	ErrStageCountBadPrefix = ErrorCode(40158) // Location40158

	// ErrStageCountBadValue indicates a $count field name containing `.`.
	ErrStageCountBadValue = ErrorCode(40159) // Location40159

	// ErrCollStatsIsNotFirstStage indicates $collStats used anywhere but first.
	ErrCollStatsIsNotFirstStage = ErrorCode(40602) // Location40602

	// ErrAuthenticationFailed indicates a failed authentication attempt.
	ErrAuthenticationFailed = ErrorCode(18) // AuthenticationFailed

	// ErrMechanismUnavailable indicates an unsupported SASL mechanism.
	ErrMechanismUnavailable = ErrorCode(334) // MechanismUnavailable

	// ErrUnauthorized indicates a denied operation.
	ErrUnauthorized = ErrorCode(13) // Unauthorized

	// ErrUserNotFound indicates an unknown user in a user-management command.
	ErrUserNotFound = ErrorCode(11) // UserNotFound

	// ErrUserAlreadyExists indicates a duplicate user in createUser.
	ErrUserAlreadyExists = ErrorCode(51003) // Location51003

	// ErrSetEmptyPassword indicates an empty password supplied to createUser.
	ErrSetEmptyPassword = ErrorCode(50687) // Location50687

	// ErrClientMetadataCannotBeMutated indicates a client metadata change after the
	// initial hello/isMaster handshake.
	ErrClientMetadataCannotBeMutated = ErrorCode(50891) // Location50891

	// ErrFieldPathInvalidName indicates a field path that is empty, contains a leading
	// or trailing `.`, or an empty fragment.
	ErrFieldPathInvalidName = ErrorCode(40353) // Location40353

	// ErrSortBadValue indicates a $sort specification whose value is not a number.
	ErrSortBadValue = ErrorCode(15974) // Location15974

	// ErrSortBadOrder indicates a $sort specification whose numeric value isn't 1 or -1.
	ErrSortBadOrder = ErrorCode(15975) // Location15975
)

// codeNames maps each ErrorCode to the short name wire protocol clients expect in the
// "codeName" response field.
var codeNames = map[ErrorCode]string{
	errUnset:                         "unset",
	ErrInternalError:                 "InternalError",
	ErrBadValue:                      "BadValue",
	ErrFailedToParse:                 "FailedToParse",
	ErrTypeMismatch:                  "TypeMismatch",
	ErrIllegalOperation:              "IllegalOperation",
	ErrNamespaceNotFound:             "NamespaceNotFound",
	ErrPathNotViable:                 "PathNotViable",
	ErrConflictingUpdateOperators:    "ConflictingUpdateOperators",
	ErrCursorNotFound:                "CursorNotFound",
	ErrImmutableField:                "ImmutableField",
	ErrInvalidOptions:                "InvalidOptions",
	ErrInvalidNamespace:              "InvalidNamespace",
	ErrOperationFailed:               "OperationFailed",
	ErrDuplicateKeyInsert:            "DuplicateKey",
	ErrUnsuitableValueType:           "UnsuitableValueType",
	ErrNotImplemented:                "NotImplemented",
	ErrQueryCanceled:                 "QueryCanceled",
	ErrMaxTimeMSExpired:              "MaxTimeMSExpired",
	ErrEmptyName:                     "EmptyFieldName",
	ErrEmptyFieldPath:                "Location40352",
	ErrMissingField:                  "Location40414",
	ErrDollarPrefixedFieldName:       "DollarPrefixedFieldName",
	ErrInvalidID:                     "InvalidIDValue",
	ErrValueNegative:                 "Location51024",
	ErrStringProhibited:              "Location51",
	ErrPathContainsEmptyElement:      "Location15998",
	ErrStageGroupID:                  "Location15955",
	ErrStageGroupUnaryOperator:       "Location15951",
	ErrStageCountNonString:           "Location40156",
	ErrStageCountNonEmptyString:      "Location40157",
	ErrStageCountBadPrefix:           "Location40158",
	ErrStageCountBadValue:            "Location40159",
	ErrCollStatsIsNotFirstStage:      "Location40602",
	ErrAuthenticationFailed:          "AuthenticationFailed",
	ErrMechanismUnavailable:          "MechanismUnavailable",
	ErrUnauthorized:                  "Unauthorized",
	ErrUserNotFound:                  "UserNotFound",
	ErrUserAlreadyExists:             "Location51003",
	ErrSetEmptyPassword:              "Location50687",
	ErrClientMetadataCannotBeMutated: "Location50891",
	ErrFieldPathInvalidName:          "Location40353",
	ErrSortBadValue:                  "Location15974",
	ErrSortBadOrder:                  "Location15975",
}

// String returns the error code's short name, falling back to its numeric form for any
// code not in the registry (e.g. a code produced by a local sentinel error translated
// ad hoc at the handler boundary).
func (e ErrorCode) String() string {
	if name, ok := codeNames[e]; ok {
		return name
	}

	return fmt.Sprintf("ErrorCode(%d)", int32(e))
}

// CommandError represents a command error, an error that wire protocol clients expect
// as a document with an "ok: 0" field and a numeric "code".
type CommandError struct {
	err  error
	code ErrorCode
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.err)
}

// Unwrap implements errors.Unwrap, allowing errors.As/errors.Is to reach the
// underlying cause.
func (e *CommandError) Unwrap() error {
	return e.err
}

// Code returns the error's stable numeric code.
func (e *CommandError) Code() ErrorCode {
	return e.code
}

// Err returns the underlying error, whose message is the client-facing text.
func (e *CommandError) Err() error {
	return e.err
}

// NewCommandError creates a new CommandError from the given error, attaching code.
// If err is already a *CommandError, it is returned unchanged.
func NewCommandError(code ErrorCode, err error) error {
	var ce *CommandError
	if AsCommandError(err, &ce) {
		return ce
	}

	return &CommandError{err: err, code: code}
}

// NewCommandErrorMsg is a convenience function to create a new CommandError with
// the given error message.
func NewCommandErrorMsg(code ErrorCode, msg string) error {
	return NewCommandError(code, fmt.Errorf("%s", msg))
}

// NewCommandErrorMsgWithArgument is a convenience function to create a new
// CommandError with the given error message, wrapping the command/argument name
// into a consistent format matching the wire protocol's expectations.
func NewCommandErrorMsgWithArgument(code ErrorCode, msg, argument string) error {
	return NewCommandError(code, fmt.Errorf("%s: %s", argument, msg))
}

// NewWriteErrorMsg is a convenience function to create a new CommandError carrying a
// per-document write error message, for callers (update, delete, insert) that report
// per-operation failures in a `writeErrors` array rather than failing the whole command.
func NewWriteErrorMsg(code ErrorCode, msg string) error {
	return NewCommandError(code, fmt.Errorf("%s", msg))
}

// AsCommandError is a wrapper for errors.As to check if err is a *CommandError.
func AsCommandError(err error, ce **CommandError) bool {
	return errors.As(err, ce)
}

// check interfaces
var (
	_ error = (*CommandError)(nil)
)
