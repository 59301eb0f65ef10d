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

// Package handlerparams provides helpers for extracting and validating command
// parameters from BSON documents, shared by every msg_*.go command handler.
package handlerparams

import "errors"

// Sentinel errors returned by the numeric and arithmetic helpers below. Callers match
// them with errors.Is and translate them into a wire-facing handlererrors.CommandError
// with whatever code and message fits the calling command.
var (
	// ErrUnexpectedType indicates that a value is not a BSON number (or null).
	ErrUnexpectedType = errors.New("unexpected type")

	// ErrNotWholeNumber indicates that a float value has a fractional part.
	ErrNotWholeNumber = errors.New("not a whole number")

	// ErrLongExceededPositive indicates a float overflowing int64 on the positive side.
	ErrLongExceededPositive = errors.New("long exceeded, positive")

	// ErrLongExceededNegative indicates a float overflowing int64 on the negative side.
	ErrLongExceededNegative = errors.New("long exceeded, negative")

	// ErrIntExceeded indicates that an arithmetic operation between two int32 operands
	// overflows the range of int32 (and is promoted to int64 instead).
	ErrIntExceeded = errors.New("int32 exceeded")

	// ErrUnexpectedLeftOpType indicates that the existing document value operand of an
	// arithmetic update is not a number.
	ErrUnexpectedLeftOpType = errors.New("unexpected left operand type")

	// ErrUnexpectedRightOpType indicates that the update operator's own operand is not
	// a number.
	ErrUnexpectedRightOpType = errors.New("unexpected right operand type")
)
