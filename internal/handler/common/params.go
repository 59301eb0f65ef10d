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

package common

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/FerretDB/FerretDB/internal/handler/handlererrors"
	"github.com/FerretDB/FerretDB/internal/handler/handlerparams"
	"github.com/FerretDB/FerretDB/internal/matcher"
	"github.com/FerretDB/FerretDB/internal/types"
)

// GetRequiredParam returns the value of the required parameter of the given type.
//
// If the parameter is missing, it returns *handlererrors.CommandError with ErrMissingField.
// If the parameter has an unexpected type, it returns *handlererrors.CommandError with ErrTypeMismatch.
func GetRequiredParam[T any](doc *types.Document, key string) (T, error) {
	var zero T

	v, err := doc.Get(key)
	if err != nil {
		return zero, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrMissingField,
			fmt.Sprintf("BSON field '%s' is missing but a required field", key),
			key,
		)
	}

	res, ok := v.(T)
	if !ok {
		return zero, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrTypeMismatch,
			fmt.Sprintf("BSON field '%s' is the wrong type '%T', expected type '%T'", key, v, zero),
			key,
		)
	}

	return res, nil
}

// GetOptionalParam returns the value of the parameter of the given type, or defaultValue
// if the parameter is absent or explicitly null.
//
// If the parameter is present with an unexpected type, it returns *handlererrors.CommandError
// with ErrTypeMismatch.
func GetOptionalParam[T any](doc *types.Document, key string, defaultValue T) (T, error) {
	v, err := doc.Get(key)
	if err != nil {
		return defaultValue, nil
	}

	if _, ok := v.(types.NullType); ok {
		return defaultValue, nil
	}

	res, ok := v.(T)
	if !ok {
		return defaultValue, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrTypeMismatch,
			fmt.Sprintf("BSON field '%s' is the wrong type '%T', expected type '%T'", key, v, defaultValue),
			key,
		)
	}

	return res, nil
}

// GetBoolOptionalParam is an alias for handlerparams.GetBoolOptionalParam.
func GetBoolOptionalParam(key string, v any) (bool, error) {
	return handlerparams.GetBoolOptionalParam(key, v)
}

// Ignored logs the presence of the given fields at debug level: they are accepted for
// driver/client compatibility but have no effect on command behavior.
func Ignored(doc *types.Document, l *zap.Logger, fields ...string) {
	for _, f := range fields {
		if doc.Has(f) {
			l.Debug("Ignoring field", zap.String("field", f))
		}
	}
}

// Unimplemented returns *handlererrors.CommandError with ErrNotImplemented if any of the
// given fields is present in the document, regardless of its value.
func Unimplemented(doc *types.Document, fields ...string) error {
	for _, field := range fields {
		if !doc.Has(field) {
			continue
		}

		return handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrNotImplemented,
			fmt.Sprintf("support for field %q is not implemented yet", field),
			field,
		)
	}

	return nil
}

// FilterDocument reports whether doc matches the given filter.
// A nil filter matches everything.
func FilterDocument(doc, filter *types.Document) (bool, error) {
	if filter == nil || filter.Len() == 0 {
		return true, nil
	}

	p, err := matcher.Compile(filter)
	if err != nil {
		return false, err
	}

	matches, _, err := p.Match(doc)
	if err != nil {
		return false, err
	}

	return matches, nil
}
