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

package handlerparams

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/FerretDB/FerretDB/internal/handler/handlererrors"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
)

// fieldTag is a parsed `ferretdb:"..."` struct tag.
type fieldTag struct {
	name          string
	opt           bool
	ignored       bool
	unimplemented bool
	nonDefaultOnly bool
	numericBool   bool
	zeroOrOneBool bool
	positiveNum   bool
	wholePositive bool
	isDB          bool
	isCollection  bool
}

// parseFieldTag splits a `ferretdb:"name,opt1,opt2"` tag into its components.
func parseFieldTag(tag string) fieldTag {
	parts := strings.Split(tag, ",")

	ft := fieldTag{name: parts[0]}

	if ft.name == "$db" {
		ft.isDB = true
	}

	for _, opt := range parts[1:] {
		switch opt {
		case "opt":
			ft.opt = true
		case "ignored":
			ft.ignored = true
			ft.opt = true
		case "unimplemented":
			ft.unimplemented = true
			ft.opt = true
		case "unimplemented-non-default":
			ft.unimplemented = true
			ft.nonDefaultOnly = true
			ft.opt = true
		case "numericBool":
			ft.numericBool = true
		case "zeroOrOneAsBool":
			ft.zeroOrOneBool = true
		case "positiveNumber":
			ft.positiveNum = true
			ft.opt = true
		case "wholePositiveNumber":
			ft.wholePositive = true
			ft.opt = true
		case "collection":
			ft.isCollection = true
		}
	}

	return ft
}

// ExtractParams extracts command parameters from document into params, a pointer to a
// struct whose fields are annotated with `ferretdb:"name[,opt...]"` tags.
//
// A field tagged `$db` receives the command's database name; a field tagged
// `<command>,collection` receives the command document's own collection-name argument.
// All other fields are looked up by their tag name. Missing required fields are
// reported as handlererrors.ErrMissingField; fields tagged `unimplemented` cause an
// ErrNotImplemented error if present with a non-default value.
func ExtractParams(document *types.Document, command string, params any, l *zap.Logger) error {
	v := reflect.ValueOf(params)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return lazyerrors.Errorf("params must be a pointer to a struct, got %T", params)
	}

	return extractInto(document, command, v.Elem(), l)
}

func extractInto(document *types.Document, command string, v reflect.Value, l *zap.Logger) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup("ferretdb")
		if !ok || tag == "-" {
			continue
		}

		ft := parseFieldTag(tag)
		fv := v.Field(i)

		var (
			raw   any
			found bool
		)

		switch {
		case ft.isDB:
			raw, found = document.Get("$db")
		case ft.isCollection:
			raw, found = document.Get(command)
		default:
			raw, found = document.Get(ft.name)
		}

		if !found {
			if ft.opt {
				continue
			}

			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrMissingField,
				fmt.Sprintf("BSON field '%s.%s' is missing but a required field", command, ft.name),
				command,
			)
		}

		if ft.ignored {
			if l != nil {
				l.Debug("ignoring field", zap.String("command", command), zap.String("field", ft.name))
			}

			continue
		}

		if ft.unimplemented {
			if ft.nonDefaultOnly && isZeroValue(raw) {
				continue
			}

			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrNotImplemented,
				fmt.Sprintf("%s.%s is not implemented yet", command, ft.name),
				command,
			)
		}

		if err := setField(fv, raw, ft, command); err != nil {
			return err
		}
	}

	return nil
}

// isZeroValue reports whether a BSON value is the "not set" value for its type.
func isZeroValue(v any) bool {
	switch v := v.(type) {
	case bool:
		return !v
	case int32:
		return v == 0
	case int64:
		return v == 0
	case float64:
		return v == 0
	case string:
		return v == ""
	case types.NullType:
		return true
	default:
		return v == nil
	}
}

// setField converts a raw BSON value and assigns it to fv according to ft's options.
func setField(fv reflect.Value, raw any, ft fieldTag, command string) error {
	switch {
	case ft.numericBool, ft.zeroOrOneBool:
		b, err := GetBoolOptionalParam(ft.name, raw)
		if err != nil {
			return err
		}

		fv.SetBool(b)

		return nil

	case ft.positiveNum, ft.wholePositive:
		n, err := GetWholeNumberParam(raw)
		if err != nil {
			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf("BSON field '%s' is the wrong type, expected a number", ft.name),
				command,
			)
		}

		if n < 0 {
			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrValueNegative,
				fmt.Sprintf("BSON field '%s' value must be >= 0, actual value '%d'", ft.name, n),
				command,
			)
		}

		fv.SetInt(n)

		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf("BSON field '%s' is the wrong type, expected string", ft.name),
				command,
			)
		}

		fv.SetString(s)

	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf("BSON field '%s' is the wrong type, expected bool", ft.name),
				command,
			)
		}

		fv.SetBool(b)

	case reflect.Int64, reflect.Int32:
		n, err := GetWholeNumberParam(raw)
		if err != nil {
			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf("BSON field '%s' is the wrong type, expected a number", ft.name),
				command,
			)
		}

		fv.SetInt(n)

	case reflect.Slice:
		arr, ok := raw.(*types.Array)
		if !ok {
			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf("BSON field '%s' is the wrong type, expected array", ft.name),
				command,
			)
		}

		elemType := fv.Type().Elem()
		out := reflect.MakeSlice(fv.Type(), 0, arr.Len())

		for i := 0; i < arr.Len(); i++ {
			elem, err := arr.Get(i)
			if err != nil {
				return lazyerrors.Error(err)
			}

			doc, ok := elem.(*types.Document)
			if !ok {
				return handlererrors.NewCommandErrorMsgWithArgument(
					handlererrors.ErrTypeMismatch,
					fmt.Sprintf("BSON field '%s' must contain documents", ft.name),
					command,
				)
			}

			elemPtr := reflect.New(elemType)
			if err := extractInto(doc, command, elemPtr.Elem(), nil); err != nil {
				return err
			}

			out = reflect.Append(out, elemPtr.Elem())
		}

		fv.Set(out)

	default:
		// *types.Document, *types.Array, any, and other pass-through types are assigned directly.
		rv := reflect.ValueOf(raw)
		if raw == nil || !rv.IsValid() {
			return nil
		}

		if !rv.Type().AssignableTo(fv.Type()) {
			return handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf("BSON field '%s' is the wrong type '%s'", ft.name, AliasFromType(raw)),
				command,
			)
		}

		fv.Set(rv)
	}

	return nil
}
