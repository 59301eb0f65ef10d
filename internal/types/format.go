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

package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatAnyValue returns a short, human-readable representation of a Value for use in
// panic messages, errors, and fmt.Stringer implementations. It is not a wire format and
// its output is not guaranteed to be stable across versions.
func FormatAnyValue(v any) string {
	var sb strings.Builder
	formatValue(&sb, v)

	return sb.String()
}

func formatValue(sb *strings.Builder, v any) {
	switch v := v.(type) {
	case *Document:
		if v == nil {
			sb.WriteString("Document<nil>")
			return
		}

		sb.WriteByte('{')

		for i, key := range v.keys {
			if i > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(key)
			sb.WriteString(": ")
			formatValue(sb, v.m[key])
		}

		sb.WriteByte('}')
	case *Array:
		if v == nil {
			sb.WriteString("Array<nil>")
			return
		}

		sb.WriteByte('[')

		for i, elem := range v.s {
			if i > 0 {
				sb.WriteString(", ")
			}

			formatValue(sb, elem)
		}

		sb.WriteByte(']')
	case float64:
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case string:
		sb.WriteString(strconv.Quote(v))
	case Binary:
		fmt.Fprintf(sb, "Binary(subtype: %d, %d bytes)", v.Subtype, len(v.B))
	case ObjectID:
		sb.WriteString(v.String())
	case bool:
		sb.WriteString(strconv.FormatBool(v))
	case time.Time:
		sb.WriteString(v.UTC().Format(time.RFC3339Nano))
	case NullType:
		sb.WriteString("null")
	case MissingType:
		sb.WriteString("<missing>")
	case Regex:
		fmt.Fprintf(sb, "/%s/%s", v.Pattern, v.Options)
	case int32:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Timestamp:
		fmt.Fprintf(sb, "Timestamp(%d, %d)", v.Seconds(), v.Ordinal())
	case int64:
		sb.WriteString(strconv.FormatInt(v, 10))
	case Decimal128:
		fmt.Fprintf(sb, "Decimal128(%d, %d)", v.High, v.Low)
	case MinKeyType:
		sb.WriteString("minKey")
	case MaxKeyType:
		sb.WriteString("maxKey")
	case UndefinedType:
		sb.WriteString("undefined")
	default:
		fmt.Fprintf(sb, "<unknown %T>", v)
	}
}
