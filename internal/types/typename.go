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

import "time"

// TypeName returns the MongoDB-compatible type name used by $type and error messages.
func TypeName(v any) string {
	switch v.(type) {
	case MissingType:
		return "missing"
	case *Document:
		return "object"
	case *Array:
		return "array"
	case float64:
		return "double"
	case string:
		return "string"
	case Binary:
		return "binData"
	case ObjectID:
		return "objectId"
	case bool:
		return "bool"
	case time.Time:
		return "date"
	case NullType:
		return "null"
	case Regex:
		return "regex"
	case int32:
		return "int"
	case Timestamp:
		return "timestamp"
	case int64:
		return "long"
	case Decimal128:
		return "decimal"
	case MinKeyType:
		return "minKey"
	case MaxKeyType:
		return "maxKey"
	case UndefinedType:
		return "undefined"
	default:
		return "unknown"
	}
}

// typeAliases maps the numeric $type codes MongoDB accepts to their canonical name.
var typeAliases = map[int32]string{
	1:  "double",
	2:  "string",
	3:  "object",
	4:  "array",
	5:  "binData",
	6:  "undefined",
	7:  "objectId",
	8:  "bool",
	9:  "date",
	10: "null",
	11: "regex",
	13: "javascript",
	16: "int",
	17: "timestamp",
	18: "long",
	19: "decimal",
	-1: "minKey",
	127: "maxKey",
}

// TypeAlias resolves a $type query operand (either a type name string or a numeric
// code) to the canonical type name, reporting false if it does not name a known type.
func TypeAlias(operand any) (string, bool) {
	switch v := operand.(type) {
	case string:
		for _, name := range typeAliases {
			if name == v {
				return v, true
			}
		}

		if v == "number" {
			return "number", true
		}

		return "", false
	case int32:
		name, ok := typeAliases[v]
		return name, ok
	case int64:
		name, ok := typeAliases[int32(v)]
		return name, ok
	case float64:
		name, ok := typeAliases[int32(v)]
		return name, ok
	default:
		return "", false
	}
}
