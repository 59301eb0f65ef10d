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
	"log/slog"
	"strconv"
	"time"
)

// LogValue implements slog.LogValuer, so that structured loggers render a Document's
// fields as a nested group rather than a single opaque string.
func (d *Document) LogValue() slog.Value {
	if d == nil {
		return slog.StringValue("Document<nil>")
	}

	attrs := make([]slog.Attr, 0, d.Len())

	for _, key := range d.keys {
		attrs = append(attrs, slog.Any(key, logValueOf(d.m[key])))
	}

	return slog.GroupValue(attrs...)
}

// LogValue implements slog.LogValuer, rendering array elements as a group keyed by
// their decimal index, for consistency with how Document is rendered.
func (a *Array) LogValue() slog.Value {
	if a == nil {
		return slog.StringValue("Array<nil>")
	}

	attrs := make([]slog.Attr, 0, a.Len())

	for i, elem := range a.s {
		attrs = append(attrs, slog.Any(strconv.Itoa(i), logValueOf(elem)))
	}

	return slog.GroupValue(attrs...)
}

// logValueOf normalizes a scalar Value for logging. time.Time is truncated to
// millisecond precision and converted to UTC so that log output is stable regardless
// of the zone or sub-millisecond precision the value happened to carry; composite
// values and the remaining scalars are passed through, relying on their own
// LogValuer/Stringer/MarshalJSON implementations.
func logValueOf(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Truncate(time.Millisecond)
	}

	return v
}
