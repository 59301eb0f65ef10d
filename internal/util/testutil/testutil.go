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

// Package testutil provides common helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Ctx returns a context bound to the test's lifetime.
func Ctx(tb testing.TB) context.Context {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	return ctx
}

// Logger returns a zap logger that writes to the test's log.
func Logger(tb testing.TB) *zap.Logger {
	tb.Helper()

	return zaptest.NewLogger(tb, zaptest.Level(zap.DebugLevel))
}

// sanitizeName converts s into a value that is safe to use as a database or collection name:
// lowercase, with everything but ASCII letters/digits replaced with "_".
func sanitizeName(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}

// DatabaseName returns a stable, unique database name derived from the test's name.
func DatabaseName(tb testing.TB) string {
	tb.Helper()

	return "test_" + sanitizeName(tb.Name())
}

// CollectionName returns a stable, unique collection name derived from the test's name.
func CollectionName(tb testing.TB) string {
	tb.Helper()

	return sanitizeName(tb.Name())
}

// TestPostgreSQLURI is a placeholder kept for parity with the PostgreSQL backend test
// suite the distillation does not carry; persistence-format backends are out of scope.
func TestPostgreSQLURI(tb testing.TB) string {
	tb.Helper()
	tb.Skip("PostgreSQL backend is out of scope")

	return ""
}

// TestSQLiteURI is a placeholder kept for parity with the SQLite backend test suite
// the distillation does not carry; persistence-format backends are out of scope.
func TestSQLiteURI(tb testing.TB) string {
	tb.Helper()
	tb.Skip("SQLite backend is out of scope")

	return fmt.Sprintf("file:%s?mode=memory", sanitizeName(tb.Name()))
}
