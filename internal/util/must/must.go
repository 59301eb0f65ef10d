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

// Package must provides helpers to eliminate error checking in cases where an error
// is not expected: constructing literals whose validity is known at compile time,
// enforcing invariants that the surrounding code has already guaranteed.
//
// Every function panics if its error (or boolean) argument indicates failure;
// none of them are meant to be used with values derived from untrusted input.
package must

// NotFail returns v as is, panicking if err is not nil.
//
// It is used to eliminate error checking when constructing values that are known,
// by construction, not to fail — for example, `must.NotFail(types.NewDocument("_id", id))`.
func NotFail[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// NoError panics if err is not nil.
func NoError(err error) {
	if err != nil {
		panic(err)
	}
}

// BeTrue panics if v is false.
func BeTrue(v bool) {
	if !v {
		panic("must.BeTrue: condition is false")
	}
}
