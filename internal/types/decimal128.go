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

// Decimal128 represents BSON scalar type Decimal128.
//
// The core engine treats Decimal128 as an opaque, high-precision decimal carried
// through the system without arithmetic support; operators that need to compute with
// it (§4.3) widen it to float64 the same way they widen other numeric types, which is
// sufficient for the matcher and projection paths that only need equality and ordering.
type Decimal128 struct {
	High uint64
	Low  uint64
}
