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
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// ObjectID represents BSON scalar type ObjectID.
type ObjectID [12]byte

// processUniqueCounter is a process-wide counter seeded randomly at startup,
// used to make generated ObjectIDs unique within this process without coordination.
var processUniqueCounter atomic.Uint32

func init() {
	var b [4]byte
	if _, err := rand.Read(b[:]); err == nil {
		processUniqueCounter.Store(binary.BigEndian.Uint32(b[:]))
	}
}

// NewObjectID returns a new, randomly generated ObjectID, following the classic
// 4-byte timestamp + 5-byte random + 3-byte counter layout.
func NewObjectID() ObjectID {
	var id ObjectID

	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))

	var random [5]byte
	_, _ = rand.Read(random[:])
	copy(id[4:9], random[:])

	c := processUniqueCounter.Add(1)
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)

	return id
}

// String implements fmt.Stringer.
func (id ObjectID) String() string {
	return fmt.Sprintf("ObjectID(%x)", [12]byte(id))
}

// MarshalJSON implements json.Marshaler, so that log handlers using encoding/json
// render an ObjectID the same way String does, instead of as a byte array.
func (id ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}
