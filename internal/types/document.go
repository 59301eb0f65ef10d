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
	"strings"
	"sync/atomic"
	"time"
)

// MaxDocumentLen is the maximum allowed BSON document size, matching the MongoDB
// wire protocol's 16 MiB limit on a single document.
const MaxDocumentLen = 16 * 1024 * 1024

// Document represents a BSON document: an ordered mapping from string keys to values.
//
// Insertion order is preserved and observable; this is why the implementation keeps
// both a slice of keys (for order) and a map (for lookup) rather than using a single
// ordered-map structure.
//
//nolint:vet // for readability
type Document struct {
	keys []string
	m    map[string]any

	recordID Timestamp
	frozen   atomic.Bool
}

// ConvertDocument converts a non-nil document-like value to *Document, panicking otherwise.
//
// It is used by code that constructs documents internally and is certain of the types involved.
func ConvertDocument(d any) *Document {
	if d == nil {
		panic("types.ConvertDocument: d is nil")
	}

	doc, ok := d.(*Document)
	if !ok {
		panic(fmt.Sprintf("types.ConvertDocument: unexpected type %T", d))
	}

	return doc
}

// NewDocument creates a new Document from alternating key/value pairs.
//
// It panics if the number of parameters is not even, similarly to dig and similar packages.
func NewDocument(pairs ...any) (*Document, error) {
	l := len(pairs)
	if l%2 != 0 {
		panic(fmt.Sprintf("types.NewDocument: invalid number of parameters: %d", l))
	}

	if l == 0 {
		return new(Document), nil
	}

	doc := &Document{
		keys: make([]string, 0, l/2),
		m:    make(map[string]any, l/2),
	}

	for i := 0; i < l; i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("types.NewDocument: invalid key type: %T", pairs[i])
		}

		value := pairs[i+1]
		if err := doc.add(key, value); err != nil {
			return nil, fmt.Errorf("types.NewDocument: %w", err)
		}
	}

	return doc, nil
}

// MustNewDocument is a NewDocument variant that panics on error.
func MustNewDocument(pairs ...any) *Document {
	doc, err := NewDocument(pairs...)
	if err != nil {
		panic(err)
	}

	return doc
}

// MakeDocument creates a new, empty Document with pre-allocated capacity for at least
// the given number of fields.
func MakeDocument(cap int) *Document {
	if cap == 0 {
		return new(Document)
	}

	return &Document{
		keys: make([]string, 0, cap),
		m:    make(map[string]any, cap),
	}
}

// add adds a new key/value pair, reporting a duplicate key as an error (NewDocument only;
// Set overwrites existing keys intentionally).
func (d *Document) add(key string, value any) error {
	if err := validateValue(value); err != nil {
		return fmt.Errorf("types.Document.validate: %w", err)
	}

	if err := validateDocumentKey(key); err != nil {
		return err
	}

	if d.m == nil {
		d.m = map[string]any{}
	}

	if _, ok := d.m[key]; ok {
		// overwrite in place, preserving the original position, to match Mongo behavior
		// of setting a key that already occurred earlier in the same literal.
		d.m[key] = value
		return nil
	}

	d.keys = append(d.keys, key)
	d.m[key] = value

	return nil
}

// validate checks the internal invariants of the document: keys and values must be
// in sync, with no duplicate or missing keys.
func (d *Document) validate() error {
	if d == nil || len(d.keys) == 0 {
		return nil
	}

	if len(d.keys) != len(d.m) {
		return fmt.Errorf("types.Document.validate: keys and values count mismatch: %d != %d", len(d.m), len(d.keys))
	}

	seen := make(map[string]struct{}, len(d.keys))
	for _, key := range d.keys {
		if _, ok := seen[key]; ok {
			return fmt.Errorf("types.Document.validate: duplicate key: %q", key)
		}
		seen[key] = struct{}{}

		v, ok := d.m[key]
		if !ok {
			return fmt.Errorf("types.Document.validate: key not found: %q", key)
		}

		if err := validateValue(v); err != nil {
			return fmt.Errorf("types.Document.validate: %w", err)
		}
	}

	return nil
}

// validateDocumentKey rejects keys that are structurally invalid everywhere in the engine.
//
// Top-level "$"-prefixed keys (other than the reference keys $ref, $id, $db) are rejected
// by ValidateData, not here; this function only enforces the universal constraints.
func validateDocumentKey(key string) error {
	if key == "" {
		return fmt.Errorf("types.validateDocumentKey: keys must not be empty")
	}

	if len(key) <= 2 && strings.HasPrefix(key, "$") && key != "$" {
		return fmt.Errorf("types.validateDocumentKey: short keys that start with '$' are not supported: %q", key)
	}

	return nil
}

// validateValue reports whether v is a valid scalar or composite Value.
func validateValue(v any) error {
	switch v.(type) {
	case *Document, *Array,
		float64, string, Binary, ObjectID, bool, time.Time, NullType,
		Regex, int32, Timestamp, int64, Decimal128,
		MinKeyType, MaxKeyType, UndefinedType:
		return nil
	default:
		return fmt.Errorf("types.validateValue: unsupported type: %T (%v)", v, v)
	}
}

// referenceKeys are top-level "$"-prefixed keys allowed in replacement documents (DBRef).
var referenceKeys = map[string]struct{}{"$ref": {}, "$id": {}, "$db": {}}

// ValidateData checks that the document is suitable to be stored as-is: top-level keys
// must not start with "$" except for the DBRef reference keys.
func (d *Document) ValidateData() error {
	if d == nil {
		return nil
	}

	for _, key := range d.keys {
		if strings.HasPrefix(key, "$") {
			if _, ok := referenceKeys[key]; !ok {
				return fmt.Errorf("types.Document.ValidateData: key %q is not valid, top-level keys cannot start with '$'", key)
			}
		}
	}

	return d.validate()
}

// Len returns the number of fields, it is safe to call it on nil Document.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}

	return len(d.keys)
}

// Map returns the underlying map, without a copy. It is an implementation detail
// used by encoding packages outside of this module's scope; business logic should
// use Get/Set/Iterator instead.
func (d *Document) Map() map[string]any {
	if d == nil {
		return nil
	}

	return d.m
}

// Keys returns the document's keys, in insertion order. It is safe to call it on nil Document.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}

	return d.keys
}

// Command returns the command name: the first key of the document, by wire
// protocol convention the command document's first field is always the command
// itself (its value is typically the target collection name or 1).
func (d *Document) Command() string {
	if d == nil || len(d.keys) == 0 {
		return ""
	}

	return d.keys[0]
}

// Has returns true if the given key is present in the document.
func (d *Document) Has(key string) bool {
	if d == nil {
		return false
	}

	_, ok := d.m[key]

	return ok
}

// Get returns a value for a given key, or an error if it's not found.
func (d *Document) Get(key string) (any, error) {
	if d != nil {
		if value, ok := d.m[key]; ok {
			return value, nil
		}
	}

	return nil, fmt.Errorf("types.Document.Get: key not found: %q", key)
}

// GetDefault returns a value for a given key, or fallback if it's not found.
func (d *Document) GetDefault(key string, fallback any) any {
	if d != nil {
		if value, ok := d.m[key]; ok {
			return value
		}
	}

	return fallback
}

// Set sets the value for a given key, appending a new field if the key is not already
// present, and overwriting the value at the existing position otherwise.
func (d *Document) Set(key string, value any) error {
	if d.frozen.Load() {
		panic("types.Document.Set: document is frozen")
	}

	return d.add(key, value)
}

// Remove removes the given key from the document, returning its value, or nil if the
// key was not present.
func (d *Document) Remove(key string) any {
	if d == nil {
		return nil
	}

	value, ok := d.m[key]
	if !ok {
		return nil
	}

	delete(d.m, key)

	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}

	return value
}

// ReplaceWith replaces the document's entire content with other's, preserving the
// original _id if other does not specify one explicitly (update replacement semantics,
// §4.5: a replacement document never changes _id unless the caller set a new one).
func (d *Document) ReplaceWith(other *Document) error {
	if d.frozen.Load() {
		panic("types.Document.ReplaceWith: document is frozen")
	}

	id, hadID := d.m["_id"]

	d.keys = d.keys[:0]
	d.m = make(map[string]any, other.Len()+1)

	if !other.Has("_id") && hadID {
		if err := d.add("_id", id); err != nil {
			return err
		}
	}

	for _, k := range other.Keys() {
		v, _ := other.Get(k)

		if err := d.add(k, deepCopy(v)); err != nil {
			return fmt.Errorf("types.Document.ReplaceWith: %w", err)
		}
	}

	return nil
}

// DeepCopy returns a deep copy of this Document.
func (d *Document) DeepCopy() *Document {
	if d == nil {
		return nil
	}

	return deepCopy(d).(*Document)
}

// deepCopy recursively copies composite values; scalars are copied by value already.
func deepCopy(v any) any {
	switch v := v.(type) {
	case *Document:
		if v == nil {
			return (*Document)(nil)
		}

		cp := &Document{
			keys:     append([]string(nil), v.keys...),
			m:        make(map[string]any, len(v.m)),
			recordID: v.recordID,
		}

		for k, val := range v.m {
			cp.m[k] = deepCopy(val)
		}

		return cp
	case *Array:
		if v == nil {
			return (*Array)(nil)
		}

		cp := &Array{s: make([]any, len(v.s))}
		for i, val := range v.s {
			cp.s[i] = deepCopy(val)
		}

		return cp
	default:
		return v
	}
}

// Freeze prevents further in-place modification of the document. It is called by
// storage backends right before a document is handed off to them, to detect
// accidental aliasing bugs where the handler keeps mutating a document the backend
// already owns.
func (d *Document) Freeze() {
	if d != nil {
		d.frozen.Store(true)
	}
}

// Frozen returns true if Freeze was called.
func (d *Document) Frozen() bool {
	return d != nil && d.frozen.Load()
}

// RecordID returns the internal record identifier assigned at insertion time, used by
// tailable cursors to resume after the last document they observed.
func (d *Document) RecordID() Timestamp {
	if d == nil {
		return Timestamp{}
	}

	return d.recordID
}

// SetRecordID sets the internal record identifier.
func (d *Document) SetRecordID(id Timestamp) {
	d.recordID = id
}

// String returns a string representation for logging purposes only.
func (d *Document) String() string {
	return FormatAnyValue(d)
}
