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
)

// PathDelimiter separates path fragments in a dotted path string, such as "a.b.0.c".
const PathDelimiter = "."

// PositionalFragment is the placeholder fragment resolved against the query matcher's
// match position (the "$" positional operator, §4.2).
const PositionalFragment = "$"

// Path is a non-empty sequence of fragments, where a fragment is either a field name or
// (when the current value is an array) a non-negative integer index.
//
//nolint:vet // for readability
type Path struct {
	s []string
}

// NewPathFromString parses a dotted path string into a Path.
//
// It rejects empty paths, paths starting or ending with the delimiter, paths containing
// an empty fragment (consecutive delimiters), and paths with more than two positional
// ($) fragments.
func NewPathFromString(s string) (Path, error) {
	if s == "" {
		return Path{}, newFieldPathError(40353, "FieldPath cannot be constructed with empty string")
	}

	if strings.HasPrefix(s, PathDelimiter) || strings.HasSuffix(s, PathDelimiter) {
		return Path{}, newFieldPathError(40353, fmt.Sprintf("FieldPath must not start or end with '.': %q", s))
	}

	fragments := strings.Split(s, PathDelimiter)

	return NewPath(fragments...)
}

// NewPath creates a Path from already-split fragments, validating them the same way
// NewPathFromString does.
func NewPath(fragments ...string) (Path, error) {
	if len(fragments) == 0 {
		return Path{}, newFieldPathError(40353, "FieldPath cannot be constructed with empty string")
	}

	var dollarCount int

	for _, f := range fragments {
		if f == "" {
			return Path{}, newFieldPathError(15998, "FieldPath field names may not be empty strings")
		}

		if f == PositionalFragment {
			dollarCount++
		}
	}

	if dollarCount > 2 {
		return Path{}, newFieldPathError(40353, "too many positional ($) elements found in path")
	}

	return Path{s: append([]string(nil), fragments...)}, nil
}

// NewStaticPath is NewPath for callers that already know the fragments are valid
// (for example, field names produced programmatically by the aggregation pipeline).
// It panics if they are not.
func NewStaticPath(fragments ...string) Path {
	p, err := NewPath(fragments...)
	if err != nil {
		panic(err)
	}

	return p
}

// fieldPathError is a FieldPath-class error carrying a stable numeric code (§4.2, §7).
type fieldPathError struct {
	code int
	msg  string
}

// newFieldPathError constructs a fieldPathError.
func newFieldPathError(code int, msg string) error {
	return &fieldPathError{code: code, msg: msg}
}

// Error implements error.
func (e *fieldPathError) Error() string {
	return fmt.Sprintf("types.FieldPath (%d): %s", e.code, e.msg)
}

// Code returns the stable numeric error code.
func (e *fieldPathError) Code() int {
	return e.code
}

// Len returns the number of fragments.
func (p Path) Len() int {
	return len(p.s)
}

// Slice returns a copy of the path's fragments.
func (p Path) Slice() []string {
	return append([]string(nil), p.s...)
}

// String joins the path's fragments back with the path delimiter.
func (p Path) String() string {
	return strings.Join(p.s, PathDelimiter)
}

// First returns the first fragment.
func (p Path) First() string {
	return p.s[0]
}

// Last returns the last fragment.
func (p Path) Last() string {
	return p.s[len(p.s)-1]
}

// TrimSuffix returns the path without its last fragment.
func (p Path) TrimSuffix() Path {
	return Path{s: p.s[:len(p.s)-1]}
}

// TrimPrefix returns the path without its first fragment.
func (p Path) TrimPrefix() Path {
	return Path{s: p.s[1:]}
}

// Suffix returns the path without its first fragment (alias kept for readability
// at call sites that read "the rest of the path after the first fragment").
func (p Path) Suffix() Path {
	return p.TrimPrefix()
}

// HasPrefix returns true if prefix's fragments are a prefix of p's fragments.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.Len() > p.Len() {
		return false
	}

	for i := 0; i < prefix.Len(); i++ {
		if p.s[i] != prefix.s[i] {
			return false
		}
	}

	return true
}

// Equal returns true if both paths have identical fragments.
func (p Path) Equal(other Path) bool {
	if p.Len() != other.Len() {
		return false
	}

	for i := range p.s {
		if p.s[i] != other.s[i] {
			return false
		}
	}

	return true
}

// CommonPrefix returns the longest common prefix of two paths, as a fragment count.
func CommonPrefix(a, b Path) int {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}

	for i := 0; i < n; i++ {
		if a.s[i] != b.s[i] {
			return i
		}
	}

	return n
}

// ShorterPrefix returns true and the shorter path if one of a, b is a fragment-wise
// prefix of the other (used by the update engine's conflict detection, §4.5).
func ShorterPrefix(a, b Path) (Path, bool) {
	switch {
	case a.HasPrefix(b):
		return b, true
	case b.HasPrefix(a):
		return a, true
	default:
		return Path{}, false
	}
}

// resolvePositional replaces every PositionalFragment in the path with strconv.Itoa(index).
//
// It is called internally by Get/Set/Remove when traversal reaches a "$" fragment. index
// is supplied by the caller (typically the collection manager, forwarding the query
// matcher's recorded match position) rather than through a thread-local, per the design
// notes (§9): there is no ambient state here.
func resolvePositional(path Path, index int) (Path, error) {
	var hasPositional bool

	for _, f := range path.s {
		if f == PositionalFragment {
			hasPositional = true
			break
		}
	}

	if !hasPositional {
		return path, nil
	}

	if index < 0 {
		return Path{}, newBadValueError("The positional operator did not find the match needed from the query")
	}

	resolved := make([]string, len(path.s))

	for i, f := range path.s {
		if f == PositionalFragment {
			resolved[i] = strconv.Itoa(index)
		} else {
			resolved[i] = f
		}
	}

	return Path{s: resolved}, nil
}

// badValueError is a minimal local stand-in for the handler-level BadValue error so that
// the types package does not import the error registry (which itself depends on types).
type badValueError struct{ msg string }

func newBadValueError(msg string) error { return &badValueError{msg: msg} }
func (e *badValueError) Error() string  { return e.msg }

// IsBadValue returns true if err originates from a path traversal BadValue condition,
// so that the handler layer can map it to handlererrors.ErrBadValue.
func IsBadValue(err error) bool {
	_, ok := err.(*badValueError) //nolint:errorlint // sentinel-style local error
	return ok
}

// pathNotViableError reports that a path traverses into (or through) a scalar.
type pathNotViableError struct{ msg string }

func newPathNotViableError(msg string) error { return &pathNotViableError{msg: msg} }
func (e *pathNotViableError) Error() string  { return e.msg }

// IsPathNotViable returns true if err originates from a PathNotViable condition.
func IsPathNotViable(err error) bool {
	_, ok := err.(*pathNotViableError) //nolint:errorlint // sentinel-style local error
	return ok
}

// getByPath is the unexported low-level traversal shared by GetByPath and HasByPath.
//
// It does not fan out over arrays by field name: if an array is indexed with a
// non-numeric fragment, that's an error, matching Get's "strict" semantics.
func getByPath(doc any, fragments ...string) (any, error) {
	if len(fragments) == 0 {
		return doc, nil
	}

	fragment := fragments[0]
	rest := fragments[1:]

	switch v := doc.(type) {
	case *Document:
		value, err := v.Get(fragment)
		if err != nil {
			return nil, fmt.Errorf("types.getByPath: %w", err)
		}

		return getByPath(value, rest...)
	case *Array:
		index, err := strconv.Atoi(fragment)
		if err != nil {
			return nil, fmt.Errorf("types.getByPath: %w", err)
		}

		value, err := v.Get(index)
		if err != nil {
			return nil, fmt.Errorf("types.getByPath: %w", err)
		}

		return getByPath(value, rest...)
	default:
		return nil, fmt.Errorf("types.getByPath: can't access %T by path %q", doc, fragment)
	}
}

// GetByPath returns the value at path, or an error describing why it could not be
// reached (missing key, out-of-bounds index, or traversal into a scalar).
func (d *Document) GetByPath(path ...string) (any, error) {
	return getByPath(d, path...)
}

// HasByPath reports whether path can be fully traversed on the document.
func (d *Document) HasByPath(path ...string) bool {
	_, err := getByPath(d, path...)
	return err == nil
}

// Get returns the value at p, or Missing if any fragment along the way does not exist.
//
// Unlike GetByPath, Get never returns an error for "not found" - only Missing - because
// it implements the total function described in §4.2; genuine structural problems (for
// example, indexing an array by a non-numeric fragment) still surface as an error.
func Get(doc *Document, p Path) (any, error) {
	return get(doc, p.s)
}

func get(cur any, fragments []string) (any, error) {
	if len(fragments) == 0 {
		return cur, nil
	}

	fragment := fragments[0]
	rest := fragments[1:]

	switch v := cur.(type) {
	case *Document:
		value, err := v.Get(fragment)
		if err != nil {
			return Missing, nil
		}

		return get(value, rest)
	case *Array:
		index, err := strconv.Atoi(fragment)
		if err != nil {
			return Missing, newPathNotViableError(fmt.Sprintf("cannot use non-numeric path %q on an array", fragment))
		}

		value, err := v.Get(index)
		if err != nil {
			return Missing, nil
		}

		return get(value, rest)
	default:
		// scalar: further traversal always yields Missing, per §4.2
		return Missing, nil
	}
}

// GetCollectionAware is Get, except that indexing an Array with a non-numeric fragment
// fans out: the fragment is looked up on every Document element of the array, and the
// non-Missing results are collected into a new Array (§4.2, §9 "array fan-out").
func GetCollectionAware(doc *Document, p Path) (any, error) {
	return getCollectionAware(doc, p.s)
}

func getCollectionAware(cur any, fragments []string) (any, error) {
	if len(fragments) == 0 {
		return cur, nil
	}

	fragment := fragments[0]
	rest := fragments[1:]

	switch v := cur.(type) {
	case *Document:
		value, err := v.Get(fragment)
		if err != nil {
			return Missing, nil
		}

		return getCollectionAware(value, rest)
	case *Array:
		if index, err := strconv.Atoi(fragment); err == nil {
			value, err := v.Get(index)
			if err != nil {
				return Missing, nil
			}

			return getCollectionAware(value, rest)
		}

		result := MakeArray(v.Len())

		for i := 0; i < v.Len(); i++ {
			elem, _ := v.Get(i)

			sub, err := getCollectionAware(elem, fragments)
			if err != nil {
				return Missing, err
			}

			if _, isMissing := sub.(MissingType); isMissing {
				continue
			}

			_ = result.Append(sub)
		}

		return result, nil
	default:
		return Missing, nil
	}
}

// Has reports whether path resolves to a value other than Missing.
func Has(doc *Document, p Path) bool {
	v, err := Get(doc, p)
	if err != nil {
		return false
	}

	_, isMissing := v.(MissingType)

	return !isMissing
}

// Set writes value at path, creating intermediate Documents as needed.
//
// Setting through an array requires a numeric fragment (or the resolved positional
// placeholder); a numeric index beyond the current length pads the array with Null.
// Traversing into a scalar with fragments still remaining fails with PathNotViable.
func Set(doc *Document, p Path, value any, positionalIndex int) error {
	resolved, err := resolvePositional(p, positionalIndex)
	if err != nil {
		return err
	}

	return setFragments(doc, resolved.s, value)
}

func setFragments(doc *Document, fragments []string, value any) error {
	if len(fragments) == 0 {
		panic("types.Set: empty path")
	}

	fragment := fragments[0]

	if len(fragments) == 1 {
		return doc.Set(fragment, value)
	}

	rest := fragments[1:]

	existing, has := doc.Map()[fragment]
	if !has {
		child, err := NewDocument()
		if err != nil {
			return err
		}

		if err = setInto(child, rest, value); err != nil {
			return err
		}

		return doc.Set(fragment, child)
	}

	return setInto(existing, rest, value)
}

// setInto dispatches Set's recursion depending on the current node's type.
func setInto(cur any, fragments []string, value any) error {
	switch v := cur.(type) {
	case *Document:
		return setFragments(v, fragments, value)
	case *Array:
		fragment := fragments[0]

		index, err := strconv.Atoi(fragment)
		if err != nil {
			return newPathNotViableError(fmt.Sprintf("cannot use the part (%s) of (%s) to traverse the element", fragment, fragment))
		}

		v.PadWithNulls(index + 1)

		if len(fragments) == 1 {
			return v.Set(index, value)
		}

		elem, _ := v.Get(index)

		child, isDoc := elem.(*Document)
		if !isDoc {
			child = MustNewDocument()

			if err = v.Set(index, child); err != nil {
				return err
			}
		}

		return setFragments(child, fragments[1:], value)
	default:
		return newPathNotViableError(fmt.Sprintf("Cannot create field in element {%v}", cur))
	}
}

// Remove deletes the value at path and returns it, or Missing if nothing was there.
func Remove(doc *Document, p Path) any {
	return removeFragments(doc, p.s)
}

// RemoveByPath is a convenience wrapper accepting already-split string fragments,
// discarding the removed value; non-existent intermediate elements are silently
// tolerated, matching the "not found, no error" semantics exercised by regression tests.
func (d *Document) RemoveByPath(path ...string) {
	removeFragments(d, path)
}

func removeFragments(cur any, fragments []string) any {
	if len(fragments) == 0 {
		return Missing
	}

	fragment := fragments[0]

	switch v := cur.(type) {
	case *Document:
		if len(fragments) == 1 {
			if !v.Has(fragment) {
				return Missing
			}

			return v.Remove(fragment)
		}

		child, err := v.Get(fragment)
		if err != nil {
			return Missing
		}

		return removeFragments(child, fragments[1:])
	case *Array:
		index, err := strconv.Atoi(fragment)
		if err != nil {
			// a name fragment against an array fans out: remove it from every
			// Document element, matching get/set's fan-out semantics.
			for i := 0; i < v.Len(); i++ {
				elem, _ := v.Get(i)
				removeFragments(elem, fragments)
			}

			return Missing
		}

		if index < 0 || index >= v.Len() {
			return Missing
		}

		if len(fragments) == 1 {
			elem, _ := v.Get(index)
			v.RemoveByIndex(index)

			return elem
		}

		child, _ := v.Get(index)

		return removeFragments(child, fragments[1:])
	default:
		return Missing
	}
}

// CanFullyTraverseForRename reports whether every fragment but the last can be resolved
// to a Document, i.e. whether $rename could set a value at this path without creating
// new intermediate structure. $rename (unlike $set) never creates missing parents.
func CanFullyTraverseForRename(doc *Document, p Path) bool {
	cur := any(doc)

	for _, fragment := range p.s[:p.Len()-1] {
		d, ok := cur.(*Document)
		if !ok {
			return false
		}

		value, err := d.Get(fragment)
		if err != nil {
			return false
		}

		cur = value
	}

	_, ok := cur.(*Document)

	return ok
}

// Copy copies the value at path from src to dst, creating intermediate structure in dst
// as Set would. It is a no-op if the source path does not exist.
func Copy(src, dst *Document, p Path) error {
	value, err := Get(src, p)
	if err != nil {
		return err
	}

	if _, isMissing := value.(MissingType); isMissing {
		return nil
	}

	return Set(dst, p, deepCopy(value), -1)
}
