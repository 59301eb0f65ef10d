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
	"regexp"
	"strings"
)

// Regex represents BSON scalar type regular expression.
type Regex struct {
	Pattern string
	Options string
}

// knownOptions are the regex flags the matcher understands; order does not matter.
const knownOptions = "imsx"

// Compile translates a MongoDB regular expression value into a Go regexp.
//
// Supported options are i (case-insensitive), m (multiline), s (dot matches newline),
// and x (extended, whitespace and # comments ignored). Unsupported options are rejected.
func (r Regex) Compile() (*regexp.Regexp, error) {
	for _, o := range r.Options {
		if !strings.ContainsRune(knownOptions, o) {
			return nil, fmt.Errorf("types.Regex.Compile: unsupported regex option %q", string(o))
		}
	}

	pattern := r.Pattern
	if r.Options != "" {
		pattern = "(?" + r.Options + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("types.Regex.Compile: %w", err)
	}

	return re, nil
}
