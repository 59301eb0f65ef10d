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

// Package state provides access to the process's persistent state, shared across
// restarts via a small JSON file on disk.
package state

import "time"

// State represents the process's persistent state.
//
//nolint:vet // for readability
type State struct {
	UUID  string
	Start time.Time

	// BackendName and BackendVersion describe the storage backend currently in use;
	// empty until the first connection is established.
	BackendName    string
	BackendVersion string

	// Telemetry is nil while undecided, otherwise the user's reported opt-in/opt-out choice.
	Telemetry *bool

	LatestVersion   string
	UpdateInfo      string
	UpdateAvailable bool
}

// deepCopy returns a deep copy of s.
func (s *State) deepCopy() *State {
	if s == nil {
		return nil
	}

	c := *s

	if s.Telemetry != nil {
		t := *s.Telemetry
		c.Telemetry = &t
	}

	return &c
}
