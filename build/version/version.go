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

// Package version provides information about the current build.
package version

import (
	"runtime"
	runtimedebug "runtime/debug"

	"github.com/FerretDB/FerretDB/internal/util/debugbuild"
)

// Info provides details about the current build.
//
//nolint:vet // for readability
type Info struct {
	Version          string
	Commit           string
	Branch           string
	Dirty            bool
	DebugBuild       bool
	BuildEnvironment map[string]string
}

// unknown is a placeholder for unknown version, commit, and branch values.
const unknown = "unknown"

// info is the shared instance returned by Get.
var info = buildInfo()

// Get returns the current build's info.
//
// It returns a shared instance without any synchronization; callers must not mutate it.
func Get() *Info {
	return info
}

func buildInfo() *Info {
	res := &Info{
		Version:    unknown,
		Commit:     unknown,
		Branch:     unknown,
		DebugBuild: debugbuild.Enabled,
		BuildEnvironment: map[string]string{
			"go.runtime": runtime.Version(),
		},
	}

	bi, ok := runtimedebug.ReadBuildInfo()
	if !ok {
		return res
	}

	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		res.Version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		if s.Value == "" {
			continue
		}

		res.BuildEnvironment[s.Key] = s.Value

		switch s.Key {
		case "vcs.revision":
			res.Commit = s.Value
		case "vcs.modified":
			res.Dirty = s.Value == "true"
		}
	}

	return res
}
