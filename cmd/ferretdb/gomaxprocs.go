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

package main

import (
	"math"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// setGOMAXPROCS adjusts GOMAXPROCS to the CPU quota visible to the process
// (cgroup limit in a container, physical core count otherwise), so the engine
// doesn't oversubscribe CPUs reserved by the scheduler.
func setGOMAXPROCS(logger *zap.Logger) {
	opts := []maxprocs.Option{
		maxprocs.Min(2),
		maxprocs.RoundQuotaFunc(func(v float64) int {
			return int(math.Ceil(v))
		}),
		maxprocs.Logger(func(format string, a ...any) {
			logger.Sugar().Infof(format, a...)
		}),
	}

	if _, err := maxprocs.Set(opts...); err != nil {
		logger.Warn("Failed to set GOMAXPROCS", zap.Error(err))
	}
}
