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

// Package ctxutil provides context-related utilities.
package ctxutil

import (
	"context"
	"math/rand"
	"time"
)

// minJitter is the minimum duration DurationWithJitter can return.
const minJitter = 3 * time.Millisecond

// DurationWithJitter returns a random duration in [3ms, cap], growing with attempt
// (1-indexed) so that repeated retries back off exponentially instead of colliding.
//
// cap must be greater than the minimum jitter of 3ms; it panics otherwise.
func DurationWithJitter(cap time.Duration, attempt int64) time.Duration {
	if cap <= minJitter {
		panic("ctxutil.DurationWithJitter: cap must be greater than 3ms")
	}

	if attempt < 1 {
		attempt = 1
	}

	backoff := minJitter
	for i := int64(0); i < attempt && backoff < cap; i++ {
		backoff *= 2
	}

	if backoff > cap {
		backoff = cap
	}

	return minJitter + time.Duration(rand.Int63n(int64(backoff-minJitter)+1))
}

// Sleep blocks for d, or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
