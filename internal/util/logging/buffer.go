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

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

// defaultRecentEntriesSize is used when NewHandlerOpts.recentEntriesSize is zero.
const defaultRecentEntriesSize = 1024

// circularBuffer keeps the last N records, discarding the oldest ones once full.
type circularBuffer struct {
	mu      sync.Mutex
	size    int
	entries []*slog.Record
}

// newCircularBuffer creates a circularBuffer holding up to size entries.
func newCircularBuffer(size int) *circularBuffer {
	return &circularBuffer{size: size}
}

// add appends r, evicting the oldest entry if the buffer is full.
func (b *circularBuffer) add(r *slog.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, r)

	if len(b.entries) > b.size {
		b.entries = b.entries[len(b.entries)-b.size:]
	}
}

// get returns a copy of the currently buffered entries, oldest first.
func (b *circularBuffer) get() []*slog.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := make([]*slog.Record, len(b.entries))
	copy(res, b.entries)

	return res
}

// Handler wraps another [slog.Handler], additionally keeping a bounded history of
// Info-level-and-above records for the `getLog` diagnostic command.
type Handler struct {
	slog.Handler
	recentEntries *circularBuffer
}

// Handle implements [slog.Handler].
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.recentEntries != nil && r.Level >= slog.LevelInfo {
		cp := r.Clone()
		h.recentEntries.add(&cp)
	}

	return h.Handler.Handle(ctx, r)
}

// recentEntries is populated by Setup; it is nil until then.
var globalRecentEntries *circularBuffer

// Setup creates the default logger: a [Handler] wrapping the console/text/json base
// handler built from opts, installed via [slog.SetDefault].
//
// If name is not empty, all records logged through the default logger get an
// additional "name" attribute.
func Setup(opts *NewHandlerOpts, name string) {
	if opts == nil {
		opts = new(NewHandlerOpts)
	}

	size := opts.recentEntriesSize
	if size == 0 {
		size = defaultRecentEntriesSize
	}

	rb := newCircularBuffer(size)
	globalRecentEntries = rb

	h := &Handler{Handler: NewHandler(os.Stderr, opts), recentEntries: rb}

	l := slog.New(h)
	if name != "" {
		l = WithName(l, name)
	}

	slog.SetDefault(l)
}

// recentEntriesAccessor exposes the buffered log history to command handlers.
type recentEntriesAccessor struct{}

// RecentEntries is the `getLog`/`global` data source: the most recent Info-and-above
// log records, each rendered as a compact JSON line, oldest first.
var RecentEntries recentEntriesAccessor

// Get returns the currently buffered entries as JSON lines.
func (recentEntriesAccessor) Get() []string {
	if globalRecentEntries == nil {
		return nil
	}

	records := globalRecentEntries.get()
	lines := make([]string, len(records))

	for i, r := range records {
		m := map[string]any{
			"msg": r.Message,
			"s":   levelCode(r.Level),
			"t": map[string]string{
				"$date": r.Time.UTC().Format("2006-01-02T15:04:05.999Z07:00"),
			},
		}

		b, err := json.Marshal(m)
		if err != nil {
			continue
		}

		lines[i] = string(b)
	}

	return lines
}

// levelCode maps a slog level to the single-letter severity code used by the
// getLog/startupWarnings JSON line format.
func levelCode(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "E"
	case l >= slog.LevelWarn:
		return "W"
	case l >= slog.LevelInfo:
		return "I"
	default:
		return "D"
	}
}
