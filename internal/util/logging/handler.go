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

// Package logging provides structured logging handlers built on top of log/slog.
package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NewHandlerOpts represent [NewHandler] options.
type NewHandlerOpts struct {
	// Level is the minimum level to log; nil means [slog.LevelInfo].
	Level slog.Leveler

	// Base is the handler's rendering format: "console", "text", or "json".
	Base string

	// RemoveTime removes the time attribute; used by tests for deterministic output.
	RemoveTime bool

	// RemoveLevel removes the level attribute.
	RemoveLevel bool

	// RemoveSource removes the source attribute.
	RemoveSource bool

	// CheckMessages asserts that every logged message is empty (used by tests that
	// only want to exercise value rendering, not message formatting) and, in doing so,
	// also omits the message attribute entirely instead of rendering it as "msg":"".
	CheckMessages bool

	// recentEntriesSize overrides the default capacity of the buffer Setup keeps for
	// RecentEntries; zero means defaultRecentEntriesSize.
	recentEntriesSize int
}

// NewHandler creates a new [slog.Handler] that writes to w using one of the three
// base rendering formats.
func NewHandler(w io.Writer, opts *NewHandlerOpts) slog.Handler {
	if opts == nil {
		opts = new(NewHandlerOpts)
	}

	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey:
			if len(groups) == 0 && opts.RemoveTime {
				return slog.Attr{}
			}
		case slog.LevelKey:
			if len(groups) == 0 && opts.RemoveLevel {
				return slog.Attr{}
			}
		case slog.SourceKey:
			if len(groups) == 0 {
				if opts.RemoveSource {
					return slog.Attr{}
				}

				if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
					short := *src
					short.File = shortPath(short.File)
					a.Value = slog.AnyValue(&short)
				}
			}
		case slog.MessageKey:
			if len(groups) == 0 && opts.CheckMessages {
				return slog.Attr{}
			}
		}

		return a
	}

	ho := &slog.HandlerOptions{
		Level:       level,
		AddSource:   !opts.RemoveSource,
		ReplaceAttr: replace,
	}

	switch opts.Base {
	case "text":
		return &checkingHandler{Handler: slog.NewTextHandler(w, ho), check: opts.CheckMessages}
	case "json":
		return &checkingHandler{Handler: slog.NewJSONHandler(w, ho), check: opts.CheckMessages}
	case "console":
		return newConsoleHandler(w, opts)
	default:
		panic(fmt.Sprintf("logging.NewHandler: unknown base %q", opts.Base))
	}
}

// checkingHandler wraps another handler, panicking if CheckMessages is set and a
// non-empty message reaches it; this mirrors consoleHandler's enforcement for the
// text and json bases.
type checkingHandler struct {
	slog.Handler
	check bool
}

// Handle implements slog.Handler.
func (h *checkingHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.check && r.Message != "" {
		panic(fmt.Sprintf("logging: unexpected non-empty message %q with CheckMessages", r.Message))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *checkingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &checkingHandler{Handler: h.Handler.WithAttrs(attrs), check: h.check}
}

// WithGroup implements slog.Handler.
func (h *checkingHandler) WithGroup(name string) slog.Handler {
	return &checkingHandler{Handler: h.Handler.WithGroup(name), check: h.check}
}

// dynamicWriter lets consoleHandler redirect the inner JSON handler's output to a
// fresh buffer on every call, so attributes can be rendered separately from the
// time/level/source/message prefix.
type dynamicWriter struct {
	buf *bytes.Buffer
}

// Write implements io.Writer.
func (w *dynamicWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// consoleHandler renders records as tab-separated "time level source message attrs"
// lines, with attrs rendered as a single compact JSON object - similar to zap's
// console encoder, but built directly on slog so that the same Attrs/groups logic is
// shared with the text and json bases.
type consoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	dw    *dynamicWriter
	inner slog.Handler

	removeTime, removeLevel, removeSource bool
	check                                  bool
}

// newConsoleHandler creates a new consoleHandler.
func newConsoleHandler(w io.Writer, opts *NewHandlerOpts) *consoleHandler {
	dw := &dynamicWriter{buf: new(bytes.Buffer)}

	replace := func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 {
			switch a.Key {
			case slog.TimeKey, slog.LevelKey, slog.SourceKey, slog.MessageKey:
				return slog.Attr{}
			}
		}

		return a
	}

	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	inner := slog.NewJSONHandler(dw, &slog.HandlerOptions{Level: level, ReplaceAttr: replace})

	return &consoleHandler{
		mu:           new(sync.Mutex),
		w:            w,
		dw:           dw,
		inner:        inner,
		removeTime:   opts.RemoveTime,
		removeLevel:  opts.RemoveLevel,
		removeSource: opts.RemoveSource,
		check:        opts.CheckMessages,
	}
}

// Enabled implements slog.Handler.
func (h *consoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.check && r.Message != "" {
		panic(fmt.Sprintf("logging: unexpected non-empty message %q with CheckMessages", r.Message))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.dw.buf.Reset()

	attrsOnly := slog.NewRecord(time.Time{}, r.Level, "", 0)

	r.Attrs(func(a slog.Attr) bool {
		attrsOnly.AddAttrs(a)
		return true
	})

	if err := h.inner.Handle(ctx, attrsOnly); err != nil {
		return err
	}

	line := bytes.TrimRight(h.dw.buf.Bytes(), "\n")

	parts := make([]string, 0, 5)

	if !h.removeTime && !r.Time.IsZero() {
		parts = append(parts, r.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	}

	if !h.removeLevel {
		parts = append(parts, r.Level.String())
	}

	if !h.removeSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()

		if f.File != "" {
			parts = append(parts, shortPath(f.File)+":"+strconv.Itoa(f.Line))
		}
	}

	parts = append(parts, r.Message, string(line))

	_, err := fmt.Fprintln(h.w, strings.Join(parts, "\t"))

	return err
}

// WithAttrs implements slog.Handler.
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithAttrs(attrs)

	return &cp
}

// WithGroup implements slog.Handler.
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithGroup(name)

	return &cp
}

// shortPath shortens a full source file path to its last directory component plus
// the file name, for compact console output.
func shortPath(file string) string {
	dir, base := path.Split(file)
	dir = strings.TrimSuffix(dir, "/")

	if dir == "" {
		return base
	}

	return path.Base(dir) + "/" + base
}

// WithName returns a logger with an additional "name" attribute, identifying the
// component or subsystem that is logging (for example, a collection or backend name).
func WithName(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String("name", name))
}
