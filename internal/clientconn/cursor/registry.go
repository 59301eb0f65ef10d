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

package cursor

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/debugbuild"
)

// Parts of Prometheus metric names.
const (
	namespace = "ferretdb"
	subsystem = "cursors"
)

// Global last cursor ID.
var lastCursorID atomic.Uint32

func init() {
	// to make debugging easier
	if !debugbuild.Enabled {
		lastCursorID.Store(rand.Uint32())
	}
}

// DefaultIdleTimeout is the duration a Normal cursor may go unread before the
// registry's reaper closes it, matching MongoDB's default cursor idle timeout.
const DefaultIdleTimeout = 10 * time.Minute

// reapInterval is how often the registry scans for idle cursors.
const reapInterval = 1 * time.Minute

// Registry stores cursors.
//
// TODO better cleanup (?), more metrics https://github.com/FerretDB/FerretDB/issues/2862
//
//nolint:vet // for readability
type Registry struct {
	rw sync.RWMutex
	m  map[int64]*Cursor

	l  *zap.Logger
	wg sync.WaitGroup

	idleTimeout time.Duration
	stop        chan struct{}
	stopOnce    sync.Once

	created  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	reaped   prometheus.Counter
}

// NewRegistry creates a new Registry.
//
// The returned registry runs a background goroutine that closes Normal cursors
// that have not been read from (via Next) for longer than DefaultIdleTimeout.
// Tailable and TailableAwait cursors are exempt, as long-lived tailing is their
// normal mode of operation. Close stops this goroutine.
func NewRegistry(l *zap.Logger) *Registry {
	r := &Registry{
		m:           map[int64]*Cursor{},
		l:           l,
		idleTimeout: DefaultIdleTimeout,
		stop:        make(chan struct{}),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "created_total",
				Help:      "Total number of cursors created.",
			},
			[]string{"db", "collection", "username"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "Cursors lifetime in seconds.",
				Buckets: []float64{
					1 * time.Millisecond.Seconds(),
					5 * time.Millisecond.Seconds(),
					10 * time.Millisecond.Seconds(),
					25 * time.Millisecond.Seconds(),
					50 * time.Millisecond.Seconds(),
					100 * time.Millisecond.Seconds(),
					250 * time.Millisecond.Seconds(),
					500 * time.Millisecond.Seconds(),
					1000 * time.Millisecond.Seconds(),
					2500 * time.Millisecond.Seconds(),
					5000 * time.Millisecond.Seconds(),
					10000 * time.Millisecond.Seconds(),
				},
			},
			[]string{"db", "collection", "username"},
		),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reaped_total",
			Help:      "Total number of cursors closed for being idle too long.",
		}),
	}

	r.wg.Add(1)

	go r.runReaper()

	return r
}

// runReaper periodically closes cursors that have been idle for longer than
// r.idleTimeout, until Close is called.
func (r *Registry) runReaper() {
	defer r.wg.Done()

	t := time.NewTicker(reapInterval)
	defer t.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			r.reapIdle()
		}
	}
}

// reapIdle closes every Normal cursor that has been idle for longer than r.idleTimeout.
func (r *Registry) reapIdle() {
	for _, c := range r.All() {
		if c.Type != Normal {
			continue
		}

		if c.idleSince() < r.idleTimeout {
			continue
		}

		r.l.Debug(
			"Reaping idle cursor",
			zap.Int64("id", c.ID),
			zap.Duration("idle", c.idleSince()),
		)

		r.reaped.Inc()

		c.Close()
	}
}

// Close stops the idle-cursor reaper and waits for all cursors to be closed.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	// we mainly do that for tests; see https://github.com/uber-go/zap/issues/687

	r.wg.Wait()
}

// NewCursorParams represent parameters for NewCursor.
//
//nolint:vet // for readability
type NewCursorParams struct {
	Iter         types.DocumentsIterator
	DB           string
	Collection   string
	Username     string
	Type         Type
	ShowRecordID bool
}

// NewCursor creates and stores a new cursor.
//
// The cursor will be closed automatically when a given context is canceled,
// even if the cursor is not being used at that time.
func (r *Registry) NewCursor(ctx context.Context, params *NewCursorParams) *Cursor {
	r.rw.Lock()
	defer r.rw.Unlock()

	// use global, sequential, positive, short cursor IDs to make debugging easier
	var id int64
	for id == 0 || r.m[id] != nil {
		id = int64(lastCursorID.Add(1))
	}

	r.l.Debug(
		"Creating",
		zap.Int64("id", id),
		zap.String("db", params.DB),
		zap.String("collection", params.Collection),
	)

	r.created.WithLabelValues(params.DB, params.Collection, params.Username).Inc()

	c := newCursor(id, params.Iter, params, r)
	r.m[id] = c

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closed:
		}
	}()

	return c
}

// Get returns stored cursor by ID, or nil.
func (r *Registry) Get(id int64) *Cursor {
	r.rw.RLock()
	defer r.rw.RUnlock()

	return r.m[id]
}

// All returns a shallow copy of all stored cursors.
func (r *Registry) All() []*Cursor {
	r.rw.RLock()
	defer r.rw.RUnlock()

	return maps.Values(r.m)
}

// This method should be called only from cursor.Close().
func (r *Registry) delete(c *Cursor) {
	r.rw.Lock()
	defer r.rw.Unlock()

	d := time.Since(c.created)
	r.l.Debug(
		"Deleting",
		zap.Int("total", len(r.m)),
		zap.Int64("id", c.ID),
		zap.Duration("duration", d),
	)

	r.duration.WithLabelValues(c.DB, c.Collection, c.Username).Observe(d.Seconds())

	delete(r.m, c.ID)
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.created.Describe(ch)
	r.duration.Describe(ch)
	r.reaped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.created.Collect(ch)
	r.duration.Collect(ch)
	r.reaped.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Registry)(nil)
)
