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

// Package memory provides the reference in-memory backends.Backend implementation:
// all databases, collections, and documents live in process memory and are lost on restart.
//
// It exists to exercise the engine (internal/types, internal/matcher, internal/update,
// internal/aggregations) end to end without depending on any external storage system,
// matching §6's "the core never assumes persistence" backend contract.
package memory

import (
	"context"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/FerretDB/FerretDB/internal/backends"
	"github.com/FerretDB/FerretDB/internal/util/state"
)

// backendVersion is reported as backends.Backend's storage engine version.
const backendVersion = "0.1.0"

// backend implements backends.Backend.
type backend struct {
	l  *zap.Logger
	sp *state.Provider

	rw  sync.RWMutex
	dbs map[string]*database
}

// NewBackendParams represents the parameters of NewBackend.
//
//nolint:vet // for readability
type NewBackendParams struct {
	L *zap.Logger
	P *state.Provider
}

// NewBackend creates a new in-memory backend.
func NewBackend(params *NewBackendParams) (backends.Backend, error) {
	b := &backend{
		l:   params.L,
		sp:  params.P,
		dbs: map[string]*database{},
	}

	if b.sp != nil {
		if err := b.sp.Update(func(s *state.State) {
			s.BackendName = "Memory"
			s.BackendVersion = backendVersion
		}); err != nil {
			return nil, err
		}
	}

	return backends.BackendContract(b), nil
}

// Close implements backends.Backend.
func (b *backend) Close() {}

// Name implements backends.Backend.
func (b *backend) Name() string {
	return "memory"
}

// Status implements backends.Backend.
func (b *backend) Status(ctx context.Context, params *backends.StatusParams) (*backends.StatusResult, error) {
	b.rw.RLock()
	defer b.rw.RUnlock()

	var res backends.StatusResult

	for _, db := range b.dbs {
		db.rw.RLock()
		res.CountCollections += int64(len(db.colls))
		db.rw.RUnlock()
	}

	return &res, nil
}

// Database implements backends.Backend.
func (b *backend) Database(name string) (backends.Database, error) {
	b.rw.Lock()
	defer b.rw.Unlock()

	db, ok := b.dbs[name]
	if !ok {
		db = newDatabase(b, name)
		b.dbs[name] = db
	}

	return db, nil
}

// ListDatabases implements backends.Backend.
func (b *backend) ListDatabases(ctx context.Context, params *backends.ListDatabasesParams) (*backends.ListDatabasesResult, error) {
	b.rw.RLock()
	defer b.rw.RUnlock()

	res := new(backends.ListDatabasesResult)

	for name, db := range b.dbs {
		if params != nil && params.Name != "" && params.Name != name {
			continue
		}

		db.rw.RLock()
		empty := len(db.colls) == 0
		db.rw.RUnlock()

		if empty {
			continue
		}

		res.Databases = append(res.Databases, backends.DatabaseInfo{Name: name})
	}

	return res, nil
}

// DropDatabase implements backends.Backend.
func (b *backend) DropDatabase(ctx context.Context, params *backends.DropDatabaseParams) error {
	b.rw.Lock()
	defer b.rw.Unlock()

	db, ok := b.dbs[params.Name]
	if !ok {
		return backends.NewError(backends.ErrorCodeDatabaseDoesNotExist, nil)
	}

	db.rw.RLock()
	empty := len(db.colls) == 0
	db.rw.RUnlock()

	if empty {
		return backends.NewError(backends.ErrorCodeDatabaseDoesNotExist, nil)
	}

	delete(b.dbs, params.Name)

	return nil
}

// Describe implements prometheus.Collector.
func (b *backend) Describe(ch chan<- *prometheus.Desc) {
	// no backend-specific metrics
	runtime.KeepAlive(ch)
}

// Collect implements prometheus.Collector.
func (b *backend) Collect(ch chan<- prometheus.Metric) {
	runtime.KeepAlive(ch)
}

// check interfaces
var (
	_ backends.Backend = (*backend)(nil)
)
