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

package backends

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Backend is a generic interface for accessing a backend.
//
// Backend object is expected to be stateful and wrap database connection(s).
// The handler creates one Backend for its lifetime.
//
// Backend methods can be called by multiple client connections / command handlers concurrently.
// They should be thread-safe.
//
// See backendContract and its methods for additional details.
type Backend interface {
	Close()
	Name() string
	Status(context.Context, *StatusParams) (*StatusResult, error)
	Database(string) (Database, error)
	ListDatabases(context.Context, *ListDatabasesParams) (*ListDatabasesResult, error)
	DropDatabase(context.Context, *DropDatabaseParams) error

	prometheus.Collector
}

// BackendContract wraps Backend and enforces its contract.
//
// All backend implementations should use that function when they create new Backend instances.
// The handler should not use that function.
//
// See backendContract and its methods for additional details.
func BackendContract(b Backend) Backend {
	return &backendContract{
		b: b,
	}
}

// backendContract implements Backend interface.
type backendContract struct {
	b Backend
}

// Close closes this Backend instance, releasing any underlying connections.
func (bc *backendContract) Close() {
	bc.b.Close()
}

// Name returns the name of the underlying backend implementation, such as "memory".
func (bc *backendContract) Name() string {
	return bc.b.Name()
}

// StatusParams represents the parameters of Backend.Status method.
type StatusParams struct{}

// StatusResult represents the results of Backend.Status method.
type StatusResult struct {
	CountCollections       int64
	CountCappedCollections int64
}

// Status returns status information about the backend: the number of collections across
// all databases, etc.
func (bc *backendContract) Status(ctx context.Context, params *StatusParams) (res *StatusResult, err error) {
	defer checkError(err)

	res, err = bc.b.Status(ctx, params)

	return
}

// Database returns a Database instance for the given name.
//
// The database does not need to exist; even the name could be invalid.
func (bc *backendContract) Database(name string) (Database, error) {
	if err := validateDatabaseName(name); err != nil {
		return nil, err
	}

	db, err := bc.b.Database(name)
	if err != nil {
		return nil, err
	}

	return DatabaseContract(db), nil
}

// ListDatabasesParams represents the parameters of Backend.ListDatabases method.
type ListDatabasesParams struct {
	// Name filters the result to a single database, if non-empty.
	Name string
}

// ListDatabasesResult represents the results of Backend.ListDatabases method.
type ListDatabasesResult struct {
	Databases []DatabaseInfo
}

// DatabaseInfo represents information about a single database.
type DatabaseInfo struct {
	Name string
}

// ListDatabases returns a list of database names present in the backend.
func (bc *backendContract) ListDatabases(ctx context.Context, params *ListDatabasesParams) (res *ListDatabasesResult, err error) {
	defer checkError(err)

	res, err = bc.b.ListDatabases(ctx, params)

	return
}

// DropDatabaseParams represents the parameters of Backend.DropDatabase method.
type DropDatabaseParams struct {
	Name string
}

// DropDatabase drops the database; it does not have to exist.
func (bc *backendContract) DropDatabase(ctx context.Context, params *DropDatabaseParams) (err error) {
	defer checkError(err, ErrorCodeDatabaseDoesNotExist)

	err = bc.b.DropDatabase(ctx, params)

	return
}

// Describe implements prometheus.Collector.
func (bc *backendContract) Describe(ch chan<- *prometheus.Desc) {
	bc.b.Describe(ch)
}

// Collect implements prometheus.Collector.
func (bc *backendContract) Collect(ch chan<- prometheus.Metric) {
	bc.b.Collect(ch)
}

// check interfaces
var (
	_ Backend = (*backendContract)(nil)
)
