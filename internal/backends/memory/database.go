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

package memory

import (
	"context"
	"sync"

	"github.com/FerretDB/FerretDB/internal/backends"
)

// database implements backends.Database.
type database struct {
	b    *backend
	name string

	rw    sync.RWMutex
	colls map[string]*collection
}

// newDatabase creates a new database handle; it does not persist the database itself.
func newDatabase(b *backend, name string) *database {
	return &database{
		b:     b,
		name:  name,
		colls: map[string]*collection{},
	}
}

// Close implements backends.Database.
func (db *database) Close() {}

// Collection implements backends.Database.
func (db *database) Collection(name string) (backends.Collection, error) {
	db.rw.Lock()
	defer db.rw.Unlock()

	c, ok := db.colls[name]
	if !ok {
		c = newCollection(db, name)
		db.colls[name] = c
	}

	return c, nil
}

// ListCollections implements backends.Database.
func (db *database) ListCollections(ctx context.Context, params *backends.ListCollectionsParams) (*backends.ListCollectionsResult, error) {
	db.rw.RLock()
	defer db.rw.RUnlock()

	res := new(backends.ListCollectionsResult)

	for name, c := range db.colls {
		c.rw.RLock()
		created := c.created
		c.rw.RUnlock()

		if !created {
			continue
		}

		res.Collections = append(res.Collections, backends.CollectionInfo{Name: name})
	}

	return res, nil
}

// CreateCollection implements backends.Database.
func (db *database) CreateCollection(ctx context.Context, params *backends.CreateCollectionParams) error {
	db.rw.Lock()
	defer db.rw.Unlock()

	c, ok := db.colls[params.Name]
	if !ok {
		c = newCollection(db, params.Name)
		db.colls[params.Name] = c
	}

	c.rw.Lock()
	defer c.rw.Unlock()

	if c.created {
		return backends.NewError(backends.ErrorCodeCollectionAlreadyExists, nil)
	}

	c.created = true
	c.cappedSize = params.CappedSize
	c.cappedDocuments = params.CappedDocuments
	c.indexes = []backends.IndexInfo{{Name: backends.DefaultIndexName, Key: []backends.IndexKeyPair{{Field: "_id"}}, Unique: true}}

	return nil
}

// DropCollection implements backends.Database.
func (db *database) DropCollection(ctx context.Context, params *backends.DropCollectionParams) error {
	db.rw.Lock()
	defer db.rw.Unlock()

	c, ok := db.colls[params.Name]
	if !ok || !c.exists() {
		return backends.NewError(backends.ErrorCodeCollectionDoesNotExist, nil)
	}

	delete(db.colls, params.Name)

	return nil
}

// RenameCollection implements backends.Database.
func (db *database) RenameCollection(ctx context.Context, params *backends.RenameCollectionParams) error {
	db.rw.Lock()
	defer db.rw.Unlock()

	c, ok := db.colls[params.OldName]
	if !ok || !c.exists() {
		return backends.NewError(backends.ErrorCodeCollectionDoesNotExist, nil)
	}

	if dst, ok := db.colls[params.NewName]; ok && dst.exists() {
		return backends.NewError(backends.ErrorCodeCollectionAlreadyExists, nil)
	}

	c.rw.Lock()
	c.name = params.NewName
	c.rw.Unlock()

	delete(db.colls, params.OldName)
	db.colls[params.NewName] = c

	return nil
}

// Stats implements backends.Database.
func (db *database) Stats(ctx context.Context, params *backends.DatabaseStatsParams) (*backends.DatabaseStatsResult, error) {
	db.rw.RLock()
	defer db.rw.RUnlock()

	res := new(backends.DatabaseStatsResult)

	for _, c := range db.colls {
		if !c.exists() {
			continue
		}

		stats, err := c.Stats(ctx, &backends.CollectionStatsParams{})
		if err != nil {
			return nil, err
		}

		idxs, err := c.ListIndexes(ctx, nil)
		if err != nil {
			return nil, err
		}

		res.CountCollections++
		res.CountIndexes += int64(len(idxs.Indexes))
		res.CountObjects += stats.CountDocuments
		res.SizeTotal += stats.SizeTotal
		res.SizeIndexes += stats.SizeIndexes
		res.SizeCollections += stats.SizeCollection
	}

	return res, nil
}

// check interfaces
var (
	_ backends.Database = (*database)(nil)
)
