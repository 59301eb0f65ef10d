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
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/FerretDB/FerretDB/internal/backends"
	"github.com/FerretDB/FerretDB/internal/matcher"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
	"github.com/FerretDB/FerretDB/internal/util/must"
)

// collection implements backends.Collection.
//
// A single rw mutex guards the whole document set: per §5, readers take it for the
// duration of a matcher pass and writers hold it for the full match+apply+index cycle,
// so a single update is observed atomically by concurrent readers.
type collection struct {
	db   *database
	name string

	rw              sync.RWMutex
	created         bool
	cappedSize      int64
	cappedDocuments int64
	docs            []*types.Document
	byID            map[string]int // idKey -> index into docs
	indexes         []backends.IndexInfo
}

// newCollection creates a new collection handle; it does not persist the collection itself.
func newCollection(db *database, name string) *collection {
	return &collection{
		db:   db,
		name: name,
		byID: map[string]int{},
	}
}

// exists reports whether CreateCollection (explicitly, or implicitly via an insert)
// has been called for this collection.
func (c *collection) exists() bool {
	c.rw.RLock()
	defer c.rw.RUnlock()

	return c.created
}

// idKey returns a string uniquely identifying id among values of its BSON type.
func idKey(id any) string {
	return fmt.Sprintf("%T:%v", id, id)
}

// ensureCreatedLocked marks the collection (and its owning database) as created.
// c.rw must be held for writing.
func (c *collection) ensureCreatedLocked() {
	if c.created {
		return
	}

	c.created = true
	c.indexes = []backends.IndexInfo{{Name: backends.DefaultIndexName, Key: []backends.IndexKeyPair{{Field: "_id"}}, Unique: true}}
}

// Query implements backends.Collection.
func (c *collection) Query(ctx context.Context, params *backends.QueryParams) (*backends.QueryResult, error) {
	c.rw.RLock()
	defer c.rw.RUnlock()

	if !c.created {
		return &backends.QueryResult{Iter: iterator.DropKeys(iterator.ForSlice([]*types.Document{}))}, nil
	}

	var pred *matcher.Predicate

	if params != nil && params.Filter != nil && params.Filter.Len() > 0 {
		p, err := matcher.Compile(params.Filter)
		if err != nil {
			return nil, err
		}

		pred = p
	}

	docs := make([]*types.Document, 0, len(c.docs))

	for _, doc := range c.docs {
		if pred != nil {
			ok, _, err := pred.Match(doc)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}
		}

		docs = append(docs, doc)
	}

	if params != nil && params.Sort != nil {
		order := types.Ascending
		if params.Sort.Descending {
			order = types.Descending
		}

		key := params.Sort.Key

		slices.SortStableFunc(docs, func(a, b *types.Document) int {
			av, _ := a.Get(key)
			bv, _ := b.Get(key)

			switch types.CompareOrderForSort(av, bv, order) {
			case types.Less:
				return -1
			case types.Greater:
				return 1
			default:
				return 0
			}
		})
	}

	if params != nil && params.Limit > 0 && int64(len(docs)) > params.Limit {
		docs = docs[:params.Limit]
	}

	return &backends.QueryResult{Iter: iterator.DropKeys(iterator.ForSlice(docs))}, nil
}

// InsertAll implements backends.Collection.
func (c *collection) InsertAll(ctx context.Context, params *backends.InsertAllParams) (*backends.InsertAllResult, error) {
	c.rw.Lock()
	defer c.rw.Unlock()

	c.ensureCreatedLocked()

	for _, doc := range params.Docs {
		id := must.NotFail(doc.Get("_id"))
		key := idKey(id)

		if _, ok := c.byID[key]; ok {
			return nil, backends.NewError(backends.ErrorCodeInsertDuplicateID, fmt.Errorf("duplicate key: %v", id))
		}
	}

	for _, doc := range params.Docs {
		id := must.NotFail(doc.Get("_id"))

		c.byID[idKey(id)] = len(c.docs)
		c.docs = append(c.docs, doc)
	}

	return new(backends.InsertAllResult), nil
}

// UpdateAll implements backends.Collection.
func (c *collection) UpdateAll(ctx context.Context, params *backends.UpdateAllParams) (*backends.UpdateAllResult, error) {
	c.rw.Lock()
	defer c.rw.Unlock()

	var updated int32

	for _, doc := range params.Docs {
		id := must.NotFail(doc.Get("_id"))

		pos, ok := c.byID[idKey(id)]
		if !ok {
			continue
		}

		c.docs[pos] = doc
		updated++
	}

	return &backends.UpdateAllResult{Updated: updated}, nil
}

// DeleteAll implements backends.Collection.
func (c *collection) DeleteAll(ctx context.Context, params *backends.DeleteAllParams) (*backends.DeleteAllResult, error) {
	c.rw.Lock()
	defer c.rw.Unlock()

	var toRemove []int

	if params.IDs != nil {
		seen := map[int]struct{}{}

		for _, id := range params.IDs {
			pos, ok := c.byID[idKey(id)]
			if !ok {
				continue
			}

			if _, dup := seen[pos]; dup {
				continue
			}

			seen[pos] = struct{}{}
			toRemove = append(toRemove, pos)
		}
	} else {
		seen := map[int]struct{}{}

		for _, rid := range params.RecordIDs {
			for pos, doc := range c.docs {
				if doc.RecordID() == rid {
					if _, dup := seen[pos]; !dup {
						seen[pos] = struct{}{}
						toRemove = append(toRemove, pos)
					}

					break
				}
			}
		}
	}

	if len(toRemove) == 0 {
		return new(backends.DeleteAllResult), nil
	}

	slices.Sort(toRemove)

	remaining := make([]*types.Document, 0, len(c.docs)-len(toRemove))
	removeSet := map[int]struct{}{}

	for _, pos := range toRemove {
		removeSet[pos] = struct{}{}
	}

	for pos, doc := range c.docs {
		if _, dead := removeSet[pos]; dead {
			continue
		}

		remaining = append(remaining, doc)
	}

	c.docs = remaining
	c.byID = map[string]int{}

	for pos, doc := range c.docs {
		id := must.NotFail(doc.Get("_id"))
		c.byID[idKey(id)] = pos
	}

	return &backends.DeleteAllResult{Deleted: int32(len(toRemove))}, nil
}

// Explain implements backends.Collection.
func (c *collection) Explain(ctx context.Context, params *backends.ExplainParams) (*backends.ExplainResult, error) {
	c.rw.RLock()
	defer c.rw.RUnlock()

	planner := must.NotFail(types.NewDocument(
		"collection", c.name,
		"documents", int64(len(c.docs)),
	))

	return &backends.ExplainResult{
		QueryPlanner:  planner,
		QueryPushdown: params != nil && params.Filter != nil && params.Filter.Len() > 0,
		SortPushdown:  params != nil && params.Sort != nil,
		LimitPushdown: params != nil && params.Limit > 0,
	}, nil
}

// Stats implements backends.Collection.
func (c *collection) Stats(ctx context.Context, params *backends.CollectionStatsParams) (*backends.CollectionStatsResult, error) {
	c.rw.RLock()
	defer c.rw.RUnlock()

	if !c.created {
		return nil, backends.NewError(backends.ErrorCodeCollectionDoesNotExist, nil)
	}

	var size int64

	for _, doc := range c.docs {
		size += int64(documentSize(doc))
	}

	res := &backends.CollectionStatsResult{
		CountDocuments: int64(len(c.docs)),
		SizeCollection: size,
		SizeTotal:      size,
	}

	for _, idx := range c.indexes {
		res.IndexSizes = append(res.IndexSizes, backends.IndexSize{Name: idx.Name, Size: 4096})
		res.SizeIndexes += 4096
	}

	res.SizeTotal += res.SizeIndexes

	return res, nil
}

// Compact implements backends.Collection.
func (c *collection) Compact(ctx context.Context, params *backends.CompactParams) (*backends.CompactResult, error) {
	// in-memory storage has no fragmentation to reclaim
	return new(backends.CompactResult), nil
}

// ListIndexes implements backends.Collection.
func (c *collection) ListIndexes(ctx context.Context, params *backends.ListIndexesParams) (*backends.ListIndexesResult, error) {
	c.rw.RLock()
	defer c.rw.RUnlock()

	return &backends.ListIndexesResult{Indexes: c.listIndexesLocked()}, nil
}

// listIndexesLocked returns a sorted copy of the collection's indexes. c.rw must be held.
func (c *collection) listIndexesLocked() []backends.IndexInfo {
	res := slices.Clone(c.indexes)

	slices.SortFunc(res, func(a, b backends.IndexInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return res
}

// CreateIndexes implements backends.Collection.
func (c *collection) CreateIndexes(ctx context.Context, params *backends.CreateIndexesParams) (*backends.CreateIndexesResult, error) {
	c.rw.Lock()
	defer c.rw.Unlock()

	c.ensureCreatedLocked()

	for _, idx := range params.Indexes {
		if i := slices.IndexFunc(c.indexes, func(e backends.IndexInfo) bool { return e.Name == idx.Name }); i >= 0 {
			continue
		}

		c.indexes = append(c.indexes, idx)
	}

	return new(backends.CreateIndexesResult), nil
}

// DropIndexes implements backends.Collection.
func (c *collection) DropIndexes(ctx context.Context, params *backends.DropIndexesParams) (*backends.DropIndexesResult, error) {
	c.rw.Lock()
	defer c.rw.Unlock()

	for _, name := range params.Indexes {
		if name == backends.DefaultIndexName {
			continue
		}

		c.indexes = slices.DeleteFunc(c.indexes, func(e backends.IndexInfo) bool { return e.Name == name })
	}

	return new(backends.DropIndexesResult), nil
}

// documentSize estimates the in-memory footprint of doc for stats purposes.
func documentSize(doc *types.Document) int {
	size := 0

	for _, key := range doc.Keys() {
		size += len(key) + 16

		v := must.NotFail(doc.Get(key))
		if sub, ok := v.(*types.Document); ok {
			size += documentSize(sub)
		}
	}

	return size
}

// check interfaces
var (
	_ backends.Collection = (*collection)(nil)
)
