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

package handler

import (
	"context"
	"fmt"
	"slices"

	"github.com/FerretDB/FerretDB/internal/backends"
	"github.com/FerretDB/FerretDB/internal/handler/common"
	"github.com/FerretDB/FerretDB/internal/handler/commonparams"
	"github.com/FerretDB/FerretDB/internal/handler/handlererrors"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
	"github.com/FerretDB/FerretDB/internal/util/must"
	"github.com/FerretDB/FerretDB/internal/wire"
)

// MsgCollStats implements `collStats` command.
//
// The passed context is canceled when the client connection is closed.
func (h *Handler) MsgCollStats(ctx context.Context, msg *wire.OpMsg) (*wire.OpMsg, error) {
	document, err := msg.Document()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	command := document.Command()

	dbName, err := common.GetRequiredParam[string](document, "$db")
	if err != nil {
		return nil, err
	}

	collName, err := common.GetRequiredParam[string](document, command)
	if err != nil {
		return nil, err
	}

	scale, err := collStatsScale(document, command)
	if err != nil {
		return nil, err
	}

	c, err := h.collStatsCollection(dbName, collName, command)
	if err != nil {
		return nil, err
	}

	info, found, err := collStatsInfo(ctx, c.db, collName)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	indexes, err := c.coll.ListIndexes(ctx, new(backends.ListIndexesParams))
	if backends.ErrorCodeIs(err, backends.ErrorCodeCollectionDoesNotExist) {
		indexes = new(backends.ListIndexesResult)
		err = nil
	}

	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	stats, err := c.coll.Stats(ctx, &backends.CollectionStatsParams{Refresh: true})
	if backends.ErrorCodeIs(err, backends.ErrorCodeCollectionDoesNotExist) {
		stats = new(backends.CollectionStatsResult)
		err = nil
	}

	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	resDoc := collStatsDocument(dbName, collName, scale, info, found, indexes, stats)

	var reply wire.OpMsg
	must.NoError(reply.SetSections(wire.OpMsgSection{
		Documents: []*types.Document{resDoc},
	}))

	return &reply, nil
}

// collStatsScale extracts and validates the optional `scale` argument, defaulting to 1
// (no scaling) when absent.
func collStatsScale(document *types.Document, command string) (int64, error) {
	v, err := document.Get("scale")
	if err != nil {
		return 1, nil
	}

	return commonparams.GetValidatedNumberParamWithMinValue(command, "scale", v, 1)
}

// collStatsTarget bundles the resolved database and collection a collStats call reports on.
type collStatsTarget struct {
	db   backends.Database
	coll backends.Collection
}

// collStatsCollection resolves the database and collection named by a collStats call,
// translating backend name-validation failures into the wire error collStats expects.
func (h *Handler) collStatsCollection(dbName, collName, command string) (*collStatsTarget, error) {
	db, err := h.b.Database(dbName)
	if err != nil {
		if backends.ErrorCodeIs(err, backends.ErrorCodeDatabaseNameIsInvalid) {
			msg := fmt.Sprintf("Invalid database specified '%s'", dbName)
			return nil, handlererrors.NewCommandErrorMsgWithArgument(handlererrors.ErrInvalidNamespace, msg, command)
		}

		return nil, lazyerrors.Error(err)
	}

	coll, err := db.Collection(collName)
	if err != nil {
		if backends.ErrorCodeIs(err, backends.ErrorCodeCollectionNameIsInvalid) {
			msg := fmt.Sprintf("Invalid collection name: %s", collName)
			return nil, handlererrors.NewCommandErrorMsgWithArgument(handlererrors.ErrInvalidNamespace, msg, command)
		}

		return nil, lazyerrors.Error(err)
	}

	return &collStatsTarget{db: db, coll: coll}, nil
}

// collStatsInfo looks up collName's CollectionInfo among its database's collections,
// reporting whether it was found.
//
// Collections is not documented as sorted by any backend, so a linear scan is used
// instead of relying on binary search over an assumed order. found is false when the
// collection isn't (yet) listed by the backend, distinct from it being listed but not
// capped.
func collStatsInfo(ctx context.Context, db backends.Database, collName string) (backends.CollectionInfo, bool, error) {
	list, err := db.ListCollections(ctx, new(backends.ListCollectionsParams))
	if err != nil {
		return backends.CollectionInfo{}, false, err
	}

	idx := slices.IndexFunc(list.Collections, func(ci backends.CollectionInfo) bool {
		return ci.Name == collName
	})
	if idx < 0 {
		return backends.CollectionInfo{}, false, nil
	}

	return list.Collections[idx], true, nil
}

// collStatsDocument assembles the collStats reply document from a collection's stats,
// index list, and collection metadata, applying the requested scale.
func collStatsDocument(
	dbName, collName string,
	scale int64,
	info backends.CollectionInfo,
	found bool,
	indexes *backends.ListIndexesResult,
	stats *backends.CollectionStatsResult,
) *types.Document {
	pairs := []any{
		"ns", dbName + "." + collName,
		"size", stats.SizeCollection / scale,
		"count", stats.CountDocuments,
	}

	if stats.CountDocuments > 0 {
		pairs = append(pairs, "avgObjSize", stats.SizeCollection/stats.CountDocuments)
	}

	indexSizes := types.MakeDocument(len(stats.IndexSizes))
	for _, indexSize := range stats.IndexSizes {
		indexSizes.Set(indexSize.Name, indexSize.Size/scale)
	}

	// MongoDB reports these as numbers that could be int32 or int64; this engine always
	// reports int64 for simplicity.
	pairs = append(pairs, "storageSize", stats.SizeCollection/scale)

	if found {
		pairs = append(pairs, "freeStorageSize", stats.SizeFreeStorage/scale)
	}

	pairs = append(pairs,
		"nindexes", int64(len(indexes.Indexes)),
		"totalIndexSize", stats.SizeIndexes/scale,
		"totalSize", stats.SizeTotal/scale,
		"indexSizes", indexSizes,
		"scaleFactor", int32(scale),
		"capped", info.Capped(),
	)

	if info.Capped() {
		pairs = append(pairs,
			"max", info.CappedDocuments,
			"maxSize", info.CappedSize/scale,
		)
	}

	pairs = append(pairs, "ok", float64(1))

	return must.NotFail(types.NewDocument(pairs...))
}
