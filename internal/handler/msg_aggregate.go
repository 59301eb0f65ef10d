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
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/FerretDB/FerretDB/internal/aggregations/pipeline"
	"github.com/FerretDB/FerretDB/internal/backends"
	"github.com/FerretDB/FerretDB/internal/clientconn/conninfo"
	"github.com/FerretDB/FerretDB/internal/clientconn/cursor"
	"github.com/FerretDB/FerretDB/internal/handler/common"
	"github.com/FerretDB/FerretDB/internal/handler/handlererrors"
	"github.com/FerretDB/FerretDB/internal/handler/handlerparams"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/ctxutil"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
	"github.com/FerretDB/FerretDB/internal/util/must"
	"github.com/FerretDB/FerretDB/internal/wire"
)

// MsgAggregate implements `aggregate` command.
//
// $collStats is not implemented: the distilled spec's Aggregation Pipeline module (§4.6)
// scopes the pipeline to document-producing stages, and full admin/introspection parity
// is an explicit non-goal.
func (h *Handler) MsgAggregate(ctx context.Context, msg *wire.OpMsg) (*wire.OpMsg, error) {
	document, err := msg.Document()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	common.Ignored(document, h.L, "lsid")

	if err = common.Unimplemented(document, "explain", "collation", "let"); err != nil {
		return nil, err
	}

	common.Ignored(
		document, h.L,
		"allowDiskUse", "bypassDocumentValidation", "readConcern", "hint", "comment", "writeConcern",
	)

	var dbName string

	if dbName, err = common.GetRequiredParam[string](document, "$db"); err != nil {
		return nil, err
	}

	collectionParam, err := document.Get(document.Command())
	if err != nil {
		return nil, err
	}

	// TODO support collection-agnostic pipelines ({aggregate: 1})
	cName, ok := collectionParam.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrFailedToParse,
			"Invalid command format: the 'aggregate' field must specify a collection name or 1",
			document.Command(),
		)
	}

	db, c, err := h.resolveCollection(dbName, cName, document.Command())
	if err != nil {
		return nil, err
	}

	username := conninfo.Get(ctx).Username()

	v, _ := document.Get("maxTimeMS")
	if v == nil {
		v = int64(0)
	}

	// cannot use other existing handlerparams function, they return different error codes
	maxTimeMS, err := handlerparams.GetWholeNumberParam(v)
	if err != nil {
		switch {
		case errors.Is(err, handlerparams.ErrUnexpectedType):
			if _, ok = v.(types.NullType); ok {
				return nil, handlererrors.NewCommandErrorMsgWithArgument(
					handlererrors.ErrBadValue,
					"maxTimeMS must be a number",
					document.Command(),
				)
			}

			return nil, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrTypeMismatch,
				fmt.Sprintf(
					`BSON field 'aggregate.maxTimeMS' is the wrong type '%s', expected types '[long, int, decimal, double]'`,
					handlerparams.AliasFromType(v),
				),
				document.Command(),
			)
		case errors.Is(err, handlerparams.ErrNotWholeNumber):
			return nil, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrBadValue,
				"maxTimeMS has non-integral value",
				document.Command(),
			)
		case errors.Is(err, handlerparams.ErrLongExceededPositive):
			return nil, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrBadValue,
				fmt.Sprintf("%s value for maxTimeMS is out of range", types.FormatAnyValue(v)),
				document.Command(),
			)
		case errors.Is(err, handlerparams.ErrLongExceededNegative):
			return nil, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrValueNegative,
				fmt.Sprintf("BSON field 'maxTimeMS' value must be >= 0, actual value '%s'", types.FormatAnyValue(v)),
				document.Command(),
			)
		default:
			return nil, lazyerrors.Error(err)
		}
	}

	if maxTimeMS < int64(0) {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrValueNegative,
			fmt.Sprintf("BSON field 'maxTimeMS' value must be >= 0, actual value '%s'", types.FormatAnyValue(v)),
			document.Command(),
		)
	}

	if maxTimeMS > math.MaxInt32 {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrBadValue,
			fmt.Sprintf("%v value for maxTimeMS is out of range", v),
			document.Command(),
		)
	}

	pipelineArray, err := common.GetRequiredParam[*types.Array](document, "pipeline")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrTypeMismatch,
			"'pipeline' option must be specified as an array",
			document.Command(),
		)
	}

	stages, err := pipeline.Compile(pipelineArray, lookupFunc(db))
	if err != nil {
		var pipelineErr *pipeline.Error
		if errors.As(err, &pipelineErr) {
			return nil, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrorCode(pipelineErr.Code), pipelineErr.Msg, document.Command(),
			)
		}

		return nil, err
	}

	outTarget, outMerge := outputTarget(pipelineArray)

	// validate cursor after validating pipeline stages to keep compatibility
	v, _ = document.Get("cursor")
	if v == nil {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrFailedToParse,
			"The 'cursor' option is required, except for aggregate with the explain argument",
			document.Command(),
		)
	}

	cursorDoc, ok := v.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrTypeMismatch,
			fmt.Sprintf(
				`BSON field 'cursor' is the wrong type '%s', expected type 'object'`,
				handlerparams.AliasFromType(v),
			),
			document.Command(),
		)
	}

	v, _ = cursorDoc.Get("batchSize")
	if v == nil {
		v = int32(101)
	}

	batchSize, err := handlerparams.GetValidatedNumberParamWithMinValue(document.Command(), "batchSize", v, 0)
	if err != nil {
		return nil, err
	}

	cancel := func() {}
	var findDone atomic.Bool

	if maxTimeMS != 0 {
		ctx, cancel = context.WithCancel(ctx)
		go func() {
			ctxutil.Sleep(ctx, time.Duration(maxTimeMS)*time.Millisecond)

			if findDone.Load() {
				return
			}

			cancel()
		}()
	}

	closer := iterator.NewMultiCloser(iterator.CloserFunc(cancel))

	queryRes, err := c.Query(ctx, new(backends.QueryParams))
	if err != nil {
		closer.Close()
		return nil, lazyerrors.Error(err)
	}

	closer.Add(queryRes.Iter)

	pipeOut, err := pipeline.Run(ctx, stages, iterator.Values(queryRes.Iter))
	if err != nil {
		closer.Close()

		var pipelineErr *pipeline.Error
		if errors.As(err, &pipelineErr) {
			return nil, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrorCode(pipelineErr.Code), pipelineErr.Msg, document.Command(),
			)
		}

		return nil, err
	}

	if outTarget != "" {
		docs, err := iterator.ConsumeValues(pipeOut)
		if err != nil {
			closer.Close()
			return nil, lazyerrors.Error(err)
		}

		if err = writeOutputCollection(ctx, db, outTarget, outMerge, docs); err != nil {
			closer.Close()
			return nil, err
		}

		pipeOut = iterator.Values(iterator.ForSlice(docs))
	}

	iter := iterator.WithClose(iterator.DropKeys(pipeOut), closer.Close)

	cur := h.cursors.NewCursor(ctx, &cursor.NewCursorParams{
		Iter:       iter,
		DB:         dbName,
		Collection: cName,
		Username:   username,
		Type:       cursor.Normal,
	})

	cursorID := cur.ID

	docs, err := iterator.ConsumeValuesN(cur, int(batchSize))
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	h.L.Debug(
		"Got first batch", zap.Int64("cursor_id", cursorID), zap.Stringer("type", cur.Type),
		zap.Int("count", len(docs)), zap.Int64("batch_size", batchSize),
	)

	firstBatch := types.MakeArray(len(docs))
	for _, doc := range docs {
		firstBatch.Append(doc)
	}

	if firstBatch.Len() < int(batchSize) {
		// let the client know that there are no more results
		cursorID = 0

		cur.Close()
	}

	findDone.Store(true)

	var reply wire.OpMsg
	must.NoError(reply.SetSections(wire.OpMsgSection{
		Documents: []*types.Document{must.NotFail(types.NewDocument(
			"cursor", must.NotFail(types.NewDocument(
				"firstBatch", firstBatch,
				"id", cursorID,
				"ns", dbName+"."+cName,
			)),
			"ok", float64(1),
		))},
	}))

	return &reply, nil
}

// lookupFunc resolves $lookup's "from" collection against db, for a pipeline.LookupFunc.
func lookupFunc(db backends.Database) pipeline.LookupFunc {
	return func(ctx context.Context, collection string) ([]*types.Document, error) {
		c, err := db.Collection(collection)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		queryRes, err := c.Query(ctx, new(backends.QueryParams))
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		return iterator.ConsumeValues(queryRes.Iter)
	}
}

// outputTarget returns the target collection name named by a trailing $out/$merge stage
// (if any), and whether it was $merge (append) rather than $out (replace).
func outputTarget(stages *types.Array) (target string, merge bool) {
	if stages.Len() == 0 {
		return "", false
	}

	elem, _ := stages.Get(stages.Len() - 1)

	doc, ok := elem.(*types.Document)
	if !ok || doc.Len() != 1 {
		return "", false
	}

	name := doc.Keys()[0]

	val, _ := doc.Get(name)

	switch name {
	case "$out":
		if s, ok := val.(string); ok {
			return s, false
		}

		if d, ok := val.(*types.Document); ok {
			if s, err := d.Get("coll"); err == nil {
				if s, ok := s.(string); ok {
					return s, false
				}
			}
		}
	case "$merge":
		if s, ok := val.(string); ok {
			return s, true
		}

		if d, ok := val.(*types.Document); ok {
			for _, k := range []string{"into", "coll"} {
				if s, err := d.Get(k); err == nil {
					if s, ok := s.(string); ok {
						return s, true
					}
				}
			}
		}
	}

	return "", false
}

// writeOutputCollection writes docs to the named collection in db, creating it if needed.
//
// $out replaces the target collection's contents; $merge appends to it. Cross-backend
// $out/$merge is not supported: the target is always resolved against the same backend
// as the source collection.
func writeOutputCollection(ctx context.Context, db backends.Database, target string, merge bool, docs []*types.Document) error {
	if !merge {
		_ = db.DropCollection(ctx, &backends.DropCollectionParams{Name: target})
	}

	c, err := db.Collection(target)
	if err != nil {
		return lazyerrors.Error(err)
	}

	if len(docs) == 0 {
		return nil
	}

	if _, err = c.InsertAll(ctx, &backends.InsertAllParams{Docs: docs}); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}
