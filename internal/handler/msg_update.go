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

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/FerretDB/FerretDB/internal/backends"
	"github.com/FerretDB/FerretDB/internal/handler/common"
	"github.com/FerretDB/FerretDB/internal/handler/handlererrors"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/iterator"
	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
	"github.com/FerretDB/FerretDB/internal/util/must"
	"github.com/FerretDB/FerretDB/internal/wire"
)

// MsgUpdate implements `update` command.
//
// The passed context is canceled when the client connection is closed.
func (h *Handler) MsgUpdate(connCtx context.Context, msg *wire.OpMsg) (*wire.OpMsg, error) {
	document, err := msg.Document()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	params, err := common.GetUpdateParams(document, h.L)
	if err != nil {
		return nil, err
	}

	_, c, err := h.resolveCollection(params.DB, params.Collection, "update")
	if err != nil {
		return nil, err
	}

	var matched, modified int32
	upserted := types.MakeArray(0)
	writeErrors := types.MakeArray(0)

	for i, u := range params.Updates {
		res, err := h.execUpdate(connCtx, c, &u)
		if err != nil {
			err = handleUpdateError(params.DB, params.Collection, "update", err)

			var ce *handlererrors.CommandError
			if errors.As(err, &ce) {
				we := &mongo.WriteError{
					Index:   i,
					Code:    int(ce.Code()),
					Message: ce.Err().Error(),
				}

				writeErrors.Append(WriteErrorDocument(we))

				if params.Ordered {
					break
				}

				continue
			}

			return nil, lazyerrors.Error(err)
		}

		matched += res.Matched.Count
		modified += res.Modified.Count

		if res.Upserted.Doc != nil {
			upserted.Append(must.NotFail(types.NewDocument(
				"index", int32(i),
				"_id", must.NotFail(res.Upserted.Doc.Get("_id")),
			)))
		}
	}

	resDoc := must.NotFail(types.NewDocument(
		"n", matched+int32(upserted.Len()),
		"nModified", modified,
	))

	if upserted.Len() > 0 {
		resDoc.Set("upserted", upserted)
	}

	if writeErrors.Len() > 0 {
		resDoc.Set("writeErrors", writeErrors)
	}

	resDoc.Set("ok", float64(1))

	return wire.NewOpMsg(resDoc)
}

// execUpdate performs a single update operation (one element of the `updates` array).
func (h *Handler) execUpdate(ctx context.Context, c backends.Collection, u *common.Update) (*common.UpdateResult, error) {
	var qp backends.QueryParams
	if !h.DisablePushdown {
		qp.Filter = u.Filter
	}

	queryRes, err := c.Query(ctx, &qp)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	closer := iterator.NewMultiCloser()
	defer closer.Close()

	closer.Add(queryRes.Iter)

	iter := common.FilterIterator(queryRes.Iter, closer, u.Filter)

	if !u.Multi {
		iter = common.LimitIterator(iter, closer, 1)
	}

	update := &common.Update{
		Filter:             u.Filter,
		Update:             u.Update,
		Upsert:             u.Upsert,
		Multi:              u.Multi,
		HasUpdateOperators: u.HasUpdateOperators,
	}

	return common.UpdateDocument(ctx, c, "update", iter, update)
}
