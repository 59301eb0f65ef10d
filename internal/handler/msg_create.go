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

	"github.com/FerretDB/FerretDB/internal/backends"
	"github.com/FerretDB/FerretDB/internal/handler/common"
	"github.com/FerretDB/FerretDB/internal/handler/handlererrors"
	"github.com/FerretDB/FerretDB/internal/handler/handlerparams"
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
	"github.com/FerretDB/FerretDB/internal/util/must"
	"github.com/FerretDB/FerretDB/internal/wire"
)

// MsgCreate implements `create` command.
//
// The passed context is canceled when the client connection is closed.
func (h *Handler) MsgCreate(connCtx context.Context, msg *wire.OpMsg) (*wire.OpMsg, error) {
	document, err := msg.Document()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	command := document.Command()

	collectionName, err := common.GetRequiredParam[string](document, command)
	if err != nil {
		return nil, err
	}

	dbName, err := common.GetRequiredParam[string](document, "$db")
	if err != nil {
		return nil, err
	}

	common.Ignored(document, h.L, "autoIndexId", "validator", "validationLevel", "validationAction", "viewOn", "pipeline")

	params := backends.CreateCollectionParams{Name: collectionName}

	if v, _ := document.Get("capped"); v != nil {
		capped, err := handlerparams.GetBoolOptionalParam("capped", v)
		if err != nil {
			return nil, err
		}

		if capped {
			size, err := common.GetOptionalParam(document, "size", int64(0))
			if err != nil {
				return nil, err
			}

			if size <= 0 {
				return nil, handlererrors.NewCommandErrorMsgWithArgument(
					handlererrors.ErrInvalidOptions,
					"the 'size' field is required when 'capped' is true",
					command,
				)
			}

			params.CappedSize = size

			maxDocs, err := common.GetOptionalParam(document, "max", int64(0))
			if err != nil {
				return nil, err
			}

			params.CappedDocuments = maxDocs
		}
	}

	db, err := h.b.Database(dbName)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	if err = db.CreateCollection(connCtx, &params); err != nil {
		if backends.ErrorCodeIs(err, backends.ErrorCodeCollectionAlreadyExists) {
			return nil, handlererrors.NewCommandErrorMsgWithArgument(
				handlererrors.ErrNamespaceNotFound,
				"a collection '"+dbName+"."+collectionName+"' already exists",
				command,
			)
		}

		return nil, lazyerrors.Error(err)
	}

	return wire.NewOpMsg(
		must.NotFail(types.NewDocument("ok", float64(1))),
	)
}
