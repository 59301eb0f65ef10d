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

package commonparams

import (
	"go.uber.org/zap"

	"github.com/FerretDB/FerretDB/internal/handler/handlerparams"
	"github.com/FerretDB/FerretDB/internal/types"
)

// ExtractParams is an alias for handlerparams.ExtractParams, kept for the handler code
// that still imports this package under its previous name.
func ExtractParams(document *types.Document, command string, params any, l *zap.Logger) error {
	return handlerparams.ExtractParams(document, command, params, l)
}

// AliasFromType is an alias for handlerparams.AliasFromType.
func AliasFromType(v any) string {
	return handlerparams.AliasFromType(v)
}

// GetWholeNumberParam is an alias for handlerparams.GetWholeNumberParam.
func GetWholeNumberParam(value any) (int64, error) {
	return handlerparams.GetWholeNumberParam(value)
}

// Sentinel errors, aliased from handlerparams so callers can match them with errors.Is.
var (
	ErrUnexpectedType = handlerparams.ErrUnexpectedType
	ErrNotWholeNumber = handlerparams.ErrNotWholeNumber
)
