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

// Package wire provides the OP_MSG message envelope that carries BSON documents
// between a command handler and its caller. It intentionally does not implement the
// wire protocol's byte-level framing (message header, checksum, compression) since no
// network listener is in scope here; it only models the part of OP_MSG that handler
// code actually consumes: one or more document sections in, one document out.
package wire

import (
	"github.com/FerretDB/FerretDB/internal/types"
	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
)

// MaxMsgLen is the maximum size of an OP_MSG message's document, matching the
// MongoDB wire protocol's 48 MiB limit on a single command document.
const MaxMsgLen = 48 * 1024 * 1024

// OpMsgSection represents a single OP_MSG section: a sequence of documents, optionally
// identified (MongoDB's "sequence" sections, used for bulk document arrays).
type OpMsgSection struct {
	Identifier string
	Documents  []*types.Document
}

// OpMsg represents a single OP_MSG message: a command request or its reply.
//
// Its zero value is a valid, empty message; call SetSections to populate it.
type OpMsg struct {
	sections []OpMsgSection
}

// MakeOpMsgSection wraps a single document into an OpMsgSection with no identifier,
// the common case for command replies.
func MakeOpMsgSection(doc *types.Document) OpMsgSection {
	return OpMsgSection{Documents: []*types.Document{doc}}
}

// NewOpMsg creates an OpMsg carrying the given document as its sole section.
func NewOpMsg(doc *types.Document) (*OpMsg, error) {
	if doc == nil {
		return nil, lazyerrors.New("wire.NewOpMsg: document is nil")
	}

	return &OpMsg{sections: []OpMsgSection{MakeOpMsgSection(doc)}}, nil
}

// SetSections replaces the message's sections, validating that each has at least one
// document.
func (msg *OpMsg) SetSections(sections ...OpMsgSection) error {
	for _, s := range sections {
		if len(s.Documents) == 0 {
			return lazyerrors.New("wire.OpMsg.SetSections: section has no documents")
		}
	}

	msg.sections = sections

	return nil
}

// Sections returns the message's sections.
func (msg *OpMsg) Sections() []OpMsgSection {
	if msg == nil {
		return nil
	}

	return msg.sections
}

// Document returns the first document of the message's first section, the common case
// for commands that carry exactly one document.
func (msg *OpMsg) Document() (*types.Document, error) {
	if msg == nil || len(msg.sections) == 0 || len(msg.sections[0].Documents) == 0 {
		return nil, lazyerrors.New("wire.OpMsg.Document: message has no document")
	}

	return msg.sections[0].Documents[0], nil
}

// Documents returns every document across all sections, in order.
func (msg *OpMsg) Documents() []*types.Document {
	if msg == nil {
		return nil
	}

	var docs []*types.Document

	for _, s := range msg.sections {
		docs = append(docs, s.Documents...)
	}

	return docs
}
