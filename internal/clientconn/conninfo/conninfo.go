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

// Package conninfo provides access to connection-specific information through a context.
package conninfo

import (
	"context"
	"sync"
)

// ConnInfo represents connection info.
//
// It is typically stored and retrieved from context using NewContextWithConnInfo and Get.
type ConnInfo struct {
	// BypassAuth, if set, disables authentication checks for this connection.
	//
	// It is used for internal operations (such as the handler's own housekeeping queries)
	// that do not originate from a real client connection.
	BypassAuth bool

	m            sync.Mutex
	username     string
	password     string
	mechanism    string
	authDB       string
	metadataRecv bool
}

// New creates a new ConnInfo.
func New() *ConnInfo {
	return new(ConnInfo)
}

// SetAuth sets the authentication data for this connection.
func (connInfo *ConnInfo) SetAuth(username, password, mechanism, authDB string) {
	connInfo.m.Lock()
	defer connInfo.m.Unlock()

	connInfo.username = username
	connInfo.password = password
	connInfo.mechanism = mechanism
	connInfo.authDB = authDB
}

// Auth returns the authentication data set by SetAuth, or zero values if none was set.
func (connInfo *ConnInfo) Auth() (username, password, mechanism, authDB string) {
	connInfo.m.Lock()
	defer connInfo.m.Unlock()

	return connInfo.username, connInfo.password, connInfo.mechanism, connInfo.authDB
}

// Username returns the username set by SetAuth, or an empty string if none was set.
func (connInfo *ConnInfo) Username() string {
	connInfo.m.Lock()
	defer connInfo.m.Unlock()

	return connInfo.username
}

// MetadataRecv returns true if client metadata (as sent by `hello`/`isMaster`) was already received
// for this connection.
func (connInfo *ConnInfo) MetadataRecv() bool {
	connInfo.m.Lock()
	defer connInfo.m.Unlock()

	return connInfo.metadataRecv
}

// SetMetadataRecv marks client metadata as received for this connection.
func (connInfo *ConnInfo) SetMetadataRecv() {
	connInfo.m.Lock()
	defer connInfo.m.Unlock()

	connInfo.metadataRecv = true
}

// connInfoKey is a context key for ConnInfo.
type connInfoKey struct{}

// Ctx returns a new context derived from ctx with the given ConnInfo attached.
func Ctx(ctx context.Context, connInfo *ConnInfo) context.Context {
	return context.WithValue(ctx, connInfoKey{}, connInfo)
}

// Get returns the ConnInfo value stored in ctx, attaching a fresh one if none is present.
//
// That fallback keeps the function usable from tests and other callers that build their own
// context without going through a real client connection; production request handling always
// goes through Ctx first.
func Get(ctx context.Context) *ConnInfo {
	connInfo, ok := ctx.Value(connInfoKey{}).(*ConnInfo)
	if !ok {
		return New()
	}

	return connInfo
}
