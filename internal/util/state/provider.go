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

package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FerretDB/FerretDB/internal/util/lazyerrors"
)

// Provider provides access to a State, persisting it to a JSON file on disk.
type Provider struct {
	filename string

	rw   sync.RWMutex
	s    *State
	subs []chan struct{}
}

// NewProvider creates a new Provider backed by the given file.
//
// If the file does not exist or can't be parsed, a new state with a fresh UUID is
// created and written to it.
func NewProvider(filename string) (*Provider, error) {
	p := &Provider{
		filename: filename,
	}

	s, err := p.read()
	if err != nil {
		s = &State{UUID: uuid.NewString()}
	}

	s.Start = time.Now()

	if err = p.write(s); err != nil {
		return nil, lazyerrors.Error(err)
	}

	p.s = s

	return p, nil
}

// read loads the state from the provider's file.
func (p *Provider) read() (*State, error) {
	b, err := os.ReadFile(p.filename)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	var s State
	if err = json.Unmarshal(b, &s); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return &s, nil
}

// write persists the given state to the provider's file.
func (p *Provider) write(s *State) error {
	b, err := json.Marshal(s)
	if err != nil {
		return lazyerrors.Error(err)
	}

	if err = os.WriteFile(p.filename, b, 0o644); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

// Get returns a copy of the current state.
func (p *Provider) Get() *State {
	p.rw.RLock()
	defer p.rw.RUnlock()

	return p.s.deepCopy()
}

// Update applies f to a copy of the current state, persists the result, and notifies
// subscribers.
func (p *Provider) Update(f func(*State)) error {
	p.rw.Lock()
	defer p.rw.Unlock()

	s := p.s.deepCopy()
	f(s)

	if err := p.write(s); err != nil {
		return lazyerrors.Error(err)
	}

	p.s = s

	for _, ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	return nil
}

// Subscribe returns a channel that receives a value every time the state is updated.
//
// The returned channel has capacity 1 and is filled immediately so that the first
// receive observes the current state.
func (p *Provider) Subscribe() <-chan struct{} {
	p.rw.Lock()
	defer p.rw.Unlock()

	ch := make(chan struct{}, 1)
	ch <- struct{}{}

	p.subs = append(p.subs, ch)

	return ch
}
