/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package watcher

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type stateKey struct {
	kind EntityKind
	path string
}

func keyOf(e Entity) stateKey {
	return stateKey{kind: e.Kind, path: e.Path}
}

// seenSet holds the message ids already reported for one entity.
type seenSet interface {
	Contains(id string) bool
	Add(id string)
	Len() int
}

type mapSet map[string]struct{}

func (s mapSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s mapSet) Add(id string) { s[id] = struct{}{} }
func (s mapSet) Len() int      { return len(s) }

type lruSet struct {
	cache *lru.Cache[string, struct{}]
}

func (s *lruSet) Contains(id string) bool { return s.cache.Contains(id) }
func (s *lruSet) Add(id string)           { s.cache.Add(id, struct{}{}) }
func (s *lruSet) Len() int                { return s.cache.Len() }

// state is the cross-invocation memory of one watcher. Entries are created
// lazily and never removed.
type state struct {
	mu        sync.Mutex
	heads     map[stateKey]string
	seen      map[stateKey]seenSet
	seenLimit int
}

func newState(seenLimit int) *state {
	return &state{
		heads:     make(map[stateKey]string),
		seen:      make(map[stateKey]seenSet),
		seenLimit: seenLimit,
	}
}

// observeHead records id as the current head of key. It reports true when
// the previously stored head was the same id, in which case nothing changes.
func (s *state) observeHead(key stateKey, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.heads[key]
	if ok && prev == id {
		return true
	}

	s.heads[key] = id

	return false
}

// seenFor returns the seen-set of key, creating it on first use. A set that
// cannot be created is not stored, so the next call tries again.
func (s *state) seenFor(key stateKey) (seenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.seen[key]
	if ok {
		return set, nil
	}

	set, err := s.newSeenSet()
	if err != nil {
		return nil, err
	}

	s.seen[key] = set

	return set, nil
}

func (s *state) newSeenSet() (seenSet, error) {
	if s.seenLimit == 0 {
		return make(mapSet), nil
	}

	cache, err := lru.New[string, struct{}](s.seenLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen-set of size %d: %w", s.seenLimit, err)
	}

	return &lruSet{cache: cache}, nil
}
