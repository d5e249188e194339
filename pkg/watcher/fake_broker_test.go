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
	"context"
	"sync"
)

// fakeBroker is an in-memory broker whose entities hold messages in delivery
// order. Peek returns the head without removing it.
type fakeBroker struct {
	mu      sync.Mutex
	address string
	queues  []string
	topics  []string
	msgs    map[stateKey][]Message
	peeks   map[stateKey]int
	lists   map[EntityKind]int
}

func newFakeBroker(address string) *fakeBroker {
	return &fakeBroker{
		address: address,
		msgs:    make(map[stateKey][]Message),
		peeks:   make(map[stateKey]int),
		lists:   make(map[EntityKind]int),
	}
}

func (b *fakeBroker) addQueue(paths ...string) *fakeBroker {
	b.queues = append(b.queues, paths...)
	return b
}

func (b *fakeBroker) addTopic(paths ...string) *fakeBroker {
	b.topics = append(b.topics, paths...)
	return b
}

func (b *fakeBroker) push(kind EntityKind, path, id, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := stateKey{kind: kind, path: path}
	b.msgs[key] = append(b.msgs[key], Message{ID: id, Body: []byte(body)})
}

// consume removes the head message, as a healthy consumer would.
func (b *fakeBroker) consume(kind EntityKind, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := stateKey{kind: kind, path: path}
	if len(b.msgs[key]) > 0 {
		b.msgs[key] = b.msgs[key][1:]
	}
}

func (b *fakeBroker) peekCount(kind EntityKind, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.peeks[stateKey{kind: kind, path: path}]
}

func (b *fakeBroker) listCount(kind EntityKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.lists[kind]
}

func (b *fakeBroker) ListQueues(context.Context) ([]Entity, error) {
	return b.entities(KindQueue, b.queues), nil
}

func (b *fakeBroker) ListTopics(context.Context) ([]Entity, error) {
	return b.entities(KindTopic, b.topics), nil
}

func (b *fakeBroker) entities(kind EntityKind, paths []string) []Entity {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lists[kind]++

	out := make([]Entity, 0, len(paths))
	for _, p := range paths {
		out = append(out, Entity{Path: p, Kind: kind})
	}

	return out
}

func (b *fakeBroker) Peek(_ context.Context, e Entity) (*Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := keyOf(e)
	b.peeks[key]++

	queue := b.msgs[key]
	if len(queue) == 0 {
		return nil, nil
	}

	head := queue[0]

	return &head, nil
}

func (b *fakeBroker) Address() string { return b.address }
