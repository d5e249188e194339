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

//go:generate mockgen -destination=mock_broker.go -package=watcher github.com/carverauto/brokerwatch/pkg/watcher Broker,Recorder

package watcher

import (
	"context"
)

// EntityKind distinguishes queues from topics.
type EntityKind int

const (
	// KindQueue is a point-to-point entity drained by competing consumers.
	KindQueue EntityKind = iota
	// KindTopic is a fan-out entity read through subscriptions.
	KindTopic
)

// String returns the lowercase name used in diagnostics.
func (k EntityKind) String() string {
	switch k {
	case KindQueue:
		return "queue"
	case KindTopic:
		return "topic"
	default:
		return "unknown"
	}
}

// Entity describes a queue or topic as reported by the broker.
type Entity struct {
	Path string
	Kind EntityKind
}

// Message is the head message of an entity as returned by a peek.
type Message struct {
	ID   string
	Body []byte
}

// Broker is the subset of a message broker the watcher needs.
// Peek must never remove, lock or otherwise alter the delivery state of
// the message it returns. It returns nil and no error for an empty entity.
type Broker interface {
	ListQueues(ctx context.Context) ([]Entity, error)
	ListTopics(ctx context.Context) ([]Entity, error)
	Peek(ctx context.Context, entity Entity) (*Message, error)
	Address() string
}

// Recorder receives detection events, typically to feed metrics.
type Recorder interface {
	RecordStall(ctx context.Context, entity Entity)
	RecordNewMessage(ctx context.Context, entity Entity)
}

type noopRecorder struct{}

func (noopRecorder) RecordStall(context.Context, Entity)      {}
func (noopRecorder) RecordNewMessage(context.Context, Entity) {}
