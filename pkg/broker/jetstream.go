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

// Package broker adapts NATS JetStream to the watcher broker interface.
// Work-queue streams are reported as queues and interest streams as topics.
// Limits streams keep acknowledged messages, so their head never moves and
// they are not reported at all, nor are the KV_ and OBJ_ streams backing
// key-value and object stores. Peeking reads the first stored message directly from the stream,
// so no consumer is created and delivery state is never touched.
package broker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

const maxPeekAttempts = 3

var errNilConnection = errors.New("nats connection is nil")

// JetStream implements watcher.Broker on top of a NATS connection.
type JetStream struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.Logger
}

var _ watcher.Broker = (*JetStream)(nil)

// NewJetStream creates a broker for nc, optionally scoped to a JetStream
// domain. The caller keeps ownership of nc.
func NewJetStream(nc *nats.Conn, domain string, log logger.Logger) (*JetStream, error) {
	if nc == nil {
		return nil, errNilConnection
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	var (
		js  jetstream.JetStream
		err error
	)

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStream{nc: nc, js: js, logger: log}, nil
}

// ListQueues returns the work-queue streams sorted by name.
func (b *JetStream) ListQueues(ctx context.Context) ([]watcher.Entity, error) {
	return b.list(ctx, watcher.KindQueue)
}

// ListTopics returns the interest streams sorted by name.
func (b *JetStream) ListTopics(ctx context.Context) ([]watcher.Entity, error) {
	return b.list(ctx, watcher.KindTopic)
}

func (b *JetStream) list(ctx context.Context, kind watcher.EntityKind) ([]watcher.Entity, error) {
	lister := b.js.ListStreams(ctx)

	var entities []watcher.Entity

	for info := range lister.Info() {
		if k, ok := kindOf(info.Config); !ok || k != kind {
			continue
		}

		entities = append(entities, watcher.Entity{Path: info.Config.Name, Kind: kind})
	}

	if err := lister.Err(); err != nil && !errors.Is(err, jetstream.ErrEndOfData) {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	slices.SortFunc(entities, func(a, b watcher.Entity) int {
		return cmp.Compare(a.Path, b.Path)
	})

	return entities, nil
}

// systemStreamPrefixes name the streams behind KV buckets and object stores.
var systemStreamPrefixes = []string{"KV_", "OBJ_"}

// kindOf classifies a stream. It reports false for streams that are not
// watched: limits streams and store backing streams.
func kindOf(cfg jetstream.StreamConfig) (watcher.EntityKind, bool) {
	for _, prefix := range systemStreamPrefixes {
		if strings.HasPrefix(cfg.Name, prefix) {
			return 0, false
		}
	}

	switch cfg.Retention {
	case jetstream.WorkQueuePolicy:
		return watcher.KindQueue, true
	case jetstream.InterestPolicy:
		return watcher.KindTopic, true
	default:
		return 0, false
	}
}

// streamHead is the part of jetstream.Stream a peek reads.
type streamHead interface {
	CachedInfo() *jetstream.StreamInfo
	GetMsg(ctx context.Context, seq uint64, opts ...jetstream.GetMsgOpt) (*jetstream.RawStreamMsg, error)
}

// Peek returns the oldest message stored in the stream, or nil when the
// stream is empty or no longer exists.
func (b *JetStream) Peek(ctx context.Context, entity watcher.Entity) (*watcher.Message, error) {
	return b.peek(ctx, entity.Path, func(ctx context.Context, name string) (streamHead, error) {
		stream, err := b.js.Stream(ctx, name)
		if err != nil {
			return nil, err
		}

		return stream, nil
	})
}

func (b *JetStream) peek(
	ctx context.Context, name string, open func(ctx context.Context, name string) (streamHead, error),
) (*watcher.Message, error) {
	for range maxPeekAttempts {
		stream, err := open(ctx, name)
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			b.logger.Debug().Str("stream", name).Msg("Stream disappeared before peek")
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get stream %s: %w", name, err)
		}

		state := stream.CachedInfo().State
		if state.Msgs == 0 {
			return nil, nil
		}

		raw, err := stream.GetMsg(ctx, state.FirstSeq)
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			// The head was consumed or expired after the info call.
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get message %d from stream %s: %w", state.FirstSeq, name, err)
		}

		return toMessage(raw), nil
	}

	// A head that moves on every attempt is being consumed, not stalled.
	b.logger.Debug().
		Str("stream", name).
		Int("attempts", maxPeekAttempts).
		Msg("Stream head kept moving during peek, treating as empty")

	return nil, nil
}

func toMessage(raw *jetstream.RawStreamMsg) *watcher.Message {
	id := raw.Header.Get(jetstream.MsgIDHeader)
	if id == "" {
		id = strconv.FormatUint(raw.Sequence, 10)
	}

	return &watcher.Message{ID: id, Body: raw.Data}
}

// Address returns the URL of the server the connection is bound to, with
// credentials redacted.
func (b *JetStream) Address() string {
	if url := b.nc.ConnectedUrlRedacted(); url != "" {
		return url
	}

	return b.nc.Opts.Url
}
