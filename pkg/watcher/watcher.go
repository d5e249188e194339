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

// Package watcher detects stalled processing and unexpected messages in
// broker queues and topics by peeking at them on every check.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/brokerwatch/pkg/logger"
)

// DefaultName is used when a watcher is created without a name.
const DefaultName = "Broker Watcher"

const tracerName = "github.com/carverauto/brokerwatch/pkg/watcher"

// Watcher runs the broker checks. It keeps the per-entity state needed to
// compare consecutive checks, so a single instance must be reused across
// ticks. Concurrent calls to Execute are serialized.
type Watcher struct {
	name     string
	group    string
	config   *Config
	broker   Broker
	state    *state
	recorder Recorder
	logger   logger.Logger
	tracer   trace.Tracer
	now      func() time.Time
	mu       sync.Mutex
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log logger.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithRecorder sets the sink for stall and new message events.
func WithRecorder(r Recorder) WatcherOption {
	return func(w *Watcher) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) WatcherOption {
	return func(w *Watcher) {
		if t != nil {
			w.tracer = t
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// New validates cfg and returns a watcher bound to broker. The watcher keeps
// its own copy of cfg.
func New(name, group string, cfg *Config, broker Broker, opts ...WatcherOption) (*Watcher, error) {
	if cfg == nil {
		return nil, configErr("config", errNilConfig)
	}

	if broker == nil {
		return nil, configErr("broker", errNilBroker)
	}

	own := cfg.clone()
	if err := own.Validate(); err != nil {
		return nil, err
	}

	if name == "" {
		name = DefaultName
	}

	w := &Watcher{
		name:     name,
		group:    group,
		config:   own,
		broker:   broker,
		state:    newState(own.SeenLimit),
		recorder: noopRecorder{},
		logger:   logger.NewNopLogger(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Name returns the watcher name.
func (w *Watcher) Name() string { return w.name }

// Group returns the watcher group, possibly empty.
func (w *Watcher) Group() string { return w.group }

// Execute runs one check. Detected stalls and new messages produce a
// failed Result; broker failures produce an *ExecutionError and no Result.
func (w *Watcher) Execute(ctx context.Context) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := w.now()

	ctx, span := w.tracer.Start(ctx, "watcher.Execute",
		trace.WithAttributes(
			attribute.String("watcher.name", w.name),
			attribute.String("watcher.group", w.group),
		))
	defer span.End()

	problems, err := w.collect(ctx)
	if err != nil {
		return nil, w.fail(span, err)
	}

	if len(problems) > 0 {
		span.SetAttributes(attribute.Int("watcher.problems", len(problems)))

		return w.result(start, false, strings.Join(problems, "\n")), nil
	}

	valid, err := w.ensure(ctx)
	if err != nil {
		return nil, w.fail(span, err)
	}

	return w.result(start, valid,
		fmt.Sprintf("Broker %s is checked with result %s", w.broker.Address(), verdictWord(valid))), nil
}

func verdictWord(valid bool) string {
	if valid {
		return "True"
	}

	return "False"
}

func (w *Watcher) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "broker access failed")

	w.logger.Error().
		Err(err).
		Str("watcher", w.name).
		Msg("Watcher execution failed")

	return &ExecutionError{Watcher: w.name, Err: err}
}

func (w *Watcher) result(start time.Time, valid bool, description string) *Result {
	return &Result{
		Name:        w.name,
		Group:       w.group,
		IsValid:     valid,
		Description: description,
		Address:     w.broker.Address(),
		CheckedAt:   start,
		Duration:    w.now().Sub(start),
	}
}

// collect gathers findings in a fixed order: queue stalls, queue messages,
// topic stalls, topic messages.
func (w *Watcher) collect(ctx context.Context) ([]string, error) {
	var problems []string

	for _, kind := range []EntityKind{KindQueue, KindTopic} {
		found, err := w.checkKind(ctx, kind)
		if err != nil {
			return nil, err
		}

		problems = append(problems, found...)
	}

	return problems, nil
}

func (w *Watcher) checkKind(ctx context.Context, kind EntityKind) ([]string, error) {
	if !w.monitors(kind) {
		return nil, nil
	}

	all, err := w.list(ctx, kind)
	if err != nil {
		return nil, err
	}

	var problems []string

	if processing := w.config.processing(kind); processing.MonitorProcessing {
		scope, err := resolveProcessingScope(processing, kind, all)
		if err != nil {
			return nil, err
		}

		stalls, err := runChecks(ctx, w.config.Concurrency, scope, w.stallCheck)
		if err != nil {
			return nil, err
		}

		problems = append(problems, stalls...)
	}

	if names := w.config.explicit(kind); len(names) > 0 {
		scope := resolveExplicitScope(all, names)

		arrivals, err := runChecks(ctx, w.config.Concurrency, scope, w.checkNewMessages)
		if err != nil {
			return nil, err
		}

		problems = append(problems, arrivals...)
	}

	return problems, nil
}

func (w *Watcher) stallCheck(ctx context.Context, entity Entity) ([]string, error) {
	msg, err := w.checkStall(ctx, entity)
	if err != nil || msg == "" {
		return nil, err
	}

	return []string{msg}, nil
}

func (w *Watcher) monitors(kind EntityKind) bool {
	if kind == KindTopic {
		return w.config.monitorsTopics()
	}

	return w.config.monitorsQueues()
}

func (w *Watcher) list(ctx context.Context, kind EntityKind) ([]Entity, error) {
	var (
		entities []Entity
		err      error
	)

	if kind == KindTopic {
		entities, err = w.broker.ListTopics(ctx)
	} else {
		entities, err = w.broker.ListQueues(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", kind, err)
	}

	w.logger.Debug().
		Str("watcher", w.name).
		Str("kind", kind.String()).
		Int("count", len(entities)).
		Msg("Listed broker entities")

	return entities, nil
}

// ensure evaluates the user predicates in order and stops at the first one
// that does not pass.
func (w *Watcher) ensure(ctx context.Context) (bool, error) {
	for i, fn := range w.config.Ensure {
		ok, err := fn(ctx, w.broker)
		if err != nil {
			return false, fmt.Errorf("ensure predicate %d: %w", i, err)
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}
