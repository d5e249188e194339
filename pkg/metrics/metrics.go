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

// Package metrics exposes the OpenTelemetry instruments recorded by
// watchers and the poller.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/brokerwatch/pkg/watcher"
)

const (
	meterName = "github.com/carverauto/brokerwatch/pkg/metrics"

	metricChecksTotal      = "brokerwatch_checks_total"
	metricCheckDuration    = "brokerwatch_check_duration_seconds"
	metricStallsTotal      = "brokerwatch_stalls_total"
	metricNewMessagesTotal = "brokerwatch_new_messages_total"

	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Instruments holds the brokerwatch counters and histograms.
type Instruments struct {
	checks      metric.Int64Counter
	duration    metric.Float64Histogram
	stalls      metric.Int64Counter
	newMessages metric.Int64Counter
}

// New registers the instruments on a meter from provider.
func New(provider metric.MeterProvider) (*Instruments, error) {
	meter := provider.Meter(meterName)

	checks, err := meter.Int64Counter(metricChecksTotal,
		metric.WithDescription("Watcher checks by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", metricChecksTotal, err)
	}

	duration, err := meter.Float64Histogram(metricCheckDuration,
		metric.WithDescription("Duration of watcher checks"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", metricCheckDuration, err)
	}

	stalls, err := meter.Int64Counter(metricStallsTotal,
		metric.WithDescription("Stalled heads detected per entity"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", metricStallsTotal, err)
	}

	newMessages, err := meter.Int64Counter(metricNewMessagesTotal,
		metric.WithDescription("New messages detected in monitored entities"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", metricNewMessagesTotal, err)
	}

	return &Instruments{
		checks:      checks,
		duration:    duration,
		stalls:      stalls,
		newMessages: newMessages,
	}, nil
}

// OnResult counts a completed check.
func (i *Instruments) OnResult(ctx context.Context, res *watcher.Result) {
	outcome := OutcomeValid
	if !res.IsValid {
		outcome = OutcomeInvalid
	}

	i.recordCheck(ctx, res.Name, outcome, res.Duration)
}

// OnError counts a check aborted by an execution error.
func (i *Instruments) OnError(ctx context.Context, name, _ string, _ error) {
	i.recordCheck(ctx, name, OutcomeError, 0)
}

func (i *Instruments) recordCheck(ctx context.Context, name, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("watcher", name),
		attribute.String("outcome", outcome),
	)

	i.checks.Add(ctx, 1, attrs)

	if d > 0 {
		i.duration.Record(ctx, d.Seconds(), attrs)
	}
}

// Recorder returns a watcher.Recorder that tags every event with name.
func (i *Instruments) Recorder(name string) watcher.Recorder {
	return &entityRecorder{instruments: i, watcher: name}
}

type entityRecorder struct {
	instruments *Instruments
	watcher     string
}

func (r *entityRecorder) RecordStall(ctx context.Context, entity watcher.Entity) {
	r.instruments.stalls.Add(ctx, 1, r.attributes(entity))
}

func (r *entityRecorder) RecordNewMessage(ctx context.Context, entity watcher.Entity) {
	r.instruments.newMessages.Add(ctx, 1, r.attributes(entity))
}

func (r *entityRecorder) attributes(entity watcher.Entity) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("watcher", r.watcher),
		attribute.String("kind", entity.Kind.String()),
		attribute.String("entity", entity.Path),
	)
}
