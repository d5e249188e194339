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

// Package natsutil connects to NATS and publishes watcher results as
// CloudEvents on JetStream.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
)

const (
	// WatcherResultEventType is the CloudEvent type of published results.
	WatcherResultEventType = "com.carverauto.brokerwatch.watcher.result"

	eventSource   = "brokerwatch/watcher"
	subjectPrefix = "events.brokerwatch."
)

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
	logger logger.Logger
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js jetstream.JetStream, streamName string, log logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &EventPublisher{
		js:     js,
		stream: streamName,
		logger: log,
	}
}

// PublishWatcherResult publishes one watcher verdict on
// events.brokerwatch.<watcher>.
func (p *EventPublisher) PublishWatcherResult(ctx context.Context, data models.WatcherResultEventData) error {
	ts := data.CheckedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            WatcherResultEventType,
		DataContentType: "application/json",
		Subject:         WatcherSubject(data.Watcher),
		Time:            &ts,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal watcher result event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish watcher result event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Str("stream", ack.Stream).
		Uint64("seq", ack.Sequence).
		Msg("Published watcher result event")

	return nil
}

// WatcherSubject maps a watcher name to a single subject token.
func WatcherSubject(name string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)

	if token == "" {
		token = "unnamed"
	}

	return subjectPrefix + token
}

// ConnectWithSecurity creates a NATS connection with security configuration.
// Connection state changes are logged through log.
func ConnectWithSecurity(
	_ context.Context, natsURL string, security *models.SecurityConfig, log logger.Logger, extraOpts ...nats.Option,
) (*nats.Conn, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	opts := []nats.Option{nats.Name("brokerwatch")}

	if security != nil && security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// CreateEventPublisher creates an EventPublisher for an existing NATS
// connection. The stream is created when missing and extended when its
// subjects do not cover watcher results.
func CreateEventPublisher(
	ctx context.Context, nc *nats.Conn, domain, streamName string, subjects []string, log logger.Logger,
) (*EventPublisher, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	js, err := newJetStream(nc, domain)
	if err != nil {
		return nil, err
	}

	stream, err := js.Stream(ctx, streamName)

	switch {
	case err == nil:
		if err := ensureStreamSubjects(ctx, js, stream, log); err != nil {
			return nil, err
		}
	case isStreamMissingErr(err):
		cfg := jetstream.StreamConfig{
			Name:     streamName,
			Subjects: ensureSubjectList(append([]string(nil), subjects...), models.DefaultEventsSubject),
		}

		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		log.Info().Str("stream", streamName).Strs("subjects", cfg.Subjects).Msg("Created NATS JetStream stream")
	default:
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	return NewEventPublisher(js, streamName, log), nil
}

func newJetStream(nc *nats.Conn, domain string) (jetstream.JetStream, error) {
	if domain == "" {
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		return js, nil
	}

	js, err := jetstream.NewWithDomain(nc, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
	}

	return js, nil
}

func ensureStreamSubjects(ctx context.Context, js jetstream.JetStream, stream jetstream.Stream, log logger.Logger) error {
	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	current := info.Config.Subjects
	updated := ensureSubjectList(append([]string(nil), current...), models.DefaultEventsSubject)

	if len(updated) == len(current) {
		return nil
	}

	cfg := info.Config
	cfg.Subjects = updated

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add subject to stream %s: %w", cfg.Name, err)
	}

	log.Info().Str("stream", cfg.Name).Strs("subjects", updated).Msg("Extended NATS JetStream stream subjects")

	return nil
}

// ensureSubjectList appends subject unless a pattern in subjects already
// covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether every subject matched by subject is also
// matched by pattern.
func matchesSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, p := range pTokens {
		if p == ">" {
			return len(sTokens) > i
		}

		if i >= len(sTokens) {
			return false
		}

		s := sTokens[i]
		if s == ">" {
			return false
		}

		if p != "*" && p != s {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
