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

package service

import (
	"context"
	"time"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

const publishTimeout = 5 * time.Second

// resultPublisher is satisfied by *natsutil.EventPublisher.
type resultPublisher interface {
	PublishWatcherResult(ctx context.Context, data models.WatcherResultEventData) error
}

// EventSink publishes every verdict and execution error as a CloudEvent.
// Publish failures are logged and never fail the check.
type EventSink struct {
	publisher resultPublisher
	logger    logger.Logger
}

func NewEventSink(publisher resultPublisher, log logger.Logger) *EventSink {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &EventSink{publisher: publisher, logger: log}
}

func (s *EventSink) OnResult(ctx context.Context, res *watcher.Result) {
	s.publish(ctx, models.WatcherResultEventData{
		Watcher:     res.Name,
		Group:       res.Group,
		IsValid:     res.IsValid,
		Description: res.Description,
		Address:     res.Address,
		CheckedAt:   res.CheckedAt,
		DurationMs:  res.Duration.Milliseconds(),
	})
}

func (s *EventSink) OnError(ctx context.Context, name, group string, err error) {
	s.publish(ctx, models.WatcherResultEventData{
		Watcher: name,
		Group:   group,
		IsValid: false,
		Error:   err.Error(),
	})
}

// publish detaches from ctx, which is already done when the check timed out.
func (s *EventSink) publish(ctx context.Context, data models.WatcherResultEventData) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishWatcherResult(ctx, data); err != nil {
		s.logger.Warn().
			Err(err).
			Str("watcher", data.Watcher).
			Msg("Failed to publish watcher result")
	}
}
