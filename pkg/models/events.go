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

package models

import (
	"errors"
	"time"
)

var errNATSURLRequired = errors.New("nats url is required")

const (
	DefaultEventsStream  = "events"
	DefaultEventsSubject = "events.brokerwatch.>"
)

// NATSConfig configures the NATS connection used to publish events.
type NATSConfig struct {
	URL      string          `json:"url" yaml:"url"`
	Domain   string          `json:"domain,omitempty" yaml:"domain,omitempty"`
	Security *SecurityConfig `json:"security,omitempty" yaml:"security,omitempty"`
}

// Validate ensures the NATS configuration is valid.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNATSURLRequired
	}

	return nil
}

// EventsConfig configures publication of watcher results.
type EventsConfig struct {
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	StreamName string      `json:"stream_name" yaml:"stream_name"`
	Subjects   []string    `json:"subjects" yaml:"subjects"`
	NATS       *NATSConfig `json:"nats,omitempty" yaml:"nats,omitempty"`
}

// Validate fills defaults and checks the connection settings.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.StreamName == "" {
		c.StreamName = DefaultEventsStream
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{DefaultEventsSubject}
	}

	if c.NATS == nil {
		return errNATSURLRequired
	}

	return c.NATS.Validate()
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// WatcherResultEventData is the payload of a watcher result event.
type WatcherResultEventData struct {
	Watcher     string    `json:"watcher"`
	Group       string    `json:"group,omitempty"`
	IsValid     bool      `json:"is_valid"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	CheckedAt   time.Time `json:"checked_at"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
}
