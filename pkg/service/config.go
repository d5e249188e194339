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

// Package service assembles watchers, the poller and the result sinks into
// the brokerwatch daemon.
package service

import (
	"errors"
	"fmt"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
	"github.com/carverauto/brokerwatch/pkg/poller"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

var (
	errNoWatchers        = errors.New("at least one watcher is required")
	errWatcherName       = errors.New("watcher name is required")
	errDuplicateWatcher  = errors.New("duplicate watcher name")
	errMissingConnection = errors.New("connection string is required when nats_url is not set")
)

// WatcherConfig is one watcher entry of the configuration file.
type WatcherConfig struct {
	Name  string `json:"name" yaml:"name"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
	// RequireEntities adds a final check that every listed queue or topic
	// exists on the broker.
	RequireEntities []string `json:"require_entities,omitempty" yaml:"require_entities,omitempty"`
	watcher.Config  `yaml:",inline"`
}

// validate checks the entry with the watcher rules. The connection string
// falls back to defaultURL.
func (w *WatcherConfig) validate(defaultURL string) error {
	if w.Name == "" {
		return errWatcherName
	}

	if w.ConnectionString == "" {
		if defaultURL == "" {
			return fmt.Errorf("watcher %s: %w", w.Name, errMissingConnection)
		}

		w.ConnectionString = defaultURL
	}

	if err := w.Config.Validate(); err != nil {
		return fmt.Errorf("watcher %s: %w", w.Name, err)
	}

	return nil
}

// Config is the brokerwatch configuration file.
type Config struct {
	// NATSURL is used by watchers without their own connection string.
	NATSURL string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	// Domain selects a JetStream domain on every broker connection.
	Domain   string                 `json:"domain,omitempty" yaml:"domain,omitempty"`
	Security *models.SecurityConfig `json:"security,omitempty" yaml:"security,omitempty"`

	// ListenAddr enables the gRPC health server when set.
	ListenAddr   string                 `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	GRPCSecurity *models.SecurityConfig `json:"grpc_security,omitempty" yaml:"grpc_security,omitempty"`

	Poller   poller.Config        `json:"poller" yaml:"poller"`
	Watchers []WatcherConfig      `json:"watchers" yaml:"watchers"`
	Events   *models.EventsConfig `json:"events,omitempty" yaml:"events,omitempty"`
	Logging  *logger.Config       `json:"logging,omitempty" yaml:"logging,omitempty"`
	OTel     *logger.OTelConfig   `json:"otel,omitempty" yaml:"otel,omitempty"`
}

// Validate implements config.Validator. It fills defaults in place.
func (c *Config) Validate() error {
	if len(c.Watchers) == 0 {
		return errNoWatchers
	}

	seen := make(map[string]struct{}, len(c.Watchers))

	for i := range c.Watchers {
		w := &c.Watchers[i]

		if err := w.validate(c.NATSURL); err != nil {
			return err
		}

		if _, dup := seen[w.Name]; dup {
			return fmt.Errorf("%w: %s", errDuplicateWatcher, w.Name)
		}

		seen[w.Name] = struct{}{}
	}

	if err := c.Poller.Validate(); err != nil {
		return fmt.Errorf("poller: %w", err)
	}

	if c.Events != nil && c.Events.Enabled {
		if c.Events.NATS == nil && c.NATSURL != "" {
			c.Events.NATS = &models.NATSConfig{URL: c.NATSURL, Domain: c.Domain, Security: c.Security}
		}

		if err := c.Events.Validate(); err != nil {
			return fmt.Errorf("events: %w", err)
		}
	}

	return nil
}
