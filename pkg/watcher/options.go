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
	"slices"
)

// Option mutates a Config under construction. Options fail as soon as the
// configuration they produce is invalid.
type Option func(*Config) error

// NewConfig builds a validated configuration. Options are applied in order
// and the first failure is returned.
func NewConfig(connectionString string, opts ...Option) (*Config, error) {
	if connectionString == "" {
		return nil, configErr("connection_string", errEmptyConnectionString)
	}

	cfg := &Config{ConnectionString: connectionString}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func monitorAll(kind EntityKind) Option {
	return func(c *Config) error {
		p := c.processing(kind)
		p.MonitorProcessing = true
		p.MonitorAll = true

		return checkExclusive(p, kind)
	}
}

func monitorExcept(kind EntityKind, field string, names []string) Option {
	return func(c *Config) error {
		if len(names) == 0 {
			return configErr(field, errEmptyList)
		}

		p := c.processing(kind)
		p.Exempt = slices.Clone(names)
		p.MonitorProcessing = true

		return checkExclusive(p, kind)
	}
}

func monitorSpecific(kind EntityKind, field string, names []string) Option {
	return func(c *Config) error {
		if len(names) == 0 {
			return configErr(field, errEmptyList)
		}

		p := c.processing(kind)
		p.Specific = slices.Clone(names)
		p.MonitorProcessing = true

		return checkExclusive(p, kind)
	}
}

func checkExclusive(p *ProcessingConfig, kind EntityKind) error {
	if !p.exclusive() {
		return configErr(kind.String()+"_processing", conflictError(kind))
	}

	return nil
}

// MonitorProcessingInAllQueues watches every queue for stalled processing.
func MonitorProcessingInAllQueues() Option {
	return monitorAll(KindQueue)
}

// MonitorProcessingInAllQueuesExcept watches every queue but the exempt ones.
func MonitorProcessingInAllQueuesExcept(exempt ...string) Option {
	return monitorExcept(KindQueue, "queue_processing.exempt", exempt)
}

// MonitorProcessingInQueues watches only the named queues.
func MonitorProcessingInQueues(queues ...string) Option {
	return monitorSpecific(KindQueue, "queue_processing.specific", queues)
}

// MonitorProcessingInAllTopics watches every topic for stalled processing.
func MonitorProcessingInAllTopics() Option {
	return monitorAll(KindTopic)
}

// MonitorProcessingInAllTopicsExcept watches every topic but the exempt ones.
func MonitorProcessingInAllTopicsExcept(exempt ...string) Option {
	return monitorExcept(KindTopic, "topic_processing.exempt", exempt)
}

// MonitorProcessingInTopics watches only the named topics.
func MonitorProcessingInTopics(topics ...string) Option {
	return monitorSpecific(KindTopic, "topic_processing.specific", topics)
}

// MonitorMessagesInQueues reports every new message that shows up in the
// named queues. Handy for dead-letter queues.
func MonitorMessagesInQueues(queues ...string) Option {
	return func(c *Config) error {
		if len(queues) == 0 {
			return configErr("monitor_queues", errEmptyList)
		}

		c.MonitorQueues = slices.Clone(queues)

		return nil
	}
}

// MonitorMessagesInTopics reports every new message that shows up in the
// named topics.
func MonitorMessagesInTopics(topics ...string) Option {
	return func(c *Config) error {
		if len(topics) == 0 {
			return configErr("monitor_topics", errEmptyList)
		}

		c.MonitorTopics = slices.Clone(topics)

		return nil
	}
}

// EnsureThat adds a predicate evaluated when nothing else failed. Every
// predicate must pass.
func EnsureThat(fn EnsureFunc) Option {
	return func(c *Config) error {
		if fn == nil {
			return configErr("ensure", errNilPredicate)
		}

		c.Ensure = append(c.Ensure, fn)

		return nil
	}
}

// WithConcurrency runs up to n entity checks at once.
func WithConcurrency(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return configErr("concurrency", errNegativeValue)
		}

		c.Concurrency = n

		return nil
	}
}

// WithSeenLimit bounds each entity's seen-set. Ids evicted from the set can
// be reported again if they reappear at the head of the entity.
func WithSeenLimit(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return configErr("seen_limit", errNegativeValue)
		}

		c.SeenLimit = n

		return nil
	}
}
