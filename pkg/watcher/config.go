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
	"errors"
	"fmt"
	"slices"
)

var errConflictingModes = errors.New("conflicting processing monitor modes")

// EnsureFunc is a user supplied final check. It only runs when no stall and
// no new message was detected. Returning an error aborts the check.
type EnsureFunc func(ctx context.Context, broker Broker) (bool, error)

// ProcessingConfig selects the entities of one kind that are watched for
// stalled processing. MonitorAll, Exempt and Specific are mutually exclusive.
type ProcessingConfig struct {
	MonitorProcessing bool     `json:"monitor_processing" yaml:"monitor_processing"`
	MonitorAll        bool     `json:"monitor_all,omitempty" yaml:"monitor_all,omitempty"`
	Exempt            []string `json:"exempt,omitempty" yaml:"exempt,omitempty"`
	Specific          []string `json:"specific,omitempty" yaml:"specific,omitempty"`
}

// Config describes what a single watcher monitors.
type Config struct {
	ConnectionString string           `json:"connection_string" yaml:"connection_string"`
	QueueProcessing  ProcessingConfig `json:"queue_processing" yaml:"queue_processing"`
	TopicProcessing  ProcessingConfig `json:"topic_processing" yaml:"topic_processing"`
	MonitorQueues    []string         `json:"monitor_queues,omitempty" yaml:"monitor_queues,omitempty"`
	MonitorTopics    []string         `json:"monitor_topics,omitempty" yaml:"monitor_topics,omitempty"`
	// Concurrency bounds parallel entity checks; 0 or 1 runs them sequentially.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	// SeenLimit bounds every per-entity seen-set with an LRU. 0 keeps every
	// reported id for the lifetime of the watcher.
	SeenLimit int          `json:"seen_limit,omitempty" yaml:"seen_limit,omitempty"`
	Ensure    []EnsureFunc `json:"-" yaml:"-"`
}

func (p *ProcessingConfig) exclusive() bool {
	if p.MonitorAll && (len(p.Exempt) > 0 || len(p.Specific) > 0) {
		return false
	}

	return len(p.Exempt) == 0 || len(p.Specific) == 0
}

func (p *ProcessingConfig) selected() bool {
	return p.MonitorAll || len(p.Exempt) > 0 || len(p.Specific) > 0
}

func (p *ProcessingConfig) validate(kind EntityKind) error {
	field := kind.String() + "_processing"

	if !p.exclusive() {
		return configErr(field, conflictError(kind))
	}

	if p.selected() {
		p.MonitorProcessing = true
	}

	if p.MonitorProcessing && !p.selected() {
		return configErr(field, errProcessingIncorrect)
	}

	return nil
}

func conflictError(kind EntityKind) error {
	noun := "Queues"
	if kind == KindTopic {
		noun = "Topics"
	}

	return fmt.Errorf("%w: ensure that you call only one of: `MonitorProcessingIn%s`, `MonitorProcessingInAll%sExcept`, `MonitorProcessingInAll%s` for one watcher",
		errConflictingModes, noun, noun, noun)
}

// Validate implements config.Validator. It fills MonitorProcessing when a
// selection strategy is present, mirroring the option functions.
func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		return configErr("connection_string", errEmptyConnectionString)
	}

	if err := c.QueueProcessing.validate(KindQueue); err != nil {
		return err
	}

	if err := c.TopicProcessing.validate(KindTopic); err != nil {
		return err
	}

	if c.Concurrency < 0 {
		return configErr("concurrency", errNegativeValue)
	}

	if c.SeenLimit < 0 {
		return configErr("seen_limit", errNegativeValue)
	}

	for _, fn := range c.Ensure {
		if fn == nil {
			return configErr("ensure", errNilPredicate)
		}
	}

	return nil
}

// monitorsQueues reports whether any queue feature needs the queue list.
func (c *Config) monitorsQueues() bool {
	return c.QueueProcessing.MonitorProcessing || len(c.MonitorQueues) > 0
}

func (c *Config) monitorsTopics() bool {
	return c.TopicProcessing.MonitorProcessing || len(c.MonitorTopics) > 0
}

func (c *Config) processing(kind EntityKind) *ProcessingConfig {
	if kind == KindTopic {
		return &c.TopicProcessing
	}

	return &c.QueueProcessing
}

func (c *Config) explicit(kind EntityKind) []string {
	if kind == KindTopic {
		return c.MonitorTopics
	}

	return c.MonitorQueues
}

func (p ProcessingConfig) clone() ProcessingConfig {
	p.Exempt = slices.Clone(p.Exempt)
	p.Specific = slices.Clone(p.Specific)

	return p
}

// clone returns a copy that shares no slices with c, so a watcher is not
// affected by later changes to the value it was built from.
func (c *Config) clone() *Config {
	out := *c
	out.QueueProcessing = c.QueueProcessing.clone()
	out.TopicProcessing = c.TopicProcessing.clone()
	out.MonitorQueues = slices.Clone(c.MonitorQueues)
	out.MonitorTopics = slices.Clone(c.MonitorTopics)
	out.Ensure = slices.Clone(c.Ensure)

	return &out
}
