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

package poller

import (
	"errors"
	"time"

	"github.com/carverauto/brokerwatch/pkg/models"
)

var (
	errNegativeInterval = errors.New("poll interval can not be negative")
	errNegativeTimeout  = errors.New("check timeout can not be negative")
	errNoCheckers       = errors.New("at least one checker is required")
)

const defaultPollInterval = 30 * time.Second

// Config represents poller configuration.
type Config struct {
	// PollInterval is the time between two checks of the same watcher.
	PollInterval models.Duration `json:"poll_interval" yaml:"poll_interval"`
	// CheckTimeout bounds a single check. Zero uses PollInterval.
	CheckTimeout models.Duration `json:"check_timeout,omitempty" yaml:"check_timeout,omitempty"`
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return errNegativeInterval
	}

	if c.CheckTimeout < 0 {
		return errNegativeTimeout
	}

	if c.PollInterval == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if c.CheckTimeout == 0 {
		c.CheckTimeout = c.PollInterval
	}

	return nil
}
