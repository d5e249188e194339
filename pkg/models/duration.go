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

// Package models holds the configuration and event types shared across
// brokerwatch packages.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

var errInvalidDuration = errors.New("invalid duration")

// Duration is a time.Duration that reads either a Go duration string such as
// "30s" or a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		return d.parse(value)
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errInvalidDuration
	}

	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return err
		}

		*d = Duration(time.Duration(n))

		return nil
	}

	return d.parse(node.Value)
}

func (d *Duration) parse(value string) error {
	dur, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidDuration, err)
	}

	*d = Duration(dur)

	return nil
}
