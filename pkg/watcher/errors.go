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
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid watcher configuration")
	// ErrExecution is matched by every *ExecutionError.
	ErrExecution = errors.New("watcher execution error")

	errEmptyConnectionString = errors.New("connection string can not be empty")
	errEmptyList             = errors.New("list must contain at least 1 entry")
	errNilPredicate          = errors.New("ensure predicate can not be nil")
	errNilBroker             = errors.New("broker has not been provided")
	errNilConfig             = errors.New("watcher configuration has not been provided")
	errNegativeValue         = errors.New("value can not be negative")
	errProcessingIncorrect   = errors.New("processing monitor configuration is set up incorrectly")
)

// ConfigError reports a configuration problem found while building or
// validating a watcher configuration.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInvalidConfig, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidConfig) succeed for any ConfigError.
func (*ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func configErr(field string, err error) error {
	return &ConfigError{Field: field, Err: err}
}

// ExecutionError is returned when a check could not be completed because
// the broker (or an ensure predicate) failed. It is distinct from a failed
// verdict, which is reported through Result.
type ExecutionError struct {
	Watcher string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("watcher %q: there was an error while trying to access the broker: %v", e.Watcher, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExecution) succeed for any ExecutionError.
func (*ExecutionError) Is(target error) bool {
	return target == ErrExecution
}
