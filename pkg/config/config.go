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

// Package config loads service configuration from a file, the environment
// or a NATS key-value bucket.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
)

var (
	errKVStoreNotSet       = errors.New("KV store not initialized for CONFIG_SOURCE=kv; call SetKVStore first")
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errLoadConfigFailed    = errors.New("failed to load configuration")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceKV   = "kv"
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix prefixes every variable read by the env loader.
	DefaultEnvPrefix = "BROKERWATCH_"
)

// ConfigLoader fills dst from the source at path.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configuration types that check themselves
// after loading.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	kvStore       jetstream.KeyValue
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig returns a Config that reads files unless CONFIG_SOURCE says
// otherwise.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Config{
		defaultLoader: &FileConfigLoader{},
		logger:        log,
	}
}

// SetKVStore sets the bucket used when CONFIG_SOURCE=kv.
func (c *Config) SetKVStore(store jetstream.KeyValue) {
	c.kvStore = store
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration, resolves the certificate paths of
// every *models.SecurityConfig field and validates the result.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.loadWithSource(ctx, path, cfg); err != nil {
		return err
	}

	if err := normalizeSecurityConfig(cfg); err != nil {
		return fmt.Errorf("failed to normalize SecurityConfig: %w", err)
	}

	return ValidateConfig(cfg)
}

func (c *Config) loadWithSource(ctx context.Context, path string, cfg interface{}) error {
	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	var loader ConfigLoader

	switch source {
	case configSourceKV:
		if c.kvStore == nil {
			return errKVStoreNotSet
		}

		loader = NewKVConfigLoader(c.kvStore)
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = DefaultEnvPrefix
		}

		loader = NewEnvConfigLoader(c.logger, prefix)
	case configSourceFile, "":
		loader = c.defaultLoader
	default:
		return fmt.Errorf("%w: %s (expected '%s', '%s', or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceKV, configSourceEnv)
	}

	err := loader.Load(ctx, path, cfg)
	if err == nil || source != configSourceKV {
		return err
	}

	c.logger.Warn().Err(err).Str("path", path).Msg("KV config unavailable, falling back to file")

	if fileErr := c.defaultLoader.Load(ctx, path, cfg); fileErr != nil {
		return fmt.Errorf("%w from KV: %w, and from fallback file: %w", errLoadConfigFailed, err, fileErr)
	}

	return nil
}

var securityConfigType = reflect.TypeOf((*models.SecurityConfig)(nil))

func normalizeSecurityConfig(cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	normalizeValue(v.Elem())

	return nil
}

// normalizeValue walks nested structs and pointers to structs.
func normalizeValue(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanInterface() {
			continue
		}

		switch {
		case field.Type() == securityConfigType:
			if !field.IsNil() {
				field.Interface().(*models.SecurityConfig).NormalizeTLSPaths()
			}
		case field.Kind() == reflect.Struct:
			normalizeValue(field)
		case field.Kind() == reflect.Ptr && !field.IsNil() && field.Elem().Kind() == reflect.Struct:
			normalizeValue(field.Elem())
		}
	}
}
