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

package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/nats-io/nats.go/jetstream"
)

var errKVKeyNotFound = errors.New("key not found in KV store")

// KVConfigLoader loads configuration from a NATS key-value bucket. The
// file name of path becomes the key "config/<name>".
type KVConfigLoader struct {
	store jetstream.KeyValue
}

func NewKVConfigLoader(store jetstream.KeyValue) *KVConfigLoader {
	return &KVConfigLoader{store: store}
}

// KVKey returns the bucket key read for path.
func KVKey(path string) string {
	return "config/" + filepath.Base(path)
}

// Load implements ConfigLoader.
func (k *KVConfigLoader) Load(ctx context.Context, path string, dst interface{}) error {
	key := KVKey(path)

	entry, err := k.store.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("%w: '%s'", errKVKeyNotFound, key)
	}

	if err != nil {
		return fmt.Errorf("failed to get key '%s' from KV store: %w", key, err)
	}

	return decode(key, entry.Value(), dst)
}
