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

// Package lifecycle wires process startup and shutdown concerns shared by
// brokerwatch binaries.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/brokerwatch/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// InitializeLogger initializes the global logger with the provided
// configuration. If config is nil, the environment defaults are used.
func InitializeLogger(ctx context.Context, config *logger.Config) error {
	if config == nil {
		config = logger.DefaultConfig()
	}

	if err := logger.Init(ctx, config); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// CreateComponentLogger returns a child of the global logger tagged with
// component.
func CreateComponentLogger(component string) logger.Logger {
	return logger.WithComponent(component)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Shutdown runs every hook with a shared deadline and then flushes the
// logger. All hook errors are returned joined.
func Shutdown(hooks ...func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make([]error, 0, len(hooks)+1)

	for _, hook := range hooks {
		if hook == nil {
			continue
		}

		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, logger.Shutdown(ctx))

	return errors.Join(errs...)
}
