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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/brokerwatch/pkg/config"
	"github.com/carverauto/brokerwatch/pkg/lifecycle"
	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/metrics"
	"github.com/carverauto/brokerwatch/pkg/natsutil"
	"github.com/carverauto/brokerwatch/pkg/service"
	"github.com/carverauto/brokerwatch/pkg/version"
)

const serviceName = "brokerwatch"

var errFailedToLoadConfig = errors.New("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/brokerwatch/brokerwatch.json", "Path to brokerwatch config file")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return nil
	}

	ctx, stop := lifecycle.SignalContext(context.Background())
	defer stop()

	var cfg service.Config

	cfgLoader := config.NewConfig(nil)

	kvClose, err := attachKVStore(ctx, cfgLoader)
	if err != nil {
		return err
	}

	err = cfgLoader.LoadAndValidate(ctx, *configPath, &cfg)

	kvClose()

	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	if err := lifecycle.InitializeLogger(ctx, logConfig); err != nil {
		return err
	}

	mainLogger := lifecycle.CreateComponentLogger("main")
	mainLogger.Info().Str("version", version.GetFullVersion()).Str("config", *configPath).Msg("Starting brokerwatch")

	otelConfig := cfg.OTel
	if otelConfig == nil {
		otelConfig = &logConfig.OTel
	}

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Logger:         mainLogger,
		OTel:           otelConfig,
	})
	if err != nil {
		return err
	}

	hooks := []func(context.Context) error{tp.Shutdown}

	mp, err := metrics.InitializeProvider(ctx, metrics.ProviderConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		OTel:           otelConfig,
	})

	switch {
	case err == nil:
		hooks = append(hooks, mp.Shutdown)
	case errors.Is(err, metrics.ErrOTelMetricsDisabled):
		mainLogger.Debug().Msg("OTLP metrics export disabled")
	default:
		return err
	}

	svc, err := service.New(ctx, &cfg, lifecycle.CreateComponentLogger("service"))
	if err != nil {
		_ = lifecycle.Shutdown(hooks...)
		return err
	}

	runErr := svc.Start(ctx)
	if errors.Is(runErr, context.Canceled) {
		mainLogger.Info().Msg("Shutdown signal received")

		runErr = nil
	}

	hooks = append([]func(context.Context) error{svc.Stop}, hooks...)

	return errors.Join(runErr, lifecycle.Shutdown(hooks...))
}

// attachKVStore opens the configuration bucket when CONFIG_SOURCE=kv. The
// bucket and server come from CONFIG_KV_BUCKET and CONFIG_KV_URL.
func attachKVStore(ctx context.Context, cfgLoader *config.Config) (func(), error) {
	if os.Getenv("CONFIG_SOURCE") != "kv" {
		return func() {}, nil
	}

	url := os.Getenv("CONFIG_KV_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	bucket := os.Getenv("CONFIG_KV_BUCKET")
	if bucket == "" {
		bucket = serviceName
	}

	nc, err := natsutil.ConnectWithSecurity(ctx, url, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("config KV: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("config KV: %w", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("config KV bucket %s: %w", bucket, err)
	}

	cfgLoader.SetKVStore(kv)

	return nc.Close, nil
}
