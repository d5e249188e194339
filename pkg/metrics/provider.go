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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc/credentials"

	"github.com/carverauto/brokerwatch/pkg/logger"
)

// ErrOTelMetricsDisabled is returned when no exporter is configured.
var ErrOTelMetricsDisabled = errors.New("OTel metrics exporter disabled")

const defaultExportInterval = 15 * time.Second

// ProviderConfig captures what is needed to export metrics over OTLP.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
	OTel           *logger.OTelConfig
	ExportInterval time.Duration
}

// InitializeProvider builds a MeterProvider exporting to the OTLP collector
// and installs it globally. The caller owns its Shutdown.
func InitializeProvider(ctx context.Context, config ProviderConfig) (*sdkmetric.MeterProvider, error) {
	if config.OTel == nil || !config.OTel.Enabled || config.OTel.Endpoint == "" {
		return nil, ErrOTelMetricsDisabled
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(config.OTel.Endpoint),
	}

	if config.OTel.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else if config.OTel.TLS != nil {
		tlsConfig, err := logger.ClientTLSConfig(config.OTel.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup metrics TLS configuration: %w", err)
		}

		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.OTel.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(config.OTel.Headers))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = config.OTel.ServiceName
	}

	res, err := logger.NewResource(ctx, serviceName, config.ServiceVersion)
	if err != nil {
		return nil, err
	}

	interval := config.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	otel.SetMeterProvider(provider)

	return provider, nil
}
