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

package logger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// TracingConfig holds the configuration for OpenTelemetry tracing setup.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Logger         Logger
	OTel           *OTelConfig
}

// InitializeTracing installs a global TracerProvider. Spans are exported only
// when OTel is enabled with an endpoint; otherwise they are sampled and
// dropped locally. The caller owns tp.Shutdown.
func InitializeTracing(ctx context.Context, config TracingConfig) (*trace.TracerProvider, error) {
	if config.ServiceName == "" && config.OTel != nil {
		config.ServiceName = config.OTel.ServiceName
	}

	res, err := NewResource(ctx, config.ServiceName, config.ServiceVersion)
	if err != nil {
		return nil, err
	}

	opts := []trace.TracerProviderOption{trace.WithResource(res)}

	if config.OTel != nil && config.OTel.Enabled && config.OTel.Endpoint != "" {
		exporter, err := createTraceExporter(ctx, config.OTel)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		opts = append(opts, trace.WithSpanProcessor(trace.NewBatchSpanProcessor(exporter)))
	}

	tp := trace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.Logger != nil {
		config.Logger.Debug().
			Str("service", config.ServiceName).
			Bool("exporting", config.OTel != nil && config.OTel.Enabled).
			Msg("Initialized OpenTelemetry tracing")
	}

	return tp, nil
}

func createTraceExporter(ctx context.Context, config *OTelConfig) (trace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
	}

	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := ClientTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}
