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
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
	errFailedToParseCACert  = errors.New("failed to parse CA certificate")
)

const (
	instrumentationName = "github.com/carverauto/brokerwatch/pkg/logger"
	defaultBatchTimeout = 5 * time.Second
	maxAttributeLength  = 4096
)

// OTelConfig configures the OTLP/gRPC exporters. Logs, traces and metrics
// share it.
type OTelConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	ServiceName string            `json:"service_name" yaml:"service_name"`
	Insecure    bool              `json:"insecure" yaml:"insecure"`
	TLS         *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

// OTelWriter is an io.Writer that turns zerolog JSON lines into OTel log
// records.
type OTelWriter struct {
	provider *sdklog.LoggerProvider
	logger   log.Logger
}

// NewOTELWriter starts an OTLP/gRPC log exporter with a batch processor.
func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(config.Endpoint)}

	switch {
	case config.Insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case config.TLS != nil:
		tlsConfig, err := ClientTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := NewResource(ctx, config.ServiceName, "")
	if err != nil {
		return nil, err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportTimeout(defaultBatchTimeout))),
	)

	return newOTELWriter(provider), nil
}

func newOTELWriter(provider *sdklog.LoggerProvider) *OTelWriter {
	return &OTelWriter{
		provider: provider,
		logger:   provider.Logger(instrumentationName),
	}
}

// Write emits one record per zerolog line. Lines that are not JSON are
// exported verbatim as the record body.
func (w *OTelWriter) Write(p []byte) (int, error) {
	var rec log.Record

	rec.SetObservedTimestamp(time.Now())

	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		rec.SetBody(log.StringValue(string(p)))
		rec.SetSeverity(log.SeverityInfo)
		w.logger.Emit(context.Background(), rec)

		return len(p), nil
	}

	level, _ := fields[zerolog.LevelFieldName].(string)
	rec.SetSeverity(severityOf(level))
	rec.SetSeverityText(level)

	if msg, ok := fields[zerolog.MessageFieldName].(string); ok {
		rec.SetBody(log.StringValue(msg))
	}

	if ts, ok := fields[zerolog.TimestampFieldName].(string); ok {
		if parsed, err := time.Parse(zerolog.TimeFieldFormat, ts); err == nil {
			rec.SetTimestamp(parsed)
		}
	}

	for key, value := range fields {
		switch key {
		case zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.TimestampFieldName:
			continue
		}

		rec.AddAttributes(attributeOf(key, value))
	}

	w.logger.Emit(context.Background(), rec)

	return len(p), nil
}

// Shutdown flushes pending records.
func (w *OTelWriter) Shutdown(ctx context.Context) error {
	return w.provider.Shutdown(ctx)
}

func attributeOf(key string, value interface{}) log.KeyValue {
	switch v := value.(type) {
	case string:
		return log.String(key, truncate(v))
	case bool:
		return log.Bool(key, v)
	case float64:
		if v == float64(int64(v)) {
			return log.Int64(key, int64(v))
		}

		return log.Float64(key, v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return log.String(key, fmt.Sprint(v))
		}

		return log.String(key, truncate(string(raw)))
	}
}

func truncate(s string) string {
	if len(s) <= maxAttributeLength {
		return s
	}

	return s[:maxAttributeLength]
}

func severityOf(level string) log.Severity {
	switch level {
	case "trace":
		return log.SeverityTrace
	case "debug":
		return log.SeverityDebug
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	case "fatal", "panic":
		return log.SeverityFatal
	default:
		return log.SeverityInfo
	}
}

// NewResource describes this process to OTLP back-ends.
func NewResource(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	if version == "" {
		version = "dev"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry resource: %w", err)
	}

	return res, nil
}

// ClientTLSConfig loads the client certificate and CA used to reach the
// collector.
func ClientTLSConfig(tlsConfig *TLSConfig) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if tlsConfig.CAFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errFailedToParseCACert
		}

		config.RootCAs = pool
	}

	return config, nil
}
