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

// Package grpc serves the standard gRPC health service with one entry per
// watcher.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
)

// ServerOption is a function type that modifies Server configuration.
type ServerOption func(*Server)

var errInternalError = errors.New("internal error")

const shutdownTimer = 5 * time.Second

// Server wraps a gRPC server with health checking, tracing and logging.
type Server struct {
	srv               *grpc.Server
	healthCheck       *health.Server
	addr              string
	logger            logger.Logger
	mu                sync.Mutex
	serverOpts        []grpc.ServerOption
	telemetryDisabled bool
}

// NewServer creates a new gRPC server with the health service registered.
func NewServer(addr string, log logger.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Server{
		addr:   addr,
		logger: log,
	}

	for _, opt := range opts {
		opt(s)
	}

	defaultOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(log),
			RecoveryInterceptor(log),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 10 * time.Minute,
			Time:              120 * time.Second,
			Timeout:           20 * time.Second,
		}),
	}

	if !s.telemetryDisabled {
		defaultOpts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, defaultOpts...)
	}

	s.srv = grpc.NewServer(append(defaultOpts, s.serverOpts...)...)
	s.healthCheck = health.NewServer()

	healthpb.RegisterHealthServer(s.srv, s.healthCheck)
	reflection.Register(s.srv)

	return s
}

// WithServerOptions adds gRPC server options.
func WithServerOptions(opt ...grpc.ServerOption) ServerOption {
	return func(s *Server) {
		s.serverOpts = append(s.serverOpts, opt...)
	}
}

// WithTelemetryDisabled disables OpenTelemetry stats handling for the server.
func WithTelemetryDisabled() ServerOption {
	return func(s *Server) {
		s.telemetryDisabled = true
	}
}

// WithSecurity sets the transport credentials of the server.
func WithSecurity(creds credentials.TransportCredentials) ServerOption {
	return func(s *Server) {
		s.serverOpts = append(s.serverOpts, grpc.Creds(creds))
	}
}

// NewSecureServer is NewServer with transport security taken from sec.
func NewSecureServer(addr string, sec *models.SecurityConfig, log logger.Logger, opts ...ServerOption) (*Server, error) {
	if sec == nil || sec.Mode != models.SecurityModeMTLS {
		return NewServer(addr, log, opts...), nil
	}

	creds, err := ServerCredentials(sec)
	if err != nil {
		return nil, err
	}

	return NewServer(addr, log, append(opts, WithSecurity(creds))...), nil
}

// GetHealthCheck returns the health server instance.
func (s *Server) GetHealthCheck() *health.Server {
	return s.healthCheck
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	lc := &net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// Stop marks every service NOT_SERVING and stops the server gracefully,
// forcing it after a short grace period.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimer)
	defer cancel()

	s.healthCheck.Shutdown()

	stopped := make(chan struct{})

	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info().Msg("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn().Msg("gRPC server shutdown timed out, forcing stop")
		s.srv.Stop()
	}
}

// LoggingInterceptor logs RPC calls with the active trace ids.
func LoggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		event := log.Debug().
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Err(err)

		if spanCtx := trace.SpanFromContext(ctx).SpanContext(); spanCtx.IsValid() {
			event = event.
				Str("trace_id", spanCtx.TraceID().String()).
				Str("span_id", spanCtx.SpanID().String())
		}

		event.Msg("gRPC call")

		return resp, err
	}
}

// RecoveryInterceptor handles panics in RPC handlers.
func RecoveryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("method", info.FullMethod).Interface("panic", r).Msg("Recovered from panic")

				err = errInternalError
			}
		}()

		return handler(ctx, req)
	}
}
