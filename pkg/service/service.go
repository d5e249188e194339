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

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/brokerwatch/pkg/broker"
	grpcsrv "github.com/carverauto/brokerwatch/pkg/grpc"
	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/metrics"
	"github.com/carverauto/brokerwatch/pkg/natsutil"
	"github.com/carverauto/brokerwatch/pkg/poller"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

var errNilConfig = errors.New("service config is nil")

// Service runs one watcher per configured entry on the poller schedule.
type Service struct {
	config        *Config
	logger        logger.Logger
	pool          *broker.Pool
	poller        *poller.Poller
	server        *grpcsrv.Server
	eventsConn    *nats.Conn
	meterProvider metric.MeterProvider
	clock         poller.Clock
	ensure        map[string][]watcher.EnsureFunc
	extraSinks    []poller.ResultSink
}

// Option customizes a Service.
type Option func(*Service)

// WithMeterProvider replaces the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// WithClock sets the poller clock, for tests.
func WithClock(clock poller.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithEnsure attaches predicates to the watcher called name.
func WithEnsure(name string, fns ...watcher.EnsureFunc) Option {
	return func(s *Service) {
		s.ensure[name] = append(s.ensure[name], fns...)
	}
}

// WithSink adds a result sink after the built-in ones.
func WithSink(sink poller.ResultSink) Option {
	return func(s *Service) {
		s.extraSinks = append(s.extraSinks, sink)
	}
}

// New connects to every broker and builds the watchers. cfg must already be
// validated.
func New(ctx context.Context, cfg *Config, log logger.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Service{
		config: cfg,
		logger: log,
		ensure: make(map[string][]watcher.EnsureFunc),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}

	if err := s.build(ctx); err != nil {
		s.close()
		return nil, err
	}

	return s, nil
}

func (s *Service) build(ctx context.Context) error {
	instruments, err := metrics.New(s.meterProvider)
	if err != nil {
		return err
	}

	s.pool = broker.NewPool(s.config.Security, s.config.Domain, s.logger.WithComponent("broker"))

	checkers := make([]poller.Checker, 0, len(s.config.Watchers))

	for i := range s.config.Watchers {
		w, err := s.newWatcher(ctx, &s.config.Watchers[i], instruments)
		if err != nil {
			return err
		}

		checkers = append(checkers, w)
	}

	sinks := []poller.ResultSink{poller.NewLogSink(s.logger.WithComponent("verdicts")), instruments}

	if s.config.ListenAddr != "" {
		reporter, err := s.newHealthServer(checkers)
		if err != nil {
			return err
		}

		sinks = append(sinks, reporter)
	}

	if s.config.Events != nil && s.config.Events.Enabled {
		sink, err := s.newEventSink(ctx)
		if err != nil {
			return err
		}

		sinks = append(sinks, sink)
	}

	sinks = append(sinks, s.extraSinks...)

	s.poller, err = poller.New(&s.config.Poller, checkers, sinks, s.clock, s.logger.WithComponent("poller"))
	if err != nil {
		return err
	}

	return nil
}

func (s *Service) newWatcher(ctx context.Context, wc *WatcherConfig, instruments *metrics.Instruments) (*watcher.Watcher, error) {
	b, err := s.pool.Get(ctx, wc.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("watcher %s: %w", wc.Name, err)
	}

	cfg := wc.Config

	predicates := s.ensure[wc.Name]
	if len(wc.RequireEntities) > 0 {
		predicates = append([]watcher.EnsureFunc{requireEntities(wc.RequireEntities)}, predicates...)
	}

	for _, fn := range predicates {
		if err := watcher.EnsureThat(fn)(&cfg); err != nil {
			return nil, fmt.Errorf("watcher %s: %w", wc.Name, err)
		}
	}

	return watcher.New(wc.Name, wc.Group, &cfg, b,
		watcher.WithLogger(s.logger.WithComponent("watcher").WithFields(map[string]interface{}{"watcher": wc.Name})),
		watcher.WithRecorder(instruments.Recorder(wc.Name)),
	)
}

func (s *Service) newHealthServer(checkers []poller.Checker) (*grpcsrv.HealthReporter, error) {
	server, err := grpcsrv.NewSecureServer(s.config.ListenAddr, s.config.GRPCSecurity, s.logger.WithComponent("grpc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	s.server = server

	reporter := grpcsrv.NewHealthReporter(server.GetHealthCheck(), s.logger.WithComponent("health"))
	for _, c := range checkers {
		reporter.Register(c.Name())
	}

	return reporter, nil
}

func (s *Service) newEventSink(ctx context.Context) (*EventSink, error) {
	events := s.config.Events
	log := s.logger.WithComponent("events")

	nc, err := natsutil.ConnectWithSecurity(ctx, events.NATS.URL, events.NATS.Security, log, nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	s.eventsConn = nc

	publisher, err := natsutil.CreateEventPublisher(ctx, nc, events.NATS.Domain, events.StreamName, events.Subjects, log)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	return NewEventSink(publisher, log), nil
}

// Start serves the health endpoint, if configured, and runs the poller
// until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	if s.server != nil {
		go func() {
			if err := s.server.Start(); err != nil {
				s.logger.Error().Err(err).Str("addr", s.config.ListenAddr).Msg("gRPC server failed")
			}
		}()
	}

	s.logger.Info().Int("watchers", len(s.config.Watchers)).Msg("Starting brokerwatch")

	return s.poller.Start(ctx)
}

// Stop waits for running checks and releases every connection.
func (s *Service) Stop(ctx context.Context) error {
	err := s.poller.Stop(ctx)

	if s.server != nil {
		s.server.Stop(ctx)
	}

	s.close()

	return err
}

func (s *Service) close() {
	if s.eventsConn != nil {
		if err := s.eventsConn.Drain(); err != nil {
			s.eventsConn.Close()
		}

		s.eventsConn = nil
	}

	if s.pool != nil {
		s.pool.Close()
	}
}

// requireEntities passes when every name is a queue or topic on the broker.
func requireEntities(names []string) watcher.EnsureFunc {
	return func(ctx context.Context, b watcher.Broker) (bool, error) {
		present := make(map[string]struct{})

		for _, list := range []func(context.Context) ([]watcher.Entity, error){b.ListQueues, b.ListTopics} {
			entities, err := list(ctx)
			if err != nil {
				return false, err
			}

			for _, e := range entities {
				present[e.Path] = struct{}{}
			}
		}

		for _, name := range names {
			if _, ok := present[name]; !ok {
				return false, nil
			}
		}

		return true, nil
	}
}
