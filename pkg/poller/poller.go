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

// Package poller runs checkers on a fixed interval and fans their results
// out to sinks.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

// Poller schedules checkers. Every checker runs on its own goroutine, so a
// slow broker never delays the others, and a tick that arrives while the
// previous check of the same checker is still running is coalesced.
type Poller struct {
	config    Config
	checkers  []Checker
	sinks     []ResultSink
	clock     Clock
	logger    logger.Logger
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	startWg   sync.WaitGroup
}

// New creates a poller. clock may be nil to use the wall clock.
func New(config *Config, checkers []Checker, sinks []ResultSink, clock Clock, log logger.Logger) (*Poller, error) {
	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(checkers) == 0 {
		return nil, errNoCheckers
	}

	if clock == nil {
		clock = realClock{}
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Poller{
		config:   cfg,
		checkers: checkers,
		sinks:    sinks,
		clock:    clock,
		logger:   log,
		done:     make(chan struct{}),
	}, nil
}

// Start runs every checker once, then again on every tick, until ctx is
// cancelled or Stop is called. It blocks.
func (p *Poller) Start(ctx context.Context) error {
	p.startWg.Add(1)
	defer p.startWg.Done()

	interval := time.Duration(p.config.PollInterval)

	ticker := p.clock.Ticker(interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", interval).
		Dur("check_timeout", time.Duration(p.config.CheckTimeout)).
		Int("checkers", len(p.checkers)).
		Msg("Starting poller")

	triggers := make([]chan struct{}, len(p.checkers))

	for i, c := range p.checkers {
		triggers[i] = make(chan struct{}, 1)
		triggers[i] <- struct{}{}

		p.wg.Add(1)

		go p.loop(ctx, c, triggers[i])
	}

	defer func() {
		for _, trigger := range triggers {
			close(trigger)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-ticker.Chan():
			for i, trigger := range triggers {
				select {
				case trigger <- struct{}{}:
				default:
					p.logger.Debug().
						Str("watcher", p.checkers[i].Name()).
						Msg("Previous check still running, skipping tick")
				}
			}
		}
	}
}

func (p *Poller) loop(ctx context.Context, c Checker, trigger <-chan struct{}) {
	defer p.wg.Done()

	for range trigger {
		if ctx.Err() != nil {
			return
		}

		p.check(ctx, c)
	}
}

func (p *Poller) check(ctx context.Context, c Checker) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.config.CheckTimeout))
	defer cancel()

	start := p.clock.Now()

	res, err := c.Execute(ctx)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("watcher", c.Name()).
			Str("group", c.Group()).
			Dur("elapsed", p.clock.Now().Sub(start)).
			Msg("Check failed")

		for _, sink := range p.sinks {
			sink.OnError(ctx, c.Name(), c.Group(), err)
		}

		return
	}

	for _, sink := range p.sinks {
		sink.OnResult(ctx, res)
	}
}

// Stop ends Start and waits for running checks to return.
func (p *Poller) Stop(_ context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.startWg.Wait()
	p.wg.Wait()

	p.logger.Info().Msg("Poller stopped")

	return nil
}

// LogSink writes every verdict to a logger.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink returns a sink logging through log.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) OnResult(_ context.Context, res *watcher.Result) {
	event := s.logger.Info()
	if !res.IsValid {
		event = s.logger.Warn()
	}

	event.
		Str("watcher", res.Name).
		Str("group", res.Group).
		Str("address", res.Address).
		Bool("valid", res.IsValid).
		Dur("duration", res.Duration).
		Str("description", res.Description).
		Msg("Watcher verdict")
}

func (s *LogSink) OnError(_ context.Context, name, group string, err error) {
	s.logger.Error().
		Err(err).
		Str("watcher", name).
		Str("group", group).
		Msg("Watcher could not complete")
}
