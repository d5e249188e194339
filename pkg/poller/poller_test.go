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

package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

type fakeChecker struct {
	name    string
	group   string
	execute func(ctx context.Context) (*watcher.Result, error)

	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
}

func (c *fakeChecker) Name() string  { return c.name }
func (c *fakeChecker) Group() string { return c.group }

func (c *fakeChecker) Execute(ctx context.Context) (*watcher.Result, error) {
	c.mu.Lock()
	c.calls++
	c.inFlight++
	c.maxInFlight = max(c.maxInFlight, c.inFlight)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if c.execute != nil {
		return c.execute(ctx)
	}

	return &watcher.Result{Name: c.name, Group: c.group, IsValid: true}, nil
}

func (c *fakeChecker) snapshot() (calls, maxInFlight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls, c.maxInFlight
}

type recordingSink struct {
	mu      sync.Mutex
	results []*watcher.Result
	errs    []error
}

func (s *recordingSink) OnResult(_ context.Context, res *watcher.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, res)
}

func (s *recordingSink) OnError(_ context.Context, _, _ string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs = append(s.errs, err)
}

func (s *recordingSink) counts() (results, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.results), len(s.errs)
}

func fakeClock(t *testing.T, interval time.Duration) (*MockClock, chan time.Time) {
	t.Helper()

	ctrl := gomock.NewController(t)
	clock := NewMockClock(ctrl)
	ticker := NewMockTicker(ctrl)
	ticks := make(chan time.Time)

	clock.EXPECT().Ticker(interval).Return(ticker)
	clock.EXPECT().Now().Return(time.Unix(0, 0)).AnyTimes()
	ticker.EXPECT().Chan().Return((<-chan time.Time)(ticks)).AnyTimes()
	ticker.EXPECT().Stop()

	return clock, ticks
}

func startPoller(t *testing.T, p *Poller, ctx context.Context) <-chan error {
	t.Helper()

	errCh := make(chan error, 1)

	go func() {
		errCh <- p.Start(ctx)
	}()

	return errCh
}

func TestPollerRunsImmediatelyAndOnTick(t *testing.T) {
	clock, ticks := fakeClock(t, time.Minute)
	sink := &recordingSink{}
	orders := &fakeChecker{name: "orders"}
	audit := &fakeChecker{name: "audit"}

	p, err := New(&Config{PollInterval: models.Duration(time.Minute)},
		[]Checker{orders, audit}, []ResultSink{sink}, clock, logger.NewTestLogger(t))
	require.NoError(t, err)

	errCh := startPoller(t, p, context.Background())

	require.Eventually(t, func() bool {
		results, _ := sink.counts()
		return results == 2
	}, 2*time.Second, 5*time.Millisecond)

	ticks <- time.Now()

	require.Eventually(t, func() bool {
		results, _ := sink.counts()
		return results == 4
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, <-errCh)

	calls, _ := orders.snapshot()
	assert.Equal(t, 2, calls)
}

func TestPollerDoesNotOverlapChecks(t *testing.T) {
	clock, ticks := fakeClock(t, time.Second)
	release := make(chan struct{})

	slow := &fakeChecker{name: "slow"}
	slow.execute = func(context.Context) (*watcher.Result, error) {
		<-release
		return &watcher.Result{Name: "slow", IsValid: true}, nil
	}

	p, err := New(&Config{PollInterval: models.Duration(time.Second), CheckTimeout: models.Duration(time.Minute)},
		[]Checker{slow}, nil, clock, logger.NewTestLogger(t))
	require.NoError(t, err)

	errCh := startPoller(t, p, context.Background())

	require.Eventually(t, func() bool {
		calls, _ := slow.snapshot()
		return calls == 1
	}, 2*time.Second, 5*time.Millisecond)

	for range 3 {
		ticks <- time.Now()
	}

	close(release)

	require.Eventually(t, func() bool {
		calls, _ := slow.snapshot()
		return calls >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, <-errCh)

	calls, maxInFlight := slow.snapshot()
	assert.Equal(t, 1, maxInFlight)
	assert.LessOrEqual(t, calls, 3, "ticks received while busy are coalesced")
}

func TestPollerCheckTimeout(t *testing.T) {
	clock, _ := fakeClock(t, time.Minute)
	ctrl := gomock.NewController(t)
	sink := NewMockResultSink(ctrl)

	hung := &fakeChecker{name: "hung", group: "payments"}
	hung.execute = func(ctx context.Context) (*watcher.Result, error) {
		<-ctx.Done()
		return nil, &watcher.ExecutionError{Watcher: "hung", Err: ctx.Err()}
	}

	errs := make(chan error, 1)
	sink.EXPECT().OnError(gomock.Any(), "hung", "payments", gomock.Any()).
		Do(func(_ context.Context, _, _ string, err error) { errs <- err })

	p, err := New(&Config{PollInterval: models.Duration(time.Minute), CheckTimeout: models.Duration(20 * time.Millisecond)},
		[]Checker{hung}, []ResultSink{sink}, clock, logger.NewTestLogger(t))
	require.NoError(t, err)

	errCh := startPoller(t, p, context.Background())

	select {
	case got := <-errs:
		require.ErrorIs(t, got, watcher.ErrExecution)
		require.ErrorIs(t, got, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("check did not time out")
	}

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, <-errCh)
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	clock, _ := fakeClock(t, time.Minute)
	sink := &recordingSink{}

	p, err := New(&Config{PollInterval: models.Duration(time.Minute)},
		[]Checker{&fakeChecker{name: "orders"}}, []ResultSink{sink}, clock, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := startPoller(t, p, ctx)

	require.Eventually(t, func() bool {
		results, _ := sink.counts()
		return results == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.NoError(t, p.Stop(context.Background()))
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	checkers := []Checker{&fakeChecker{name: "x"}}

	_, err := New(&Config{}, nil, nil, nil, nil)
	require.ErrorIs(t, err, errNoCheckers)

	_, err = New(&Config{PollInterval: -1}, checkers, nil, nil, nil)
	require.ErrorIs(t, err, errNegativeInterval)

	_, err = New(&Config{CheckTimeout: -1}, checkers, nil, nil, nil)
	require.ErrorIs(t, err, errNegativeTimeout)

	p, err := New(&Config{}, checkers, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Duration(defaultPollInterval), p.config.PollInterval)
	assert.Equal(t, p.config.PollInterval, p.config.CheckTimeout)
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	sink := NewLogSink(logger.NewWriterLogger(&buf, zerolog.InfoLevel))
	sink.OnResult(context.Background(), &watcher.Result{
		Name:        "orders",
		IsValid:     false,
		Description: "The queue `orders` seems to be stalling its processing. Message Id `m1`.",
		Address:     "nats://localhost:4222",
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "orders", line["watcher"])
	assert.Equal(t, false, line["valid"])
	assert.Contains(t, line["description"], "seems to be stalling")

	buf.Reset()
	sink.OnError(context.Background(), "orders", "payments", errors.New("connection refused"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "connection refused", line["error"])
}
