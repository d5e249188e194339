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
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
	"github.com/carverauto/brokerwatch/pkg/natsutil"
	"github.com/carverauto/brokerwatch/pkg/poller"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	t.Cleanup(srv.Shutdown)

	return srv
}

type captureSink struct {
	mu      sync.Mutex
	results []*watcher.Result
	errs    []error
	notify  chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{notify: make(chan struct{}, 16)}
}

func (c *captureSink) OnResult(_ context.Context, res *watcher.Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()

	c.notify <- struct{}{}
}

func (c *captureSink) OnError(_ context.Context, _, _ string, err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()

	c.notify <- struct{}{}
}

func (c *captureSink) wait(t *testing.T, n int) {
	t.Helper()

	for range n {
		select {
		case <-c.notify:
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for check results")
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	queues := watcher.Config{QueueProcessing: watcher.ProcessingConfig{MonitorAll: true}}

	tests := []struct {
		name    string
		config  Config
		wantErr error
		wantMsg string
	}{
		{
			name:    "no watchers",
			config:  Config{},
			wantErr: errNoWatchers,
		},
		{
			name:    "unnamed watcher",
			config:  Config{NATSURL: "nats://localhost:4222", Watchers: []WatcherConfig{{Config: queues}}},
			wantErr: errWatcherName,
		},
		{
			name:    "missing connection",
			config:  Config{Watchers: []WatcherConfig{{Name: "a", Config: queues}}},
			wantErr: errMissingConnection,
		},
		{
			name: "duplicate names",
			config: Config{NATSURL: "nats://localhost:4222", Watchers: []WatcherConfig{
				{Name: "a", Config: queues},
				{Name: "a", Config: queues},
			}},
			wantErr: errDuplicateWatcher,
		},
		{
			name: "invalid watcher",
			config: Config{NATSURL: "nats://localhost:4222", Watchers: []WatcherConfig{{Name: "a", Config: watcher.Config{
				QueueProcessing: watcher.ProcessingConfig{MonitorAll: true, Specific: []string{"x"}},
			}}}},
			wantErr: watcher.ErrInvalidConfig,
		},
		{
			name: "negative interval",
			config: Config{
				NATSURL:  "nats://localhost:4222",
				Watchers: []WatcherConfig{{Name: "a", Config: queues}},
				Poller:   poller.Config{PollInterval: models.Duration(-time.Second)},
			},
			wantMsg: "poller",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.config
			err := cfg.Validate()
			require.Error(t, err)

			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{
		NATSURL: "nats://localhost:4222",
		Domain:  "hub",
		Watchers: []WatcherConfig{
			{Name: "orders", Config: watcher.Config{QueueProcessing: watcher.ProcessingConfig{MonitorAll: true}}},
			{Name: "audit", Config: watcher.Config{ConnectionString: "nats://other:4222", MonitorTopics: []string{"audit"}}},
		},
		Events: &models.EventsConfig{Enabled: true},
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "nats://localhost:4222", cfg.Watchers[0].ConnectionString)
	assert.Equal(t, "nats://other:4222", cfg.Watchers[1].ConnectionString)
	assert.True(t, cfg.Watchers[0].QueueProcessing.MonitorProcessing)
	assert.Equal(t, models.Duration(30*time.Second), cfg.Poller.PollInterval)
	require.NotNil(t, cfg.Events.NATS)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATS.URL)
	assert.Equal(t, "hub", cfg.Events.NATS.Domain)
	assert.Equal(t, models.DefaultEventsStream, cfg.Events.StreamName)
}

func TestWatcherConfigDecodesFlat(t *testing.T) {
	t.Parallel()

	var wc WatcherConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "orders",
		"connection_string": "nats://localhost:4222",
		"queue_processing": {"exempt": ["dead-letters"]},
		"monitor_topics": ["audit"],
		"require_entities": ["orders"]
	}`), &wc))

	assert.Equal(t, "orders", wc.Name)
	assert.Equal(t, "nats://localhost:4222", wc.ConnectionString)
	assert.Equal(t, []string{"dead-letters"}, wc.QueueProcessing.Exempt)
	assert.Equal(t, []string{"audit"}, wc.MonitorTopics)
	assert.Equal(t, []string{"orders"}, wc.RequireEntities)
}

func TestServiceRunsWatchersAndPublishesEvents(t *testing.T) {
	srv := runJetStreamServer(t)
	ctx := context.Background()

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      "orders",
		Subjects:  []string{"orders.>"},
		Retention: jetstream.WorkQueuePolicy,
	})
	require.NoError(t, err)

	_, err = js.Publish(ctx, "orders.created", []byte("o-1"), jetstream.WithMsgID("order-1"))
	require.NoError(t, err)

	cfg := &Config{
		NATSURL: srv.ClientURL(),
		Poller:  poller.Config{PollInterval: models.Duration(time.Hour)},
		Watchers: []WatcherConfig{
			{
				Name:   "orders",
				Group:  "billing",
				Config: watcher.Config{QueueProcessing: watcher.ProcessingConfig{MonitorAll: true}},
			},
			{
				Name:            "inventory",
				RequireEntities: []string{"inventory"},
				Config:          watcher.Config{QueueProcessing: watcher.ProcessingConfig{MonitorAll: true}},
			},
		},
		Events: &models.EventsConfig{Enabled: true},
	}
	require.NoError(t, cfg.Validate())

	sink := newCaptureSink()

	svc, err := New(ctx, cfg, logger.NewTestLogger(t),
		WithMeterProvider(sdkmetric.NewMeterProvider()),
		WithSink(sink),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.pool.Len(), "watchers on the same URL share a connection")

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() { done <- svc.Start(runCtx) }()

	sink.wait(t, 2)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, svc.Stop(ctx))

	sink.mu.Lock()
	defer sink.mu.Unlock()

	require.Empty(t, sink.errs)
	require.Len(t, sink.results, 2)

	byName := map[string]*watcher.Result{}
	for _, res := range sink.results {
		byName[res.Name] = res
	}

	assert.True(t, byName["orders"].IsValid, "first observation sets the baseline")
	assert.Equal(t, "billing", byName["orders"].Group)
	assert.False(t, byName["inventory"].IsValid, "required stream is missing")

	stream, err := js.Stream(ctx, models.DefaultEventsStream)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, err := stream.Info(ctx)
		return err == nil && info.State.Msgs == 2
	}, 5*time.Second, 50*time.Millisecond)

	msg, err := stream.GetLastMsgForSubject(ctx, natsutil.WatcherSubject("orders"))
	require.NoError(t, err)

	var event models.CloudEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, natsutil.WatcherResultEventType, event.Type)

	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "orders", data["watcher"])
	assert.Equal(t, true, data["is_valid"])
}

type failingPublisher struct {
	calls   []models.WatcherResultEventData
	ctxErrs []error
}

func (f *failingPublisher) PublishWatcherResult(ctx context.Context, data models.WatcherResultEventData) error {
	f.calls = append(f.calls, data)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())

	return errors.New("nats: no responders available")
}

func TestEventSinkMapsErrorsAndIgnoresCancellation(t *testing.T) {
	t.Parallel()

	pub := &failingPublisher{}
	sink := NewEventSink(pub, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink.OnError(ctx, "orders", "billing", errors.New("check timed out"))
	sink.OnResult(context.Background(), &watcher.Result{
		Name:     "orders",
		IsValid:  true,
		Duration: 1500 * time.Millisecond,
	})

	require.Len(t, pub.calls, 2)
	assert.Equal(t, []error{nil, nil}, pub.ctxErrs)
	assert.Equal(t, models.WatcherResultEventData{
		Watcher: "orders",
		Group:   "billing",
		Error:   "check timed out",
	}, pub.calls[0])
	assert.Equal(t, int64(1500), pub.calls[1].DurationMs)
	assert.True(t, pub.calls[1].IsValid)
}

func TestNewRejectsUnreachableBroker(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		NATSURL: "nats://127.0.0.1:1",
		Watchers: []WatcherConfig{
			{Name: "orders", Config: watcher.Config{QueueProcessing: watcher.ProcessingConfig{MonitorAll: true}}},
		},
	}
	require.NoError(t, cfg.Validate())

	_, err := New(context.Background(), cfg, nil, WithMeterProvider(sdkmetric.NewMeterProvider()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watcher orders")

	_, err = New(context.Background(), nil, nil)
	require.ErrorIs(t, err, errNilConfig)
}
