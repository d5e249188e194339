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

package broker

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(srv.Shutdown)

	return srv
}

type fixture struct {
	srv    *server.Server
	js     jetstream.JetStream
	broker *JetStream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := runJetStreamServer(t)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	b, err := NewJetStream(nc, "", logger.NewTestLogger(t))
	require.NoError(t, err)

	return &fixture{srv: srv, js: js, broker: b}
}

func (f *fixture) stream(t *testing.T, name string, retention jetstream.RetentionPolicy) {
	t.Helper()

	_, err := f.js.CreateStream(context.Background(), jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{name + ".>"},
		Retention: retention,
	})
	require.NoError(t, err)
}

func TestListClassifiesStreams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stream(t, "orders", jetstream.WorkQueuePolicy)
	f.stream(t, "billing", jetstream.WorkQueuePolicy)
	f.stream(t, "audit", jetstream.LimitsPolicy)
	f.stream(t, "events", jetstream.InterestPolicy)
	f.stream(t, "OBJ_blobs", jetstream.WorkQueuePolicy)

	_, err := f.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: "settings"})
	require.NoError(t, err)

	queues, err := f.broker.ListQueues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []watcher.Entity{
		{Path: "billing", Kind: watcher.KindQueue},
		{Path: "orders", Kind: watcher.KindQueue},
	}, queues)

	topics, err := f.broker.ListTopics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []watcher.Entity{
		{Path: "events", Kind: watcher.KindTopic},
	}, topics, "limits streams and store streams are not watched")
}

func TestPeekDoesNotConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stream(t, "orders", jetstream.WorkQueuePolicy)

	orders := watcher.Entity{Path: "orders", Kind: watcher.KindQueue}

	msg, err := f.broker.Peek(ctx, orders)
	require.NoError(t, err)
	assert.Nil(t, msg, "empty stream has no head")

	_, err = f.js.Publish(ctx, "orders.created", []byte("first"), jetstream.WithMsgID("order-1"))
	require.NoError(t, err)

	_, err = f.js.Publish(ctx, "orders.created", []byte("second"))
	require.NoError(t, err)

	for range 3 {
		msg, err = f.broker.Peek(ctx, orders)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, "order-1", msg.ID)
		assert.Equal(t, []byte("first"), msg.Body)
	}

	stream, err := f.js.Stream(ctx, "orders")
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.State.Msgs)
	assert.Zero(t, info.State.Consumers)

	require.NoError(t, stream.DeleteMsg(ctx, 1))

	msg, err = f.broker.Peek(ctx, orders)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "2", msg.ID, "stream sequence is the id without a Nats-Msg-Id header")
	assert.Equal(t, []byte("second"), msg.Body)
}

func TestPeekMissingStream(t *testing.T) {
	f := newFixture(t)

	msg, err := f.broker.Peek(context.Background(), watcher.Entity{Path: "gone", Kind: watcher.KindTopic})
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestAddress(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, f.srv.ClientURL(), f.broker.Address())
}

func TestNewJetStreamNilConnection(t *testing.T) {
	t.Parallel()

	_, err := NewJetStream(nil, "", nil)
	require.ErrorIs(t, err, errNilConnection)
}

func TestWatcherDetectsStalledWorkQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stream(t, "orders", jetstream.WorkQueuePolicy)

	_, err := f.js.Publish(ctx, "orders.created", []byte("{}"), jetstream.WithMsgID("o-1"))
	require.NoError(t, err)

	cfg, err := watcher.NewConfig(f.srv.ClientURL(), watcher.MonitorProcessingInAllQueues())
	require.NoError(t, err)

	w, err := watcher.New("orders", "", cfg, f.broker)
	require.NoError(t, err)

	res, err := w.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	res, err = w.Execute(ctx)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Description, "Message Id `o-1`")

	consumer, err := f.js.CreateConsumer(ctx, "orders", jetstream.ConsumerConfig{AckPolicy: jetstream.AckExplicitPolicy})
	require.NoError(t, err)

	batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(2*time.Second))
	require.NoError(t, err)

	for m := range batch.Messages() {
		require.NoError(t, m.DoubleAck(ctx))
	}

	require.NoError(t, batch.Error())

	require.Eventually(t, func() bool {
		res, err = w.Execute(ctx)
		return err == nil && res.IsValid
	}, 5*time.Second, 100*time.Millisecond)
}

func TestWatcherClearsDrainedTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stream(t, "audit", jetstream.InterestPolicy)

	consumer, err := f.js.CreateOrUpdateConsumer(ctx, "audit", jetstream.ConsumerConfig{
		Durable:   "archiver",
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	require.NoError(t, err)

	_, err = f.js.Publish(ctx, "audit.login", []byte("{}"), jetstream.WithMsgID("a-1"))
	require.NoError(t, err)

	cfg, err := watcher.NewConfig(f.srv.ClientURL(), watcher.MonitorProcessingInAllTopics())
	require.NoError(t, err)

	w, err := watcher.New("audit", "", cfg, f.broker)
	require.NoError(t, err)

	res, err := w.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	res, err = w.Execute(ctx)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Description, "topic `audit` seems to be stalling")

	batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(2*time.Second))
	require.NoError(t, err)

	for m := range batch.Messages() {
		require.NoError(t, m.DoubleAck(ctx))
	}

	require.NoError(t, batch.Error())

	require.Eventually(t, func() bool {
		res, err = w.Execute(ctx)
		return err == nil && res.IsValid
	}, 5*time.Second, 100*time.Millisecond)

	for range 2 {
		res, err = w.Execute(ctx)
		require.NoError(t, err)
		assert.True(t, res.IsValid, res.Description)
	}
}

type movingHead struct {
	gets int
}

func (*movingHead) CachedInfo() *jetstream.StreamInfo {
	return &jetstream.StreamInfo{State: jetstream.StreamState{Msgs: 1, FirstSeq: 7}}
}

func (m *movingHead) GetMsg(context.Context, uint64, ...jetstream.GetMsgOpt) (*jetstream.RawStreamMsg, error) {
	m.gets++

	return nil, jetstream.ErrMsgNotFound
}

func TestPeekLogsWhenHeadKeepsMoving(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	b := &JetStream{logger: logger.NewWriterLogger(&buf, zerolog.DebugLevel)}
	head := &movingHead{}

	msg, err := b.peek(context.Background(), "orders", func(context.Context, string) (streamHead, error) {
		return head, nil
	})
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, maxPeekAttempts, head.gets)
	assert.Contains(t, buf.String(), "Stream head kept moving during peek")
	assert.Contains(t, buf.String(), `"stream":"orders"`)
}

func TestPoolSharesConnections(t *testing.T) {
	srv := runJetStreamServer(t)
	ctx := context.Background()

	pool := NewPool(nil, "", logger.NewTestLogger(t))
	t.Cleanup(pool.Close)

	first, err := pool.Get(ctx, srv.ClientURL())
	require.NoError(t, err)

	second, err := pool.Get(ctx, srv.ClientURL())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, pool.Len())

	pool.Close()
	assert.Zero(t, pool.Len())
}
