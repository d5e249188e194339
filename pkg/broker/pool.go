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
	"context"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
	"github.com/carverauto/brokerwatch/pkg/natsutil"
)

// Pool shares one connection between all watchers that use the same
// connection string.
type Pool struct {
	mu       sync.Mutex
	brokers  map[string]*JetStream
	security *models.SecurityConfig
	domain   string
	logger   logger.Logger
}

// NewPool returns an empty pool. security may be nil for plain connections.
func NewPool(security *models.SecurityConfig, domain string, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Pool{
		brokers:  make(map[string]*JetStream),
		security: security,
		domain:   domain,
		logger:   log,
	}
}

// Get returns the broker for connectionString, connecting on first use.
func (p *Pool) Get(ctx context.Context, connectionString string) (*JetStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.brokers[connectionString]; ok {
		return b, nil
	}

	nc, err := natsutil.ConnectWithSecurity(ctx, connectionString, p.security, p.logger,
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}

	b, err := NewJetStream(nc, p.domain, p.logger)
	if err != nil {
		nc.Close()
		return nil, err
	}

	p.brokers[connectionString] = b

	return b, nil
}

// Len reports the number of open connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.brokers)
}

// Close drains every pooled connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, b := range p.brokers {
		if err := b.nc.Drain(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to drain NATS connection")
			b.nc.Close()
		}

		delete(p.brokers, key)
	}
}
