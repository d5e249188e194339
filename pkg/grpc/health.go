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

package grpc

import (
	"context"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/watcher"
)

// HealthReporter mirrors watcher verdicts into the gRPC health service,
// using the watcher name as the service name.
type HealthReporter struct {
	health *health.Server
	logger logger.Logger
}

// NewHealthReporter returns a reporter updating hs.
func NewHealthReporter(hs *health.Server, log logger.Logger) *HealthReporter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &HealthReporter{health: hs, logger: log}
}

// Register publishes NOT_SERVING for name until its first verdict.
func (r *HealthReporter) Register(name string) {
	r.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

func (r *HealthReporter) OnResult(_ context.Context, res *watcher.Result) {
	status := healthpb.HealthCheckResponse_SERVING
	if !res.IsValid {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	r.set(res.Name, status)
}

func (r *HealthReporter) OnError(_ context.Context, name, _ string, _ error) {
	r.set(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

func (r *HealthReporter) set(name string, status healthpb.HealthCheckResponse_ServingStatus) {
	r.health.SetServingStatus(name, status)

	r.logger.Debug().
		Str("watcher", name).
		Str("status", status.String()).
		Msg("Updated health status")
}
