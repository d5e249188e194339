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

//go:generate mockgen -destination=mock_poller.go -package=poller github.com/carverauto/brokerwatch/pkg/poller Clock,Ticker,ResultSink

package poller

import (
	"context"
	"time"

	"github.com/carverauto/brokerwatch/pkg/watcher"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Checker is anything the poller can run on every tick. *watcher.Watcher
// implements it.
type Checker interface {
	Name() string
	Group() string
	Execute(ctx context.Context) (*watcher.Result, error)
}

// ResultSink receives the outcome of every check.
type ResultSink interface {
	OnResult(ctx context.Context, res *watcher.Result)
	OnError(ctx context.Context, name, group string, err error)
}
