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
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// Logger is the logging surface handed to components. It is satisfied by
// the global zerolog logger as well as by per-component instances.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	Panic() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) Logger
	WithFields(fields map[string]interface{}) Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

type zerologLogger struct {
	mu     sync.RWMutex
	logger zerolog.Logger
}

// New wraps an existing zerolog logger.
func New(zl zerolog.Logger) Logger {
	return &zerologLogger{logger: zl}
}

// NewWriterLogger builds a timestamped logger writing JSON lines to w.
func NewWriterLogger(w io.Writer, level zerolog.Level) Logger {
	return New(zerolog.New(w).Level(level).With().Timestamp().Logger())
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return New(zerolog.Nop())
}

// NewTestLogger routes output through t.Log so it only shows for failing tests.
func NewTestLogger(t testing.TB) Logger {
	t.Helper()

	return New(zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).With().Timestamp().Logger())
}

func (l *zerologLogger) current() *zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	zl := l.logger

	return &zl
}

func (l *zerologLogger) Trace() *zerolog.Event { return l.current().Trace() }
func (l *zerologLogger) Debug() *zerolog.Event { return l.current().Debug() }
func (l *zerologLogger) Info() *zerolog.Event  { return l.current().Info() }
func (l *zerologLogger) Warn() *zerolog.Event  { return l.current().Warn() }
func (l *zerologLogger) Error() *zerolog.Event { return l.current().Error() }
func (l *zerologLogger) Fatal() *zerolog.Event { return l.current().Fatal() }
func (l *zerologLogger) Panic() *zerolog.Event { return l.current().Panic() }
func (l *zerologLogger) With() zerolog.Context { return l.current().With() }

func (l *zerologLogger) WithComponent(component string) Logger {
	return New(l.current().With().Str("component", component).Logger())
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	ctx := l.current().With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return New(ctx.Logger())
}

func (l *zerologLogger) SetLevel(level zerolog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger = l.logger.Level(level)
}

func (l *zerologLogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
		return
	}

	l.SetLevel(zerolog.InfoLevel)
}
