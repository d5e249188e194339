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

// Package logger provides JSON structured logging using zerolog, with
// optional export of every log line over OTLP.
package logger

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errNilConfig = errors.New("logger config is nil")

// Config controls the process wide logger.
type Config struct {
	Level      string     `json:"level" yaml:"level"`
	Debug      bool       `json:"debug" yaml:"debug"`
	Output     string     `json:"output" yaml:"output"`
	TimeFormat string     `json:"time_format" yaml:"time_format"`
	OTel       OTelConfig `json:"otel" yaml:"otel"`
}

//nolint:gochecknoglobals // process wide logger
var (
	globalLogger = New(zerolog.New(os.Stdout).With().Timestamp().Logger())
	otelWriter   *OTelWriter
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Init replaces the global logger. When OTel export is enabled every line is
// written to both the local output and the OTLP exporter.
func Init(ctx context.Context, config *Config) error {
	if config == nil {
		return errNilConfig
	}

	level, err := parseLevel(config)
	if err != nil {
		return err
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	if config.OTel.Enabled {
		w, err := NewOTELWriter(ctx, config.OTel)
		if err != nil {
			return err
		}

		otelWriter = w
		output = zerolog.MultiLevelWriter(output, w)
	}

	zl := zerolog.New(output).Level(level).With().Timestamp().Logger()
	globalLogger = New(zl)
	log.Logger = zl

	return nil
}

func parseLevel(config *Config) (zerolog.Level, error) {
	if config.Debug {
		return zerolog.DebugLevel, nil
	}

	if config.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(config.Level)
}

// Shutdown flushes and stops the OTLP log exporter, if one was started.
func Shutdown(ctx context.Context) error {
	if otelWriter == nil {
		return nil
	}

	err := otelWriter.Shutdown(ctx)
	otelWriter = nil

	return err
}

// GetLogger returns the global logger.
func GetLogger() Logger {
	return globalLogger
}

func SetLevel(level zerolog.Level) {
	globalLogger.SetLevel(level)
}

func SetDebug(debug bool) {
	globalLogger.SetDebug(debug)
}

func Debug() *zerolog.Event {
	return globalLogger.Debug()
}

func Info() *zerolog.Event {
	return globalLogger.Info()
}

func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

func Error() *zerolog.Event {
	return globalLogger.Error()
}

func WithComponent(component string) Logger {
	return globalLogger.WithComponent(component)
}
