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
	"os"
	"strconv"
	"strings"
)

const defaultServiceName = "brokerwatch"

// DefaultConfig reads the logger settings from the environment.
func DefaultConfig() *Config {
	return &Config{
		Level:      getEnvOrDefault("LOG_LEVEL", "info"),
		Debug:      getEnvBoolOrDefault("LOG_DEBUG", false),
		Output:     getEnvOrDefault("LOG_OUTPUT", "stdout"),
		TimeFormat: getEnvOrDefault("LOG_TIME_FORMAT", ""),
		OTel:       DefaultOTelConfig(),
	}
}

// DefaultOTelConfig uses the standard OTEL_* variables where one exists.
func DefaultOTelConfig() OTelConfig {
	cfg := OTelConfig{
		Enabled:     getEnvBoolOrDefault("OTEL_LOGS_ENABLED", false),
		Endpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		ServiceName: getEnvOrDefault("OTEL_SERVICE_NAME", defaultServiceName),
		Insecure:    getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
	}

	if raw := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); raw != "" {
		cfg.Headers = parseHeaders(raw)
	}

	return cfg
}

// parseHeaders reads the comma separated key=value list used by OTLP.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if key = strings.TrimSpace(key); key != "" {
			headers[key] = strings.TrimSpace(value)
		}
	}

	return headers
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}
