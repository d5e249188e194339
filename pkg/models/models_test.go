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

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", input: `"1m30s"`, want: 90 * time.Second},
		{name: "nanoseconds", input: `1000000`, want: time.Millisecond},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.ErrorIs(t, err, errInvalidDuration)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestDurationYAML(t *testing.T) {
	t.Parallel()

	var cfg struct {
		Interval Duration `yaml:"interval"`
		Timeout  Duration `yaml:"timeout"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("interval: 15s\ntimeout: 2000\n"), &cfg))
	assert.Equal(t, 15*time.Second, time.Duration(cfg.Interval))
	assert.Equal(t, 2*time.Microsecond, time.Duration(cfg.Timeout))

	require.Error(t, yaml.Unmarshal([]byte("interval: [1]\n"), &cfg))
}

func TestDurationMarshalJSON(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Duration(5 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"5s"`, string(out))
}

func TestNormalizeTLSPaths(t *testing.T) {
	t.Parallel()

	sec := &SecurityConfig{
		Mode:    SecurityModeMTLS,
		CertDir: "/etc/brokerwatch/certs",
		TLS: TLSConfig{
			CertFile: "client.pem",
			KeyFile:  "/abs/client-key.pem",
			CAFile:   "root.pem",
		},
	}

	sec.NormalizeTLSPaths()

	assert.Equal(t, "/etc/brokerwatch/certs/client.pem", sec.TLS.CertFile)
	assert.Equal(t, "/abs/client-key.pem", sec.TLS.KeyFile)
	assert.Equal(t, "/etc/brokerwatch/certs/root.pem", sec.TLS.CAFile)
}

func TestEventsConfigValidate(t *testing.T) {
	t.Parallel()

	disabled := &EventsConfig{}
	require.NoError(t, disabled.Validate())
	assert.Empty(t, disabled.StreamName)

	missing := &EventsConfig{Enabled: true}
	require.ErrorIs(t, missing.Validate(), errNATSURLRequired)

	cfg := &EventsConfig{Enabled: true, NATS: &NATSConfig{URL: "nats://localhost:4222"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultEventsStream, cfg.StreamName)
	assert.Equal(t, []string{DefaultEventsSubject}, cfg.Subjects)
}
