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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/brokerwatch/pkg/logger"
	"github.com/carverauto/brokerwatch/pkg/models"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

var (
	durationType       = reflect.TypeOf(time.Duration(0))
	modelsDurationType = reflect.TypeOf(models.Duration(0))
)

// EnvConfigLoader loads configuration from environment variables. Nested
// fields are joined by underscores, so with the prefix BROKERWATCH_ the
// variable BROKERWATCH_POLLER_POLL_INTERVAL sets Poller.PollInterval.
// A complete JSON document in <prefix>CONFIG_JSON takes precedence.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &EnvConfigLoader{logger: log, prefix: prefix}
}

// Load implements ConfigLoader. The path is ignored.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if raw := os.Getenv(e.prefix + "CONFIG_JSON"); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.logger.Info().Msg("Loaded configuration from CONFIG_JSON environment variable")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	if err := e.loadStruct(v, e.prefix); err != nil {
		return err
	}

	e.logger.Debug().Str("prefix", e.prefix).Msg("Loaded configuration from environment variables")

	return nil
}

func (e *EnvConfigLoader) loadStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		envName := prefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if err := e.loadField(field, envName); err != nil {
			return err
		}
	}

	return nil
}

func (e *EnvConfigLoader) loadField(field reflect.Value, envName string) error {
	value, set := os.LookupEnv(envName)

	switch {
	case set && value != "":
		if err := setValue(field, value); err != nil {
			return fmt.Errorf("%s: %w", envName, err)
		}

		e.logger.Debug().Str("env", envName).Msg("Loaded value from environment variable")

		return nil
	case field.Kind() == reflect.Struct:
		return e.loadStruct(field, envName+"_")
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if !e.anyWithPrefix(envName + "_") {
			return nil
		}

		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return e.loadStruct(field.Elem(), envName+"_")
	default:
		return nil
	}
}

// anyWithPrefix reports whether a variable would populate a nil pointer.
func (*EnvConfigLoader) anyWithPrefix(prefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}

	return false
}

func setValue(field reflect.Value, value string) error {
	if field.Type() == durationType || field.Type() == modelsDurationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		field.SetInt(int64(d))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}

		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %w", err)
		}

		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}

		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String && !strings.HasPrefix(strings.TrimSpace(value), "[") {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}

			field.Set(reflect.ValueOf(parts).Convert(field.Type()))

			return nil
		}

		return unmarshalInto(field, value)
	case reflect.Ptr:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return setValue(field.Elem(), value)
	default:
		return unmarshalInto(field, value)
	}

	return nil
}

// unmarshalInto handles maps, structs and slices of anything but strings.
func unmarshalInto(field reflect.Value, value string) error {
	if err := json.Unmarshal([]byte(value), field.Addr().Interface()); err != nil {
		return fmt.Errorf("invalid %s value: %w", field.Kind(), err)
	}

	return nil
}
