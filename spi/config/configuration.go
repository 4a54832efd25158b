/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"github.com/go-errors/errors"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type CatalogType string

const (
	MemoryCatalog   CatalogType = "memory"
	PostgresCatalog CatalogType = "postgres"
)

type StorageType string

const (
	MemoryStorage   StorageType = "memory"
	PostgresStorage StorageType = "postgres"
)

type PostgreSQLConfig struct {
	Connection     string        `toml:"connection"`
	Password       string        `toml:"password"`
	MaxConnections int32         `toml:"maxconnections"`
	Connect        ConnectConfig `toml:"connect"`
}

type ConnectConfig struct {
	MaxAttempts uint64        `toml:"maxattempts"`
	Timeout     time.Duration `toml:"timeout"`
}

type CatalogConfig struct {
	Type            CatalogType        `toml:"type"`
	Schema          string             `toml:"schema"`
	Create          *bool              `toml:"create"`
	ResolveAttempts int                `toml:"resolveattempts"`
	Hypertables     []HypertableConfig `toml:"hypertables"`
}

// HypertableConfig declares a hypertable for catalogs which
// don't persist their definitions (see the memory catalog)
type HypertableConfig struct {
	Schema      string            `toml:"schema"`
	Table       string            `toml:"table"`
	ChunkSchema string            `toml:"chunkschema"`
	ChunkPrefix string            `toml:"chunkprefix"`
	Columns     []ColumnConfig    `toml:"columns"`
	Dimensions  []DimensionConfig `toml:"dimensions"`
}

type ColumnConfig struct {
	Name     string  `toml:"name"`
	Type     string  `toml:"type"`
	Nullable *bool   `toml:"nullable"`
	Default  *string `toml:"default"`
}

// DimensionConfig describes an open (interval) or closed
// (partitions) dimension. Interval is either a duration
// string for time based columns or an integer otherwise.
type DimensionConfig struct {
	Column           string `toml:"column"`
	Interval         string `toml:"interval"`
	Partitions       int16  `toml:"partitions"`
	PartitioningFunc string `toml:"partitioningfunc"`
	NotNull          *bool  `toml:"notnull"`
}

type StorageConfig struct {
	Type StorageType `toml:"type"`
}

type DispatchConfig struct {
	CacheCapacity int `toml:"cachecapacity"`
}

type StatsConfig struct {
	Enabled *bool              `toml:"enabled"`
	Address string             `toml:"address"`
	Runtime StatsRuntimeConfig `toml:"runtime"`
}

type StatsRuntimeConfig struct {
	Enabled *bool `toml:"enabled"`
}

type Config struct {
	PostgreSQL PostgreSQLConfig `toml:"postgresql"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Storage    StorageConfig    `toml:"storage"`
	Dispatch   DispatchConfig   `toml:"dispatch"`
	Stats      StatsConfig      `toml:"stats"`
	Logging    LoggerConfig     `toml:"logging"`
	Plugins    []string         `toml:"plugins"`
}

type LoggerConfig struct {
	Level   string                     `toml:"level"`
	Outputs LoggerOutputConfig         `toml:"outputs"`
	Loggers map[string]SubLoggerConfig `toml:"loggers"`
}

type LoggerOutputConfig struct {
	Console LoggerConsoleConfig `toml:"console"`
	File    LoggerFileConfig    `toml:"file"`
}

type SubLoggerConfig struct {
	Level   *string            `toml:"level"`
	Outputs LoggerOutputConfig `toml:"outputs"`
}

type LoggerConsoleConfig struct {
	Enabled *bool `toml:"enabled"`
}

type LoggerFileConfig struct {
	Enabled     *bool          `toml:"enabled"`
	Path        string         `toml:"path"`
	Rotate      *bool          `toml:"rotate"`
	MaxSize     *string        `toml:"maxsize"`
	MaxDuration *time.Duration `toml:"maxduration"`
	Compress    bool           `toml:"compress"`
}

// GetOrDefault reads the canonical property (such as catalog.type)
// from the environment (CATALOG_TYPE) or the given configuration,
// in that order. If neither provides a non-zero value, the default
// value is returned.
func GetOrDefault[V any](config *Config, canonicalProperty string, defaultValue V) V {
	if env, found := findEnvProperty(canonicalProperty, defaultValue); found {
		return env
	}

	properties := strings.Split(canonicalProperty, ".")

	element := reflect.ValueOf(*config)
	for _, property := range properties {
		if element.Kind() != reflect.Struct {
			return defaultValue
		}
		if e, ok := findProperty(element, property); ok {
			element = e
		} else {
			return defaultValue
		}
	}

	if !element.IsZero() &&
		!(element.Kind() == reflect.Ptr && element.IsNil()) {

		if element.Kind() == reflect.Ptr {
			element = element.Elem()
		}

		return element.Convert(reflect.TypeOf(defaultValue)).Interface().(V)
	}
	return defaultValue
}

func envVariableName(canonicalProperty string) string {
	envVarName := strings.ToUpper(canonicalProperty)
	envVarName = strings.ReplaceAll(envVarName, "_", "__")
	return strings.ReplaceAll(envVarName, ".", "_")
}

func findEnvProperty[V any](canonicalProperty string, defaultValue V) (V, bool) {
	val, ok := os.LookupEnv(envVariableName(canonicalProperty))
	if !ok || val == "" {
		return defaultValue, false
	}

	t := reflect.TypeOf(defaultValue)
	cv, err := parseEnvValue(val, t)
	if err != nil || cv.IsZero() {
		return defaultValue, false
	}
	return cv.Interface().(V), true
}

func parseEnvValue(val string, t reflect.Type) (reflect.Value, error) {
	if t == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(val)
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, 0)
		}
		return reflect.ValueOf(d), nil
	}

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(val).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, 0)
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(val, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, 0)
		}
		return reflect.ValueOf(i).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(val, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, 0)
		}
		return reflect.ValueOf(u).Convert(t), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			items := strings.Split(val, ",")
			slice := reflect.MakeSlice(t, 0, len(items))
			for _, item := range items {
				slice = reflect.Append(slice, reflect.ValueOf(strings.TrimSpace(item)).Convert(t.Elem()))
			}
			return slice, nil
		}
	}
	return reflect.Value{}, errors.Errorf("unsupported environment property type %s", t.String())
}

func findProperty(element reflect.Value, property string) (reflect.Value, bool) {
	t := element.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}

		if f.Tag.Get("toml") == property {
			return element.Field(i), true
		}
	}
	return reflect.Value{}, false
}
