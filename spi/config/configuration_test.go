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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"reflect"
	"runtime"
	"testing"
	"time"
)

func Test_Env_Vars(t *testing.T) {
	os.Setenv("FOO_BAR", "foo")
	defer os.Unsetenv("FOO_BAR")

	os.Setenv("FOO_BAR__BAZ", "bar")
	defer os.Unsetenv("FOO_BAR__BAZ")

	// Environment variables are case-insensitive on Windows
	if runtime.GOOS != "windows" {
		os.Setenv("foo_bar", "bar")
		defer os.Unsetenv("foo_bar")
	}

	v, found := findEnvProperty("foo.bar", "test")
	assert.Equal(t, true, found)
	assert.Equal(t, "foo", v)

	v, found = findEnvProperty("foo.bar_baz", "test")
	assert.Equal(t, true, found)
	assert.Equal(t, "bar", v)

	v, found = findEnvProperty("oof.bar", "test")
	assert.Equal(t, false, found)
	assert.Equal(t, "test", v)
}

func Test_Env_Vars_Typed(t *testing.T) {
	os.Setenv("CATALOG_RESOLVEATTEMPTS", "7")
	defer os.Unsetenv("CATALOG_RESOLVEATTEMPTS")
	os.Setenv("STATS_ENABLED", "false")
	defer os.Unsetenv("STATS_ENABLED")
	os.Setenv("POSTGRESQL_CONNECT_TIMEOUT", "3s")
	defer os.Unsetenv("POSTGRESQL_CONNECT_TIMEOUT")
	os.Setenv("POSTGRESQL_CONNECT_MAXATTEMPTS", "not-a-number")
	defer os.Unsetenv("POSTGRESQL_CONNECT_MAXATTEMPTS")

	config := &Config{}
	assert.Equal(t, 7, GetOrDefault(config, PropertyCatalogResolveAttempts, 5))
	assert.Equal(t, time.Second*3, GetOrDefault(config, PropertyPostgresqlConnectTimeout, time.Second))
	assert.Equal(t, uint64(10), GetOrDefault(config, PropertyPostgresqlConnectMaxAttempts, uint64(10)))

	// false is the zero value and therefore falls back to the default
	assert.Equal(t, true, GetOrDefault(config, PropertyStatsEnabled, true))
}

func Test_Property_Extraction(t *testing.T) {
	config := Config{
		Catalog: CatalogConfig{
			Type:   PostgresCatalog,
			Schema: "_catalog",
		},
	}

	value := reflect.ValueOf(config)
	v1, found := findProperty(value, "catalog")
	assert.Equal(t, true, found)

	v2, found := findProperty(v1, "type")
	assert.Equal(t, true, found)
	assert.Equal(t, "postgres", string(v2.Interface().(CatalogType)))

	v3, found := findProperty(v1, "schema")
	assert.Equal(t, true, found)
	assert.Equal(t, "_catalog", v3.Interface().(string))

	_, found = findProperty(v1, "nonexistent")
	assert.Equal(t, false, found)
}

func Test_Config_Property_Reading(t *testing.T) {
	enabled := false
	config := &Config{
		Catalog: CatalogConfig{
			Type:            PostgresCatalog,
			ResolveAttempts: 3,
		},
		Stats: StatsConfig{
			Runtime: StatsRuntimeConfig{
				Enabled: &enabled,
			},
		},
	}

	assert.Equal(t, PostgresCatalog, GetOrDefault(config, PropertyCatalogType, MemoryCatalog))
	assert.Equal(t, MemoryStorage, GetOrDefault(config, PropertyStorageType, MemoryStorage))
	assert.Equal(t, 3, GetOrDefault(config, PropertyCatalogResolveAttempts, 5))
	assert.Equal(t, false, GetOrDefault(config, PropertyRuntimeStatsEnabled, true))
	assert.Equal(t, true, GetOrDefault(config, "catalog.type.non.existent", true))

	os.Setenv("CATALOG_TYPE", "memory")
	defer os.Unsetenv("CATALOG_TYPE")
	assert.Equal(t, MemoryCatalog, GetOrDefault(config, PropertyCatalogType, PostgresCatalog))
}

func Test_Unmarshall_Toml(t *testing.T) {
	content := `
[catalog]
type = "memory"
resolveattempts = 4

[[catalog.hypertables]]
schema = "public"
table = "metrics"

[[catalog.hypertables.columns]]
name = "time"
type = "timestamptz"
nullable = false

[[catalog.hypertables.dimensions]]
column = "time"
interval = "24h"

[postgresql.connect]
timeout = "5s"
`

	config := &Config{}
	require.NoError(t, Unmarshall([]byte(content), config, true))
	assert.Equal(t, MemoryCatalog, config.Catalog.Type)
	assert.Equal(t, 4, config.Catalog.ResolveAttempts)
	require.Len(t, config.Catalog.Hypertables, 1)
	assert.Equal(t, "metrics", config.Catalog.Hypertables[0].Table)
	assert.Equal(t, "timestamptz", config.Catalog.Hypertables[0].Columns[0].Type)
	assert.Equal(t, false, *config.Catalog.Hypertables[0].Columns[0].Nullable)
	assert.Equal(t, "24h", config.Catalog.Hypertables[0].Dimensions[0].Interval)
	assert.Equal(t, time.Second*5, config.PostgreSQL.Connect.Timeout)
}

func Test_Unmarshall_Yaml(t *testing.T) {
	content := `
storage:
  type: postgres
dispatch:
  cachecapacity: 32
catalog:
  hypertables:
    - schema: public
      table: readings
      dimensions:
        - column: device
          partitions: 4
`

	config := &Config{}
	require.NoError(t, Unmarshall([]byte(content), config, false))
	assert.Equal(t, PostgresStorage, config.Storage.Type)
	assert.Equal(t, 32, config.Dispatch.CacheCapacity)
	assert.Equal(t, int16(4), config.Catalog.Hypertables[0].Dimensions[0].Partitions)
}
