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

package internal

import (
	"context"
	"github.com/go-errors/errors"
	memorycatalog "github.com/noctarius/timescaledb-chunk-dispatcher/internal/catalogs/memory"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/sysconfig"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/plugins"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func testConfig() *config.Config {
	return &config.Config{
		Catalog: config.CatalogConfig{
			Type: config.MemoryCatalog,
			Hypertables: []config.HypertableConfig{{
				Table: "metrics",
				Columns: []config.ColumnConfig{
					{Name: "time", Type: "timestamptz", Nullable: lo.ToPtr(false)},
					{Name: "value", Type: "float8"},
				},
				Dimensions: []config.DimensionConfig{
					{Column: "time", Interval: "1d"},
				},
			}},
		},
		Storage: config.StorageConfig{
			Type: config.MemoryStorage,
		},
		Stats: config.StatsConfig{
			Enabled: lo.ToPtr(false),
		},
	}
}

func Test_Dispatcher_Inserts_Through_Configured_Collaborators(t *testing.T) {
	dispatcher, err := NewDispatcher(sysconfig.NewSystemConfig(testConfig()))
	require.NoError(t, err)
	require.NoError(t, dispatcher.Start())
	defer dispatcher.Stop()

	hypertable, present, err := dispatcher.Catalog().FindHypertable(context.Background(), "public", "metrics")
	require.NoError(t, err)
	require.True(t, present)

	base := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := dispatcher.Engine().InsertValues(context.Background(), hypertable.Id(), []systemcatalog.Row{
		{base, 1.0},
		{base.Add(time.Hour), 2.0},
		{base.Add(48 * time.Hour), 3.0},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RowsInserted)
	assert.Equal(t, 2, result.Statistics.ChunksCreated)
}

func Test_Dispatcher_Uses_Provider_Overrides(t *testing.T) {
	overridden, err := memorycatalog.NewCatalog()
	require.NoError(t, err)

	systemConfig := sysconfig.NewSystemConfig(testConfig())
	systemConfig.CatalogProvider = func(_ *config.Config) (catalog.Catalog, error) {
		return overridden, nil
	}

	dispatcher, err := NewDispatcher(systemConfig)
	require.NoError(t, err)
	assert.Same(t, overridden, dispatcher.Catalog())
}

type stoppableCatalog struct {
	*memorycatalog.Catalog
	stops int
}

func (c *stoppableCatalog) Stop() error {
	c.stops++
	return c.Catalog.Stop()
}

type failingStartStorage struct {
	storage.Storage
}

func (s *failingStartStorage) Start() error {
	return errors.Errorf("storage unavailable")
}

func Test_Dispatcher_Failed_Start_Stops_Started_Services(t *testing.T) {
	memoryCatalog, err := memorycatalog.NewCatalog()
	require.NoError(t, err)
	c := &stoppableCatalog{Catalog: memoryCatalog}

	systemConfig := sysconfig.NewSystemConfig(testConfig())
	systemConfig.CatalogProvider = func(_ *config.Config) (catalog.Catalog, error) {
		return c, nil
	}
	systemConfig.StorageProvider = func(config *config.Config) (storage.Storage, error) {
		s, err := sysconfig.DefaultStorageProvider(config)
		if err != nil {
			return nil, err
		}
		return &failingStartStorage{Storage: s}, nil
	}

	dispatcher, err := NewDispatcher(systemConfig)
	require.NoError(t, err)
	assert.ErrorContains(t, dispatcher.Start(), "storage unavailable")
	assert.Equal(t, 1, c.stops)
}

func Test_Dispatcher_Registers_Plugin_Scan_Methods(t *testing.T) {
	systemConfig := sysconfig.NewSystemConfig(testConfig())
	require.NoError(t, systemConfig.Extensions.Initialize(func(extensionPoints plugins.ExtensionPoints) error {
		return extensionPoints.RegisterCustomScanMethods(&planning.CustomScanMethods{
			CustomName: "SampleScan",
		})
	}))

	dispatcher, err := NewDispatcher(systemConfig)
	require.NoError(t, err)

	_, present := dispatcher.Engine().Registry().CustomScanMethods("SampleScan")
	assert.True(t, present)
}
