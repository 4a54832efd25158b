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
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/sysconfig"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/testing/containers"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func Test_Dispatcher_Postgres_Collaborators(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a docker environment")
	}

	container, provider, err := containers.SetupTimescaleContainer()
	require.NoError(t, err)
	defer container.Terminate(context.Background())

	configure := func(c *config.Config) {
		c.Catalog.Hypertables = []config.HypertableConfig{{
			Schema:      containers.DatabaseSchema,
			Table:       "readings",
			ChunkSchema: "tsdb_chunks",
			Columns: []config.ColumnConfig{
				{Name: "time", Type: "timestamptz", Nullable: lo.ToPtr(false)},
				{Name: "device", Type: "int4", Nullable: lo.ToPtr(false)},
				{Name: "value", Type: "float8"},
				{Name: "note", Type: "text", Default: lo.ToPtr("'n/a'")},
			},
			Dimensions: []config.DimensionConfig{
				{Column: "time", Interval: "1d"},
				{Column: "device", Partitions: 2},
			},
		}}
		c.Stats.Enabled = lo.ToPtr(false)
	}

	newDispatcher := func() *Dispatcher {
		dispatcher, err := NewDispatcher(sysconfig.NewSystemConfig(provider.Configure(configure)))
		require.NoError(t, err)
		require.NoError(t, dispatcher.Start())
		return dispatcher
	}

	dispatcher := newDispatcher()
	defer dispatcher.Stop()

	ctx := context.Background()
	hypertable, present, err := dispatcher.Catalog().FindHypertable(ctx, containers.DatabaseSchema, "readings")
	require.NoError(t, err)
	require.True(t, present)
	require.Len(t, hypertable.Dimensions(), 2)

	base := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := dispatcher.Engine().InsertValues(ctx, hypertable.Id(), []systemcatalog.Row{
		{base, int32(1), 1.0, systemcatalog.DefaultValue{Column: "note"}},
		{base.Add(time.Hour), int32(1), 2.0, "second"},
		{base.Add(48 * time.Hour), int32(1), 3.0, systemcatalog.DefaultValue{Column: "note"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RowsInserted)
	assert.Equal(t, 2, result.Statistics.ChunksCreated)

	conn, err := pgx.Connect(ctx, provider.ConnectionString())
	require.NoError(t, err)
	defer conn.Close(ctx)

	var rows int64
	for _, chunk := range result.Statistics.Chunks {
		var count int64
		require.NoError(t, conn.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", chunk.Relation)).Scan(&count))
		assert.Equal(t, int64(chunk.Rows), count)
		rows += count
	}
	assert.Equal(t, int64(3), rows)

	var note string
	first := result.Statistics.Chunks[0]
	require.NoError(t, conn.QueryRow(ctx,
		fmt.Sprintf("SELECT note FROM %s WHERE value = 1.0", first.Relation),
	).Scan(&note))
	assert.Equal(t, "n/a", note)

	t.Run("existing chunks are reused", func(t *testing.T) {
		result, err := dispatcher.Engine().InsertValues(ctx, hypertable.Id(), []systemcatalog.Row{
			{base.Add(2 * time.Hour), int32(1), 4.0, nil},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Statistics.ChunksCreated)
		assert.Equal(t, first.ChunkId, result.Statistics.Chunks[0].ChunkId)
	})

	t.Run("concurrent dispatchers create a chunk once", func(t *testing.T) {
		other := newDispatcher()
		defer other.Stop()

		target := base.Add(10 * 24 * time.Hour)
		engines := []*Dispatcher{dispatcher, other, dispatcher, other}

		var wg sync.WaitGroup
		chunkIds := make([]int32, len(engines))
		errs := make([]error, len(engines))
		for i, d := range engines {
			wg.Add(1)
			go func(i int, d *Dispatcher) {
				defer wg.Done()
				result, err := d.Engine().InsertValues(ctx, hypertable.Id(), []systemcatalog.Row{
					{target, int32(1), float64(i), nil},
				})
				if err != nil {
					errs[i] = err
					return
				}
				chunkIds[i] = result.Statistics.Chunks[0].ChunkId
			}(i, d)
		}
		wg.Wait()

		for i := range engines {
			require.NoError(t, errs[i])
			assert.Equal(t, chunkIds[0], chunkIds[i])
		}

		var chunks int64
		require.NoError(t, conn.QueryRow(ctx,
			"SELECT count(*) FROM _dispatch_catalog.chunk WHERE hypertable_id = $1", hypertable.Id(),
		).Scan(&chunks))
		assert.Equal(t, int64(3), chunks)
	})

	t.Run("statement holds a single connection", func(t *testing.T) {
		limited, err := NewDispatcher(sysconfig.NewSystemConfig(provider.Configure(func(c *config.Config) {
			configure(c)
			c.PostgreSQL.MaxConnections = 1
		})))
		require.NoError(t, err)
		require.NoError(t, limited.Start())
		defer limited.Stop()

		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		start := base.Add(20 * 24 * time.Hour)
		rows := make([]systemcatalog.Row, 0)
		for d := 0; d < 8; d++ {
			rows = append(rows, systemcatalog.Row{start.Add(time.Duration(d) * 24 * time.Hour), int32(1), float64(d), nil})
		}

		result, err := limited.Engine().InsertValues(ctx, hypertable.Id(), rows)
		require.NoError(t, err)
		assert.Equal(t, 8, result.Statistics.ChunksCreated)
		assert.Equal(t, int64(8), result.RowsInserted)
	})

	t.Run("failed statement rolls back its inserts", func(t *testing.T) {
		target := base.Add(40 * 24 * time.Hour)
		result, err := dispatcher.Engine().InsertValues(ctx, hypertable.Id(), []systemcatalog.Row{
			{target, int32(1), 1.0, nil},
			{target.Add(time.Hour), nil, 2.0, nil},
		})
		require.Error(t, err)
		require.NotNil(t, result)
		require.Len(t, result.Statistics.Chunks, 1)

		var count int64
		require.NoError(t, conn.QueryRow(ctx,
			fmt.Sprintf("SELECT count(*) FROM %s", result.Statistics.Chunks[0].Relation),
		).Scan(&count))
		assert.Equal(t, int64(0), count)
	})

	t.Run("definer reports the defined hypertable", func(t *testing.T) {
		definer, ok := dispatcher.Catalog().(catalog.Definer)
		require.True(t, ok)

		defined, err := definer.DefineHypertable(ctx, config.HypertableConfig{
			Schema: containers.DatabaseSchema,
			Table:  "events",
			Columns: []config.ColumnConfig{
				{Name: "id", Type: "int8", Nullable: lo.ToPtr(false)},
			},
			Dimensions: []config.DimensionConfig{
				{Column: "id", Interval: "1000"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "events", defined.TableName())
		assert.Equal(t, fmt.Sprintf("_hyper_%d", defined.Id()), defined.AssociatedTablePrefix())
	})
}
