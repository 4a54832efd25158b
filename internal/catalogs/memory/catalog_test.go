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

package memory

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newTestCatalog(t *testing.T) (*Catalog, *systemcatalog.Hypertable) {
	c, err := NewCatalog()
	require.NoError(t, err)

	hypertable, err := c.DefineHypertable(context.Background(), config.HypertableConfig{
		Schema: "public",
		Table:  "readings",
		Columns: []config.ColumnConfig{
			{Name: "ts", Type: "int8", Nullable: lo.ToPtr(false)},
			{Name: "device", Type: "text", Nullable: lo.ToPtr(false)},
			{Name: "value", Type: "float8"},
		},
		Dimensions: []config.DimensionConfig{
			{Column: "ts", Interval: "100"},
			{Column: "device", Partitions: 2},
		},
	})
	require.NoError(t, err)
	return c, hypertable
}

func cube(hypertable *systemcatalog.Hypertable, start, end int64, spaceStart, spaceEnd int64) *systemcatalog.Hypercube {
	return systemcatalog.NewHypercube(
		systemcatalog.NewSlice(hypertable.Dimensions()[0].Id(), start, end),
		systemcatalog.NewSlice(hypertable.Dimensions()[1].Id(), spaceStart, spaceEnd),
	)
}

func Test_Memory_Catalog_Read_And_Find_Hypertable(t *testing.T) {
	c, hypertable := newTestCatalog(t)

	read, err := c.ReadHypertable(context.Background(), hypertable.Id())
	require.NoError(t, err)
	assert.Same(t, hypertable, read)

	found, present, err := c.FindHypertable(context.Background(), "public", "readings")
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, hypertable.Id(), found.Id())

	_, present, err = c.FindHypertable(context.Background(), "public", "unknown")
	require.NoError(t, err)
	assert.False(t, present)

	_, err = c.ReadHypertable(context.Background(), 42)
	assert.ErrorIs(t, err, catalog.ErrHypertableNotFound)
	var notFound *catalog.HypertableNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, int32(42), notFound.HypertableId)
}

func Test_Memory_Catalog_Rejects_Duplicate_Hypertable(t *testing.T) {
	c, hypertable := newTestCatalog(t)

	duplicate := systemcatalog.NewHypertable(hypertable.Id()+1, "public", "readings", "s", "p",
		hypertable.Dimensions(), hypertable.Columns(),
	)
	assert.Error(t, c.RegisterHypertable(duplicate))
	assert.Error(t, c.RegisterHypertable(hypertable))
}

func Test_Memory_Catalog_Create_And_Find_Chunks(t *testing.T) {
	c, hypertable := newTestCatalog(t)
	ctx := context.Background()

	chunk, err := c.CreateChunk(ctx, hypertable, cube(hypertable, 0, 100, 0, 1000))
	require.NoError(t, err)
	assert.Equal(t, "_hyper_1_1_chunk", chunk.TableName())
	assert.Equal(t, hypertable.AssociatedSchemaName(), chunk.SchemaName())

	found, present, err := c.FindCoveringChunk(ctx, hypertable, systemcatalog.Point{50, 10})
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, chunk.Id(), found.Id())

	_, present, err = c.FindCoveringChunk(ctx, hypertable, systemcatalog.Point{150, 10})
	require.NoError(t, err)
	assert.False(t, present)

	colliding, err := c.FindCollidingChunks(ctx, hypertable, cube(hypertable, 50, 150, 0, 1000))
	require.NoError(t, err)
	require.Len(t, colliding, 1)
	assert.Equal(t, chunk.Id(), colliding[0].Id())

	colliding, err = c.FindCollidingChunks(ctx, hypertable, cube(hypertable, 50, 150, 1000, 2000))
	require.NoError(t, err)
	assert.Empty(t, colliding)
}

func Test_Memory_Catalog_Create_Chunk_Collision(t *testing.T) {
	c, hypertable := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateChunk(ctx, hypertable, cube(hypertable, 0, 100, 0, 1000))
	require.NoError(t, err)

	_, err = c.CreateChunk(ctx, hypertable, cube(hypertable, 0, 100, 0, 1000))
	assert.ErrorIs(t, err, catalog.ErrChunkCollision)

	_, err = c.CreateChunk(ctx, hypertable, cube(hypertable, 99, 200, 0, 1000))
	assert.ErrorIs(t, err, catalog.ErrChunkCollision)

	_, err = c.CreateChunk(ctx, hypertable, cube(hypertable, 100, 200, 0, 1000))
	assert.NoError(t, err)
	assert.Len(t, c.Chunks(hypertable.Id()), 2)
}

func Test_Memory_Catalog_Create_Chunk_Wrong_Dimensionality(t *testing.T) {
	c, hypertable := newTestCatalog(t)

	_, err := c.CreateChunk(context.Background(), hypertable, systemcatalog.NewHypercube(
		systemcatalog.NewSlice(hypertable.Dimensions()[0].Id(), 0, 100),
	))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrChunkCollision)
}

func Test_Memory_Catalog_Chunk_Layout_Survives_Add_Column(t *testing.T) {
	c, hypertable := newTestCatalog(t)
	ctx := context.Background()

	before, err := c.CreateChunk(ctx, hypertable, cube(hypertable, 0, 100, 0, 1000))
	require.NoError(t, err)

	updated, err := c.AddColumn(hypertable.Id(), systemcatalog.NewColumn("note", 25, true, nil))
	require.NoError(t, err)
	assert.Len(t, updated.Columns(), 4)

	_, err = c.AddColumn(hypertable.Id(), systemcatalog.NewColumn("note", 25, true, nil))
	assert.Error(t, err)

	after, err := c.CreateChunk(ctx, updated, cube(hypertable, 100, 200, 0, 1000))
	require.NoError(t, err)

	beforeLayout, err := c.ReadChunkLayout(ctx, before)
	require.NoError(t, err)
	assert.Len(t, beforeLayout, 3)

	afterLayout, err := c.ReadChunkLayout(ctx, after)
	require.NoError(t, err)
	assert.True(t, afterLayout.Equal(updated.Columns()))
}

func Test_Memory_Catalog_Provider_Defines_Configured_Hypertables(t *testing.T) {
	c, err := catalog.NewCatalog(config.MemoryCatalog, &config.Config{
		Catalog: config.CatalogConfig{
			Hypertables: []config.HypertableConfig{{
				Table: "events",
				Columns: []config.ColumnConfig{
					{Name: "time", Type: "timestamptz", Nullable: lo.ToPtr(false)},
				},
				Dimensions: []config.DimensionConfig{
					{Column: "time", Interval: "7d"},
				},
			}},
		},
	})
	require.NoError(t, err)

	hypertable, present, err := c.FindHypertable(context.Background(), "public", "events")
	require.NoError(t, err)
	require.True(t, present)
	assert.Len(t, hypertable.Dimensions(), 1)
}
