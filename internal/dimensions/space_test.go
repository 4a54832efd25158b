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

package dimensions

import (
	"errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
	"time"
)

const (
	int8Oid uint32 = 20
	textOid uint32 = 25
)

func newTestHypertable(dimensions ...*systemcatalog.Dimension) *systemcatalog.Hypertable {
	columns := systemcatalog.Columns{
		systemcatalog.NewColumn("time", timestamptzOid, false, nil),
		systemcatalog.NewColumn("device", textOid, true, nil),
		systemcatalog.NewColumn("value", int8Oid, true, nil),
	}
	return systemcatalog.NewHypertable(
		1, "public", "metrics", "_timescaledb_internal", "_hyper_1", dimensions, columns,
	)
}

func Test_Point_For_Time_Values(t *testing.T) {
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "time", timestamptzOid, day, nil),
	))
	require.NoError(t, err)

	ts := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, value := range []any{ts, "2023-05-01T12:00:00Z", "2023-05-01 12:00:00", ts.UnixMicro()} {
		point, err := space.PointFor(systemcatalog.Row{value, "a", 1})
		require.NoError(t, err)
		assert.Equal(t, systemcatalog.Point{ts.UnixMicro()}, point)
	}
}

func Test_Point_For_Null_Open_Dimension_Fails(t *testing.T) {
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "time", timestamptzOid, day, nil),
	))
	require.NoError(t, err)

	_, err = space.PointFor(systemcatalog.Row{nil, "a", 1})
	var valueError *ValueError
	require.True(t, errors.As(err, &valueError))
	assert.Equal(t, "time", valueError.Column)
}

func Test_Point_For_Malformed_Value_Fails(t *testing.T) {
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "time", timestamptzOid, day, nil),
	))
	require.NoError(t, err)

	_, err = space.PointFor(systemcatalog.Row{"not a timestamp", "a", 1})
	var valueError *ValueError
	assert.True(t, errors.As(err, &valueError))

	_, err = space.PointFor(systemcatalog.Row{struct{}{}, "a", 1})
	assert.True(t, errors.As(err, &valueError))
}

func Test_Open_Coordinate_Rejects_Float_Out_Of_Range(t *testing.T) {
	partitioner, err := NewPartitioner(systemcatalog.NewOpenDimension(1, "value", int8Oid, 100, nil))
	require.NoError(t, err)

	var valueError *ValueError
	_, err = partitioner.Coordinate(float64(math.MaxInt64))
	assert.True(t, errors.As(err, &valueError))

	_, err = partitioner.Coordinate(math.Ldexp(1, 64))
	assert.True(t, errors.As(err, &valueError))

	coordinate, err := partitioner.Coordinate(float64(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), coordinate)

	coordinate, err = partitioner.Coordinate(float64(1 << 62))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<62), coordinate)
}

func Test_Closed_Dimension_Hash_Is_Stable(t *testing.T) {
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "time", timestamptzOid, day, nil),
		systemcatalog.NewClosedDimension(2, "device", textOid, 4, nil, false),
	))
	require.NoError(t, err)

	p1, err := space.PointFor(systemcatalog.Row{int64(0), "sensor-1", 1})
	require.NoError(t, err)
	p2, err := space.PointFor(systemcatalog.Row{int64(0), "sensor-1", 2})
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.GreaterOrEqual(t, p1[1], int64(0))
	assert.Less(t, p1[1], systemcatalog.ClosedSliceMaxValue+1)

	nullPoint, err := space.PointFor(systemcatalog.Row{int64(0), nil, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), nullPoint[1])
}

func Test_Closed_Not_Null_Dimension_Rejects_Null(t *testing.T) {
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "time", timestamptzOid, day, nil),
		systemcatalog.NewClosedDimension(2, "device", textOid, 4, nil, true),
	))
	require.NoError(t, err)

	_, err = space.PointFor(systemcatalog.Row{int64(0), nil, 1})
	var valueError *ValueError
	assert.True(t, errors.As(err, &valueError))
}

func Test_Partitioning_Function(t *testing.T) {
	expression := "value * 10"
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "value", int8Oid, 100, &expression),
	))
	require.NoError(t, err)

	point, err := space.PointFor(systemcatalog.Row{int64(0), "a", 25})
	require.NoError(t, err)
	assert.Equal(t, systemcatalog.Point{250}, point)

	cube := space.CalculateHypercube(point)
	assert.Equal(t, "1:[200,300)", cube.Signature())
}

func Test_Unknown_Partitioning_Column_Fails(t *testing.T) {
	_, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "missing", timestamptzOid, day, nil),
	))
	assert.Error(t, err)
}

func Test_Cut_Hypercube_Against_Colliding_Chunks(t *testing.T) {
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "time", timestamptzOid, 100, nil),
	))
	require.NoError(t, err)

	// existing chunks were created with a smaller interval
	below := systemcatalog.NewChunk(1, 1, "s", "c1", systemcatalog.NewHypercube(systemcatalog.NewSlice(1, 100, 130)))
	above := systemcatalog.NewChunk(2, 1, "s", "c2", systemcatalog.NewHypercube(systemcatalog.NewSlice(1, 170, 200)))

	point := systemcatalog.Point{150}
	cube := space.CalculateHypercube(point)
	covering := space.CutHypercube(cube, point, []*systemcatalog.Chunk{below, above})

	assert.Nil(t, covering)
	assert.Equal(t, "1:[130,170)", cube.Signature())
	assert.False(t, cube.Collides(below.Hypercube()))
	assert.False(t, cube.Collides(above.Hypercube()))
}

func Test_Cut_Hypercube_Returns_Covering_Chunk(t *testing.T) {
	space, err := NewSpace(newTestHypertable(
		systemcatalog.NewOpenDimension(1, "time", timestamptzOid, 100, nil),
	))
	require.NoError(t, err)

	chunk := systemcatalog.NewChunk(1, 1, "s", "c1", systemcatalog.NewHypercube(systemcatalog.NewSlice(1, 140, 160)))
	point := systemcatalog.Point{150}
	covering := space.CutHypercube(space.CalculateHypercube(point), point, []*systemcatalog.Chunk{chunk})
	assert.Same(t, chunk, covering)
}
