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

package executor

import (
	"context"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

var scanLayout = systemcatalog.Columns{
	systemcatalog.NewColumn("ts", 20, false, nil),
	systemcatalog.NewColumn("reading", 701, true, nil),
}

func Test_Values_Scan(t *testing.T) {
	scan := NewValuesScan(scanLayout, []systemcatalog.Row{
		{int64(1), 1.0},
		{int64(2), nil},
	})
	assert.Equal(t, float64(2), scan.Cost().PlanRows)
	assert.Equal(t, 16, scan.Cost().PlanWidth)

	state, err := scan.CreateState(context.Background(), nil)
	require.NoError(t, err)

	row, ok, err := state.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, systemcatalog.Row{int64(1), 1.0}, row)

	_, ok, err = state.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = state.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.Close())
	_, _, err = state.Next(context.Background())
	assert.Error(t, err)
}

func Test_Values_Scan_Rejects_Malformed_Row(t *testing.T) {
	scan := NewValuesScan(scanLayout, []systemcatalog.Row{{int64(1)}})
	state, err := scan.CreateState(context.Background(), nil)
	require.NoError(t, err)

	_, _, err = state.Next(context.Background())
	assert.Error(t, err)
}

func Test_Values_Scan_Honors_Context(t *testing.T) {
	scan := NewValuesScan(scanLayout, []systemcatalog.Row{{int64(1), 1.0}})
	state, err := scan.CreateState(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = state.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_Row_Source_Scan(t *testing.T) {
	source := &sliceSource{rows: []systemcatalog.Row{{int64(1), 1.0}}}
	scan := NewRowSourceScan(scanLayout, source)
	assert.Equal(t, RowSourceScanName, scan.NodeName())

	state, err := scan.CreateState(context.Background(), nil)
	require.NoError(t, err)

	_, ok, err := state.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = state.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.Close())
	assert.True(t, source.closed)
}
