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
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/stretchr/testify/assert"
	"math"
	"testing"
)

const day = int64(86400000000)

func Test_Open_Slice_Aligned_To_Interval(t *testing.T) {
	slice := CalculateOpenSlice(1, day, day+day/2)
	assert.Equal(t, day, slice.Start())
	assert.Equal(t, 2*day, slice.End())
}

func Test_Open_Slice_Start_Is_Inclusive(t *testing.T) {
	slice := CalculateOpenSlice(1, 10, 20)
	assert.Equal(t, int64(20), slice.Start())
	assert.Equal(t, int64(30), slice.End())
}

func Test_Open_Slice_Negative_Values(t *testing.T) {
	slice := CalculateOpenSlice(1, 10, -1)
	assert.Equal(t, int64(-10), slice.Start())
	assert.Equal(t, int64(0), slice.End())

	slice = CalculateOpenSlice(1, 10, -10)
	assert.Equal(t, int64(-10), slice.Start())
	assert.Equal(t, int64(0), slice.End())

	slice = CalculateOpenSlice(1, 10, -11)
	assert.Equal(t, int64(-20), slice.Start())
	assert.Equal(t, int64(-10), slice.End())
}

func Test_Open_Slice_Clamped_At_Edges(t *testing.T) {
	slice := CalculateOpenSlice(1, day, math.MaxInt64-1)
	assert.Equal(t, systemcatalog.SliceMaxValue, slice.End())
	assert.True(t, slice.Covers(math.MaxInt64-1))

	slice = CalculateOpenSlice(1, day, math.MinInt64+1)
	assert.Equal(t, systemcatalog.SliceMinValue, slice.Start())
	assert.True(t, slice.Covers(math.MinInt64+1))
}

func Test_Closed_Slices_Partition_Hash_Range(t *testing.T) {
	sliceRange := systemcatalog.ClosedSliceMaxValue / 4

	first := CalculateClosedSlice(2, 4, 0)
	assert.Equal(t, systemcatalog.SliceMinValue, first.Start())
	assert.Equal(t, sliceRange, first.End())

	second := CalculateClosedSlice(2, 4, sliceRange+1)
	assert.Equal(t, sliceRange, second.Start())
	assert.Equal(t, 2*sliceRange, second.End())

	last := CalculateClosedSlice(2, 4, systemcatalog.ClosedSliceMaxValue-1)
	assert.Equal(t, 3*sliceRange, last.Start())
	assert.Equal(t, systemcatalog.SliceMaxValue, last.End())
}

func Test_Closed_Single_Partition_Covers_Everything(t *testing.T) {
	slice := CalculateClosedSlice(2, 1, 12345)
	assert.Equal(t, systemcatalog.SliceMinValue, slice.Start())
	assert.Equal(t, systemcatalog.SliceMaxValue, slice.End())
}
