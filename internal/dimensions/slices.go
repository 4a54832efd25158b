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
)

// CalculateSlice returns the slice of the dimension which
// covers the given coordinate
func CalculateSlice(dimension *systemcatalog.Dimension, coordinate int64) *systemcatalog.Slice {
	if dimension.IsOpen() {
		return CalculateOpenSlice(dimension.Id(), dimension.IntervalLength(), coordinate)
	}
	return CalculateClosedSlice(dimension.Id(), dimension.NumSlices(), coordinate)
}

// CalculateOpenSlice aligns the coordinate to the interval.
// Slices at the edges of the int64 range are clamped.
func CalculateOpenSlice(dimensionId int32, interval int64, coordinate int64) *systemcatalog.Slice {
	var start, end int64
	if coordinate < 0 {
		// integer division rounds towards zero, shift by one for negative values
		end = ((coordinate + 1) / interval) * interval
		if systemcatalog.SliceMinValue+interval > end {
			start = systemcatalog.SliceMinValue
		} else {
			start = end - interval
		}
	} else {
		start = (coordinate / interval) * interval
		if systemcatalog.SliceMaxValue-start < interval {
			end = systemcatalog.SliceMaxValue
		} else {
			end = start + interval
		}
	}
	return systemcatalog.NewSlice(dimensionId, start, end)
}

// CalculateClosedSlice splits [0, ClosedSliceMaxValue) into numSlices
// equally sized partitions. The first slice starts at SliceMinValue,
// the last one ends at SliceMaxValue.
func CalculateClosedSlice(dimensionId int32, numSlices int16, coordinate int64) *systemcatalog.Slice {
	if numSlices < 1 {
		numSlices = 1
	}

	sliceRange := systemcatalog.ClosedSliceMaxValue / int64(numSlices)
	lastStart := sliceRange * int64(numSlices-1)

	var start, end int64
	if coordinate >= lastStart {
		start = lastStart
		end = systemcatalog.SliceMaxValue
	} else {
		start = (coordinate / sliceRange) * sliceRange
		end = start + sliceRange
	}

	if start == 0 {
		start = systemcatalog.SliceMinValue
	}
	return systemcatalog.NewSlice(dimensionId, start, end)
}
