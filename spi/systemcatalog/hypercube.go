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

package systemcatalog

import (
	"fmt"
	"math"
	"strings"
)

const (
	// SliceMinValue is the lower bound of the first slice of a dimension
	SliceMinValue int64 = math.MinInt64
	// SliceMaxValue is the (exclusive) upper bound of the last slice
	SliceMaxValue int64 = math.MaxInt64
	// ClosedSliceMaxValue is the upper bound of hash values
	// produced for closed dimensions
	ClosedSliceMaxValue int64 = math.MaxInt32
)

// Point is a row's position in the hypertable's dimensional
// space, one coordinate per dimension in dimension order
type Point []int64

// Slice is the range [Start, End) a chunk covers on one dimension
type Slice struct {
	dimensionId int32
	start       int64
	end         int64
}

func NewSlice(dimensionId int32, start, end int64) *Slice {
	return &Slice{
		dimensionId: dimensionId,
		start:       start,
		end:         end,
	}
}

func (s *Slice) DimensionId() int32 {
	return s.dimensionId
}

func (s *Slice) Start() int64 {
	return s.start
}

func (s *Slice) End() int64 {
	return s.end
}

// Covers returns true if the coordinate falls into the slice.
// The last slice of a dimension also covers SliceMaxValue.
func (s *Slice) Covers(coordinate int64) bool {
	if coordinate < s.start {
		return false
	}
	return coordinate < s.end || s.end == SliceMaxValue
}

// Collides returns true if both slices overlap
func (s *Slice) Collides(other *Slice) bool {
	return s.start < other.end && other.start < s.end
}

// Cut shrinks the slice so that it no longer overlaps with other
// while still covering the coordinate. It returns false if the
// other slice covers the coordinate itself and can't be cut away.
func (s *Slice) Cut(other *Slice, coordinate int64) bool {
	if other.Covers(coordinate) {
		return false
	}
	if other.end <= coordinate && other.end > s.start {
		s.start = other.end
	} else if other.start > coordinate && other.start < s.end {
		s.end = other.start
	}
	return true
}

func (s *Slice) Equal(other *Slice) bool {
	return s.dimensionId == other.dimensionId && s.start == other.start && s.end == other.end
}

func (s *Slice) String() string {
	return fmt.Sprintf("%d:[%d,%d)", s.dimensionId, s.start, s.end)
}

// Hypercube is the set of slices, one per dimension, which
// defines the space a chunk covers
type Hypercube struct {
	slices []*Slice
}

func NewHypercube(slices ...*Slice) *Hypercube {
	return &Hypercube{
		slices: slices,
	}
}

func (h *Hypercube) Slices() []*Slice {
	return h.slices
}

func (h *Hypercube) Slice(index int) *Slice {
	return h.slices[index]
}

func (h *Hypercube) NumSlices() int {
	return len(h.slices)
}

// Covers returns true if every slice covers the point's
// coordinate of the same dimension
func (h *Hypercube) Covers(point Point) bool {
	if len(point) != len(h.slices) {
		return false
	}
	for i, slice := range h.slices {
		if !slice.Covers(point[i]) {
			return false
		}
	}
	return true
}

// Collides returns true if the hypercubes overlap in every dimension
func (h *Hypercube) Collides(other *Hypercube) bool {
	if len(h.slices) != len(other.slices) {
		return false
	}
	for i, slice := range h.slices {
		if !slice.Collides(other.slices[i]) {
			return false
		}
	}
	return true
}

func (h *Hypercube) Copy() *Hypercube {
	slices := make([]*Slice, len(h.slices))
	for i, slice := range h.slices {
		slices[i] = NewSlice(slice.dimensionId, slice.start, slice.end)
	}
	return NewHypercube(slices...)
}

func (h *Hypercube) Equal(other *Hypercube) bool {
	if len(h.slices) != len(other.slices) {
		return false
	}
	for i, slice := range h.slices {
		if !slice.Equal(other.slices[i]) {
			return false
		}
	}
	return true
}

// Signature returns a stable textual representation, used by
// catalogs to enforce uniqueness of chunk ranges
func (h *Hypercube) Signature() string {
	parts := make([]string, len(h.slices))
	for i, slice := range h.slices {
		parts[i] = slice.String()
	}
	return strings.Join(parts, "|")
}

func (h *Hypercube) String() string {
	return "{" + h.Signature() + "}"
}
