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
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
)

// Space is the dimensional space of a hypertable. It maps rows
// in the hypertable's layout to points and points to hypercubes.
type Space struct {
	hypertable    *systemcatalog.Hypertable
	partitioners  []*Partitioner
	columnIndexes []int
}

// NewSpace creates the Space of the hypertable. All partitioning
// columns must be part of the hypertable's column layout.
func NewSpace(hypertable *systemcatalog.Hypertable) (*Space, error) {
	dimensions := hypertable.Dimensions()
	if len(dimensions) == 0 {
		return nil, errors.Errorf("hypertable %s has no dimensions", hypertable.CanonicalName())
	}

	partitioners := make([]*Partitioner, 0, len(dimensions))
	columnIndexes := make([]int, 0, len(dimensions))
	for _, dimension := range dimensions {
		index := hypertable.Columns().IndexOf(dimension.ColumnName())
		if index == -1 {
			return nil, errors.Errorf(
				"partitioning column %s not found in %s", dimension.ColumnName(), hypertable.CanonicalName(),
			)
		}
		partitioner, err := NewPartitioner(dimension)
		if err != nil {
			return nil, err
		}
		partitioners = append(partitioners, partitioner)
		columnIndexes = append(columnIndexes, index)
	}

	return &Space{
		hypertable:    hypertable,
		partitioners:  partitioners,
		columnIndexes: columnIndexes,
	}, nil
}

func (s *Space) Hypertable() *systemcatalog.Hypertable {
	return s.hypertable
}

func (s *Space) NumDimensions() int {
	return len(s.partitioners)
}

// PointFor extracts the partitioning values from the row and
// maps them to a point. The row must be in the hypertable's layout.
func (s *Space) PointFor(row systemcatalog.Row) (systemcatalog.Point, error) {
	point := make(systemcatalog.Point, len(s.partitioners))
	for i, partitioner := range s.partitioners {
		index := s.columnIndexes[i]
		if index >= len(row) {
			return nil, newValueError(
				partitioner.Dimension().ColumnName(), nil, "row has %d values, expected at least %d", len(row), index+1,
			)
		}
		coordinate, err := partitioner.Coordinate(row[index])
		if err != nil {
			return nil, err
		}
		point[i] = coordinate
	}
	return point, nil
}

// CalculateHypercube returns the hypercube aligned to the
// dimensions' intervals and partitions which covers the point
func (s *Space) CalculateHypercube(point systemcatalog.Point) *systemcatalog.Hypercube {
	slices := lo.Map(s.partitioners, func(partitioner *Partitioner, i int) *systemcatalog.Slice {
		return CalculateSlice(partitioner.Dimension(), point[i])
	})
	return systemcatalog.NewHypercube(slices...)
}

// CutHypercube shrinks the hypercube until it no longer overlaps any
// of the colliding chunks. Open dimensions are cut first. If one of
// the chunks covers the point itself, that chunk is returned and the
// hypercube must not be used.
func (s *Space) CutHypercube(
	hypercube *systemcatalog.Hypercube, point systemcatalog.Point, colliding []*systemcatalog.Chunk,
) (covering *systemcatalog.Chunk) {

	order := s.cutOrder()
	for _, chunk := range colliding {
		if chunk.Covers(point) {
			return chunk
		}
		other := chunk.Hypercube()
		if !hypercube.Collides(other) {
			continue
		}
		for _, i := range order {
			otherSlice := other.Slice(i)
			if otherSlice.Covers(point[i]) {
				continue
			}
			if hypercube.Slice(i).Cut(otherSlice, point[i]) {
				break
			}
		}
	}
	return nil
}

func (s *Space) cutOrder() []int {
	order := make([]int, 0, len(s.partitioners))
	for i, partitioner := range s.partitioners {
		if partitioner.Dimension().IsOpen() {
			order = append(order, i)
		}
	}
	for i, partitioner := range s.partitioners {
		if !partitioner.Dimension().IsOpen() {
			order = append(order, i)
		}
	}
	return order
}
