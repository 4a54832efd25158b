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
	"strings"
)

// DimensionType defines how the values of a dimension
// are mapped to slices
type DimensionType int

const (
	// OpenDimension partitions by fixed-size intervals (time)
	OpenDimension DimensionType = iota
	// ClosedDimension partitions by a fixed number of hash
	// partitions (space)
	ClosedDimension
)

func (dt DimensionType) String() string {
	switch dt {
	case OpenDimension:
		return "time"
	case ClosedDimension:
		return "space"
	}
	return "unknown"
}

// Dimension represents one partitioning axis of a hypertable
type Dimension struct {
	id               int32
	columnName       string
	columnType       uint32
	dimensionType    DimensionType
	intervalLength   int64
	numSlices        int16
	partitioningFunc *string
	notNull          bool
}

// NewOpenDimension instantiates a new interval based dimension.
// Open dimensions never accept NULL values.
func NewOpenDimension(
	id int32, columnName string, columnType uint32, intervalLength int64, partitioningFunc *string,
) *Dimension {

	return &Dimension{
		id:               id,
		columnName:       columnName,
		columnType:       columnType,
		dimensionType:    OpenDimension,
		intervalLength:   intervalLength,
		partitioningFunc: partitioningFunc,
		notNull:          true,
	}
}

// NewClosedDimension instantiates a new hash partitioned dimension
func NewClosedDimension(
	id int32, columnName string, columnType uint32, numSlices int16, partitioningFunc *string, notNull bool,
) *Dimension {

	return &Dimension{
		id:               id,
		columnName:       columnName,
		columnType:       columnType,
		dimensionType:    ClosedDimension,
		numSlices:        numSlices,
		partitioningFunc: partitioningFunc,
		notNull:          notNull,
	}
}

// Id returns the dimension id
func (d *Dimension) Id() int32 {
	return d.id
}

// ColumnName returns the name of the partitioning column
func (d *Dimension) ColumnName() string {
	return d.columnName
}

// ColumnType returns the PostgreSQL OID of the partitioning column
func (d *Dimension) ColumnType() uint32 {
	return d.columnType
}

// Type returns the dimension type
func (d *Dimension) Type() DimensionType {
	return d.dimensionType
}

// IsOpen returns true for interval based dimensions
func (d *Dimension) IsOpen() bool {
	return d.dimensionType == OpenDimension
}

// IntervalLength returns the slice length of an open dimension
func (d *Dimension) IntervalLength() int64 {
	return d.intervalLength
}

// NumSlices returns the number of partitions of a closed dimension
func (d *Dimension) NumSlices() int16 {
	return d.numSlices
}

// PartitioningFunc returns the custom partitioning expression
// and true, otherwise present will be false
func (d *Dimension) PartitioningFunc() (expression string, present bool) {
	if d.partitioningFunc != nil {
		return *d.partitioningFunc, true
	}
	return "", false
}

// IsNotNull returns true if the dimension rejects NULL values
func (d *Dimension) IsNotNull() bool {
	return d.notNull
}

func (d *Dimension) String() string {
	builder := strings.Builder{}
	builder.WriteString("{")
	builder.WriteString(fmt.Sprintf("id:%d ", d.id))
	builder.WriteString(fmt.Sprintf("column:%s ", d.columnName))
	builder.WriteString(fmt.Sprintf("type:%s ", d.dimensionType))
	if d.IsOpen() {
		builder.WriteString(fmt.Sprintf("interval:%d ", d.intervalLength))
	} else {
		builder.WriteString(fmt.Sprintf("partitions:%d ", d.numSlices))
	}
	builder.WriteString(fmt.Sprintf("notNull:%t", d.notNull))
	builder.WriteString("}")
	return builder.String()
}
