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
	"github.com/go-errors/errors"
	"github.com/samber/lo"
	"strings"
)

// Hypertable represents a TimescaleDB hypertable with its
// partitioning dimensions and reference column layout
type Hypertable struct {
	*baseSystemEntity
	id                    int32
	associatedSchemaName  string
	associatedTablePrefix string
	dimensions            []*Dimension
	columns               Columns
}

// NewHypertable instantiates a new Hypertable entity
func NewHypertable(
	id int32, schemaName, tableName, associatedSchemaName, associatedTablePrefix string,
	dimensions []*Dimension, columns Columns,
) *Hypertable {

	if columns == nil {
		columns = make(Columns, 0)
	}
	return &Hypertable{
		baseSystemEntity:      newBaseSystemEntity(schemaName, tableName),
		id:                    id,
		associatedSchemaName:  associatedSchemaName,
		associatedTablePrefix: associatedTablePrefix,
		dimensions:            dimensions,
		columns:               columns,
	}
}

// Id returns the hypertable id
func (h *Hypertable) Id() int32 {
	return h.id
}

// AssociatedSchemaName returns the schema chunks are created in
func (h *Hypertable) AssociatedSchemaName() string {
	return h.associatedSchemaName
}

// AssociatedTablePrefix returns the table name prefix of chunks
func (h *Hypertable) AssociatedTablePrefix() string {
	return h.associatedTablePrefix
}

// Dimensions returns the partitioning dimensions in the order
// of the coordinates of a Point
func (h *Hypertable) Dimensions() []*Dimension {
	return h.dimensions
}

// Dimension returns the dimension with the given id
// and true, otherwise present will be false
func (h *Hypertable) Dimension(id int32) (dimension *Dimension, present bool) {
	return lo.Find(h.dimensions, func(item *Dimension) bool {
		return item.id == id
	})
}

// Columns returns the reference column layout
func (h *Hypertable) Columns() Columns {
	return h.columns
}

// ChunkTableName returns the table name of the chunk with
// the given id in the form of <<prefix>>_<<id>>_chunk
func (h *Hypertable) ChunkTableName(chunkId int32) string {
	return makeChunkTableName(h, chunkId)
}

// ApplyTableSchema applies a new column layout to a copy of
// this hypertable and returns the copy as well as the changes
// to the previously known layout, keyed by column name.
// Dropping a partitioning column is rejected.
func (h *Hypertable) ApplyTableSchema(newColumns Columns) (applied *Hypertable, changes map[string]string, err error) {
	for _, dimension := range h.dimensions {
		if newColumns.IndexOf(dimension.columnName) == -1 {
			return nil, nil, errors.Errorf(
				"partitioning column %s cannot be dropped from %s", dimension.columnName, h.CanonicalName(),
			)
		}
	}

	differences := make(map[string]string)
	for _, c1 := range h.columns {
		c2, present := newColumns.Column(c1.name)
		if !present {
			differences[c1.name] = fmt.Sprintf("dropped: %s", c1)
			continue
		}
		if !c1.equals(c2) {
			differences[c1.name] = fmt.Sprintf("%+v", c1.differences(c2))
		}
	}
	for _, c := range newColumns {
		if h.columns.IndexOf(c.name) == -1 {
			differences[c.name] = fmt.Sprintf("added: %s", c)
		}
	}

	h2 := NewHypertable(
		h.id, h.schemaName, h.tableName, h.associatedSchemaName,
		h.associatedTablePrefix, h.dimensions, newColumns,
	)
	return h2, differences, nil
}

func (h *Hypertable) String() string {
	builder := strings.Builder{}
	builder.WriteString("{")
	builder.WriteString(fmt.Sprintf("id:%d ", h.id))
	builder.WriteString(fmt.Sprintf("schemaName:%s ", h.schemaName))
	builder.WriteString(fmt.Sprintf("tableName:%s ", h.tableName))
	builder.WriteString(fmt.Sprintf("associatedSchemaName:%s ", h.associatedSchemaName))
	builder.WriteString(fmt.Sprintf("associatedTablePrefix:%s ", h.associatedTablePrefix))
	builder.WriteString(fmt.Sprintf("dimensions:%+v ", h.dimensions))
	builder.WriteString(fmt.Sprintf("columns:%+v", h.columns))
	builder.WriteString("}")
	return builder.String()
}
