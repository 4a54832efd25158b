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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"
	"strings"
)

var typeMap = pgtype.NewMap()

// Columns represents the ordered column layout of a relation,
// columns are identified by name, not position
type Columns []Column

// IndexOf returns the position of the named column in the
// layout, or -1 if the layout doesn't contain the column
func (c Columns) IndexOf(name string) int {
	_, index, found := lo.FindIndexOf(c, func(item Column) bool {
		return item.name == name
	})
	if !found {
		return -1
	}
	return index
}

// Column returns the named column and true, otherwise
// present will be false
func (c Columns) Column(name string) (column Column, present bool) {
	return lo.Find(c, func(item Column) bool {
		return item.name == name
	})
}

// Names returns the column names in layout order
func (c Columns) Names() []string {
	return lo.Map(c, func(item Column, _ int) string {
		return item.name
	})
}

// Equal returns true if both layouts contain the same
// columns in the same order
func (c Columns) Equal(other Columns) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if !c[i].equals(other[i]) {
			return false
		}
	}
	return true
}

// Column represents a column of a hypertable or chunk
type Column struct {
	name         string
	dataType     uint32
	typeName     string
	nullable     bool
	defaultValue *string
}

// NewColumn instantiates a new Column. The type name is
// resolved from the PostgreSQL OID if known.
func NewColumn(name string, dataType uint32, nullable bool, defaultValue *string) Column {
	typeName := fmt.Sprintf("oid:%d", dataType)
	if t, ok := typeMap.TypeForOID(dataType); ok {
		typeName = t.Name
	}
	return NewColumnWithTypeName(name, dataType, typeName, nullable, defaultValue)
}

// NewColumnWithTypeName instantiates a new Column with a
// type name as reported by the catalog
func NewColumnWithTypeName(
	name string, dataType uint32, typeName string, nullable bool, defaultValue *string,
) Column {

	return Column{
		name:         name,
		dataType:     dataType,
		typeName:     typeName,
		nullable:     nullable,
		defaultValue: defaultValue,
	}
}

// ResolveDataType returns the OID of a named PostgreSQL type
// (for example timestamptz or int8)
func ResolveDataType(typeName string) (oid uint32, found bool) {
	if t, ok := typeMap.TypeForName(strings.ToLower(typeName)); ok {
		return t.OID, true
	}
	return 0, false
}

// Name returns the column name
func (c Column) Name() string {
	return c.name
}

// DataType returns the PostgreSQL OID of the column
func (c Column) DataType() uint32 {
	return c.dataType
}

// TypeName returns the data type name of the column
func (c Column) TypeName() string {
	return c.typeName
}

// IsNullable returns true if the column is nullable
func (c Column) IsNullable() bool {
	return c.nullable
}

// DefaultValue returns the default expression of the
// column, otherwise nil if no default value is defined
func (c Column) DefaultValue() *string {
	return c.defaultValue
}

// HasDefault returns true if the column defines a default
func (c Column) HasDefault() bool {
	return c.defaultValue != nil
}

// IsRequired returns true if a value must be provided for
// the column, meaning it is NOT NULL without a default
func (c Column) IsRequired() bool {
	return !c.nullable && c.defaultValue == nil
}

func (c Column) String() string {
	builder := strings.Builder{}
	builder.WriteString("{")
	builder.WriteString(fmt.Sprintf("name:%s ", c.name))
	builder.WriteString(fmt.Sprintf("dataType:%d ", c.dataType))
	builder.WriteString(fmt.Sprintf("typeName:%s ", c.typeName))
	builder.WriteString(fmt.Sprintf("nullable:%t ", c.nullable))
	if c.defaultValue == nil {
		builder.WriteString("defaultValue:<nil>")
	} else {
		builder.WriteString(fmt.Sprintf("defaultValue:%s", *c.defaultValue))
	}
	builder.WriteString("}")
	return builder.String()
}

func (c Column) equals(other Column) bool {
	return c.name == other.name &&
		c.dataType == other.dataType &&
		c.nullable == other.nullable &&
		((c.defaultValue == nil && other.defaultValue == nil) ||
			(c.defaultValue != nil && other.defaultValue != nil && *c.defaultValue == *other.defaultValue))
}

func (c Column) differences(new Column) map[string]string {
	differences := make(map[string]string)
	if c.dataType != new.dataType {
		differences["dataType"] = fmt.Sprintf("%d=>%d", c.dataType, new.dataType)
	}
	if c.nullable != new.nullable {
		differences["nullable"] = fmt.Sprintf("%t=>%t", c.nullable, new.nullable)
	}
	if (c.defaultValue == nil) != (new.defaultValue == nil) ||
		(c.defaultValue != nil && *c.defaultValue != *new.defaultValue) {

		o := "<nil>"
		if c.defaultValue != nil {
			o = *c.defaultValue
		}
		n := "<nil>"
		if new.defaultValue != nil {
			n = *new.defaultValue
		}
		differences["defaultValue"] = fmt.Sprintf("%s=>%s", o, n)
	}
	return differences
}
