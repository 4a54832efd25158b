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

package chunkdispatch

import (
	"fmt"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

// TupleConversionMap converts rows from the hypertable's layout
// to a chunk's layout. Columns are matched by name, so chunks
// created before a column was added or reordered still convert.
type TupleConversionMap struct {
	relation  string
	identity  bool
	sourceLen int
	// attributeMap holds, per target column, the source position
	// or -1 if the value comes from fillValues
	attributeMap []int
	fillValues   []any
}

// NewTupleConversionMap builds the conversion from the source
// (hypertable) layout to the target (chunk) layout of the relation.
func NewTupleConversionMap(
	relation string, source, target systemcatalog.Columns,
) (*TupleConversionMap, error) {

	if isIdentityLayout(source, target) {
		return &TupleConversionMap{
			relation:  relation,
			identity:  true,
			sourceLen: len(source),
		}, nil
	}

	for _, column := range source {
		if target.IndexOf(column.Name()) == -1 && column.IsRequired() {
			return nil, &SchemaMismatchError{
				Relation: relation,
				Column:   column.Name(),
				Reason:   "required column is missing in the chunk",
			}
		}
	}

	attributeMap := make([]int, len(target))
	fillValues := make([]any, len(target))
	for i, column := range target {
		index := source.IndexOf(column.Name())
		if index == -1 {
			attributeMap[i] = -1
			switch {
			case column.HasDefault():
				fillValues[i] = systemcatalog.DefaultValue{Column: column.Name()}
			case column.IsNullable():
				fillValues[i] = nil
			default:
				return nil, &SchemaMismatchError{
					Relation: relation,
					Column:   column.Name(),
					Reason:   "NOT NULL column without default is unknown to the hypertable",
				}
			}
			continue
		}

		sourceColumn := source[index]
		if sourceColumn.DataType() != column.DataType() {
			return nil, &SchemaMismatchError{
				Relation: relation,
				Column:   column.Name(),
				Reason: fmt.Sprintf(
					"type %s doesn't match hypertable type %s", column.TypeName(), sourceColumn.TypeName(),
				),
			}
		}
		attributeMap[i] = index
	}

	return &TupleConversionMap{
		relation:     relation,
		sourceLen:    len(source),
		attributeMap: attributeMap,
		fillValues:   fillValues,
	}, nil
}

// IsIdentity returns true if rows pass through unchanged
func (t *TupleConversionMap) IsIdentity() bool {
	return t.identity
}

// Convert returns the row in the target layout. An identity
// conversion returns the same row instance.
func (t *TupleConversionMap) Convert(row systemcatalog.Row) (systemcatalog.Row, error) {
	if len(row) != t.sourceLen {
		return nil, &SchemaMismatchError{
			Relation: t.relation,
			Reason:   fmt.Sprintf("row has %d values, layout expects %d", len(row), t.sourceLen),
		}
	}
	if t.identity {
		return row, nil
	}

	converted := make(systemcatalog.Row, len(t.attributeMap))
	for i, index := range t.attributeMap {
		if index == -1 {
			converted[i] = t.fillValues[i]
		} else {
			converted[i] = row[index]
		}
	}
	return converted, nil
}

func isIdentityLayout(source, target systemcatalog.Columns) bool {
	if len(source) != len(target) {
		return false
	}
	for i := range source {
		if source[i].Name() != target[i].Name() || source[i].DataType() != target[i].DataType() {
			return false
		}
	}
	return true
}
