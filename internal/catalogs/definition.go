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

package catalogs

import (
	"fmt"
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultChunkSchema = "_timescaledb_internal"

	timestampOid   uint32 = 1114
	timestamptzOid uint32 = 1184
	dateOid        uint32 = 1082
)

var dayIntervalPattern = regexp.MustCompile(`^(\d+)\s*(d|day|days)$`)

// BuildColumns converts column definitions into a column layout
func BuildColumns(definitions []config.ColumnConfig) (systemcatalog.Columns, error) {
	columns := make(systemcatalog.Columns, 0, len(definitions))
	for _, definition := range definitions {
		column, err := BuildColumn(definition)
		if err != nil {
			return nil, err
		}
		columns = append(columns, column)
	}
	return columns, nil
}

// BuildColumn converts a single column definition. Columns are
// nullable unless declared otherwise.
func BuildColumn(definition config.ColumnConfig) (systemcatalog.Column, error) {
	if definition.Name == "" {
		return systemcatalog.Column{}, errors.Errorf("column name must not be empty")
	}
	oid, found := systemcatalog.ResolveDataType(definition.Type)
	if !found {
		return systemcatalog.Column{}, errors.Errorf(
			"unknown data type '%s' for column %s", definition.Type, definition.Name,
		)
	}
	nullable := definition.Nullable == nil || *definition.Nullable
	return systemcatalog.NewColumn(definition.Name, oid, nullable, definition.Default), nil
}

// BuildHypertable converts a hypertable definition into a hypertable
// with the given id. Dimension ids are derived from the hypertable id.
func BuildHypertable(id int32, definition config.HypertableConfig) (*systemcatalog.Hypertable, error) {
	if definition.Table == "" {
		return nil, errors.Errorf("hypertable name must not be empty")
	}
	schemaName := definition.Schema
	if schemaName == "" {
		schemaName = "public"
	}
	chunkSchema := definition.ChunkSchema
	if chunkSchema == "" {
		chunkSchema = DefaultChunkSchema
	}
	chunkPrefix := definition.ChunkPrefix
	if chunkPrefix == "" {
		chunkPrefix = fmt.Sprintf("_hyper_%d", id)
	}

	columns, err := BuildColumns(definition.Columns)
	if err != nil {
		return nil, err
	}

	if len(definition.Dimensions) == 0 {
		return nil, errors.Errorf("hypertable %s.%s needs at least one dimension", schemaName, definition.Table)
	}

	dimensions := make([]*systemcatalog.Dimension, 0, len(definition.Dimensions))
	for i, dimensionDefinition := range definition.Dimensions {
		dimension, err := BuildDimension(id*100+int32(i)+1, dimensionDefinition, columns)
		if err != nil {
			return nil, err
		}
		dimensions = append(dimensions, dimension)
	}

	return systemcatalog.NewHypertable(
		id, schemaName, definition.Table, chunkSchema, chunkPrefix, dimensions, columns,
	), nil
}

// BuildDimension converts a dimension definition. A dimension with
// partitions is closed, otherwise it is open and requires an interval.
func BuildDimension(
	id int32, definition config.DimensionConfig, columns systemcatalog.Columns,
) (*systemcatalog.Dimension, error) {

	column, present := columns.Column(definition.Column)
	if !present {
		return nil, errors.Errorf("dimension column %s is not a column of the hypertable", definition.Column)
	}

	var partitioningFunc *string
	if definition.PartitioningFunc != "" {
		partitioningFunc = &definition.PartitioningFunc
	}

	if definition.Partitions > 0 {
		notNull := !column.IsNullable()
		if definition.NotNull != nil {
			notNull = *definition.NotNull
		}
		return systemcatalog.NewClosedDimension(
			id, column.Name(), column.DataType(), definition.Partitions, partitioningFunc, notNull,
		), nil
	}

	interval, err := ParseInterval(definition.Interval, column.DataType())
	if err != nil {
		return nil, errors.Errorf("dimension %s: %s", definition.Column, err)
	}
	return systemcatalog.NewOpenDimension(
		id, column.Name(), column.DataType(), interval, partitioningFunc,
	), nil
}

// ParseInterval parses the interval length of an open dimension.
// Time based columns accept Go durations or a number of days
// (7d, 1 day) and are measured in microseconds, all other columns
// take a plain integer.
func ParseInterval(interval string, columnType uint32) (int64, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return 0, errors.Errorf("interval must not be empty")
	}

	var length int64
	switch columnType {
	case timestampOid, timestamptzOid, dateOid:
		if match := dayIntervalPattern.FindStringSubmatch(strings.ToLower(interval)); match != nil {
			days, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				return 0, errors.Wrap(err, 0)
			}
			length = days * (24 * time.Hour).Microseconds()
		} else if duration, err := time.ParseDuration(interval); err == nil {
			length = duration.Microseconds()
		} else if value, err := strconv.ParseInt(interval, 10, 64); err == nil {
			length = value
		} else {
			return 0, errors.Errorf("invalid interval '%s'", interval)
		}
	default:
		value, err := strconv.ParseInt(interval, 10, 64)
		if err != nil {
			return 0, errors.Errorf("invalid interval '%s'", interval)
		}
		length = value
	}

	if length <= 0 {
		return 0, errors.Errorf("interval must be positive")
	}
	return length, nil
}
