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
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/segmentio/fasthash/fnv1a"
	"math"
	"strconv"
	"time"
)

const (
	timestampOid   uint32 = 1114
	timestamptzOid uint32 = 1184
	dateOid        uint32 = 1082

	hashMask = 0x7fffffff
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

// Partitioner maps the values of a dimension column to
// coordinates of the dimension
type Partitioner struct {
	dimension *systemcatalog.Dimension
	program   *vm.Program
}

// NewPartitioner creates a Partitioner for the dimension. A custom
// partitioning expression is compiled once and gets the column
// value as "value" in its environment.
func NewPartitioner(dimension *systemcatalog.Dimension) (*Partitioner, error) {
	p := &Partitioner{
		dimension: dimension,
	}
	if expression, present := dimension.PartitioningFunc(); present {
		program, err := expr.Compile(expression)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		p.program = program
	}
	return p, nil
}

func (p *Partitioner) Dimension() *systemcatalog.Dimension {
	return p.dimension
}

// Coordinate returns the coordinate of the value in the dimension
func (p *Partitioner) Coordinate(value any) (int64, error) {
	if value == nil {
		if p.dimension.IsOpen() || p.dimension.IsNotNull() {
			return 0, newValueError(p.dimension.ColumnName(), nil, "NULL value violates not-null constraint")
		}
		return 0, nil
	}

	if systemcatalog.IsDefaultValue(value) {
		return 0, newValueError(
			p.dimension.ColumnName(), nil, "partitioning column requires an explicit value",
		)
	}

	if p.program != nil {
		result, err := expr.Run(p.program, map[string]any{"value": value})
		if err != nil {
			return 0, newValueError(p.dimension.ColumnName(), value, "partitioning function failed: %s", err)
		}
		coordinate, ok := toInteger(result)
		if !ok {
			return 0, newValueError(
				p.dimension.ColumnName(), value, "partitioning function returned non-integer %v", result,
			)
		}
		if !p.dimension.IsOpen() {
			return coordinate & hashMask, nil
		}
		return coordinate, nil
	}

	if p.dimension.IsOpen() {
		return p.openCoordinate(value)
	}
	return p.closedCoordinate(value)
}

func (p *Partitioner) openCoordinate(value any) (int64, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UnixMicro(), nil
	case *time.Time:
		return v.UnixMicro(), nil
	case string:
		if p.isTimeColumn() {
			t, err := parseTime(v)
			if err != nil {
				return 0, newValueError(p.dimension.ColumnName(), value, "malformed time value")
			}
			return t.UnixMicro(), nil
		}
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, newValueError(p.dimension.ColumnName(), value, "malformed integer value")
		}
		return i, nil
	}

	if i, ok := toInteger(value); ok {
		return i, nil
	}
	return 0, newValueError(p.dimension.ColumnName(), value, "unsupported value type %T", value)
}

func (p *Partitioner) closedCoordinate(value any) (int64, error) {
	var hash uint32
	switch v := value.(type) {
	case string:
		hash = fnv1a.HashString32(v)
	case []byte:
		hash = fnv1a.HashBytes32(v)
	case time.Time:
		hash = fnv1a.HashString32(v.UTC().Format(time.RFC3339Nano))
	case bool:
		hash = fnv1a.HashString32(strconv.FormatBool(v))
	default:
		i, ok := toInteger(value)
		if !ok {
			return 0, newValueError(p.dimension.ColumnName(), value, "unsupported value type %T", value)
		}
		hash = fnv1a.HashString32(strconv.FormatInt(i, 10))
	}
	return int64(hash) & hashMask, nil
}

func (p *Partitioner) isTimeColumn() bool {
	switch p.dimension.ColumnType() {
	case timestampOid, timestamptzOid, dateOid:
		return true
	}
	return false
}

func parseTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func toInteger(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		return floatToInteger(float64(v))
	case float64:
		return floatToInteger(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		if f, err := v.Float64(); err == nil {
			return floatToInteger(f)
		}
	}
	return 0, false
}

// floatToInteger rejects fractions and values outside of int64.
// float64(math.MaxInt64) rounds up to 2^63, hence the >= check.
func floatToInteger(value float64) (int64, bool) {
	if value != math.Trunc(value) || value >= math.MaxInt64 || value < math.MinInt64 {
		return 0, false
	}
	return int64(value), true
}
