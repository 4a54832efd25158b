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

package executor

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
	"io"
	"time"
)

const (
	boolOid        = 16
	int8Oid        = 20
	int2Oid        = 21
	int4Oid        = 23
	float4Oid      = 700
	float8Oid      = 701
	dateOid        = 1082
	timestampOid   = 1114
	timestamptzOid = 1184
	numericOid     = 1700
)

// JSONLinesSource reads one JSON object per row. Object keys are
// column names. Absent columns receive their default, or NULL if
// the column has none.
type JSONLinesSource struct {
	decoder *json.Decoder
	layout  systemcatalog.Columns
	closer  io.Closer
	line    int
}

func NewJSONLinesSource(reader io.Reader, layout systemcatalog.Columns) *JSONLinesSource {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber()

	source := &JSONLinesSource{
		decoder: decoder,
		layout:  layout,
	}
	if closer, ok := reader.(io.Closer); ok {
		source.closer = closer
	}
	return source
}

func (j *JSONLinesSource) Next(ctx context.Context) (systemcatalog.Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var object map[string]any
	if err := j.decoder.Decode(&object); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		return nil, false, errors.Errorf("row %d: %s", j.line+1, err)
	}
	j.line++

	for key := range object {
		if j.layout.IndexOf(key) == -1 {
			return nil, false, errors.Errorf("row %d: unknown column %s", j.line, key)
		}
	}

	row := make(systemcatalog.Row, len(j.layout))
	for i, column := range j.layout {
		value, present := object[column.Name()]
		if !present {
			row[i] = lo.Ternary[any](column.HasDefault(), systemcatalog.DefaultValue{Column: column.Name()}, nil)
			continue
		}

		converted, err := convertJSONValue(column, value)
		if err != nil {
			return nil, false, errors.Errorf("row %d, column %s: %s", j.line, column.Name(), err)
		}
		row[i] = converted
	}
	return row, true, nil
}

func (j *JSONLinesSource) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

func convertJSONValue(column systemcatalog.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch column.DataType() {
	case int2Oid, int4Oid, int8Oid:
		if number, ok := value.(json.Number); ok {
			return number.Int64()
		}
	case float4Oid, float8Oid, numericOid:
		if number, ok := value.(json.Number); ok {
			return number.Float64()
		}
	case boolOid:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case timestamptzOid, timestampOid, dateOid:
		switch v := value.(type) {
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
				if t, err := time.Parse(layout, v); err == nil {
					return t, nil
				}
			}
			return nil, errors.Errorf("unsupported time format '%s'", v)
		case json.Number:
			// epoch microseconds
			micros, err := v.Int64()
			if err != nil {
				return nil, err
			}
			return time.UnixMicro(micros).UTC(), nil
		}
	default:
		if number, ok := value.(json.Number); ok {
			return number.String(), nil
		}
		return value, nil
	}
	return nil, errors.Errorf("value %v of type %T doesn't match column type %s", value, value, column.TypeName())
}
