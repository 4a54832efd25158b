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
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

const (
	ValuesScanName    = "Values Scan"
	RowSourceScanName = "Row Source Scan"

	// estimated rows of sources with unknown length
	defaultSourceRows = 1000
)

// ValuesScan produces a fixed list of rows
type ValuesScan struct {
	targetList systemcatalog.Columns
	rows       []systemcatalog.Row
}

func NewValuesScan(targetList systemcatalog.Columns, rows []systemcatalog.Row) *ValuesScan {
	return &ValuesScan{
		targetList: targetList,
		rows:       rows,
	}
}

func (v *ValuesScan) NodeName() string {
	return ValuesScanName
}

func (v *ValuesScan) Cost() planning.Cost {
	return planning.Cost{
		StartupCost: 0,
		TotalCost:   float64(len(v.rows)) * 0.01,
		PlanRows:    float64(len(v.rows)),
		PlanWidth:   len(v.targetList) * 8,
	}
}

func (v *ValuesScan) TargetList() systemcatalog.Columns {
	return v.targetList
}

func (v *ValuesScan) CreateState(_ context.Context, _ *planning.ExecutorContext) (planning.PlanState, error) {
	return &valuesScanState{
		scan: v,
	}, nil
}

type valuesScanState struct {
	scan     *ValuesScan
	position int
	closed   bool
}

func (s *valuesScanState) Next(ctx context.Context) (systemcatalog.Row, bool, error) {
	if s.closed {
		return nil, false, errors.Errorf("%s already closed", ValuesScanName)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.position >= len(s.scan.rows) {
		return nil, false, nil
	}

	row := s.scan.rows[s.position]
	s.position++
	if len(row) != len(s.scan.targetList) {
		return nil, false, errors.Errorf(
			"row %d has %d values, expected %d", s.position, len(row), len(s.scan.targetList),
		)
	}
	return row, true, nil
}

func (s *valuesScanState) Close() error {
	s.closed = true
	return nil
}

// RowSource yields rows from an external input, such as a file
type RowSource interface {
	Next(ctx context.Context) (row systemcatalog.Row, ok bool, err error)
}

// RowSourceScan pulls rows from a RowSource. The source can only
// be consumed by a single state.
type RowSourceScan struct {
	targetList systemcatalog.Columns
	source     RowSource
}

func NewRowSourceScan(targetList systemcatalog.Columns, source RowSource) *RowSourceScan {
	return &RowSourceScan{
		targetList: targetList,
		source:     source,
	}
}

func (r *RowSourceScan) NodeName() string {
	return RowSourceScanName
}

func (r *RowSourceScan) Cost() planning.Cost {
	return planning.Cost{
		TotalCost: defaultSourceRows * 0.01,
		PlanRows:  defaultSourceRows,
		PlanWidth: len(r.targetList) * 8,
	}
}

func (r *RowSourceScan) TargetList() systemcatalog.Columns {
	return r.targetList
}

func (r *RowSourceScan) CreateState(_ context.Context, _ *planning.ExecutorContext) (planning.PlanState, error) {
	return &rowSourceScanState{
		scan: r,
	}, nil
}

type rowSourceScanState struct {
	scan      *RowSourceScan
	rowNumber int
	closed    bool
}

func (s *rowSourceScanState) Next(ctx context.Context) (systemcatalog.Row, bool, error) {
	if s.closed {
		return nil, false, errors.Errorf("%s already closed", RowSourceScanName)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	row, ok, err := s.scan.source.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	s.rowNumber++
	if len(row) != len(s.scan.targetList) {
		return nil, false, errors.Errorf(
			"row %d has %d values, expected %d", s.rowNumber, len(row), len(s.scan.targetList),
		)
	}
	return row, true, nil
}

func (s *rowSourceScanState) Close() error {
	s.closed = true
	if closer, ok := s.scan.source.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
