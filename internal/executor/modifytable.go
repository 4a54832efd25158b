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
	"fmt"
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/chunkdispatch"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

// ModifyTable inserts the rows routed by its chunk dispatch child
// into the chunk relations the rows were dispatched to
type ModifyTable struct {
	hypertable *systemcatalog.Hypertable
	child      *planning.CustomScan
}

func NewModifyTable(hypertable *systemcatalog.Hypertable, child *planning.CustomScan) *ModifyTable {
	return &ModifyTable{
		hypertable: hypertable,
		child:      child,
	}
}

func (m *ModifyTable) NodeName() string {
	return fmt.Sprintf("Insert on %s", m.hypertable.CanonicalName())
}

func (m *ModifyTable) Cost() planning.Cost {
	return m.child.Cost()
}

func (m *ModifyTable) TargetList() systemcatalog.Columns {
	return m.hypertable.Columns()
}

func (m *ModifyTable) Child() *planning.CustomScan {
	return m.child
}

func (m *ModifyTable) CreateState(ctx context.Context, ectx *planning.ExecutorContext) (planning.PlanState, error) {
	state, err := planning.ExecInitNode(ctx, m.child, ectx)
	if err != nil {
		return nil, err
	}

	dispatchState, ok := state.(*chunkdispatch.DispatchState)
	if !ok {
		_ = state.Close()
		return nil, errors.Errorf("%s expects a chunk dispatch child, got %s", m.NodeName(), m.child.NodeName())
	}

	return &ModifyTableState{
		plan:     m,
		dispatch: dispatchState,
	}, nil
}

// ModifyTableState performs the inserts of one statement. Next
// inserts a single row and returns it in the chunk's layout.
type ModifyTableState struct {
	plan          *ModifyTable
	dispatch      *chunkdispatch.DispatchState
	rowsProcessed int64
}

func (s *ModifyTableState) Next(ctx context.Context) (systemcatalog.Row, bool, error) {
	dispatched, ok, err := s.dispatch.Dispatch(ctx)
	if err != nil || !ok {
		return nil, false, err
	}

	if err := dispatched.Relation.Insert(ctx, dispatched.Row); err != nil {
		storageErr := chunkdispatch.NewStorageError(dispatched.Chunk.CanonicalName(), err)
		_ = s.dispatch.Abort(storageErr)
		return nil, false, storageErr
	}
	s.rowsProcessed++
	return dispatched.Row, true, nil
}

// RunToCompletion inserts all remaining rows and returns the
// number of rows inserted by this state
func (s *ModifyTableState) RunToCompletion(ctx context.Context) (int64, error) {
	for {
		_, ok, err := s.Next(ctx)
		if err != nil {
			return s.rowsProcessed, err
		}
		if !ok {
			return s.rowsProcessed, nil
		}
	}
}

func (s *ModifyTableState) RowsProcessed() int64 {
	return s.rowsProcessed
}

func (s *ModifyTableState) Dispatch() *chunkdispatch.DispatchState {
	return s.dispatch
}

func (s *ModifyTableState) Close() error {
	return s.dispatch.Close()
}
