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
	"context"
	"github.com/go-errors/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/dimensions"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

// DispatchStatus is the lifecycle state of a DispatchState
type DispatchStatus int

const (
	NotStarted DispatchStatus = iota
	Running
	Done
	Failed
)

func (s DispatchStatus) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Running:
		return "Running"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// ErrNotRunning is returned when rows are requested from a
// dispatch state which was never started
var ErrNotRunning = errors.Errorf("chunk dispatch is not running")

// DispatchedRow is a row converted to the layout of the chunk
// it was routed to
type DispatchedRow struct {
	Row       systemcatalog.Row
	Chunk     *systemcatalog.Chunk
	Relation  storage.RelationHandle
	RowNumber int64
}

// DispatchState routes the rows produced by a subplan to their
// chunks. All chunk handles are released exactly once when the
// state reaches Done or Failed, whatever the cause. If the storage
// supports transactions, the statement's inserts are committed on
// Done and rolled back on Failed.
type DispatchState struct {
	hypertable   *systemcatalog.Hypertable
	subplan      planning.Plan
	subplanState planning.PlanState
	ectx         *planning.ExecutorContext
	space        *dimensions.Space
	resolver     *ChunkResolver
	cache        *ChunkCache
	storage      storage.Storage
	transaction  storage.Transaction
	status       DispatchStatus
	err          error
	releaseErr   error
	rowNumber    int64
	logger       *logging.Logger
}

// NewDispatchState creates a not yet started dispatch state for the
// subplan. The hypertable's layout must be the subplan's target list.
func NewDispatchState(
	hypertable *systemcatalog.Hypertable, subplan planning.Plan, ectx *planning.ExecutorContext,
	c catalog.Catalog, s storage.Storage, options Options,
) (*DispatchState, error) {

	logger, err := logging.NewLogger("ChunkDispatch")
	if err != nil {
		return nil, err
	}

	space, err := dimensions.NewSpace(hypertable)
	if err != nil {
		return nil, newCatalogError("read hypertable dimensions", err)
	}

	resolver, err := NewChunkResolver(c, space, options.MaxResolveAttempts)
	if err != nil {
		return nil, err
	}

	cache, err := NewChunkCache(c, s, hypertable, options.CacheCapacity)
	if err != nil {
		return nil, err
	}

	return &DispatchState{
		hypertable: hypertable,
		subplan:    subplan,
		ectx:       ectx,
		space:      space,
		resolver:   resolver,
		cache:      cache,
		storage:    s,
		status:     NotStarted,
		logger:     logger,
	}, nil
}

// Start initializes the subplan and moves the state to Running
func (d *DispatchState) Start(ctx context.Context) (err error) {
	if d.status != NotStarted {
		return errors.Errorf("chunk dispatch cannot be started in state %s", d.status)
	}
	d.status = Running

	defer func() {
		if err != nil {
			d.finish(ctx, Failed, err)
		}
	}()

	if transactional, ok := d.storage.(storage.TransactionalStorage); ok {
		transaction, err := transactional.Begin(ctx)
		if err != nil {
			return NewStorageError(d.hypertable.CanonicalName(), err)
		}
		d.transaction = transaction
		d.cache.useOpener(transaction)
	}

	subplanState, err := planning.ExecInitNode(ctx, d.subplan, d.ectx)
	if err != nil {
		return err
	}
	d.subplanState = subplanState
	return nil
}

// Dispatch pulls the next row from the subplan and routes it. It
// returns false once the subplan is exhausted. Any error moves the
// state to Failed and releases all chunk handles.
func (d *DispatchState) Dispatch(ctx context.Context) (dispatched *DispatchedRow, ok bool, err error) {
	switch d.status {
	case NotStarted:
		return nil, false, ErrNotRunning
	case Done:
		return nil, false, nil
	case Failed:
		return nil, false, d.err
	}

	defer func() {
		if err != nil {
			err = d.finish(ctx, Failed, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	row, ok, err := d.subplanState.Next(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		if err := d.finish(ctx, Done, nil); err != nil {
			// finish already moved the state to Failed
			return nil, false, err
		}
		return nil, false, nil
	}
	d.rowNumber++

	point, err := d.space.PointFor(row)
	if err != nil {
		return nil, false, newDimensionError(d.rowNumber, err)
	}

	handle, present := d.cache.Lookup(point)
	if !present {
		chunk, err := d.resolver.Resolve(ctx, point)
		if err != nil {
			return nil, false, err
		}
		if handle, err = d.cache.GetOrOpen(ctx, chunk); err != nil {
			return nil, false, err
		}
	}

	converted, err := handle.conversion.Convert(row)
	if err != nil {
		return nil, false, err
	}
	handle.rowsDispatched++

	return &DispatchedRow{
		Row:       converted,
		Chunk:     handle.chunk,
		Relation:  handle.relation,
		RowNumber: d.rowNumber,
	}, true, nil
}

// Next implements planning.PlanState and returns the converted row
func (d *DispatchState) Next(ctx context.Context) (systemcatalog.Row, bool, error) {
	dispatched, ok, err := d.Dispatch(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return dispatched.Row, true, nil
}

// Abort stops a running dispatch, releasing all chunk handles.
// Aborting a finished dispatch has no effect.
func (d *DispatchState) Abort(reason error) error {
	if d.status == Done || d.status == Failed {
		return nil
	}
	if reason == nil {
		reason = errors.Errorf("chunk dispatch aborted")
	}
	return d.finish(context.Background(), Failed, reason)
}

// Close implements planning.PlanState. Closing a running dispatch
// aborts it, the returned error only reports failures to release
// its resources.
func (d *DispatchState) Close() error {
	if d.status == Done || d.status == Failed {
		return nil
	}
	d.finish(context.Background(), Failed, errors.Errorf("chunk dispatch closed while %s", d.status))
	return d.releaseErr
}

func (d *DispatchState) Status() DispatchStatus {
	return d.status
}

// Err returns the error which failed the dispatch, if any
func (d *DispatchState) Err() error {
	return d.err
}

func (d *DispatchState) Hypertable() *systemcatalog.Hypertable {
	return d.hypertable
}

// Statistics returns the per chunk counters of the dispatch so far
func (d *DispatchState) Statistics() Statistics {
	return newStatistics(d.rowNumber, d.resolver.ChunksCreated(), d.cache.Handles())
}

// finish is the only place releasing resources. It moves the state
// to its final status and returns the error describing the outcome.
// The transaction, if any, is committed only if the state ends Done.
func (d *DispatchState) finish(ctx context.Context, status DispatchStatus, cause error) error {
	if d.status == Done || d.status == Failed {
		return d.err
	}

	var result *multierror.Error
	if d.subplanState != nil {
		if err := d.subplanState.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := d.cache.CloseAll(); err != nil {
		result = multierror.Append(result, err)
	}

	if releaseErr := result.ErrorOrNil(); releaseErr != nil {
		if cause == nil {
			status = Failed
			cause = releaseErr
		} else {
			d.logger.Warnf("Failed to release resources after error: %s", releaseErr)
		}
	}

	if d.transaction != nil {
		transaction := d.transaction
		d.transaction = nil
		if status == Done {
			if err := transaction.Commit(ctx); err != nil {
				status = Failed
				cause = NewStorageError(d.hypertable.CanonicalName(), err)
			}
		} else if err := transaction.Rollback(context.Background()); err != nil {
			d.logger.Warnf("Failed to rollback inserts into %s: %s", d.hypertable.CanonicalName(), err)
			result = multierror.Append(result, err)
		}
	}
	d.releaseErr = result.ErrorOrNil()

	d.status = status
	d.err = cause

	if status == Failed {
		d.logger.Debugf("Chunk dispatch for %s failed after %d rows: %s",
			d.hypertable.CanonicalName(), d.rowNumber, cause,
		)
	} else {
		d.logger.Verbosef("Chunk dispatch for %s finished, %d rows into %d chunks",
			d.hypertable.CanonicalName(), d.rowNumber, d.cache.Len(),
		)
	}
	return cause
}
