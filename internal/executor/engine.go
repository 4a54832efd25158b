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
	"github.com/hashicorp/go-uuid"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/chunkdispatch"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/stats"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	segmentstats "github.com/segmentio/stats/v4"
	"strings"
	"time"
)

// Engine plans and executes inserts into hypertables
type Engine struct {
	catalog  catalog.Catalog
	storage  storage.Storage
	registry *planning.Registry
	reporter *stats.Reporter
	logger   *logging.Logger
}

// NewEngine creates an engine routing inserts through the chunk
// dispatch. The reporter may be nil.
func NewEngine(
	c catalog.Catalog, s storage.Storage, reporter *stats.Reporter, opts ...chunkdispatch.Option,
) (*Engine, error) {

	logger, err := logging.NewLogger("Executor")
	if err != nil {
		return nil, err
	}

	registry := planning.NewRegistry()
	if err := registry.RegisterCustomScanMethods(chunkdispatch.NewChunkDispatchMethods(c, s, opts...)); err != nil {
		return nil, err
	}

	return &Engine{
		catalog:  c,
		storage:  s,
		registry: registry,
		reporter: reporter,
		logger:   logger,
	}, nil
}

func (e *Engine) Registry() *planning.Registry {
	return e.registry
}

// PlanInsert builds the plan inserting the rows of the subplan into
// the hypertable. The subplan must produce rows in the hypertable's
// layout.
func (e *Engine) PlanInsert(
	hypertable *systemcatalog.Hypertable, subplan planning.Plan,
) (*ModifyTable, error) {

	if !subplan.TargetList().Equal(hypertable.Columns()) {
		return nil, errors.Errorf(
			"target list of %s does not match the layout of %s", subplan.NodeName(), hypertable.CanonicalName(),
		)
	}

	methods, present := e.registry.CustomScanMethods(chunkdispatch.ChunkDispatchName)
	if !present {
		return nil, errors.Errorf("custom scan methods %s not registered", chunkdispatch.ChunkDispatchName)
	}

	dispatchPlan := chunkdispatch.CreateChunkDispatchPlan(subplan, hypertable.Id(), methods)
	return NewModifyTable(hypertable, dispatchPlan), nil
}

// Insert inserts all rows of the source into the hypertable
func (e *Engine) Insert(ctx context.Context, hypertableId int32, source RowSource) (*Result, error) {
	hypertable, err := e.catalog.ReadHypertable(ctx, hypertableId)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, hypertable, NewRowSourceScan(hypertable.Columns(), source))
}

// InsertValues inserts the given rows into the hypertable
func (e *Engine) InsertValues(
	ctx context.Context, hypertableId int32, rows []systemcatalog.Row,
) (*Result, error) {

	hypertable, err := e.catalog.ReadHypertable(ctx, hypertableId)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, hypertable, NewValuesScan(hypertable.Columns(), rows))
}

// Execute plans and runs a single insert statement. On failure the
// returned result still describes the work done before the error.
func (e *Engine) Execute(
	ctx context.Context, hypertable *systemcatalog.Hypertable, subplan planning.Plan,
) (*Result, error) {

	plan, err := e.PlanInsert(hypertable, subplan)
	if err != nil {
		return nil, err
	}

	statementId, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	ectx := &planning.ExecutorContext{
		StatementId: statementId,
		Registry:    e.registry,
	}

	start := time.Now()
	state, err := planning.ExecInitNode(ctx, plan, ectx)
	if err != nil {
		e.reporter.Incr("statements.failed")
		return nil, err
	}

	modifyTableState := state.(*ModifyTableState)
	rowsInserted, runErr := modifyTableState.RunToCompletion(ctx)
	closeErr := modifyTableState.Close()

	result := &Result{
		StatementId:  statementId,
		Plan:         plan,
		RowsInserted: rowsInserted,
		Duration:     time.Since(start),
		Statistics:   modifyTableState.Dispatch().Statistics(),
	}

	if runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		result.Err = runErr
		e.reporter.Incr("statements.failed")
		e.logger.Debugf("Statement %s failed after %d rows: %s", statementId, rowsInserted, runErr)
		return result, runErr
	}

	e.report(result)
	e.logger.Verbosef("Statement %s inserted %d rows into %d chunks in %s",
		statementId, rowsInserted, result.Statistics.ChunksOpened, result.Duration,
	)
	return result, nil
}

func (e *Engine) report(result *Result) {
	e.reporter.Incr("statements.succeeded")
	e.reporter.Add("rows.inserted", result.RowsInserted)
	e.reporter.Add("chunks.created", result.Statistics.ChunksCreated)
	e.reporter.Observe("statement.duration", result.Duration)
	for _, chunk := range result.Statistics.Chunks {
		e.reporter.Add("chunk.rows", chunk.Rows, segmentstats.T("chunk", chunk.Relation))
	}
}

// Result describes an executed insert statement
type Result struct {
	StatementId  string
	Plan         *ModifyTable
	RowsInserted int64
	Duration     time.Duration
	Statistics   chunkdispatch.Statistics
	Err          error
}

// Report renders the executed plan with its actual row counts,
// similar to EXPLAIN ANALYZE
func (r *Result) Report() string {
	builder := strings.Builder{}
	dispatch := r.Plan.Child()
	subplan := dispatch.CustomPlans[0]

	builder.WriteString(fmt.Sprintf("%s (actual rows=%d time=%s)\n",
		r.Plan.NodeName(), r.RowsInserted, r.Duration.Round(time.Microsecond),
	))
	builder.WriteString(fmt.Sprintf("  ->  %s (cost=%.2f..%.2f rows=%.0f width=%d) (actual rows=%d)\n",
		dispatch.NodeName(), dispatch.Cost().StartupCost, dispatch.Cost().TotalCost,
		dispatch.Cost().PlanRows, dispatch.Cost().PlanWidth, r.Statistics.RowsDispatched,
	))
	builder.WriteString(fmt.Sprintf("        Chunks: created=%d opened=%d\n",
		r.Statistics.ChunksCreated, r.Statistics.ChunksOpened,
	))
	for _, chunk := range r.Statistics.Chunks {
		builder.WriteString(fmt.Sprintf("        Chunk %d %s: rows=%d\n", chunk.ChunkId, chunk.Relation, chunk.Rows))
	}
	builder.WriteString(fmt.Sprintf("        ->  %s (cost=%.2f..%.2f rows=%.0f width=%d)\n",
		subplan.NodeName(), subplan.Cost().StartupCost, subplan.Cost().TotalCost,
		subplan.Cost().PlanRows, subplan.Cost().PlanWidth,
	))
	builder.WriteString(fmt.Sprintf("Statement: %s\n", r.StatementId))
	if r.Err != nil {
		builder.WriteString(fmt.Sprintf("Error: %s\n", r.Err))
	}
	return builder.String()
}
