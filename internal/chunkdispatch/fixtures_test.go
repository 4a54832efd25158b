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
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/catalogs/memory"
	memorystorage "github.com/noctarius/timescaledb-chunk-dispatcher/internal/storages/memory"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

const dayMicros = int64(24 * time.Hour / time.Microsecond)

func day(d float64) time.Time {
	return time.UnixMicro(int64(d * float64(dayMicros))).UTC()
}

type fixture struct {
	catalog    *memory.Catalog
	storage    *memorystorage.Storage
	hypertable *systemcatalog.Hypertable
}

func newFixture(t *testing.T) *fixture {
	c, err := memory.NewCatalog()
	require.NoError(t, err)

	s, err := memorystorage.NewStorage()
	require.NoError(t, err)

	hypertable, err := c.DefineHypertable(context.Background(), config.HypertableConfig{
		Table: "metrics",
		Columns: []config.ColumnConfig{
			{Name: "time", Type: "timestamptz", Nullable: lo.ToPtr(false)},
			{Name: "value", Type: "float8"},
		},
		Dimensions: []config.DimensionConfig{
			{Column: "time", Interval: "1d"},
		},
	})
	require.NoError(t, err)

	return &fixture{
		catalog:    c,
		storage:    s,
		hypertable: hypertable,
	}
}

func (f *fixture) refresh(t *testing.T) {
	hypertable, err := f.catalog.ReadHypertable(context.Background(), f.hypertable.Id())
	require.NoError(t, err)
	f.hypertable = hypertable
}

func (f *fixture) timeDimensionId() int32 {
	return f.hypertable.Dimensions()[0].Id()
}

// createDayChunk creates the chunk [day, day+1) directly in the catalog
func (f *fixture) createDayChunk(t *testing.T, d int64) *systemcatalog.Chunk {
	chunk, err := f.catalog.CreateChunk(context.Background(), f.hypertable, systemcatalog.NewHypercube(
		systemcatalog.NewSlice(f.timeDimensionId(), d*dayMicros, (d+1)*dayMicros),
	))
	require.NoError(t, err)
	return chunk
}

func (f *fixture) newDispatchState(t *testing.T, rows ...systemcatalog.Row) (*DispatchState, *testSubplan) {
	return f.newDispatchStateWith(t, f.catalog, rows...)
}

func (f *fixture) newDispatchStateWith(
	t *testing.T, c catalog.Catalog, rows ...systemcatalog.Row,
) (*DispatchState, *testSubplan) {

	subplan := newTestSubplan(f.hypertable.Columns(), rows...)
	state, err := NewDispatchState(
		f.hypertable, subplan, &planning.ExecutorContext{StatementId: "test"}, c, f.storage, Options{},
	)
	require.NoError(t, err)
	return state, subplan
}

// testSubplan replays rows and optionally fails after a number of rows
type testSubplan struct {
	targetList systemcatalog.Columns
	rows       []systemcatalog.Row
	failAfter  int
	states     []*testSubplanState
}

func newTestSubplan(targetList systemcatalog.Columns, rows ...systemcatalog.Row) *testSubplan {
	return &testSubplan{
		targetList: targetList,
		rows:       rows,
		failAfter:  -1,
	}
}

func (p *testSubplan) NodeName() string {
	return "Test Scan"
}

func (p *testSubplan) Cost() planning.Cost {
	return planning.Cost{
		StartupCost: 1,
		TotalCost:   10,
		PlanRows:    float64(len(p.rows)),
		PlanWidth:   16,
	}
}

func (p *testSubplan) TargetList() systemcatalog.Columns {
	return p.targetList
}

func (p *testSubplan) CreateState(_ context.Context, _ *planning.ExecutorContext) (planning.PlanState, error) {
	state := &testSubplanState{plan: p}
	p.states = append(p.states, state)
	return state, nil
}

func (p *testSubplan) closed() bool {
	for _, state := range p.states {
		if state.closeCalls == 0 {
			return false
		}
	}
	return len(p.states) > 0
}

type testSubplanState struct {
	plan       *testSubplan
	position   int
	closeCalls int
}

func (s *testSubplanState) Next(_ context.Context) (systemcatalog.Row, bool, error) {
	if s.plan.failAfter >= 0 && s.position >= s.plan.failAfter {
		return nil, false, errors.Errorf("upstream failure")
	}
	if s.position >= len(s.plan.rows) {
		return nil, false, nil
	}
	row := s.plan.rows[s.position]
	s.position++
	return row, true, nil
}

func (s *testSubplanState) Close() error {
	s.closeCalls++
	return nil
}

// racingCatalog lets a concurrent statement win the creation of
// the next chunk right before this catalog tries to create it
type racingCatalog struct {
	*memory.Catalog
	races         int
	alwaysCollide bool
}

func (r *racingCatalog) CreateChunk(
	ctx context.Context, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
) (*systemcatalog.Chunk, error) {

	if r.alwaysCollide {
		r.races++
		return nil, catalog.ErrChunkCollision
	}
	if r.races == 0 {
		r.races++
		if _, err := r.Catalog.CreateChunk(ctx, hypertable, hypercube); err != nil {
			return nil, err
		}
	}
	return r.Catalog.CreateChunk(ctx, hypertable, hypercube)
}

// failingCommitStorage begins transactions of the wrapped storage
// which fail to commit and roll back instead
type failingCommitStorage struct {
	*memorystorage.Storage
}

func (s *failingCommitStorage) Begin(ctx context.Context) (storage.Transaction, error) {
	transaction, err := s.Storage.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingCommitTransaction{Transaction: transaction}, nil
}

type failingCommitTransaction struct {
	storage.Transaction
}

func (t *failingCommitTransaction) Commit(ctx context.Context) error {
	if err := t.Transaction.Rollback(ctx); err != nil {
		return err
	}
	return errors.Errorf("could not serialize access")
}
