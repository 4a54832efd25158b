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

package memory

import (
	"context"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/containers"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var typeCastPattern = regexp.MustCompile(`::[a-zA-Z_][a-zA-Z0-9_ ]*(\[\])?`)

func init() {
	storage.RegisterStorage(config.MemoryStorage, func(_ *config.Config) (storage.Storage, error) {
		return NewStorage()
	})
}

// InsertInterceptor is called before a row is stored, a returned
// error fails the insert
type InsertInterceptor func(relation string, row systemcatalog.Row) error

// Storage keeps the rows of every relation in memory and tracks
// the number of open relation handles. Rows inserted through a
// transaction become visible on commit.
type Storage struct {
	relations     *containers.ConcurrentMap[string, *Relation]
	openHandles   atomic.Int64
	handlesOpened atomic.Int64
	interceptor   atomic.Pointer[InsertInterceptor]
	logger        *logging.Logger
}

func NewStorage() (*Storage, error) {
	logger, err := logging.NewLogger("MemoryStorage")
	if err != nil {
		return nil, err
	}

	return &Storage{
		relations: containers.NewConcurrentMap[string, *Relation](),
		logger:    logger,
	}, nil
}

func (s *Storage) Start() error {
	return nil
}

func (s *Storage) Stop() error {
	if open := s.openHandles.Load(); open > 0 {
		s.logger.Warnf("Stopping storage with %d open relation handles", open)
	}
	return nil
}

func (s *Storage) OpenRelation(
	ctx context.Context, chunk *systemcatalog.Chunk, layout systemcatalog.Columns,
) (storage.RelationHandle, error) {

	handle, err := s.openRelation(ctx, chunk, layout, nil)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Begin starts a transaction buffering all inserts of its relation
// handles until Commit
func (s *Storage) Begin(ctx context.Context) (storage.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &transaction{
		storage: s,
		pending: make(map[*Relation][]systemcatalog.Row),
	}, nil
}

func (s *Storage) openRelation(
	ctx context.Context, chunk *systemcatalog.Chunk, layout systemcatalog.Columns, tx *transaction,
) (*relationHandle, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defaults, err := compileDefaults(layout)
	if err != nil {
		return nil, err
	}

	relation, _ := s.relations.LoadOrStore(chunk.CanonicalName(), &Relation{
		entity: chunk,
		layout: layout,
		rows:   make([]systemcatalog.Row, 0),
	})

	s.openHandles.Add(1)
	s.handlesOpened.Add(1)
	return &relationHandle{
		storage:     s,
		relation:    relation,
		layout:      layout,
		defaults:    defaults,
		transaction: tx,
	}, nil
}

// SetInsertInterceptor installs an interceptor for all subsequent inserts
func (s *Storage) SetInsertInterceptor(interceptor InsertInterceptor) {
	if interceptor == nil {
		s.interceptor.Store(nil)
		return
	}
	s.interceptor.Store(&interceptor)
}

// Relation returns the relation with the given canonical name
// and true, otherwise present will be false
func (s *Storage) Relation(canonicalName string) (relation *Relation, present bool) {
	return s.relations.Load(canonicalName)
}

// Rows returns a snapshot of the rows stored in the relation
func (s *Storage) Rows(canonicalName string) []systemcatalog.Row {
	relation, present := s.relations.Load(canonicalName)
	if !present {
		return nil
	}
	return relation.Rows()
}

// OpenHandles returns the number of currently open relation handles
func (s *Storage) OpenHandles() int64 {
	return s.openHandles.Load()
}

// HandlesOpened returns the number of relation handles ever opened
func (s *Storage) HandlesOpened() int64 {
	return s.handlesOpened.Load()
}

// Relation is an in-memory table
type Relation struct {
	mutex  sync.Mutex
	entity systemcatalog.SystemEntity
	layout systemcatalog.Columns
	rows   []systemcatalog.Row
}

func (r *Relation) Layout() systemcatalog.Columns {
	return r.layout
}

func (r *Relation) Rows() []systemcatalog.Row {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]systemcatalog.Row{}, r.rows...)
}

func (r *Relation) append(rows ...systemcatalog.Row) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.rows = append(r.rows, rows...)
}

// transaction collects the rows of a statement per relation
type transaction struct {
	storage     *Storage
	pending     map[*Relation][]systemcatalog.Row
	order       []*Relation
	openHandles int
	completed   bool
}

func (t *transaction) OpenRelation(
	ctx context.Context, chunk *systemcatalog.Chunk, layout systemcatalog.Columns,
) (storage.RelationHandle, error) {

	if t.completed {
		return nil, errors.Errorf("transaction already completed")
	}
	handle, err := t.storage.openRelation(ctx, chunk, layout, t)
	if err != nil {
		return nil, err
	}
	t.openHandles++
	return handle, nil
}

func (t *transaction) Commit(_ context.Context) error {
	if t.completed {
		return errors.Errorf("transaction already completed")
	}
	if t.openHandles > 0 {
		return errors.Errorf("cannot commit with %d open relation handles", t.openHandles)
	}
	t.completed = true
	for _, relation := range t.order {
		relation.append(t.pending[relation]...)
	}
	t.pending = nil
	return nil
}

func (t *transaction) Rollback(_ context.Context) error {
	if t.completed {
		return errors.Errorf("transaction already completed")
	}
	t.completed = true
	t.pending = nil
	return nil
}

func (t *transaction) write(relation *Relation, row systemcatalog.Row) {
	if _, present := t.pending[relation]; !present {
		t.order = append(t.order, relation)
	}
	t.pending[relation] = append(t.pending[relation], row)
}

type relationHandle struct {
	storage     *Storage
	relation    *Relation
	layout      systemcatalog.Columns
	defaults    map[string]*vm.Program
	transaction *transaction
	closed      bool
}

func (h *relationHandle) Relation() systemcatalog.SystemEntity {
	return h.relation.entity
}

func (h *relationHandle) Insert(ctx context.Context, row systemcatalog.Row) error {
	if h.closed {
		return errors.Errorf("relation handle for %s already closed", h.relation.entity.CanonicalName())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(row) != len(h.layout) {
		return errors.Errorf(
			"row has %d values, relation %s has %d columns",
			len(row), h.relation.entity.CanonicalName(), len(h.layout),
		)
	}

	stored := make(systemcatalog.Row, len(row))
	for i, value := range row {
		column := h.layout[i]
		if systemcatalog.IsDefaultValue(value) {
			v, err := h.evaluateDefault(column)
			if err != nil {
				return err
			}
			value = v
		}
		if value == nil && !column.IsNullable() {
			return errors.Errorf(
				"null value in column %s of relation %s violates not-null constraint",
				column.Name(), h.relation.entity.CanonicalName(),
			)
		}
		stored[i] = value
	}

	if interceptor := h.storage.interceptor.Load(); interceptor != nil {
		if err := (*interceptor)(h.relation.entity.CanonicalName(), stored); err != nil {
			return err
		}
	}

	if h.transaction != nil {
		if h.transaction.completed {
			return errors.Errorf("transaction of %s already completed", h.relation.entity.CanonicalName())
		}
		h.transaction.write(h.relation, stored)
		return nil
	}
	h.relation.append(stored)
	return nil
}

func (h *relationHandle) Close() error {
	if h.closed {
		return errors.Errorf("relation handle for %s closed twice", h.relation.entity.CanonicalName())
	}
	h.closed = true
	h.storage.openHandles.Add(-1)
	if h.transaction != nil {
		h.transaction.openHandles--
	}
	return nil
}

func (h *relationHandle) evaluateDefault(column systemcatalog.Column) (any, error) {
	program, present := h.defaults[column.Name()]
	if !present {
		return nil, nil
	}
	value, err := expr.Run(program, defaultEnvironment())
	if err != nil {
		return nil, errors.Errorf("failed to evaluate default of column %s: %s", column.Name(), err)
	}
	return value, nil
}

func defaultEnvironment() map[string]any {
	return map[string]any{
		"now":               time.Now,
		"current_timestamp": time.Now(),
	}
}

// compileDefaults compiles the default expressions of the layout.
// Type casts are stripped, the remaining expression must be a
// literal or a call to now().
func compileDefaults(layout systemcatalog.Columns) (map[string]*vm.Program, error) {
	defaults := make(map[string]*vm.Program)
	for _, column := range layout {
		if !column.HasDefault() {
			continue
		}
		expression := strings.TrimSpace(typeCastPattern.ReplaceAllString(*column.DefaultValue(), ""))
		program, err := expr.Compile(expression)
		if err != nil {
			return nil, errors.Errorf(
				"unsupported default expression '%s' of column %s", *column.DefaultValue(), column.Name(),
			)
		}
		defaults[column.Name()] = program
	}
	return defaults, nil
}
