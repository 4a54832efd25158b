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

package postgres

import (
	"context"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/sidechannel"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
	"strings"
)

func init() {
	storage.RegisterStorage(config.PostgresStorage, func(c *config.Config) (storage.Storage, error) {
		sideChannel, err := sidechannel.NewSideChannel(context.Background(), c)
		if err != nil {
			return nil, err
		}
		return NewStorage(sideChannel)
	})
}

// Storage writes rows into chunk tables through INSERT statements.
// Handles opened through a transaction share its connection, all
// other handles hold their own pooled connection until closed.
type Storage struct {
	sideChannel *sidechannel.SideChannel
	logger      *logging.Logger
}

func NewStorage(sideChannel *sidechannel.SideChannel) (*Storage, error) {
	logger, err := logging.NewLogger("PostgresStorage")
	if err != nil {
		return nil, err
	}

	return &Storage{
		sideChannel: sideChannel,
		logger:      logger,
	}, nil
}

func (s *Storage) Start() error {
	return nil
}

func (s *Storage) Stop() error {
	s.sideChannel.Close()
	return nil
}

func (s *Storage) OpenRelation(
	ctx context.Context, chunk *systemcatalog.Chunk, layout systemcatalog.Columns,
) (storage.RelationHandle, error) {

	connection, err := s.sideChannel.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	s.logger.Debugf("Opened relation handle for %s", chunk.CanonicalName())
	return newRelationHandle(connection, connection.Release, chunk, layout), nil
}

// Begin acquires a single connection and starts a transaction on it.
// The connection is released when the transaction completes.
func (s *Storage) Begin(ctx context.Context) (storage.Transaction, error) {
	connection, err := s.sideChannel.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	tx, err := connection.Begin(ctx)
	if err != nil {
		connection.Release()
		return nil, errors.Wrap(err, 0)
	}

	return &transaction{
		tx:      tx,
		release: connection.Release,
		logger:  s.logger,
	}, nil
}

type transaction struct {
	tx          pgx.Tx
	release     func()
	openHandles int
	completed   bool
	logger      *logging.Logger
}

func (t *transaction) OpenRelation(
	_ context.Context, chunk *systemcatalog.Chunk, layout systemcatalog.Columns,
) (storage.RelationHandle, error) {

	if t.completed {
		return nil, errors.Errorf("transaction already completed")
	}

	t.openHandles++
	t.logger.Debugf("Opened transactional relation handle for %s", chunk.CanonicalName())
	return newRelationHandle(t.tx, func() { t.openHandles-- }, chunk, layout), nil
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.completed {
		return errors.Errorf("transaction already completed")
	}
	if t.openHandles > 0 {
		return errors.Errorf("cannot commit with %d open relation handles", t.openHandles)
	}
	defer t.complete()
	if err := t.tx.Commit(ctx); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.completed {
		return errors.Errorf("transaction already completed")
	}
	defer t.complete()
	if err := t.tx.Rollback(ctx); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (t *transaction) complete() {
	t.completed = true
	t.release()
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type relationHandle struct {
	execer     execer
	release    func()
	relation   systemcatalog.SystemEntity
	layout     systemcatalog.Columns
	statements map[string]string
}

func newRelationHandle(
	execer execer, release func(), relation systemcatalog.SystemEntity, layout systemcatalog.Columns,
) *relationHandle {

	return &relationHandle{
		execer:     execer,
		release:    release,
		relation:   relation,
		layout:     layout,
		statements: make(map[string]string),
	}
}

func (h *relationHandle) Relation() systemcatalog.SystemEntity {
	return h.relation
}

func (h *relationHandle) Insert(ctx context.Context, row systemcatalog.Row) error {
	if h.execer == nil {
		return errors.Errorf("relation handle for %s already closed", h.relation.CanonicalName())
	}
	if len(row) != len(h.layout) {
		return errors.Errorf(
			"row has %d values, relation %s has %d columns",
			len(row), h.relation.CanonicalName(), len(h.layout),
		)
	}

	// columns receiving their default are left out of the statement
	explicit := make([]bool, len(row))
	values := make([]any, 0, len(row))
	for i, value := range row {
		if !systemcatalog.IsDefaultValue(value) {
			explicit[i] = true
			values = append(values, value)
		}
	}

	if _, err := h.execer.Exec(ctx, h.statement(explicit), values...); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (h *relationHandle) Close() error {
	if h.execer == nil {
		return errors.Errorf("relation handle for %s closed twice", h.relation.CanonicalName())
	}
	h.release()
	h.execer = nil
	return nil
}

func (h *relationHandle) statement(explicit []bool) string {
	key := string(lo.Map(explicit, func(item bool, _ int) byte {
		return lo.Ternary[byte](item, '1', '0')
	}))

	if statement, present := h.statements[key]; present {
		return statement
	}

	statement := insertStatement(h.relation.CanonicalName(), h.layout, explicit)
	h.statements[key] = statement
	return statement
}

func insertStatement(canonicalName string, layout systemcatalog.Columns, explicit []bool) string {
	columns := make([]string, 0, len(layout))
	for i, column := range layout {
		if explicit[i] {
			columns = append(columns, systemcatalog.QuoteIdentifier(column.Name()))
		}
	}

	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", canonicalName)
	}

	placeholders := lo.Times(len(columns), func(i int) string {
		return fmt.Sprintf("$%d", i+1)
	})
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		canonicalName, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
}
