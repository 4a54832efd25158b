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

package sidechannel

import (
	"context"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/version"
	"time"
)

const (
	defaultConnectMaxAttempts = 5
	defaultConnectTimeout     = time.Second * 10
	defaultSessionTimeout     = time.Second * 20
)

// SideChannel is a pooled connection to PostgreSQL, used for
// catalog queries and chunk writes
type SideChannel struct {
	pool           *pgxpool.Pool
	sessionTimeout time.Duration
	logger         *logging.Logger
}

// NewSideChannel connects to the configured database. Connection
// attempts are retried with exponential backoff.
func NewSideChannel(ctx context.Context, c *config.Config) (*SideChannel, error) {
	logger, err := logging.NewLogger("SideChannel")
	if err != nil {
		return nil, err
	}

	connection := config.GetOrDefault(c, config.PropertyPostgresqlConnection, "host=localhost user=postgres")
	poolConfig, err := pgxpool.ParseConfig(connection)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if password := config.GetOrDefault(c, config.PropertyPostgresqlPassword, ""); password != "" {
		poolConfig.ConnConfig.Password = password
	}
	if maxConnections := config.GetOrDefault(c, config.PropertyPostgresqlMaxConnections, int32(0)); maxConnections > 0 {
		poolConfig.MaxConns = maxConnections
	}

	maxAttempts := config.GetOrDefault(c, config.PropertyPostgresqlConnectMaxAttempts, uint64(defaultConnectMaxAttempts))
	timeout := config.GetOrDefault(c, config.PropertyPostgresqlConnectTimeout, defaultConnectTimeout)

	var pool *pgxpool.Pool
	operation := func() error {
		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		p, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err != nil {
			return err
		}
		if err := p.Ping(connectCtx); err != nil {
			p.Close()
			logger.Warnf("Failed to connect to %s:%d: %s", poolConfig.ConnConfig.Host, poolConfig.ConnConfig.Port, err)
			return err
		}
		pool = p
		return nil
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts), ctx,
	)
	if err := backoff.Retry(operation, strategy); err != nil {
		return nil, errors.Errorf("unable to connect to database: %s", err)
	}

	return &SideChannel{
		pool:           pool,
		sessionTimeout: defaultSessionTimeout,
		logger:         logger,
	}, nil
}

// NewSession runs fn with a pooled connection, the session is
// bound to the context and canceled after the timeout
func (sc *SideChannel) NewSession(ctx context.Context, timeout time.Duration, fn func(session *Session) error) error {
	if timeout <= 0 {
		timeout = sc.sessionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	connection, err := sc.pool.Acquire(ctx)
	if err != nil {
		return errors.Errorf("unable to acquire connection: %s", err)
	}
	defer connection.Release()

	return fn(&Session{
		querier: connection,
		ctx:     ctx,
	})
}

// InTransaction runs fn inside a transaction which is committed
// if fn succeeds and rolled back otherwise
func (sc *SideChannel) InTransaction(
	ctx context.Context, timeout time.Duration, fn func(session *Session) error,
) error {

	return sc.NewSession(ctx, timeout, func(session *Session) error {
		connection := session.querier.(*pgxpool.Conn)
		tx, err := connection.Begin(session.ctx)
		if err != nil {
			return errors.Wrap(err, 0)
		}

		if err := fn(&Session{querier: tx, ctx: session.ctx}); err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				sc.logger.Warnf("Failed to rollback transaction: %s", rollbackErr)
			}
			return err
		}
		return tx.Commit(session.ctx)
	})
}

// Acquire returns a dedicated connection, which must be released by the caller
func (sc *SideChannel) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	connection, err := sc.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Errorf("unable to acquire connection: %s", err)
	}
	return connection, nil
}

// ServerVersion reads the version of the connected server
func (sc *SideChannel) ServerVersion(ctx context.Context) (pgVersion version.PostgresVersion, err error) {
	err = sc.NewSession(ctx, 0, func(session *Session) error {
		var serverVersion string
		if err := session.QueryRow("SHOW SERVER_VERSION").Scan(&serverVersion); err != nil {
			return errors.Wrap(err, 0)
		}
		pgVersion, err = version.ParsePostgresVersion(serverVersion)
		return err
	})
	return
}

func (sc *SideChannel) Close() {
	sc.pool.Close()
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RowFunction = func(row pgx.Row) error

type Session struct {
	querier querier
	ctx     context.Context
}

func (s *Session) QueryFunc(fn RowFunction, query string, args ...any) error {
	rows, err := s.querier.Query(s.ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (s *Session) QueryRow(query string, args ...any) pgx.Row {
	return s.querier.QueryRow(s.ctx, query, args...)
}

func (s *Session) Exec(query string, args ...any) (pgconn.CommandTag, error) {
	return s.querier.Exec(s.ctx, query, args...)
}

// IsUniqueViolation returns true if the error was caused by a
// violated unique constraint or an already existing relation
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation || pgErr.Code == pgerrcode.DuplicateTable
	}
	return false
}
