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

package storage

import (
	"context"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

// Provider creates a new Storage instance from the given configuration
type Provider = func(config *config.Config) (Storage, error)

// RelationOpener opens write handles for chunk relations
type RelationOpener interface {
	// OpenRelation opens a write handle for the chunk's relation.
	// The layout is the chunk's physical column layout and defines
	// the order of values in rows passed to Insert.
	OpenRelation(
		ctx context.Context, chunk *systemcatalog.Chunk, layout systemcatalog.Columns,
	) (RelationHandle, error)
}

// Storage is the write path for chunk relations
type Storage interface {
	RelationOpener
	Start() error
	Stop() error
}

// Transaction scopes the relation handles of a single statement.
// Rows inserted through its handles become visible on Commit and
// are discarded on Rollback. All handles must be closed before the
// transaction is completed.
type Transaction interface {
	RelationOpener
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionalStorage is a Storage able to run a statement's
// inserts in one transaction
type TransactionalStorage interface {
	Storage
	Begin(ctx context.Context) (Transaction, error)
}

// RelationHandle is an open write handle for a single relation.
// A handle is owned by exactly one statement and must be closed
// exactly once.
type RelationHandle interface {
	// Relation returns the entity the handle writes to
	Relation() systemcatalog.SystemEntity
	// Insert writes the row, which must be in the relation's layout.
	// Values of type systemcatalog.DefaultValue are replaced by the
	// column's default expression.
	Insert(ctx context.Context, row systemcatalog.Row) error
	Close() error
}
