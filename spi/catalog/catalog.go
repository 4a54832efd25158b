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

package catalog

import (
	"context"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

// ErrChunkCollision is returned by CreateChunk when another
// writer created a chunk overlapping the requested hypercube
// first. Callers are expected to resolve the chunk again.
var ErrChunkCollision = errors.Errorf("chunk collision")

// ErrHypertableNotFound matches every HypertableNotFoundError
var ErrHypertableNotFound = errors.Errorf("hypertable not found")

// HypertableNotFoundError is returned when a hypertable id is unknown
type HypertableNotFoundError struct {
	HypertableId int32
}

func NewHypertableNotFoundError(hypertableId int32) error {
	return &HypertableNotFoundError{
		HypertableId: hypertableId,
	}
}

func (e *HypertableNotFoundError) Error() string {
	return fmt.Sprintf("hypertable with id %d not found", e.HypertableId)
}

func (e *HypertableNotFoundError) Is(target error) bool {
	return target == ErrHypertableNotFound
}

// Provider creates a new Catalog instance from the given configuration
type Provider = func(config *config.Config) (Catalog, error)

// Catalog is the metadata store for hypertables and chunks.
// Implementations must serialize chunk creation so that no
// two chunks of a hypertable ever overlap.
type Catalog interface {
	Start() error
	Stop() error
	// ReadHypertable returns the hypertable with the given id
	ReadHypertable(ctx context.Context, hypertableId int32) (*systemcatalog.Hypertable, error)
	// FindHypertable returns the hypertable with the given name
	// and true, otherwise present will be false
	FindHypertable(
		ctx context.Context, schemaName, tableName string,
	) (hypertable *systemcatalog.Hypertable, present bool, err error)
	// FindCoveringChunk returns the chunk covering the point
	// and true, otherwise present will be false
	FindCoveringChunk(
		ctx context.Context, hypertable *systemcatalog.Hypertable, point systemcatalog.Point,
	) (chunk *systemcatalog.Chunk, present bool, err error)
	// FindCollidingChunks returns all chunks overlapping the hypercube
	FindCollidingChunks(
		ctx context.Context, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
	) ([]*systemcatalog.Chunk, error)
	// CreateChunk atomically creates a new chunk and its storage
	// relation. ErrChunkCollision is returned if the hypercube
	// overlaps with an existing chunk.
	CreateChunk(
		ctx context.Context, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
	) (*systemcatalog.Chunk, error)
	// ReadChunkLayout returns the physical column layout of the chunk
	ReadChunkLayout(ctx context.Context, chunk *systemcatalog.Chunk) (systemcatalog.Columns, error)
}

// Definer is implemented by catalogs which are able to persist
// new hypertable definitions
type Definer interface {
	DefineHypertable(ctx context.Context, definition config.HypertableConfig) (*systemcatalog.Hypertable, error)
}
