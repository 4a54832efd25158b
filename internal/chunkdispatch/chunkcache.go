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
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

const defaultCacheCapacity = 16

// ChunkHandle is an open chunk relation together with the row
// conversion from the hypertable's layout to the chunk's layout
type ChunkHandle struct {
	chunk          *systemcatalog.Chunk
	layout         systemcatalog.Columns
	relation       storage.RelationHandle
	conversion     *TupleConversionMap
	rowsDispatched uint64
}

func (h *ChunkHandle) Chunk() *systemcatalog.Chunk {
	return h.chunk
}

func (h *ChunkHandle) Layout() systemcatalog.Columns {
	return h.layout
}

func (h *ChunkHandle) Relation() storage.RelationHandle {
	return h.relation
}

func (h *ChunkHandle) Conversion() *TupleConversionMap {
	return h.conversion
}

func (h *ChunkHandle) RowsDispatched() uint64 {
	return h.rowsDispatched
}

// ChunkCache holds the chunk handles opened by a single statement.
// Handles are never evicted before the statement ends, and a chunk
// is opened at most once. The cache is not safe for concurrent use.
type ChunkCache struct {
	catalog    catalog.Catalog
	opener     storage.RelationOpener
	hypertable *systemcatalog.Hypertable
	handles    map[int32]*ChunkHandle
	order      []*ChunkHandle
	lastHit    *ChunkHandle
	released   bool
	logger     *logging.Logger
}

func NewChunkCache(
	c catalog.Catalog, opener storage.RelationOpener, hypertable *systemcatalog.Hypertable, capacity int,
) (*ChunkCache, error) {

	logger, err := logging.NewLogger("ChunkCache")
	if err != nil {
		return nil, err
	}

	if capacity < 1 {
		capacity = defaultCacheCapacity
	}

	return &ChunkCache{
		catalog:    c,
		opener:     opener,
		hypertable: hypertable,
		handles:    make(map[int32]*ChunkHandle, capacity),
		order:      make([]*ChunkHandle, 0, capacity),
		logger:     logger,
	}, nil
}

// useOpener replaces the opener used for chunks not yet opened
func (c *ChunkCache) useOpener(opener storage.RelationOpener) {
	c.opener = opener
}

// Lookup returns an already opened handle whose chunk covers
// the point and true, otherwise present will be false
func (c *ChunkCache) Lookup(point systemcatalog.Point) (handle *ChunkHandle, present bool) {
	if c.released {
		return nil, false
	}
	// consecutive rows tend to hit the same chunk
	if c.lastHit != nil && c.lastHit.chunk.Covers(point) {
		return c.lastHit, true
	}
	for _, candidate := range c.order {
		if candidate.chunk.Covers(point) {
			c.lastHit = candidate
			return candidate, true
		}
	}
	return nil, false
}

// GetOrOpen returns the cached handle of the chunk, or opens the
// chunk's relation and builds its row conversion on first use
func (c *ChunkCache) GetOrOpen(ctx context.Context, chunk *systemcatalog.Chunk) (*ChunkHandle, error) {
	if c.released {
		return nil, errors.Errorf("chunk cache already released")
	}

	if handle, present := c.handles[chunk.Id()]; present {
		c.lastHit = handle
		return handle, nil
	}

	layout, err := c.catalog.ReadChunkLayout(ctx, chunk)
	if err != nil {
		return nil, newCatalogError("read chunk layout", err)
	}

	conversion, err := NewTupleConversionMap(chunk.CanonicalName(), c.hypertable.Columns(), layout)
	if err != nil {
		return nil, err
	}

	relation, err := c.opener.OpenRelation(ctx, chunk, layout)
	if err != nil {
		return nil, NewStorageError(chunk.CanonicalName(), err)
	}

	handle := &ChunkHandle{
		chunk:      chunk,
		layout:     layout,
		relation:   relation,
		conversion: conversion,
	}
	c.handles[chunk.Id()] = handle
	c.order = append(c.order, handle)
	c.lastHit = handle

	c.logger.Debugf("Opened chunk %s (identity conversion: %t)", chunk.CanonicalName(), conversion.IsIdentity())
	return handle, nil
}

// CloseAll releases every handle exactly once. Subsequent calls
// are no-ops. All close failures are reported together.
func (c *ChunkCache) CloseAll() error {
	if c.released {
		return nil
	}
	c.released = true
	c.lastHit = nil

	var result *multierror.Error
	for _, handle := range c.order {
		if err := handle.relation.Close(); err != nil {
			result = multierror.Append(result, NewStorageError(handle.chunk.CanonicalName(), err))
		}
	}
	return result.ErrorOrNil()
}

// Handles returns the opened handles in the order they were opened
func (c *ChunkCache) Handles() []*ChunkHandle {
	return c.order
}

func (c *ChunkCache) Len() int {
	return len(c.handles)
}

func (c *ChunkCache) IsReleased() bool {
	return c.released
}
