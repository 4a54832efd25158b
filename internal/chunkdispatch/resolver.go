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
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/dimensions"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

const defaultMaxResolveAttempts = 5

// ChunkResolver finds the chunk covering a point and creates
// it if none exists yet. Concurrent creators are serialized by
// the catalog, the losing side re-resolves to the winner's chunk.
type ChunkResolver struct {
	catalog       catalog.Catalog
	hypertable    *systemcatalog.Hypertable
	space         *dimensions.Space
	maxAttempts   int
	chunksCreated int
	logger        *logging.Logger
}

func NewChunkResolver(
	c catalog.Catalog, space *dimensions.Space, maxAttempts int,
) (*ChunkResolver, error) {

	logger, err := logging.NewLogger("ChunkResolver")
	if err != nil {
		return nil, err
	}

	if maxAttempts < 1 {
		maxAttempts = defaultMaxResolveAttempts
	}

	return &ChunkResolver{
		catalog:     c,
		hypertable:  space.Hypertable(),
		space:       space,
		maxAttempts: maxAttempts,
		logger:      logger,
	}, nil
}

// Resolve returns the chunk covering the point, creating it on demand
func (r *ChunkResolver) Resolve(ctx context.Context, point systemcatalog.Point) (*systemcatalog.Chunk, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, present, err := r.catalog.FindCoveringChunk(ctx, r.hypertable, point)
		if err != nil {
			return nil, newCatalogError("find covering chunk", err)
		}
		if present {
			return chunk, nil
		}

		hypercube := r.space.CalculateHypercube(point)
		colliding, err := r.catalog.FindCollidingChunks(ctx, r.hypertable, hypercube)
		if err != nil {
			return nil, newCatalogError("find colliding chunks", err)
		}
		if covering := r.space.CutHypercube(hypercube, point, colliding); covering != nil {
			return covering, nil
		}

		chunk, err = r.catalog.CreateChunk(ctx, r.hypertable, hypercube)
		if err != nil {
			if errors.Is(err, catalog.ErrChunkCollision) {
				r.logger.Debugf(
					"Lost chunk creation race for %s on %s, resolving again (attempt %d)",
					hypercube, r.hypertable.CanonicalName(), attempt,
				)
				continue
			}
			return nil, newCatalogError("create chunk", err)
		}

		r.chunksCreated++
		r.logger.Infof("Created chunk %s for %s covering %s",
			chunk.CanonicalName(), r.hypertable.CanonicalName(), hypercube,
		)
		return chunk, nil
	}

	return nil, newCatalogError("resolve chunk", errors.Errorf(
		"no chunk for point %v after %d attempts", point, r.maxAttempts,
	))
}

// ChunksCreated returns the number of chunks this resolver created
func (r *ChunkResolver) ChunksCreated() int {
	return r.chunksCreated
}
