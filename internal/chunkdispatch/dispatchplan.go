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
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
)

// ChunkDispatchName is the name the custom scan methods are registered under
const ChunkDispatchName = "ChunkDispatch"

// Options tune the per statement dispatch state
type Options struct {
	MaxResolveAttempts int
	CacheCapacity      int
}

type Option func(options *Options)

func WithMaxResolveAttempts(maxResolveAttempts int) Option {
	return func(options *Options) {
		options.MaxResolveAttempts = maxResolveAttempts
	}
}

func WithCacheCapacity(cacheCapacity int) Option {
	return func(options *Options) {
		options.CacheCapacity = cacheCapacity
	}
}

// NewChunkDispatchMethods returns the custom scan methods creating
// dispatch states bound to the given catalog and storage
func NewChunkDispatchMethods(
	c catalog.Catalog, s storage.Storage, opts ...Option,
) *planning.CustomScanMethods {

	options := Options{
		MaxResolveAttempts: defaultMaxResolveAttempts,
		CacheCapacity:      defaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &planning.CustomScanMethods{
		CustomName: ChunkDispatchName,
		CreateCustomScanState: func(
			ctx context.Context, scan *planning.CustomScan, ectx *planning.ExecutorContext,
		) (planning.PlanState, error) {

			info, present := dispatchInfoFromScan(scan)
			if !present {
				return nil, errors.Errorf("custom scan %s carries no %s", scan.NodeName(), ChunkDispatchInfoName)
			}
			if len(scan.CustomPlans) != 1 {
				return nil, errors.Errorf(
					"custom scan %s expects exactly one subplan, got %d", scan.NodeName(), len(scan.CustomPlans),
				)
			}

			hypertable, err := c.ReadHypertable(ctx, info.HypertableId)
			if err != nil {
				return nil, newCatalogError("read hypertable", err)
			}

			state, err := NewDispatchState(hypertable, scan.CustomPlans[0], ectx, c, s, options)
			if err != nil {
				return nil, err
			}
			if err := state.Start(ctx); err != nil {
				return nil, err
			}
			return state, nil
		},
	}
}

// CreateChunkDispatchPlan wraps the subplan into a chunk dispatch
// node routing the subplan's rows into the hypertable's chunks. The
// node inherits cost, row estimates and target list of the subplan.
func CreateChunkDispatchPlan(
	subplan planning.Plan, hypertableId int32, methods *planning.CustomScanMethods,
) *planning.CustomScan {

	scan := planning.NewCustomScan(subplan.Cost(), subplan.TargetList(), methods)
	scan.CustomPrivate = append(scan.CustomPrivate, &ChunkDispatchInfo{
		HypertableId: hypertableId,
	})
	scan.CustomPlans = append(scan.CustomPlans, subplan)
	return scan
}
