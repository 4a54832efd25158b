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
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// ChunkStatistics holds the number of rows dispatched to a chunk
type ChunkStatistics struct {
	ChunkId  int32
	Relation string
	Rows     uint64
}

// Statistics summarizes a dispatch run
type Statistics struct {
	RowsDispatched int64
	ChunksCreated  int
	ChunksOpened   int
	// Chunks is ordered by chunk id
	Chunks []ChunkStatistics
}

// Chunk returns the statistics of the chunk and true,
// otherwise present will be false
func (s Statistics) Chunk(chunkId int32) (statistics ChunkStatistics, present bool) {
	return lo.Find(s.Chunks, func(item ChunkStatistics) bool {
		return item.ChunkId == chunkId
	})
}

func newStatistics(rowsDispatched int64, chunksCreated int, handles []*ChunkHandle) Statistics {
	chunks := lo.Map(handles, func(handle *ChunkHandle, _ int) ChunkStatistics {
		return ChunkStatistics{
			ChunkId:  handle.chunk.Id(),
			Relation: handle.chunk.CanonicalName(),
			Rows:     handle.rowsDispatched,
		}
	})
	slices.SortFunc(chunks, func(a, b ChunkStatistics) int {
		return int(a.ChunkId) - int(b.ChunkId)
	})
	return Statistics{
		RowsDispatched: rowsDispatched,
		ChunksCreated:  chunksCreated,
		ChunksOpened:   len(handles),
		Chunks:         chunks,
	}
}
