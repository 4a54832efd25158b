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
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/catalogs"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/containers"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/samber/lo"
	"sync"
)

func init() {
	catalog.RegisterCatalog(config.MemoryCatalog, newMemoryCatalogProvider)
}

func newMemoryCatalogProvider(c *config.Config) (catalog.Catalog, error) {
	memoryCatalog, err := NewCatalog()
	if err != nil {
		return nil, err
	}
	for _, definition := range c.Catalog.Hypertables {
		if _, err := memoryCatalog.DefineHypertable(context.Background(), definition); err != nil {
			return nil, err
		}
	}
	return memoryCatalog, nil
}

// Catalog keeps hypertables and chunks in memory. Chunk creation
// is serialized by a mutex, overlapping hypercubes are rejected
// with catalog.ErrChunkCollision.
type Catalog struct {
	mutex            sync.Mutex
	hypertables      *containers.CasCache[int32, *systemcatalog.Hypertable]
	chunks           map[int32][]*systemcatalog.Chunk
	layouts          map[int32]systemcatalog.Columns
	signatures       map[int32]map[string]int32
	nextHypertableId int32
	nextChunkId      int32
	logger           *logging.Logger
}

func NewCatalog() (*Catalog, error) {
	logger, err := logging.NewLogger("MemoryCatalog")
	if err != nil {
		return nil, err
	}

	return &Catalog{
		hypertables:      containers.NewCasCache[int32, *systemcatalog.Hypertable](),
		chunks:           make(map[int32][]*systemcatalog.Chunk),
		layouts:          make(map[int32]systemcatalog.Columns),
		signatures:       make(map[int32]map[string]int32),
		nextHypertableId: 1,
		nextChunkId:      1,
		logger:           logger,
	}, nil
}

func (c *Catalog) Start() error {
	c.logger.Infof("Started memory catalog with %d hypertables", c.hypertables.Length())
	return nil
}

func (c *Catalog) Stop() error {
	return nil
}

// DefineHypertable creates a new hypertable from the definition
func (c *Catalog) DefineHypertable(
	_ context.Context, definition config.HypertableConfig,
) (*systemcatalog.Hypertable, error) {

	c.mutex.Lock()
	id := c.nextHypertableId
	c.nextHypertableId++
	c.mutex.Unlock()

	hypertable, err := catalogs.BuildHypertable(id, definition)
	if err != nil {
		return nil, err
	}
	if err := c.RegisterHypertable(hypertable); err != nil {
		return nil, err
	}
	return hypertable, nil
}

// RegisterHypertable adds an already built hypertable
func (c *Catalog) RegisterHypertable(hypertable *systemcatalog.Hypertable) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, present := c.hypertables.Get(hypertable.Id()); present {
		return errors.Errorf("hypertable with id %d already exists", hypertable.Id())
	}
	for _, existing := range c.hypertables.Values() {
		if existing.CanonicalName() == hypertable.CanonicalName() {
			return errors.Errorf("hypertable %s already exists", hypertable.CanonicalName())
		}
	}
	if hypertable.Id() >= c.nextHypertableId {
		c.nextHypertableId = hypertable.Id() + 1
	}

	c.hypertables.Set(hypertable.Id(), hypertable)
	c.signatures[hypertable.Id()] = make(map[string]int32)
	c.logger.Debugf("Registered hypertable %s", hypertable)
	return nil
}

// AddColumn appends a column to the hypertable's layout. Existing
// chunks keep their layout, new chunks are created with the column.
func (c *Catalog) AddColumn(hypertableId int32, column systemcatalog.Column) (*systemcatalog.Hypertable, error) {
	var changes map[string]string
	hypertable, err := c.hypertables.TransformSetAndGet(hypertableId,
		func(old *systemcatalog.Hypertable) (*systemcatalog.Hypertable, error) {
			if old.Columns().IndexOf(column.Name()) != -1 {
				return nil, errors.Errorf("column %s already exists in %s", column.Name(), old.CanonicalName())
			}
			columns := append(append(systemcatalog.Columns{}, old.Columns()...), column)
			applied, differences, err := old.ApplyTableSchema(columns)
			if err != nil {
				return nil, err
			}
			changes = differences
			return applied, nil
		},
	)
	if err != nil {
		return nil, err
	}
	c.logger.Verbosef("Schema of %s changed: %+v", hypertable.CanonicalName(), changes)
	return hypertable, nil
}

func (c *Catalog) ReadHypertable(_ context.Context, hypertableId int32) (*systemcatalog.Hypertable, error) {
	hypertable, present := c.hypertables.Get(hypertableId)
	if !present {
		return nil, catalog.NewHypertableNotFoundError(hypertableId)
	}
	return hypertable, nil
}

func (c *Catalog) FindHypertable(
	_ context.Context, schemaName, tableName string,
) (*systemcatalog.Hypertable, bool, error) {

	key := systemcatalog.MakeRelationKey(schemaName, tableName)
	hypertable, present := lo.Find(c.hypertables.Values(), func(item *systemcatalog.Hypertable) bool {
		return item.CanonicalName() == key
	})
	return hypertable, present, nil
}

func (c *Catalog) FindCoveringChunk(
	_ context.Context, hypertable *systemcatalog.Hypertable, point systemcatalog.Point,
) (*systemcatalog.Chunk, bool, error) {

	c.mutex.Lock()
	defer c.mutex.Unlock()

	chunk, present := lo.Find(c.chunks[hypertable.Id()], func(item *systemcatalog.Chunk) bool {
		return item.Covers(point)
	})
	return chunk, present, nil
}

func (c *Catalog) FindCollidingChunks(
	_ context.Context, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
) ([]*systemcatalog.Chunk, error) {

	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.collidingChunks(hypertable.Id(), hypercube), nil
}

func (c *Catalog) CreateChunk(
	_ context.Context, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
) (*systemcatalog.Chunk, error) {

	c.mutex.Lock()
	defer c.mutex.Unlock()

	current, present := c.hypertables.Get(hypertable.Id())
	if !present {
		return nil, catalog.NewHypertableNotFoundError(hypertable.Id())
	}
	if hypercube.NumSlices() != len(current.Dimensions()) {
		return nil, errors.Errorf(
			"hypercube has %d slices, hypertable %s has %d dimensions",
			hypercube.NumSlices(), current.CanonicalName(), len(current.Dimensions()),
		)
	}

	signature := hypercube.Signature()
	if _, present := c.signatures[current.Id()][signature]; present {
		return nil, catalog.ErrChunkCollision
	}
	if len(c.collidingChunks(current.Id(), hypercube)) > 0 {
		return nil, catalog.ErrChunkCollision
	}

	id := c.nextChunkId
	c.nextChunkId++

	chunk := systemcatalog.NewChunk(
		id, current.Id(), current.AssociatedSchemaName(), current.ChunkTableName(id), hypercube.Copy(),
	)
	c.chunks[current.Id()] = append(c.chunks[current.Id()], chunk)
	c.layouts[id] = append(systemcatalog.Columns{}, current.Columns()...)
	c.signatures[current.Id()][signature] = id
	return chunk, nil
}

func (c *Catalog) ReadChunkLayout(_ context.Context, chunk *systemcatalog.Chunk) (systemcatalog.Columns, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	layout, present := c.layouts[chunk.Id()]
	if !present {
		return nil, errors.Errorf("chunk %s is unknown", chunk.CanonicalName())
	}
	return layout, nil
}

// Chunks returns all chunks of the hypertable in creation order
func (c *Catalog) Chunks(hypertableId int32) []*systemcatalog.Chunk {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]*systemcatalog.Chunk{}, c.chunks[hypertableId]...)
}

func (c *Catalog) collidingChunks(
	hypertableId int32, hypercube *systemcatalog.Hypercube,
) []*systemcatalog.Chunk {

	return lo.Filter(c.chunks[hypertableId], func(item *systemcatalog.Chunk, _ int) bool {
		return item.Hypercube().Collides(hypercube)
	})
}
