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
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/catalogs"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/containers"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/sidechannel"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/version"
	"github.com/samber/lo"
	"strings"
	"time"
)

const (
	DefaultCatalogSchema = "_dispatch_catalog"

	// advisory lock namespace of chunk creation
	chunkCreationLockSpace int32 = 0x6364
)

func init() {
	catalog.RegisterCatalog(config.PostgresCatalog, newPostgresCatalogProvider)
}

func newPostgresCatalogProvider(c *config.Config) (catalog.Catalog, error) {
	sideChannel, err := sidechannel.NewSideChannel(context.Background(), c)
	if err != nil {
		return nil, err
	}

	schema := config.GetOrDefault(c, config.PropertyCatalogSchema, DefaultCatalogSchema)
	create := config.GetOrDefault(c, config.PropertyCatalogCreate, true)
	return NewCatalog(sideChannel, schema, create, c.Catalog.Hypertables)
}

// Catalog persists hypertables and chunks in PostgreSQL. Chunk
// creation is serialized per hypertable by an advisory lock and
// guarded by a unique constraint on the chunk's hypercube.
type Catalog struct {
	sideChannel *sidechannel.SideChannel
	schema      string
	create      bool
	definitions []config.HypertableConfig
	dimensions  *containers.CasCache[int32, []*systemcatalog.Dimension]
	logger      *logging.Logger
}

func NewCatalog(
	sideChannel *sidechannel.SideChannel, schema string, create bool, definitions []config.HypertableConfig,
) (*Catalog, error) {

	logger, err := logging.NewLogger("PostgresCatalog")
	if err != nil {
		return nil, err
	}

	return &Catalog{
		sideChannel: sideChannel,
		schema:      systemcatalog.QuoteIdentifier(schema),
		create:      create,
		definitions: definitions,
		dimensions:  containers.NewCasCache[int32, []*systemcatalog.Dimension](),
		logger:      logger,
	}, nil
}

func (c *Catalog) Start() error {
	ctx := context.Background()

	serverVersion, err := c.sideChannel.ServerVersion(ctx)
	if err != nil {
		return err
	}
	if serverVersion.Compare(version.PG_MIN_VERSION) < 0 {
		return errors.Errorf(
			"PostgreSQL %s is not supported, the minimum version is %s", serverVersion, version.PG_MIN_VERSION,
		)
	}

	if c.create {
		if err := c.sideChannel.NewSession(ctx, time.Second*30, func(session *sidechannel.Session) error {
			_, err := session.Exec(fmt.Sprintf(createCatalogSchemaQuery, c.schema))
			return err
		}); err != nil {
			return errors.Wrap(err, 0)
		}
	}

	for _, definition := range c.definitions {
		schemaName := lo.Ternary(definition.Schema == "", "public", definition.Schema)
		if _, present, err := c.FindHypertable(ctx, schemaName, definition.Table); err != nil {
			return err
		} else if present {
			continue
		}
		if _, err := c.DefineHypertable(ctx, definition); err != nil {
			return err
		}
	}
	c.logger.Infof("Started catalog in schema %s on PostgreSQL %s", c.schema, serverVersion)
	return nil
}

func (c *Catalog) Stop() error {
	c.sideChannel.Close()
	return nil
}

func (c *Catalog) ReadHypertable(ctx context.Context, hypertableId int32) (*systemcatalog.Hypertable, error) {
	var hypertable *systemcatalog.Hypertable
	err := c.sideChannel.NewSession(ctx, 0, func(session *sidechannel.Session) error {
		var id int32
		var schemaName, tableName, associatedSchemaName, associatedTablePrefix string
		if err := session.QueryRow(fmt.Sprintf(readHypertableQuery, c.schema), hypertableId).Scan(
			&id, &schemaName, &tableName, &associatedSchemaName, &associatedTablePrefix,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return catalog.NewHypertableNotFoundError(hypertableId)
			}
			return errors.Wrap(err, 0)
		}

		dimensions, err := c.dimensions.GetOrCompute(id, func() ([]*systemcatalog.Dimension, error) {
			return c.readDimensions(session, id)
		})
		if err != nil {
			return err
		}

		columns, err := c.readTableLayout(session, systemcatalog.MakeRelationKey(schemaName, tableName))
		if err != nil {
			return err
		}

		hypertable = systemcatalog.NewHypertable(
			id, schemaName, tableName, associatedSchemaName, associatedTablePrefix, dimensions, columns,
		)
		return nil
	})
	return hypertable, err
}

func (c *Catalog) FindHypertable(
	ctx context.Context, schemaName, tableName string,
) (*systemcatalog.Hypertable, bool, error) {

	var id int32
	err := c.sideChannel.NewSession(ctx, 0, func(session *sidechannel.Session) error {
		return session.QueryRow(fmt.Sprintf(findHypertableQuery, c.schema), schemaName, tableName).Scan(&id)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, 0)
	}

	hypertable, err := c.ReadHypertable(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return hypertable, true, nil
}

func (c *Catalog) FindCoveringChunk(
	ctx context.Context, hypertable *systemcatalog.Hypertable, point systemcatalog.Point,
) (chunk *systemcatalog.Chunk, present bool, err error) {

	dimensionIds := c.dimensionIds(hypertable)
	err = c.sideChannel.NewSession(ctx, 0, func(session *sidechannel.Session) error {
		chunks, err := c.readChunks(session, hypertable,
			fmt.Sprintf(findCoveringChunkQuery, c.schema), hypertable.Id(), dimensionIds, []int64(point),
		)
		if err != nil {
			return err
		}
		if len(chunks) > 0 {
			chunk = chunks[0]
			present = true
		}
		return nil
	})
	return
}

func (c *Catalog) FindCollidingChunks(
	ctx context.Context, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
) (chunks []*systemcatalog.Chunk, err error) {

	err = c.sideChannel.NewSession(ctx, 0, func(session *sidechannel.Session) error {
		chunks, err = c.findCollidingChunks(session, hypertable, hypercube)
		return err
	})
	return
}

func (c *Catalog) CreateChunk(
	ctx context.Context, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
) (*systemcatalog.Chunk, error) {

	if hypercube.NumSlices() != len(hypertable.Dimensions()) {
		return nil, errors.Errorf(
			"hypercube has %d slices, hypertable %s has %d dimensions",
			hypercube.NumSlices(), hypertable.CanonicalName(), len(hypertable.Dimensions()),
		)
	}

	var chunk *systemcatalog.Chunk
	err := c.sideChannel.InTransaction(ctx, 0, func(session *sidechannel.Session) error {
		if _, err := session.Exec(lockHypertableQuery, chunkCreationLockSpace, hypertable.Id()); err != nil {
			return errors.Wrap(err, 0)
		}

		colliding, err := c.findCollidingChunks(session, hypertable, hypercube)
		if err != nil {
			return err
		}
		if len(colliding) > 0 {
			return catalog.ErrChunkCollision
		}

		var id int32
		if err := session.QueryRow(fmt.Sprintf(nextChunkIdQuery, c.schema)).Scan(&id); err != nil {
			return errors.Wrap(err, 0)
		}

		schemaName := hypertable.AssociatedSchemaName()
		tableName := hypertable.ChunkTableName(id)
		if _, err := session.Exec(
			fmt.Sprintf(insertChunkQuery, c.schema), id, hypertable.Id(), schemaName, tableName, hypercube.Signature(),
		); err != nil {
			return err
		}

		for _, slice := range hypercube.Slices() {
			if _, err := session.Exec(
				fmt.Sprintf(insertChunkSliceQuery, c.schema), id, slice.DimensionId(), slice.Start(), slice.End(),
			); err != nil {
				return err
			}
		}

		if _, err := session.Exec(
			fmt.Sprintf(createChunkSchemaQuery, systemcatalog.QuoteIdentifier(schemaName)),
		); err != nil {
			return err
		}

		chunk = systemcatalog.NewChunk(id, hypertable.Id(), schemaName, tableName, hypercube.Copy())
		_, err = session.Exec(
			fmt.Sprintf(createChunkTableQuery, chunk.CanonicalName(), hypertable.CanonicalName()),
		)
		return err
	})

	if err != nil {
		if errors.Is(err, catalog.ErrChunkCollision) || sidechannel.IsUniqueViolation(err) {
			return nil, catalog.ErrChunkCollision
		}
		return nil, errors.Wrap(err, 0)
	}
	return chunk, nil
}

func (c *Catalog) ReadChunkLayout(
	ctx context.Context, chunk *systemcatalog.Chunk,
) (columns systemcatalog.Columns, err error) {

	err = c.sideChannel.NewSession(ctx, 0, func(session *sidechannel.Session) error {
		columns, err = c.readTableLayout(session, chunk.CanonicalName())
		return err
	})
	return
}

// DefineHypertable registers a hypertable in the catalog. If the
// definition declares columns, the table is created when missing,
// otherwise the existing table's layout is used.
func (c *Catalog) DefineHypertable(
	ctx context.Context, definition config.HypertableConfig,
) (*systemcatalog.Hypertable, error) {

	schemaName := lo.Ternary(definition.Schema == "", "public", definition.Schema)
	chunkSchema := lo.Ternary(definition.ChunkSchema == "", catalogs.DefaultChunkSchema, definition.ChunkSchema)
	canonicalName := systemcatalog.MakeRelationKey(schemaName, definition.Table)

	var hypertableId int32
	err := c.sideChannel.InTransaction(ctx, time.Second*30, func(session *sidechannel.Session) error {
		if len(definition.Columns) > 0 {
			columnDefinitions, err := columnDefinitionsDDL(definition.Columns)
			if err != nil {
				return err
			}
			if _, err := session.Exec(
				fmt.Sprintf(createHypertableTableQuery, canonicalName, columnDefinitions),
			); err != nil {
				return errors.Wrap(err, 0)
			}
		}

		if err := session.QueryRow(
			fmt.Sprintf(insertHypertableQuery, c.schema), schemaName, definition.Table, chunkSchema, "",
		).Scan(&hypertableId); err != nil {
			return errors.Wrap(err, 0)
		}

		chunkPrefix := definition.ChunkPrefix
		if chunkPrefix == "" {
			chunkPrefix = fmt.Sprintf("_hyper_%d", hypertableId)
		}
		if _, err := session.Exec(
			fmt.Sprintf(updateHypertablePrefixQuery, c.schema), hypertableId, chunkPrefix,
		); err != nil {
			return errors.Wrap(err, 0)
		}

		layout, err := c.readTableLayout(session, canonicalName)
		if err != nil {
			return err
		}

		for i, dimensionDefinition := range definition.Dimensions {
			dimension, err := catalogs.BuildDimension(0, dimensionDefinition, layout)
			if err != nil {
				return err
			}

			var intervalLength *int64
			var numSlices *int16
			if dimension.IsOpen() {
				intervalLength = lo.ToPtr(dimension.IntervalLength())
			} else {
				numSlices = lo.ToPtr(dimension.NumSlices())
			}
			var partitioningFunc *string
			if expression, present := dimension.PartitioningFunc(); present {
				partitioningFunc = &expression
			}

			if _, err := session.Exec(fmt.Sprintf(insertDimensionQuery, c.schema),
				hypertableId, int16(i), dimension.ColumnName(), dimension.ColumnType(),
				intervalLength, numSlices, partitioningFunc, dimension.IsNotNull(),
			); err != nil {
				return errors.Wrap(err, 0)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Infof("Defined hypertable %s with id %d", canonicalName, hypertableId)
	return c.ReadHypertable(ctx, hypertableId)
}

func (c *Catalog) findCollidingChunks(
	session *sidechannel.Session, hypertable *systemcatalog.Hypertable, hypercube *systemcatalog.Hypercube,
) ([]*systemcatalog.Chunk, error) {

	slices := hypercube.Slices()
	dimensionIds := lo.Map(slices, func(slice *systemcatalog.Slice, _ int) int32 {
		return slice.DimensionId()
	})
	starts := lo.Map(slices, func(slice *systemcatalog.Slice, _ int) int64 {
		return slice.Start()
	})
	ends := lo.Map(slices, func(slice *systemcatalog.Slice, _ int) int64 {
		return slice.End()
	})

	return c.readChunks(session, hypertable,
		fmt.Sprintf(findCollidingChunksQuery, c.schema), hypertable.Id(), dimensionIds, starts, ends,
	)
}

// readChunks runs a query returning (id, schema_name, table_name)
// rows and loads the hypercubes of the found chunks
func (c *Catalog) readChunks(
	session *sidechannel.Session, hypertable *systemcatalog.Hypertable, query string, args ...any,
) ([]*systemcatalog.Chunk, error) {

	type chunkRow struct {
		id         int32
		schemaName string
		tableName  string
	}

	rows := make([]chunkRow, 0)
	if err := session.QueryFunc(func(row pgx.Row) error {
		var r chunkRow
		if err := row.Scan(&r.id, &r.schemaName, &r.tableName); err != nil {
			return errors.Wrap(err, 0)
		}
		rows = append(rows, r)
		return nil
	}, query, args...); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	if len(rows) == 0 {
		return []*systemcatalog.Chunk{}, nil
	}

	chunkIds := lo.Map(rows, func(r chunkRow, _ int) int32 {
		return r.id
	})
	hypercubes, err := c.readHypercubes(session, hypertable, chunkIds)
	if err != nil {
		return nil, err
	}

	chunks := make([]*systemcatalog.Chunk, 0, len(rows))
	for _, r := range rows {
		hypercube, present := hypercubes[r.id]
		if !present {
			return nil, errors.Errorf("chunk %d has no slices", r.id)
		}
		chunks = append(chunks, systemcatalog.NewChunk(r.id, hypertable.Id(), r.schemaName, r.tableName, hypercube))
	}
	return chunks, nil
}

func (c *Catalog) readHypercubes(
	session *sidechannel.Session, hypertable *systemcatalog.Hypertable, chunkIds []int32,
) (map[int32]*systemcatalog.Hypercube, error) {

	slicesByChunk := make(map[int32]map[int32]*systemcatalog.Slice)
	if err := session.QueryFunc(func(row pgx.Row) error {
		var chunkId, dimensionId int32
		var start, end int64
		if err := row.Scan(&chunkId, &dimensionId, &start, &end); err != nil {
			return errors.Wrap(err, 0)
		}
		if _, present := slicesByChunk[chunkId]; !present {
			slicesByChunk[chunkId] = make(map[int32]*systemcatalog.Slice)
		}
		slicesByChunk[chunkId][dimensionId] = systemcatalog.NewSlice(dimensionId, start, end)
		return nil
	}, fmt.Sprintf(readChunkSlicesQuery, c.schema), chunkIds); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	hypercubes := make(map[int32]*systemcatalog.Hypercube, len(slicesByChunk))
	for chunkId, slices := range slicesByChunk {
		ordered := make([]*systemcatalog.Slice, 0, len(hypertable.Dimensions()))
		for _, dimension := range hypertable.Dimensions() {
			slice, present := slices[dimension.Id()]
			if !present {
				return nil, errors.Errorf("chunk %d has no slice for dimension %d", chunkId, dimension.Id())
			}
			ordered = append(ordered, slice)
		}
		hypercubes[chunkId] = systemcatalog.NewHypercube(ordered...)
	}
	return hypercubes, nil
}

func (c *Catalog) readDimensions(session *sidechannel.Session, hypertableId int32) ([]*systemcatalog.Dimension, error) {
	dimensions := make([]*systemcatalog.Dimension, 0)
	if err := session.QueryFunc(func(row pgx.Row) error {
		var id int32
		var columnName string
		var columnType uint32
		var intervalLength *int64
		var numSlices *int16
		var partitioningFunc *string
		var notNull bool
		if err := row.Scan(
			&id, &columnName, &columnType, &intervalLength, &numSlices, &partitioningFunc, &notNull,
		); err != nil {
			return errors.Wrap(err, 0)
		}

		if numSlices != nil {
			dimensions = append(dimensions, systemcatalog.NewClosedDimension(
				id, columnName, columnType, *numSlices, partitioningFunc, notNull,
			))
		} else {
			dimensions = append(dimensions, systemcatalog.NewOpenDimension(
				id, columnName, columnType, lo.FromPtr(intervalLength), partitioningFunc,
			))
		}
		return nil
	}, fmt.Sprintf(readDimensionsQuery, c.schema), hypertableId); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return dimensions, nil
}

func (c *Catalog) readTableLayout(session *sidechannel.Session, canonicalName string) (systemcatalog.Columns, error) {
	columns := make(systemcatalog.Columns, 0)
	if err := session.QueryFunc(func(row pgx.Row) error {
		var name, typeName string
		var oid uint32
		var nullable bool
		var defaultValue *string
		if err := row.Scan(&name, &oid, &typeName, &nullable, &defaultValue); err != nil {
			return errors.Wrap(err, 0)
		}
		columns = append(columns, systemcatalog.NewColumnWithTypeName(name, oid, typeName, nullable, defaultValue))
		return nil
	}, readTableLayoutQuery, canonicalName); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return columns, nil
}

func (c *Catalog) dimensionIds(hypertable *systemcatalog.Hypertable) []int32 {
	return lo.Map(hypertable.Dimensions(), func(dimension *systemcatalog.Dimension, _ int) int32 {
		return dimension.Id()
	})
}

func columnDefinitionsDDL(definitions []config.ColumnConfig) (string, error) {
	parts := make([]string, 0, len(definitions))
	for _, definition := range definitions {
		if _, err := catalogs.BuildColumn(definition); err != nil {
			return "", err
		}
		builder := strings.Builder{}
		builder.WriteString(systemcatalog.QuoteIdentifier(definition.Name))
		builder.WriteString(" ")
		builder.WriteString(definition.Type)
		if definition.Nullable != nil && !*definition.Nullable {
			builder.WriteString(" NOT NULL")
		}
		if definition.Default != nil {
			builder.WriteString(" DEFAULT ")
			builder.WriteString(*definition.Default)
		}
		parts = append(parts, builder.String())
	}
	return strings.Join(parts, ", "), nil
}
