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

const createCatalogSchemaQuery = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.hypertable (
    id                      SERIAL  PRIMARY KEY,
    schema_name             NAME    NOT NULL,
    table_name              NAME    NOT NULL,
    associated_schema_name  NAME    NOT NULL,
    associated_table_prefix NAME    NOT NULL,
    UNIQUE (schema_name, table_name)
);

CREATE TABLE IF NOT EXISTS %[1]s.dimension (
    id                SERIAL   PRIMARY KEY,
    hypertable_id     INTEGER  NOT NULL REFERENCES %[1]s.hypertable (id) ON DELETE CASCADE,
    position          SMALLINT NOT NULL,
    column_name       NAME     NOT NULL,
    column_type       OID      NOT NULL,
    interval_length   BIGINT   NULL,
    num_slices        SMALLINT NULL,
    partitioning_func TEXT     NULL,
    not_null          BOOLEAN  NOT NULL,
    UNIQUE (hypertable_id, position)
);

CREATE TABLE IF NOT EXISTS %[1]s.chunk (
    id            SERIAL  PRIMARY KEY,
    hypertable_id INTEGER NOT NULL REFERENCES %[1]s.hypertable (id) ON DELETE CASCADE,
    schema_name   NAME    NOT NULL,
    table_name    NAME    NOT NULL,
    signature     TEXT    NOT NULL,
    UNIQUE (hypertable_id, signature),
    UNIQUE (schema_name, table_name)
);

CREATE TABLE IF NOT EXISTS %[1]s.chunk_slice (
    chunk_id     INTEGER NOT NULL REFERENCES %[1]s.chunk (id) ON DELETE CASCADE,
    dimension_id INTEGER NOT NULL REFERENCES %[1]s.dimension (id) ON DELETE CASCADE,
    range_start  BIGINT  NOT NULL,
    range_end    BIGINT  NOT NULL,
    PRIMARY KEY (chunk_id, dimension_id)
);`

const readHypertableQuery = `
SELECT h.id, h.schema_name, h.table_name, h.associated_schema_name, h.associated_table_prefix
FROM %s.hypertable h
WHERE h.id = $1`

const findHypertableQuery = `
SELECT h.id
FROM %s.hypertable h
WHERE h.schema_name = $1 AND h.table_name = $2`

const readDimensionsQuery = `
SELECT d.id, d.column_name, d.column_type, d.interval_length, d.num_slices, d.partitioning_func, d.not_null
FROM %s.dimension d
WHERE d.hypertable_id = $1
ORDER BY d.position`

const readTableLayoutQuery = `
SELECT a.attname, a.atttypid, t.typname, NOT a.attnotnull, pg_catalog.pg_get_expr(d.adbin, d.adrelid)
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE a.attrelid = $1::regclass
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum`

// coordinates are passed as parallel arrays of dimension ids and
// values, a chunk covers the point if no slice rejects its coordinate
const findCoveringChunkQuery = `
SELECT c.id, c.schema_name, c.table_name
FROM %[1]s.chunk c
WHERE c.hypertable_id = $1
  AND NOT EXISTS (
    SELECT 1
    FROM %[1]s.chunk_slice s
    JOIN unnest($2::INTEGER[], $3::BIGINT[]) AS p (dimension_id, coordinate)
      ON p.dimension_id = s.dimension_id
    WHERE s.chunk_id = c.id
      AND NOT (s.range_start <= p.coordinate
        AND (p.coordinate < s.range_end OR s.range_end = 9223372036854775807))
  )
LIMIT 1`

const findCollidingChunksQuery = `
SELECT c.id, c.schema_name, c.table_name
FROM %[1]s.chunk c
WHERE c.hypertable_id = $1
  AND NOT EXISTS (
    SELECT 1
    FROM %[1]s.chunk_slice s
    JOIN unnest($2::INTEGER[], $3::BIGINT[], $4::BIGINT[]) AS q (dimension_id, range_start, range_end)
      ON q.dimension_id = s.dimension_id
    WHERE s.chunk_id = c.id
      AND NOT (s.range_start < q.range_end AND q.range_start < s.range_end)
  )
ORDER BY c.id`

const readChunkSlicesQuery = `
SELECT s.chunk_id, s.dimension_id, s.range_start, s.range_end
FROM %s.chunk_slice s
WHERE s.chunk_id = ANY($1::INTEGER[])`

const lockHypertableQuery = "SELECT pg_catalog.pg_advisory_xact_lock($1, $2)"

const nextChunkIdQuery = "SELECT nextval(pg_catalog.pg_get_serial_sequence('%s.chunk', 'id'))::INTEGER"

const insertChunkQuery = `
INSERT INTO %s.chunk (id, hypertable_id, schema_name, table_name, signature)
VALUES ($1, $2, $3, $4, $5)`

const insertChunkSliceQuery = `
INSERT INTO %s.chunk_slice (chunk_id, dimension_id, range_start, range_end)
VALUES ($1, $2, $3, $4)`

const createChunkSchemaQuery = "CREATE SCHEMA IF NOT EXISTS %s"

const createChunkTableQuery = "CREATE TABLE %s (LIKE %s INCLUDING DEFAULTS INCLUDING CONSTRAINTS)"

const insertHypertableQuery = `
INSERT INTO %s.hypertable (schema_name, table_name, associated_schema_name, associated_table_prefix)
VALUES ($1, $2, $3, $4)
RETURNING id`

const updateHypertablePrefixQuery = "UPDATE %s.hypertable SET associated_table_prefix = $2 WHERE id = $1"

const insertDimensionQuery = `
INSERT INTO %s.dimension (hypertable_id, position, column_name, column_type,
                          interval_length, num_slices, partitioning_func, not_null)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const createHypertableTableQuery = "CREATE TABLE IF NOT EXISTS %s (%s)"
