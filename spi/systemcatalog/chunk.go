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

package systemcatalog

import (
	"fmt"
	"strings"
)

// Chunk is a partition of a hypertable, backed by its own
// storage relation and covering exactly one hypercube
type Chunk struct {
	*baseSystemEntity
	id           int32
	hypertableId int32
	hypercube    *Hypercube
}

func NewChunk(id, hypertableId int32, schemaName, tableName string, hypercube *Hypercube) *Chunk {
	return &Chunk{
		baseSystemEntity: newBaseSystemEntity(schemaName, tableName),
		id:               id,
		hypertableId:     hypertableId,
		hypercube:        hypercube,
	}
}

func (c *Chunk) Id() int32 {
	return c.id
}

func (c *Chunk) HypertableId() int32 {
	return c.hypertableId
}

func (c *Chunk) Hypercube() *Hypercube {
	return c.hypercube
}

// Covers returns true if the point falls into the chunk's hypercube
func (c *Chunk) Covers(point Point) bool {
	return c.hypercube.Covers(point)
}

func (c *Chunk) String() string {
	builder := strings.Builder{}
	builder.WriteString("{")
	builder.WriteString(fmt.Sprintf("id:%d ", c.id))
	builder.WriteString(fmt.Sprintf("hypertableId:%d ", c.hypertableId))
	builder.WriteString(fmt.Sprintf("schemaName:%s ", c.schemaName))
	builder.WriteString(fmt.Sprintf("tableName:%s ", c.tableName))
	builder.WriteString(fmt.Sprintf("hypercube:%s", c.hypercube))
	builder.WriteString("}")
	return builder.String()
}
