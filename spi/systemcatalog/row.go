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

// Row is a positional tuple in the layout of some relation,
// a nil value represents SQL NULL
type Row []any

// DefaultValue marks a value the storage layer has to fill
// with the column's default expression
type DefaultValue struct {
	Column string
}

// IsDefaultValue returns true if the value is a DefaultValue marker
func IsDefaultValue(value any) bool {
	_, ok := value.(DefaultValue)
	return ok
}

func (r Row) Copy() Row {
	c := make(Row, len(r))
	copy(c, r)
	return c
}
