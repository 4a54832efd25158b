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

package dimensions

import "fmt"

// ValueError is returned when a value cannot be mapped to a
// coordinate of a dimension, either because it is NULL in a
// NOT NULL dimension or because it is unsupported or malformed
type ValueError struct {
	Column string
	Value  any
	Reason string
}

func (e *ValueError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("dimension column %s: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("dimension column %s: %s (value: %v)", e.Column, e.Reason, e.Value)
}

func newValueError(column string, value any, reason string, args ...any) *ValueError {
	return &ValueError{
		Column: column,
		Value:  value,
		Reason: fmt.Sprintf(reason, args...),
	}
}
