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
	"fmt"
	"github.com/go-errors/errors"
)

// CatalogError reports that the catalog is unreachable or
// inconsistent. It is fatal to the statement.
type CatalogError struct {
	Operation string
	cause     *errors.Error
}

func newCatalogError(operation string, cause error) *CatalogError {
	return &CatalogError{
		Operation: operation,
		cause:     errors.Wrap(cause, 1),
	}
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog error during %s: %s", e.Operation, e.cause.Error())
}

func (e *CatalogError) Unwrap() error {
	return e.cause
}

// ErrorStack returns the stack trace of the cause
func (e *CatalogError) ErrorStack() string {
	return e.cause.ErrorStack()
}

// DimensionError reports a NULL value in a NOT NULL dimension or
// a malformed partitioning value. RowNumber is the 1-based position
// of the offending row in the statement.
type DimensionError struct {
	RowNumber int64
	cause     *errors.Error
}

func newDimensionError(rowNumber int64, cause error) *DimensionError {
	return &DimensionError{
		RowNumber: rowNumber,
		cause:     errors.Wrap(cause, 1),
	}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("invalid partitioning value in row %d: %s", e.RowNumber, e.cause.Error())
}

func (e *DimensionError) Unwrap() error {
	return e.cause
}

// SchemaMismatchError reports that a chunk's layout cannot
// represent a row of the hypertable
type SchemaMismatchError struct {
	Relation string
	Column   string
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema mismatch in %s: %s", e.Relation, e.Reason)
	}
	return fmt.Sprintf("schema mismatch in %s, column %s: %s", e.Relation, e.Column, e.Reason)
}

// StorageError reports a failure of the storage write path,
// it is propagated as is and never retried
type StorageError struct {
	Relation string
	cause    *errors.Error
}

// NewStorageError wraps a failure of the relation handle writing to relation
func NewStorageError(relation string, cause error) *StorageError {
	return &StorageError{
		Relation: relation,
		cause:    errors.Wrap(cause, 1),
	}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error on %s: %s", e.Relation, e.cause.Error())
}

func (e *StorageError) Unwrap() error {
	return e.cause
}
