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

package planning

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/systemcatalog"
)

// Cost carries the planner estimates of a plan node
type Cost struct {
	StartupCost float64
	TotalCost   float64
	PlanRows    float64
	PlanWidth   int
}

// Plan is an immutable node of a statement's plan tree
type Plan interface {
	// NodeName returns the name of the node as shown in plan reports
	NodeName() string
	Cost() Cost
	// TargetList returns the layout of the rows produced by the node
	TargetList() systemcatalog.Columns
	// CreateState instantiates the executable state of the node
	CreateState(ctx context.Context, ectx *ExecutorContext) (PlanState, error)
}

// PlanState is the executable, per statement state of a Plan.
// Rows are pulled one at a time until Next reports false.
type PlanState interface {
	Next(ctx context.Context) (row systemcatalog.Row, ok bool, err error)
	Close() error
}

// ExecutorContext carries per statement information into
// the plan states created for the statement
type ExecutorContext struct {
	StatementId string
	Registry    *Registry
}

// ExecInitNode creates the state for the given plan node
func ExecInitNode(ctx context.Context, plan Plan, ectx *ExecutorContext) (PlanState, error) {
	if plan == nil {
		return nil, errors.Errorf("cannot initialize nil plan node")
	}
	state, err := plan.CreateState(ctx, ectx)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return state, nil
}
