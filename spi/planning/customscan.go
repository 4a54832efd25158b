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

// ExtensibleNode is an opaque payload carried by plan nodes.
// Nodes are identified by their tag name.
type ExtensibleNode interface {
	ExtNodeName() string
	CopyNode() ExtensibleNode
}

// CustomScanMethods binds a custom scan node to the code
// which creates its executable state
type CustomScanMethods struct {
	CustomName            string
	CreateCustomScanState func(ctx context.Context, scan *CustomScan, ectx *ExecutorContext) (PlanState, error)
}

// CustomScan is a plan node whose execution is provided by
// CustomScanMethods. Private state travels in CustomPrivate,
// child plans in CustomPlans.
type CustomScan struct {
	cost          Cost
	targetList    systemcatalog.Columns
	CustomPrivate []ExtensibleNode
	CustomPlans   []Plan
	MethodsName   string
	methods       *CustomScanMethods
}

func NewCustomScan(cost Cost, targetList systemcatalog.Columns, methods *CustomScanMethods) *CustomScan {
	return &CustomScan{
		cost:          cost,
		targetList:    targetList,
		CustomPrivate: make([]ExtensibleNode, 0),
		CustomPlans:   make([]Plan, 0),
		MethodsName:   methods.CustomName,
		methods:       methods,
	}
}

func (cs *CustomScan) NodeName() string {
	return "Custom Scan (" + cs.MethodsName + ")"
}

func (cs *CustomScan) Cost() Cost {
	return cs.cost
}

func (cs *CustomScan) TargetList() systemcatalog.Columns {
	return cs.targetList
}

// Methods returns the bound methods, which are nil for copied nodes
// until resolved through the Registry
func (cs *CustomScan) Methods() *CustomScanMethods {
	return cs.methods
}

// PrivateNode returns the first custom private node with
// the given tag name and true, otherwise present will be false
func (cs *CustomScan) PrivateNode(name string) (node ExtensibleNode, present bool) {
	for _, node := range cs.CustomPrivate {
		if node != nil && node.ExtNodeName() == name {
			return node, true
		}
	}
	return nil, false
}

// Copy returns a deep copy of the private nodes, child plans
// are shared since plans are immutable. The copy references its
// methods by name only.
func (cs *CustomScan) Copy() *CustomScan {
	customPrivate := make([]ExtensibleNode, len(cs.CustomPrivate))
	for i, node := range cs.CustomPrivate {
		customPrivate[i] = node.CopyNode()
	}
	customPlans := make([]Plan, len(cs.CustomPlans))
	copy(customPlans, cs.CustomPlans)
	return &CustomScan{
		cost:          cs.cost,
		targetList:    cs.targetList,
		CustomPrivate: customPrivate,
		CustomPlans:   customPlans,
		MethodsName:   cs.MethodsName,
	}
}

func (cs *CustomScan) CreateState(ctx context.Context, ectx *ExecutorContext) (PlanState, error) {
	methods := cs.methods
	if methods == nil {
		if ectx == nil || ectx.Registry == nil {
			return nil, errors.Errorf("no methods bound for custom scan %s", cs.MethodsName)
		}
		m, present := ectx.Registry.CustomScanMethods(cs.MethodsName)
		if !present {
			return nil, errors.Errorf("custom scan methods %s are not registered", cs.MethodsName)
		}
		methods = m
	}
	return methods.CreateCustomScanState(ctx, cs, ectx)
}
