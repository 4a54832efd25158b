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
	"github.com/go-errors/errors"
	"github.com/samber/lo"
	"sync"
)

// Registry resolves CustomScanMethods by name, used for
// plan nodes which only carry the methods' name
type Registry struct {
	mutex   sync.RWMutex
	methods map[string]*CustomScanMethods
}

func NewRegistry() *Registry {
	return &Registry{
		methods: make(map[string]*CustomScanMethods),
	}
}

// RegisterCustomScanMethods registers the methods under their
// CustomName. Registering a name twice is an error.
func (r *Registry) RegisterCustomScanMethods(methods *CustomScanMethods) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, present := r.methods[methods.CustomName]; present {
		return errors.Errorf("custom scan methods %s already registered", methods.CustomName)
	}
	r.methods[methods.CustomName] = methods
	return nil
}

// CustomScanMethods returns the methods registered under the
// name and true, otherwise present will be false
func (r *Registry) CustomScanMethods(name string) (methods *CustomScanMethods, present bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	methods, present = r.methods[name]
	return
}

// All returns the registered methods in no particular order
func (r *Registry) All() []*CustomScanMethods {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return lo.Values(r.methods)
}
