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

package storage

import (
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"sync"
)

var storageRegistry *registry

func init() {
	storageRegistry = &registry{
		mutex:     sync.Mutex{},
		providers: make(map[config.StorageType]Provider),
	}
}

type registry struct {
	mutex     sync.Mutex
	providers map[config.StorageType]Provider
}

// RegisterStorage registers a config.StorageType to a
// Provider implementation which creates the Storage
// when requested
func RegisterStorage(name config.StorageType, provider Provider) bool {
	storageRegistry.mutex.Lock()
	defer storageRegistry.mutex.Unlock()
	if _, present := storageRegistry.providers[name]; !present {
		storageRegistry.providers[name] = provider
		return true
	}
	return false
}

// NewStorage instantiates a new instance of the requested
// Storage when available, otherwise returns an error.
func NewStorage(name config.StorageType, config *config.Config) (Storage, error) {
	storageRegistry.mutex.Lock()
	defer storageRegistry.mutex.Unlock()
	if p, present := storageRegistry.providers[name]; present {
		return p(config)
	}
	return nil, errors.Errorf("StorageType '%s' doesn't exist", name)
}
