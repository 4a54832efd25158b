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

package catalog

import (
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"sync"
)

var catalogRegistry *registry

func init() {
	catalogRegistry = &registry{
		mutex:     sync.Mutex{},
		providers: make(map[config.CatalogType]Provider),
	}
}

type registry struct {
	mutex     sync.Mutex
	providers map[config.CatalogType]Provider
}

// RegisterCatalog registers a config.CatalogType to a
// Provider implementation which creates the Catalog
// when requested
func RegisterCatalog(name config.CatalogType, provider Provider) bool {
	catalogRegistry.mutex.Lock()
	defer catalogRegistry.mutex.Unlock()
	if _, present := catalogRegistry.providers[name]; !present {
		catalogRegistry.providers[name] = provider
		return true
	}
	return false
}

// NewCatalog instantiates a new instance of the requested
// Catalog when available, otherwise returns an error.
func NewCatalog(name config.CatalogType, config *config.Config) (Catalog, error) {
	catalogRegistry.mutex.Lock()
	defer catalogRegistry.mutex.Unlock()
	if p, present := catalogRegistry.providers[name]; present {
		return p(config)
	}
	return nil, errors.Errorf("CatalogType '%s' doesn't exist", name)
}
