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

package plugins

import (
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/planning"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
)

// ExtensionPoints is handed to a plugin's PluginInitialize function
type ExtensionPoints interface {
	RegisterCatalog(name string, provider catalog.Provider) bool
	RegisterStorage(name string, provider storage.Provider) bool
	RegisterCustomScanMethods(methods *planning.CustomScanMethods) error
}

// PluginInitialize is the symbol a plugin has to export
type PluginInitialize func(extensionPoints ExtensionPoints) error

// Extensions collects the custom scan methods registered by
// plugins until an executor's registry is available
type Extensions struct {
	registry *planning.Registry
}

func NewExtensions() *Extensions {
	return &Extensions{
		registry: planning.NewRegistry(),
	}
}

// ApplyTo registers all collected custom scan methods with the registry
func (e *Extensions) ApplyTo(registry *planning.Registry) error {
	for _, methods := range e.registry.All() {
		if err := registry.RegisterCustomScanMethods(methods); err != nil {
			return err
		}
	}
	return nil
}

// Initialize runs the initializer against the extension points
func (e *Extensions) Initialize(initializer PluginInitialize) error {
	return initializer(&extensionPoints{extensions: e})
}

type extensionPoints struct {
	extensions *Extensions
}

func (*extensionPoints) RegisterCatalog(name string, provider catalog.Provider) bool {
	return catalog.RegisterCatalog(config.CatalogType(name), provider)
}

func (*extensionPoints) RegisterStorage(name string, provider storage.Provider) bool {
	return storage.RegisterStorage(config.StorageType(name), provider)
}

func (e *extensionPoints) RegisterCustomScanMethods(methods *planning.CustomScanMethods) error {
	return e.extensions.registry.RegisterCustomScanMethods(methods)
}
