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

package internal

import (
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/sysconfig"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/wiring"
)

var DefaultModule = wiring.DefineModule(
	"Default", func(module wiring.Module) {
		module.Provide(sysconfig.DefaultCatalogProvider)
		module.Provide(sysconfig.DefaultStorageProvider)
		module.Provide(sysconfig.DefaultStatsServiceProvider)
		module.Provide(sysconfig.DefaultEngineProvider)
	},
)

func newConfigModule(c *sysconfig.SystemConfig) wiring.Module {
	return wiring.DefineModule(
		"Config", func(module wiring.Module) {
			module.Provide(func() *config.Config {
				return c.Config
			})
		},
	)
}

// newOverridesModule replaces default providers with the ones
// set on the system configuration
func newOverridesModule(c *sysconfig.SystemConfig) wiring.Module {
	return wiring.DefineModule(
		"Overrides", func(module wiring.Module) {
			module.MayProvide(c.CatalogProvider)
			module.MayProvide(c.StorageProvider)
			module.MayProvide(c.StatsServiceProvider)
			module.MayProvide(c.EngineProvider)
		},
	)
}
