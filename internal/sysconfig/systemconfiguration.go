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

package sysconfig

import (
	spiconfig "github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/plugins"
)

// SystemConfig carries the configuration and optional provider
// overrides. Providers left nil fall back to the registered
// implementation of the configured type.
type SystemConfig struct {
	*spiconfig.Config

	CatalogProvider      CatalogProvider
	StorageProvider      StorageProvider
	StatsServiceProvider StatsServiceProvider
	EngineProvider       EngineProvider

	// Extensions receives the registrations of the configured plugins
	Extensions *plugins.Extensions
}

func NewSystemConfig(config *spiconfig.Config) *SystemConfig {
	return &SystemConfig{
		Config:     config,
		Extensions: plugins.NewExtensions(),
	}
}
