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
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/executor"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/stats"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
)

type CatalogProvider = func(config *config.Config) (catalog.Catalog, error)

type StorageProvider = func(config *config.Config) (storage.Storage, error)

type StatsServiceProvider = func(config *config.Config) (*stats.Service, error)

type EngineProvider = func(
	config *config.Config, catalog catalog.Catalog, storage storage.Storage, statsService *stats.Service,
) (*executor.Engine, error)
