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
	"github.com/hashicorp/go-multierror"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/executor"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/stats"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/sysconfig"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/plugins"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/storage"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/wiring"
)

// Dispatcher owns the catalog, storage and statistics services
// and the engine executing inserts against them
type Dispatcher struct {
	catalog      catalog.Catalog
	storage      storage.Storage
	statsService *stats.Service
	engine       *executor.Engine
	logger       *logging.Logger
}

func NewDispatcher(config *sysconfig.SystemConfig) (*Dispatcher, error) {
	logger, err := logging.NewLogger("Dispatcher")
	if err != nil {
		return nil, err
	}

	extensions := config.Extensions
	if extensions == nil {
		extensions = plugins.NewExtensions()
	}
	if err := plugins.LoadPlugins(config.Config, extensions); err != nil {
		return nil, err
	}

	container, err := wiring.NewContainer(
		newConfigModule(config), DefaultModule, newOverridesModule(config),
	)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		logger: logger,
	}
	if err := container.Service(&d.catalog); err != nil {
		return nil, err
	}
	if err := container.Service(&d.storage); err != nil {
		return nil, err
	}
	if err := container.Service(&d.statsService); err != nil {
		return nil, err
	}
	if err := container.Service(&d.engine); err != nil {
		return nil, err
	}
	if err := extensions.ApplyTo(d.engine.Registry()); err != nil {
		return nil, err
	}
	return d, nil
}

// Start starts the services in order. If one fails, the ones
// already started are stopped again in reverse order.
func (d *Dispatcher) Start() (err error) {
	started := make([]func() error, 0, 3)
	defer func() {
		if err == nil {
			return
		}
		for i := len(started) - 1; i >= 0; i-- {
			if stopErr := started[i](); stopErr != nil {
				d.logger.Warnf("Failed to stop service after failed start: %s", stopErr)
			}
		}
	}()

	if err := d.statsService.Start(); err != nil {
		return err
	}
	started = append(started, d.statsService.Stop)
	if err := d.catalog.Start(); err != nil {
		return err
	}
	started = append(started, d.catalog.Stop)
	if err := d.storage.Start(); err != nil {
		return err
	}
	d.logger.Infof("Chunk dispatcher started")
	return nil
}

func (d *Dispatcher) Stop() error {
	var result *multierror.Error
	if err := d.storage.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := d.catalog.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := d.statsService.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	d.logger.Infof("Chunk dispatcher stopped")
	return result.ErrorOrNil()
}

func (d *Dispatcher) Catalog() catalog.Catalog {
	return d.catalog
}

func (d *Dispatcher) Storage() storage.Storage {
	return d.storage
}

func (d *Dispatcher) Engine() *executor.Engine {
	return d.engine
}
