//go:build linux || freebsd || darwin

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
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"plugin"
)

// LoadPlugins opens every configured plugin and calls its
// PluginInitialize function
func LoadPlugins(config *config.Config, extensions *Extensions) error {
	for _, pluginPath := range config.Plugins {
		p, err := plugin.Open(pluginPath)
		if err != nil {
			return errors.Wrap(err, 0)
		}

		s, err := p.Lookup("PluginInitialize")
		if err != nil {
			return errors.Wrap(err, 0)
		}

		initializer, ok := s.(func(ExtensionPoints) error)
		if !ok {
			if i, isPtr := s.(*PluginInitialize); isPtr {
				initializer, ok = *i, true
			}
		}
		if !ok {
			return errors.Errorf("plugin %s exports PluginInitialize with unexpected type %T", pluginPath, s)
		}

		if err := extensions.Initialize(initializer); err != nil {
			return err
		}
	}
	return nil
}
