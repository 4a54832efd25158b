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

package logging

import (
	"github.com/gookit/slog"
	spiconfig "github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
	"time"
)

func Test_New_File_Handler_Max_Size(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.log")

	config := spiconfig.LoggerFileConfig{
		Enabled:  lo.ToPtr(true),
		Path:     path,
		Rotate:   lo.ToPtr(true),
		MaxSize:  lo.ToPtr("5MB"),
		Compress: false,
	}

	enabled, fileHandler, err := newFileHandler(config)
	assert.Nil(t, err)
	assert.True(t, enabled)
	assert.NotNil(t, fileHandler)
}

func Test_New_File_Handler_Max_Duration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.log")

	config := spiconfig.LoggerFileConfig{
		Enabled:     lo.ToPtr(true),
		Path:        path,
		Rotate:      lo.ToPtr(true),
		MaxDuration: lo.ToPtr(10 * time.Minute),
		Compress:    false,
	}

	_, _, err := newFileHandler(config)
	assert.Nil(t, err)
}

func Test_New_File_Handler_Invalid_Max_Size(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.log")

	config := spiconfig.LoggerFileConfig{
		Enabled: lo.ToPtr(true),
		Path:    path,
		Rotate:  lo.ToPtr(true),
		MaxSize: lo.ToPtr("five megabytes"),
	}

	_, _, err := newFileHandler(config)
	assert.Error(t, err)
}

func Test_New_File_Handler_Cache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.log")

	config := spiconfig.LoggerFileConfig{
		Enabled:  lo.ToPtr(true),
		Path:     path,
		Rotate:   lo.ToPtr(true),
		MaxSize:  lo.ToPtr("5MB"),
		Compress: false,
	}

	_, first, err := newFileHandler(config)
	require.Nil(t, err)

	_, second, err := newFileHandler(config)
	require.Nil(t, err)
	assert.Same(t, first, second)
}

func Test_Disabled_File_Handler(t *testing.T) {
	enabled, fileHandler, err := newFileHandler(spiconfig.LoggerFileConfig{})
	assert.Nil(t, err)
	assert.False(t, enabled)
	assert.Nil(t, fileHandler)
}

func Test_Logger_Levels(t *testing.T) {
	logger, err := NewLogger("LevelTest")
	require.Nil(t, err)

	logger.level = slog.InfoLevel
	assert.True(t, logger.IsEnabled(slog.ErrorLevel))
	assert.True(t, logger.IsEnabled(slog.InfoLevel))
	assert.False(t, logger.IsEnabled(slog.DebugLevel))

	logger.level = VerboseLevel
	assert.True(t, logger.IsEnabled(VerboseLevel))
	assert.False(t, logger.IsEnabled(slog.DebugLevel))
}

func Test_Name_To_Level(t *testing.T) {
	assert.Equal(t, VerboseLevel, Name2Level("VERBOSE"))
	assert.Equal(t, slog.WarnLevel, Name2Level("warning"))
	assert.Equal(t, slog.InfoLevel, Name2Level("unknown"))
}
