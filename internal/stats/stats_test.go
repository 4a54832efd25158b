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

package stats

import (
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_Nil_Reporter_Drops_Measures(t *testing.T) {
	var reporter *Reporter
	assert.NotPanics(t, func() {
		reporter.Incr("statements")
		reporter.Add("rows", 10)
		reporter.Observe("duration", 1.5)
	})
}

func Test_Reporter_Publishes_To_Prometheus_Handler(t *testing.T) {
	service, err := NewStatsService(&config.Config{
		Stats: config.StatsConfig{
			Runtime: config.StatsRuntimeConfig{
				Enabled: lo.ToPtr(false),
			},
		},
	})
	require.NoError(t, err)

	reporter := service.NewReporter("dispatch")
	reporter.Add("rows", 7)

	recorder := httptest.NewRecorder()
	service.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "rows")
}

func Test_Disabled_Reporter_Drops_Measures(t *testing.T) {
	service, err := NewStatsService(&config.Config{
		Stats: config.StatsConfig{
			Enabled: lo.ToPtr(false),
		},
	})
	require.NoError(t, err)

	reporter := service.NewReporter("dispatch")
	reporter.Add("dropped_measure", 7)

	recorder := httptest.NewRecorder()
	service.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, recorder.Body.String(), "dropped_measure")
	assert.NoError(t, service.Start())
	assert.NoError(t, service.Stop())
}
