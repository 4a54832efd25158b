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
	"context"
	"github.com/go-errors/errors"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/version"
	"github.com/segmentio/stats/v4"
	"github.com/segmentio/stats/v4/procstats"
	"github.com/segmentio/stats/v4/prometheus"
	"io"
	"net/http"
	"time"
)

const defaultStatsAddress = ":8081"

type Service struct {
	statsEnabled bool
	handler      *prometheus.Handler
	engine       *stats.Engine
	server       *http.Server
	collector    io.Closer
	logger       *logging.Logger
}

func NewStatsService(c *config.Config) (*Service, error) {
	logger, err := logging.NewLogger("StatsService")
	if err != nil {
		return nil, err
	}

	statsHandler := &prometheus.Handler{
		TrimPrefix: version.BinName,
	}

	statsEnabled := config.GetOrDefault(c, config.PropertyStatsEnabled, true)
	runtimeStatsEnabled := config.GetOrDefault(c, config.PropertyRuntimeStatsEnabled, true)
	address := config.GetOrDefault(c, config.PropertyStatsAddress, defaultStatsAddress)

	engine := stats.NewEngine(version.BinName, statsHandler)

	var collector io.Closer
	if statsEnabled && runtimeStatsEnabled {
		collector = procstats.StartCollector(procstats.NewGoMetricsWith(engine))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", statsHandler.ServeHTTP)

	return &Service{
		statsEnabled: statsEnabled,
		handler:      statsHandler,
		engine:       engine,
		collector:    collector,
		logger:       logger,
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 10,
		},
	}, nil
}

func (s *Service) Start() error {
	if s.statsEnabled {
		go func() {
			err := s.server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Errorf("Stats endpoint failed: %s", err)
			}
		}()
		s.logger.Infof("Serving metrics on %s/metrics", s.server.Addr)
	}
	return nil
}

func (s *Service) Stop() error {
	if !s.statsEnabled {
		return nil
	}
	if s.collector != nil {
		_ = s.collector.Close()
	}
	s.engine.Flush()
	return s.server.Shutdown(context.Background())
}

// Handler returns the http handler serving the prometheus metrics
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) NewReporter(prefix string) *Reporter {
	engine := s.engine.WithPrefix(prefix)
	return &Reporter{
		statsEnabled: s.statsEnabled,
		engine:       engine,
	}
}

// Reporter publishes measures under a common prefix. A nil
// Reporter is valid and drops all measures.
type Reporter struct {
	statsEnabled bool
	engine       *stats.Engine
}

func (r *Reporter) Incr(name string, tags ...stats.Tag) {
	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Incr(name, tags...)
}

func (r *Reporter) Add(name string, value any, tags ...stats.Tag) {
	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Add(name, value, tags...)
}

func (r *Reporter) Observe(name string, value any, tags ...stats.Tag) {
	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Observe(name, value, tags...)
}
