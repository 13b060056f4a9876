// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zintix-labs/blocklab"
	v1 "github.com/zintix-labs/blocklab/server/api/v1"
	"github.com/zintix-labs/blocklab/server/netsvr"
	"github.com/zintix-labs/blocklab/server/netsvr/middleware"
	"github.com/zintix-labs/blocklab/server/svrcfg"
)

const metricsPath = "/metrics"

// RegisterRoutes 註冊 middleware、主頁、/metrics 與 v1 api。
// chi 要求 middleware 先於路由註冊，順序不可調換。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, ss *blocklab.Sessions) error {
	h, err := v1.NewHandler(sCfg, ss)
	if err != nil {
		return err
	}
	var m *middleware.Metrics
	if sCfg.Metrics {
		m = middleware.NewMetrics("blocklab")
		m.MustRegister(sessionCollectors(ss)...)
	}

	registerMiddleware(svr, sCfg, m) // 1. 註冊 middleware
	svr.Get("/", indexHandler(sCfg)) // 2. 註冊主頁
	if m != nil {
		svr.Handle(metricsPath, m.Handler()) // 3. prometheus
	}
	svr.Group("/v1", h.Register) // 4. 註冊 v1 api
	return nil
}

func registerMiddleware(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, m *middleware.Metrics) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(sCfg.Log))
	svr.Use(middleware.Recover(sCfg.Log))
	if m != nil {
		svr.Use(m.Middleware)
	}
	cc := middleware.DefaultCompressConfig
	cc.Skip = func(r *http.Request) bool { return r.URL.Path == metricsPath }
	svr.Use(middleware.CompressionWith(cc))
}

// sessionCollectors 以拉取方式輸出 session store 的計數。
func sessionCollectors(ss *blocklab.Sessions) []prometheus.Collector {
	gauge := func(name, help string, f func(blocklab.SessionMetrics) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "blocklab", Subsystem: "sessions", Name: name, Help: help,
		}, func() float64 { return f(ss.Metrics()) })
	}
	counter := func(name, help string, f func(blocklab.SessionMetrics) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "blocklab", Subsystem: "sessions", Name: name, Help: help,
		}, func() float64 { return f(ss.Metrics()) })
	}
	return []prometheus.Collector{
		gauge("active", "Live game sessions.", func(m blocklab.SessionMetrics) float64 { return float64(m.Active) }),
		gauge("max", "Session capacity.", func(m blocklab.SessionMetrics) float64 { return float64(m.Max) }),
		counter("created_total", "Sessions created.", func(m blocklab.SessionMetrics) float64 { return float64(m.Created) }),
		counter("deleted_total", "Sessions deleted by clients.", func(m blocklab.SessionMetrics) float64 { return float64(m.Deleted) }),
		counter("evicted_total", "Sessions evicted after idling.", func(m blocklab.SessionMetrics) float64 { return float64(m.Evicted) }),
		counter("panics_total", "Sessions dropped after a panic.", func(m blocklab.SessionMetrics) float64 { return float64(m.Panics) }),
	}
}
