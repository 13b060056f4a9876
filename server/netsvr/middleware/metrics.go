package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 以 prometheus 紀錄 HTTP 指標。
//
//   - <ns>_http_request_duration_seconds{method,route,status} histogram
//   - <ns>_http_requests_inflight gauge
//   - <ns>_http_request_errors_total{method,route,status} counter（4xx/5xx）
//
// 每個 Metrics 持有自己的 Registry，同一行程可建多個（測試）而不會重複註冊。
type Metrics struct {
	reg         *prometheus.Registry
	reqDuration *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		}, []string{"method", "route", "status"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Requests currently being served.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Requests that finished with a 4xx/5xx status.",
		}, []string{"method", "route", "status"}),
	}
	m.reg.MustRegister(
		m.reqDuration, m.reqInflight, m.reqErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// MustRegister 額外註冊業務指標（例如 session 數量）。
func (m *Metrics) MustRegister(cs ...prometheus.Collector) {
	m.reg.MustRegister(cs...)
}

// Registry 供測試直接 Gather。
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler 輸出 /metrics。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware 量測每個請求；route label 用 chi 的路由樣板，避免 session id 造成高基數。
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.reqInflight.Inc()
		defer m.reqInflight.Dec()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(rw.status)
		m.reqDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		if rw.status >= 400 {
			m.reqErrors.WithLabelValues(r.Method, route, status).Inc()
		}
	})
}
