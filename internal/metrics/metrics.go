// Package metrics holds the Prometheus collectors of the build and the
// lookup server. Each Provider owns its registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Provider owns a registry and the collectors registered on it.
type Provider struct {
	reg *prometheus.Registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, for tests and textfile export.
func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }

// WriteTextfile writes the registry to path for the node exporter textfile
// collector.
func (p *Provider) WriteTextfile(path string) error {
	return eris.Wrapf(prometheus.WriteToTextfile(path, p.reg), "metrics: write %s", path)
}

// Build records the progress of a contour build.
type Build struct {
	Provider
	features *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	lastRun  prometheus.Gauge
}

// NewBuild returns the build collectors on a fresh registry.
func NewBuild() *Build {
	reg := prometheus.NewRegistry()
	b := &Build{
		Provider: Provider{reg: reg},
		features: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contours_features_written_total",
			Help: "Features written per layer and interval.",
		}, []string{"layer", "interval"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contours_stage_duration_seconds",
			Help:    "Duration of build stages.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"stage", "interval"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contours_last_success_timestamp_seconds",
			Help: "Unix time of the last successful build.",
		}),
	}
	reg.MustRegister(b.features, b.stages, b.lastRun)
	return b
}

// AddFeatures counts features written for a layer.
func (b *Build) AddFeatures(layer string, interval, n int) {
	b.features.WithLabelValues(layer, strconv.Itoa(interval)).Add(float64(n))
}

// ObserveStage records how long a stage took.
func (b *Build) ObserveStage(stage string, interval int, d time.Duration) {
	b.stages.WithLabelValues(stage, strconv.Itoa(interval)).Observe(d.Seconds())
}

// MarkSuccess stamps the end of a successful build.
func (b *Build) MarkSuccess(t time.Time) {
	b.lastRun.Set(float64(t.Unix()))
}

// Server records lookup traffic.
type Server struct {
	Provider
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// NewServer returns the server collectors, with Go and process collectors,
// on a fresh registry.
func NewServer() *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s := &Server{
		Provider: Provider{reg: reg},
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contours_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contours_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contours_cache_lookups_total",
			Help: "Feature cache lookups by result (hit or miss).",
		}, []string{"result"}),
	}
	reg.MustRegister(s.requests, s.latency, s.cache)
	return s
}

// ObserveRequest records one served request.
func (s *Server) ObserveRequest(route string, code int, d time.Duration) {
	s.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	s.latency.WithLabelValues(route).Observe(d.Seconds())
}

// CacheLookup records a cache hit or miss.
func (s *Server) CacheLookup(hit bool) {
	if hit {
		s.cache.WithLabelValues("hit").Inc()
		return
	}
	s.cache.WithLabelValues("miss").Inc()
}
