package cli

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/poissonfields/pkg/observability"
)

// telemetry receives observability hooks for the server. It keeps plain
// counters for GET /stats and Prometheus collectors for GET /metrics on a
// private registry.
type telemetry struct {
	reg *prometheus.Registry

	acquisitions *prometheus.CounterVec
	probed       *prometheus.CounterVec
	degraded     prometheus.Counter
	stages       *prometheus.HistogramVec
	cacheEvents  *prometheus.CounterVec
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec

	runs          atomic.Int64
	failed        atomic.Int64
	probedN       atomic.Int64
	acceptedN     atomic.Int64
	degradedN     atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	cacheBytesSet atomic.Int64
}

// StatsSnapshot is the JSON body of GET /stats.
type StatsSnapshot struct {
	Runs        int64 `json:"runs"`
	Failed      int64 `json:"failed"`
	Probed      int64 `json:"probed"`
	Accepted    int64 `json:"accepted"`
	Degraded    int64 `json:"degraded"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	CacheBytes  int64 `json:"cache_bytes_written"`
}

func newTelemetry() *telemetry {
	t := &telemetry{
		reg: prometheus.NewRegistry(),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poissonfields_acquisitions_total",
			Help: "Acquisition stages by result.",
		}, []string{"result"}),
		probed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poissonfields_assets_probed_total",
			Help: "Probed candidate images by verdict.",
		}, []string{"verdict"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poissonfields_placements_degraded_total",
			Help: "Placements that exhausted the retry cap.",
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poissonfields_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"stage"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poissonfields_cache_events_total",
			Help: "Cache lookups and writes by key type.",
		}, []string{"key_type", "event"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poissonfields_http_client_requests_total",
			Help: "Outgoing HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poissonfields_http_client_duration_seconds",
			Help:    "Outgoing HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	t.reg.MustRegister(t.acquisitions, t.probed, t.degraded, t.stages, t.cacheEvents, t.requests, t.latency)
	return t
}

// register installs t as the process-wide pipeline, cache and HTTP hooks.
func (t *telemetry) register() {
	observability.SetPipelineHooks(t)
	observability.SetCacheHooks(t)
	observability.SetHTTPHooks(t)
}

func (t *telemetry) handler() http.Handler {
	return promhttp.HandlerFor(t.reg, promhttp.HandlerOpts{})
}

func (t *telemetry) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Runs:        t.runs.Load(),
		Failed:      t.failed.Load(),
		Probed:      t.probedN.Load(),
		Accepted:    t.acceptedN.Load(),
		Degraded:    t.degradedN.Load(),
		CacheHits:   t.cacheHits.Load(),
		CacheMisses: t.cacheMisses.Load(),
		CacheBytes:  t.cacheBytesSet.Load(),
	}
}

// Pipeline hooks

func (t *telemetry) OnAcquireStart(context.Context, string) {}

func (t *telemetry) OnAssetProbed(_ context.Context, _ string, suitable bool, err error) {
	t.probedN.Add(1)
	switch {
	case suitable:
		t.acceptedN.Add(1)
		t.probed.WithLabelValues("accepted").Inc()
	case err != nil:
		t.probed.WithLabelValues("failed").Inc()
	default:
		t.probed.WithLabelValues("rejected").Inc()
	}
}

func (t *telemetry) OnAcquireComplete(_ context.Context, _ string, _ int, d time.Duration, err error) {
	t.runs.Add(1)
	t.stages.WithLabelValues("acquire").Observe(d.Seconds())
	if err != nil {
		t.failed.Add(1)
		t.acquisitions.WithLabelValues("failed").Inc()
		return
	}
	t.acquisitions.WithLabelValues("ok").Inc()
}

func (t *telemetry) OnLayoutComplete(_ context.Context, _, _ int, d time.Duration) {
	t.stages.WithLabelValues("layout").Observe(d.Seconds())
}

func (t *telemetry) OnPlacementDegraded(context.Context, int, int) {
	t.degradedN.Add(1)
	t.degraded.Inc()
}

func (t *telemetry) OnRenderComplete(_ context.Context, _ int, d time.Duration, err error) {
	t.stages.WithLabelValues("render").Observe(d.Seconds())
	if err != nil {
		t.failed.Add(1)
	}
}

// Cache hooks

func (t *telemetry) OnCacheHit(_ context.Context, keyType string) {
	t.cacheHits.Add(1)
	t.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (t *telemetry) OnCacheMiss(_ context.Context, keyType string) {
	t.cacheMisses.Add(1)
	t.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (t *telemetry) OnCacheSet(_ context.Context, keyType string, size int) {
	t.cacheBytesSet.Add(int64(size))
	t.cacheEvents.WithLabelValues(keyType, "set").Inc()
}

// HTTP hooks

func (t *telemetry) OnRequest(context.Context, string, string, string) {}

func (t *telemetry) OnResponse(_ context.Context, method, _, _ string, status int, d time.Duration) {
	t.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	t.latency.WithLabelValues(method).Observe(d.Seconds())
}

func (t *telemetry) OnError(_ context.Context, method, _, _ string, _ error) {
	t.requests.WithLabelValues(method, "error").Inc()
}

var (
	_ observability.PipelineHooks = (*telemetry)(nil)
	_ observability.CacheHooks    = (*telemetry)(nil)
	_ observability.HTTPHooks     = (*telemetry)(nil)
)
