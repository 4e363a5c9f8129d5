// Package metrics holds the Prometheus collectors for the server on a
// dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes reported by the provider client.
const (
	OutcomeOK            = "ok"
	OutcomeConfiguration = "configuration"
	OutcomeTransport     = "transport"
	OutcomeShape         = "shape"
)

// Record sources.
const (
	SourceAPI      = "api"
	SourceProvider = "provider"
	SourceMQTT     = "mqtt"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	providerFetch  *prometheus.CounterVec
	recordsCreated *prometheus.CounterVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weathervision_http_requests_total",
			Help: "Total HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weathervision_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		providerFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weathervision_provider_fetch_total",
			Help: "Total OpenWeatherMap fetches by outcome.",
		}, []string{"outcome"}),
		recordsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weathervision_records_created_total",
			Help: "Total weather records created by source.",
		}, []string{"source"}),
	}

	registry.MustRegister(r.httpRequests)
	registry.MustRegister(r.httpDuration)
	registry.MustRegister(r.providerFetch)
	registry.MustRegister(r.recordsCreated)

	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ObserveHTTP(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (r *Recorder) ProviderFetch(outcome string) {
	if r == nil {
		return
	}
	r.providerFetch.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordCreated(source string) {
	if r == nil {
		return
	}
	r.recordsCreated.WithLabelValues(source).Inc()
}
