// Package metrics provides Prometheus metrics for the storage adapters and
// the HTTP server in front of them.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/storage-adapters/adapter"
)

var (
	adapterOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_adapter_operations_total",
			Help: "Total number of storage adapter operations",
		},
		[]string{"adapter", "op", "result"},
	)

	adapterOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_adapter_operation_duration_seconds",
			Help:    "Storage adapter operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter", "op"},
	)

	backendBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_backend_bytes_total",
			Help: "Payload bytes moved to and from storage backends",
		},
		[]string{"adapter", "direction"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storage_build_info",
			Help: "Build information of the running service",
		},
		[]string{"service", "version"},
	)
)

// Directions accepted by RecordBackendBytes.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// RecordAdapterOperation records one completed adapter operation. The result
// label is the error kind, "ok" for successful operations.
func RecordAdapterOperation(adapterName, op string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = adapter.Classify(err).String()
	}
	adapterOperationsTotal.WithLabelValues(adapterName, op, result).Inc()
	adapterOperationDuration.WithLabelValues(adapterName, op).Observe(duration.Seconds())
}

// RecordBackendBytes records payload bytes written to (in) or read from (out)
// a store.
func RecordBackendBytes(adapterName, direction string, n int) {
	backendBytesTotal.WithLabelValues(adapterName, direction).Add(float64(n))
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Observer feeds adapter operations into the Prometheus metrics.
type Observer struct{}

// ObserveOperation implements adapter.OperationObserver.
func (Observer) ObserveOperation(adapterName, op string, duration time.Duration, err error) {
	RecordAdapterOperation(adapterName, op, duration, err)
}

var _ adapter.OperationObserver = Observer{}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsServer serves /metrics on a dedicated listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for service listening on addr and publishes
// the build info gauge.
func New(service, version, addr string) (*MetricsServer, error) {
	buildInfo.WithLabelValues(service, version).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
