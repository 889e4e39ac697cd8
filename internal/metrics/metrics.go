package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for vibeview
type Metrics struct {
	RequestsAllowed  prometheus.Counter
	RequestsBlocked  *prometheus.CounterVec
	SavedBytes       prometheus.Counter
	TransferredBytes prometheus.Counter
	ViewsOpen        prometheus.Gauge
	LoadFailures     *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requestsAllowed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vibeview_requests_allowed_total",
			Help: "Total number of network requests allowed by the request mediator",
		},
	)

	requestsBlocked := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibeview_requests_blocked_total",
			Help: "Total number of network requests cancelled by the request mediator",
		},
		[]string{"resource_type"},
	)

	savedBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vibeview_saved_bytes_total",
			Help: "Estimated bytes not transferred because of blocked requests",
		},
	)

	transferredBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vibeview_transferred_bytes_total",
			Help: "Bytes announced by content-length on received responses",
		},
	)

	viewsOpen := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibeview_views_open",
			Help: "Number of rendering surfaces currently registered",
		},
	)

	loadFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibeview_load_failures_total",
			Help: "Main-frame load failures by fallback page rendered",
		},
		[]string{"fallback"},
	)

	reg.MustRegister(requestsAllowed, requestsBlocked, savedBytes, transferredBytes, viewsOpen, loadFailures)

	return &Metrics{
		RequestsAllowed:  requestsAllowed,
		RequestsBlocked:  requestsBlocked,
		SavedBytes:       savedBytes,
		TransferredBytes: transferredBytes,
		ViewsOpen:        viewsOpen,
		LoadFailures:     loadFailures,
	}
}
