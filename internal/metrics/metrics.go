package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	AuditWrites         *prometheus.CounterVec
	AuditWriteFailures  *prometheus.CounterVec
	UpstreamRequests    *prometheus.CounterVec
	UpstreamLatency     *prometheus.HistogramVec
	PhoneTokenRefreshes prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuditWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_audit_writes_total",
			Help: "Audit log entries written, by action",
		}, []string{"action"}),
		AuditWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_audit_write_failures_total",
			Help: "Audit log writes that failed or were rejected, by action",
		}, []string{"action"}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_upstream_requests_total",
			Help: "Requests to external services, by service and outcome",
		}, []string{"service", "outcome"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civreg_upstream_request_duration_seconds",
			Help:    "Latency of requests to external services",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		PhoneTokenRefreshes: f.NewCounter(prometheus.CounterOpts{
			Name: "civreg_phone_token_refreshes_total",
			Help: "Logins performed against the phone lookup service",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_http_requests_total",
			Help: "HTTP requests served, by route pattern and status",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) IncrementAuditWrites(action string) {
	if m == nil {
		return
	}
	m.AuditWrites.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementAuditWriteFailures(action string) {
	if m == nil {
		return
	}
	m.AuditWriteFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveUpstream(service, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(service, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(service).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncrementPhoneTokenRefreshes() {
	if m == nil {
		return
	}
	m.PhoneTokenRefreshes.Inc()
}

func (m *Metrics) IncrementHTTPRequests(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
