package transport

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrconsole_api_requests_total",
				Help: "Total number of requests sent to the HR API",
			},
			[]string{"method", "resource", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hrconsole_api_request_duration_seconds",
				Help:    "Latency of requests sent to the HR API",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "resource"},
		),
	}

	reg.MustRegister(m.requests, m.duration)

	return m
}

func (m *Metrics) observe(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}

	resource := resourceLabel(path)
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}

	m.requests.WithLabelValues(method, resource, statusLabel).Inc()
	m.duration.WithLabelValues(method, resource).Observe(d.Seconds())
}

// resourceLabel keeps label cardinality low: "/employees/42" -> "employees".
func resourceLabel(path string) string {
	path = strings.TrimLeft(path, "/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}

	if path == "" {
		return "root"
	}

	return path
}
