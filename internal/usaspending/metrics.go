package usaspending

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's prometheus collectors. Optional: a nil Metrics
// on the client disables instrumentation (tests, one-shot CLI runs).
type Metrics struct {
	Requests *prometheus.CounterVec
	Retries  *prometheus.CounterVec
}

// NewMetrics builds and registers the client collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awardflow_usaspending_requests_total",
			Help: "Requests dispatched to the USAspending API by endpoint.",
		}, []string{"endpoint"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awardflow_usaspending_retries_total",
			Help: "Retry attempts against the USAspending API by endpoint.",
		}, []string{"endpoint"}),
	}
	reg.MustRegister(m.Requests, m.Retries)
	return m
}
