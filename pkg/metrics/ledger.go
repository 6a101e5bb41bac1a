package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records posting outcomes and latency.
type LedgerMetrics struct {
	posted   *prometheus.CounterVec
	rejected *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_posted",
		Help: "Transactions committed to the ledger.",
	}, []string{"reference_type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_rejected",
		Help: "Transactions rejected before any write.",
	}, []string{"reference_type", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_post_duration_seconds",
		Help:    "Latency of ledger posting in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"reference_type"})
	reg.MustRegister(posted, rejected, duration)
	return &LedgerMetrics{
		posted:   posted,
		rejected: rejected,
		duration: duration,
	}
}

// IncPosted increments the posted counter for a reference type.
func (l *LedgerMetrics) IncPosted(referenceType string) {
	if l == nil || l.posted == nil {
		return
	}
	l.posted.WithLabelValues(normalizeLabel(referenceType)).Inc()
}

// IncRejected increments the rejected counter for a reference type and error code.
func (l *LedgerMetrics) IncRejected(referenceType, code string) {
	if l == nil || l.rejected == nil {
		return
	}
	l.rejected.WithLabelValues(normalizeLabel(referenceType), normalizeLabel(code)).Inc()
}

// ObservePostDuration records posting latency for a reference type.
func (l *LedgerMetrics) ObservePostDuration(referenceType string, duration time.Duration) {
	if l == nil || l.duration == nil {
		return
	}
	l.duration.WithLabelValues(normalizeLabel(referenceType)).Observe(duration.Seconds())
}
