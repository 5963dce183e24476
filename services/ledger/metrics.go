package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ledger activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	filesScanned   prometheus.Counter
	parseMisses    prometheus.Counter
	resolutions    *prometheus.CounterVec
	recordsSaved   *prometheus.CounterVec
	notifyFailures prometheus.Counter
}

// NewMetrics registers the ledger collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		filesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deployledger",
			Name:      "broadcast_files_scanned_total",
			Help:      "Broadcast-log files read while resolving deployments.",
		}),
		parseMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deployledger",
			Name:      "broadcast_files_unmatched_total",
			Help:      "Broadcast-log files that were unreadable, malformed or held no matching deployment.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deployledger",
			Name:      "resolutions_total",
			Help:      "Most-recent deployment lookups by outcome.",
		}, []string{"outcome"}),
		recordsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deployledger",
			Name:      "records_saved_total",
			Help:      "Canonical deployment records written, by chain id.",
		}, []string{"chain_id"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deployledger",
			Name:      "notification_failures_total",
			Help:      "Tracking notifications that could not be delivered.",
		}),
	}

	for _, c := range []prometheus.Collector{m.filesScanned, m.parseMisses, m.resolutions, m.recordsSaved, m.notifyFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) fileScanned(matched bool) {
	if m == nil {
		return
	}
	m.filesScanned.Inc()
	if !matched {
		m.parseMisses.Inc()
	}
}

func (m *Metrics) resolved(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) saved(chain string) {
	if m == nil {
		return
	}
	m.recordsSaved.WithLabelValues(chain).Inc()
}

func (m *Metrics) notifyFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}
