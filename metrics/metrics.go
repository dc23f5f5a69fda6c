// Package metrics exposes the Prometheus instrumentation of the bond service
// and the server that publishes it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of the bond service. All methods are safe to
// call on a nil *Metrics.
type Metrics struct {
	// Operations by name and result kind ("ok", "unauthorized", "paused", ...)
	Operations *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec

	// Ledger gauges, updated after every commit
	StateSeq     prometheus.Gauge
	Balance      prometheus.Gauge
	BondsForSale prometheus.Gauge
	Period       prometheus.Gauge
	Paused       prometheus.Gauge

	PendingPayouts prometheus.Gauge

	JournalStored   *prometheus.CounterVec
	JournalFailures *prometheus.CounterVec
	JournalDropped  prometheus.Counter
}

// New registers the bond service collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slb_operations_total",
			Help: "Bond operations by name and result",
		}, []string{"operation", "result"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slb_operation_duration_seconds",
			Help:    "Duration of bond operations including the state commit",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"operation"}),

		StateSeq: f.NewGauge(prometheus.GaugeOpts{
			Name: "slb_state_sequence",
			Help: "Sequence number of the last committed state",
		}),
		Balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "slb_funding_balance",
			Help: "Funding account balance",
		}),
		BondsForSale: f.NewGauge(prometheus.GaugeOpts{
			Name: "slb_bonds_for_sale",
			Help: "Bonds left for minting",
		}),
		Period: f.NewGauge(prometheus.GaugeOpts{
			Name: "slb_reporting_period",
			Help: "Current impact reporting period",
		}),
		Paused: f.NewGauge(prometheus.GaugeOpts{
			Name: "slb_paused",
			Help: "1 while the bond is frozen",
		}),
		PendingPayouts: f.NewGauge(prometheus.GaugeOpts{
			Name: "slb_pending_payouts",
			Help: "Committed withdrawals not yet released",
		}),

		JournalStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slb_journal_stored_total",
			Help: "Journal documents stored by content type",
		}, []string{"type"}),
		JournalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slb_journal_failures_total",
			Help: "Journal documents that could not be stored, by content type",
		}, []string{"type"}),
		JournalDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "slb_journal_dropped_total",
			Help: "Events dropped because the journal queue was full",
		}),
	}
}

// ObserveOperation records the outcome and duration of one operation.
func (m *Metrics) ObserveOperation(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
}

// LedgerSnapshot carries the values exported as gauges.
type LedgerSnapshot struct {
	Seq          uint64
	Balance      uint64
	BondsForSale uint64
	Period       uint64
	Paused       bool

	PendingPayouts int
}

// SetLedger updates the ledger gauges.
func (m *Metrics) SetLedger(s LedgerSnapshot) {
	if m == nil {
		return
	}
	m.StateSeq.Set(float64(s.Seq))
	m.Balance.Set(float64(s.Balance))
	m.BondsForSale.Set(float64(s.BondsForSale))
	m.Period.Set(float64(s.Period))
	m.PendingPayouts.Set(float64(s.PendingPayouts))
	if s.Paused {
		m.Paused.Set(1)
	} else {
		m.Paused.Set(0)
	}
}

// IncJournalStored counts a stored journal document.
func (m *Metrics) IncJournalStored(contentType string) {
	if m != nil {
		m.JournalStored.WithLabelValues(contentType).Inc()
	}
}

// IncJournalFailure counts a journal document that could not be stored.
func (m *Metrics) IncJournalFailure(contentType string) {
	if m != nil {
		m.JournalFailures.WithLabelValues(contentType).Inc()
	}
}

// IncJournalDropped counts an event dropped before reaching storage.
func (m *Metrics) IncJournalDropped() {
	if m != nil {
		m.JournalDropped.Inc()
	}
}
