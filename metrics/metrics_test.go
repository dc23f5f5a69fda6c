package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("mint", "ok", time.Millisecond)
	m.ObserveOperation("mint", "ok", time.Millisecond)
	m.ObserveOperation("mint", "paused", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("mint", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("mint", "paused")))
}

func TestSetLedger(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetLedger(LedgerSnapshot{Seq: 4, Balance: 10, BondsForSale: 90, Period: 1, Paused: true, PendingPayouts: 2})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.StateSeq))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Balance))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.BondsForSale))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Period))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Paused))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PendingPayouts))

	m.SetLedger(LedgerSnapshot{})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Paused))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("fund", "ok", 0)
		m.SetLedger(LedgerSnapshot{Paused: true})
		m.IncJournalStored("event")
		m.IncJournalFailure("event")
		m.IncJournalDropped()
	})
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncJournalStored("event")

	srv := NewMetricsServer(":0", reg)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `slb_journal_stored_total{type="event"} 1`)
}
