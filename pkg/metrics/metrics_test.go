package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.MintsTotal.WithLabelValues(ResultMinted).Inc()
	m.MintsTotal.WithLabelValues(ResultMinted).Inc()
	m.MintsTotal.WithLabelValues(ResultReplayed).Inc()
	m.MintRollbacks.WithLabelValues("FUNDS_LOCKED").Inc()
	m.CreditsSpent.Add(300)

	assert.Equal(t, 2.0, counterValue(t, m, "hero_mint_mints_total", map[string]string{"result": ResultMinted}))
	assert.Equal(t, 1.0, counterValue(t, m, "hero_mint_mints_total", map[string]string{"result": ResultReplayed}))
	assert.Equal(t, 1.0, counterValue(t, m, "hero_mint_rollbacks_total", map[string]string{"state": "FUNDS_LOCKED"}))
	assert.Equal(t, 300.0, counterValue(t, m, "hero_mint_credits_spent_total", nil))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.CreditsDeposited.Add(5)

	assert.Equal(t, 5.0, counterValue(t, a, "hero_mint_credits_deposited_total", nil))
	assert.Equal(t, 0.0, counterValue(t, b, "hero_mint_credits_deposited_total", nil))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ReconcileDrift.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hero_mint_ledger_drift_wallets 2")
	assert.Contains(t, string(body), "go_goroutines")
}
