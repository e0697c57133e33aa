// Package metrics defines the service's Prometheus instruments on a private
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mint results used as the "result" label of MintsTotal.
const (
	ResultMinted   = "minted"
	ResultReplayed = "replayed"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds the business and HTTP instruments.
type Metrics struct {
	registry *prometheus.Registry

	MintsTotal        *prometheus.CounterVec
	MintRollbacks     *prometheus.CounterVec
	MintDuration      prometheus.Histogram
	CreditsSpent      prometheus.Counter
	CreditsDeposited  prometheus.Counter
	GeneratorLatency  *prometheus.HistogramVec
	ReconcileDrift    prometheus.Gauge
	ReconcileRuns     *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		MintsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hero_mint_mints_total",
			Help: "Mint requests by result",
		}, []string{"result"}),
		MintRollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hero_mint_rollbacks_total",
			Help: "Rolled back mints by the last state reached",
		}, []string{"state"}),
		MintDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hero_mint_duration_seconds",
			Help:    "End to end duration of first-time mints",
			Buckets: prometheus.DefBuckets,
		}),
		CreditsSpent: f.NewCounter(prometheus.CounterOpts{
			Name: "hero_mint_credits_spent_total",
			Help: "Credits settled by completed mints",
		}),
		CreditsDeposited: f.NewCounter(prometheus.CounterOpts{
			Name: "hero_mint_credits_deposited_total",
			Help: "Credits added by deposits and wallet provisioning",
		}),
		GeneratorLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hero_mint_generator_duration_seconds",
			Help:    "Artwork generator call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"generator", "outcome"}),
		ReconcileDrift: f.NewGauge(prometheus.GaugeOpts{
			Name: "hero_mint_ledger_drift_wallets",
			Help: "Wallets whose balances disagree with the ledger, as of the last reconciliation",
		}),
		ReconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hero_mint_reconcile_runs_total",
			Help: "Reconciliation passes by result",
		}, []string{"result"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hero_mint_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hero_mint_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
