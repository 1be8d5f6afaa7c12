package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for the margin service
// ⭐ SSOT: 모든 메트릭 등록은 이 패키지에서만
var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simm_runs_total",
		Help: "Total SIMM margin runs by final status.",
	}, []string{"status"})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simm_run_duration_seconds",
		Help:    "Wall-clock duration of a full SIMM run in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	CrifRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simm_crif_records",
		Help: "CRIF records consumed by the most recent run.",
	})

	MarginTasksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simm_margin_tasks_total",
		Help: "Total per-(side, netting set, regulation) margin tasks executed.",
	})

	PortfolioIM = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simm_portfolio_im",
		Help: "Winning-regulation portfolio IM from the most recent run, in result currency.",
	}, []string{"side", "netting_set"})

	FxQuoteRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_quote_requests_total",
		Help: "FX quote lookups by source and outcome.",
	}, []string{"source", "status"})
)

var registered bool

// Init registers all collectors with the default registry
func Init() {
	if registered {
		return
	}
	prometheus.MustRegister(
		RunsTotal,
		RunDuration,
		CrifRecords,
		MarginTasksTotal,
		PortfolioIM,
		FxQuoteRequests,
	)
	registered = true
}

// Handler returns the HTTP handler serving the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
