package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RowsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_rows_processed_total",
			Help: "Rows read by a cleanup job",
		},
		[]string{"job"},
	)

	DuplicatesRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_duplicates_total",
			Help: "Duplicate rows found, by kind (internal or external)",
		},
		[]string{"job", "kind"},
	)

	FixesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_fixes_applied_total",
			Help: "Fields rewritten by a cleanup job",
		},
		[]string{"job"},
	)

	PriceFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_price_fallbacks_total",
			Help: "Prices that could not be parsed and were replaced by the fallback",
		},
	)

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_job_runs_total",
			Help: "Completed job runs by outcome",
		},
		[]string{"job", "status"},
	)
)

func init() {
	prometheus.MustRegister(RowsProcessed, DuplicatesRemoved, FixesApplied, PriceFallbacks, JobRuns)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDedup records the counters of one deduplication pass.
func ObserveDedup(job string, total, internal, external, fixes int) {
	RowsProcessed.WithLabelValues(job).Add(float64(total))
	DuplicatesRemoved.WithLabelValues(job, "internal").Add(float64(internal))
	DuplicatesRemoved.WithLabelValues(job, "external").Add(float64(external))
	FixesApplied.WithLabelValues(job).Add(float64(fixes))
}

func ObserveRun(job string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JobRuns.WithLabelValues(job, status).Inc()
}
