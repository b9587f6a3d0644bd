package compute

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	rechunkReasonNested       = "nested"
	rechunkReasonTargetChunks = "target_chunks"
	rechunkReasonOutput       = "output"
)

type metrics struct {
	calls            *prometheus.CounterVec
	rows             prometheus.Counter
	boundsViolations prometheus.Counter
	rechunks         *prometheus.CounterVec
}

func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		calls: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "gather_calls_total",
			Help: "Total number of gather calls, by column category and whether indices were bounds checked.",
		}, []string{"category", "checked"}),
		rows: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "gather_rows_total",
			Help: "Total number of rows produced by gather calls.",
		}),
		boundsViolations: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "gather_bounds_violations_total",
			Help: "Total number of checked gather calls rejected for out of bounds indices.",
		}),
		rechunks: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "gather_rechunks_total",
			Help: "Total number of columns merged into a single chunk while gathering.",
		}, []string{"reason"}),
	}
}
