package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvm_jobs_total",
		Help: "Job lifecycle events, by status (dispatched, succeeded, error).",
	}, []string{"status"})

	pendingJobsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvm_pending_jobs",
		Help: "Ledger entries awaiting payment or processing.",
	})

	heldJobsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvm_held_jobs",
		Help: "Requests waiting on an unresolved chained-job dependency.",
	})
)

// Stats is a point-in-time snapshot of ledger occupancy, exposed for the
// admin debug endpoint.
type Stats struct {
	Pending int
	Held    int
}

// Stats reports the current ledger occupancy and refreshes the gauges a
// /metrics scrape will read.
func (o *Orchestrator) Stats() Stats {
	s := Stats{Pending: len(o.ledger.Iter()), Held: len(o.ledger.IterHeld())}
	pendingJobsGauge.Set(float64(s.Pending))
	heldJobsGauge.Set(float64(s.Held))
	return s
}
