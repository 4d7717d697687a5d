// Package jobs holds the DVM's periodic background tasks.
package jobs

import (
	"context"
	"log"
	"time"

	"nostrdvm.backend/internal/orchestrator"
)

// Reaper is C7: a 1Hz ticker that polls invoice state, expires stale
// awaiting-payment jobs, and re-checks the dependency hold-list (spec.md
// §4.7). The orchestrator is the sole mutator of the ledger; Reaper only
// ever calls its exported polling methods.
type Reaper struct {
	orch     *orchestrator.Orchestrator
	interval time.Duration
	stop     chan struct{}
}

// NewReaper builds a Reaper ticking once per second, per spec.md §5.
func NewReaper(orch *orchestrator.Orchestrator) *Reaper {
	return &Reaper{
		orch:     orch,
		interval: time.Second,
		stop:     make(chan struct{}),
	}
}

func (r *Reaper) Start(ctx context.Context) {
	log.Println("🕐 Starting job reaper...")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Job reaper stopped (context cancelled)")
			return
		case <-r.stop:
			log.Println("⏹️ Job reaper stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) Stop() {
	close(r.stop)
}

func (r *Reaper) tick(ctx context.Context) {
	r.orch.PollPayments(ctx)
	r.orch.ExpireStaleJobs()
	r.orch.RecheckHeldJobs(ctx)
}
