package entities

import "time"

// JobStatus is the orchestrator's per-job state, per spec.md §4.6.
type JobStatus string

const (
	JobStatusNew             JobStatus = "NEW"
	JobStatusPriceComputed   JobStatus = "PRICE_COMPUTED"
	JobStatusAwaitingPayment JobStatus = "AWAITING_PAYMENT"
	JobStatusProcessing      JobStatus = "PROCESSING"
	JobStatusSucceeded       JobStatus = "SUCCEEDED"
	JobStatusErrored         JobStatus = "ERRORED"
)

// PendingJob is a ledger entry: a request that has a slot reserved but is
// not yet both paid and processed. At most one PendingJob exists per
// request event id (see ledger.JobLedger).
type PendingJob struct {
	Request      JobRequest
	AmountSats   int64
	IsPaid       bool
	IsProcessed  bool
	Status       JobStatus
	Result       []byte
	Bolt11       string
	PaymentHash  string
	ExpiresAt    time.Time
}

// Done reports the invariant from spec.md §3: a fully paid, fully
// processed job is ready to be removed once its reply has been published.
func (p *PendingJob) Done() bool {
	return p != nil && p.IsPaid && p.IsProcessed
}

// HeldJob is a dependency wait-list entry: a request blocked on an
// unresolved `i` tag of kind=job referencing another job's not-yet-produced
// result (spec.md §3, §4.6 chained-job note).
type HeldJob struct {
	Request   JobRequest
	EnqueuedAt time.Time
}

// Expired reports whether a HeldJob has outlived its 20 minute wait (spec.md §5).
func (h HeldJob) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(h.EnqueuedAt) >= ttl
}
