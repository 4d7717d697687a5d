// Package ledger implements C2: the orchestrator's in-memory registry of
// pending/processing jobs and the dependency hold-list (spec.md §4.2).
// The orchestrator is the sole mutator; no locking is required by the
// single-threaded event loop it's meant to run under (spec.md §5), but a
// mutex guards against the reaper tick and the network handler running on
// separate goroutines in this implementation.
package ledger

import (
	"sync"
	"time"

	"nostrdvm.backend/internal/domain/entities"
)

// JobLedger is the single source of truth for "does this request already
// have a slot?" (spec.md §4.2). Upsert is idempotent on request event id.
type JobLedger struct {
	mu      sync.Mutex
	jobs    map[string]*entities.PendingJob
	held    map[string]*entities.HeldJob
}

// New builds an empty ledger.
func New() *JobLedger {
	return &JobLedger{
		jobs: make(map[string]*entities.PendingJob),
		held: make(map[string]*entities.HeldJob),
	}
}

// FindByEvent returns the PendingJob for a request event id, if any.
func (l *JobLedger) FindByEvent(eventID string) (*entities.PendingJob, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[eventID]
	return job, ok
}

// Upsert inserts or replaces the PendingJob keyed by its request event id.
func (l *JobLedger) Upsert(job *entities.PendingJob) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs[job.Request.ID()] = job
}

// MarkPaid flips is_paid for the job at eventID, if present.
func (l *JobLedger) MarkPaid(eventID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if job, ok := l.jobs[eventID]; ok {
		job.IsPaid = true
	}
}

// MarkProcessed flips is_processed and stores the result, if present.
func (l *JobLedger) MarkProcessed(eventID string, result []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if job, ok := l.jobs[eventID]; ok {
		job.IsProcessed = true
		job.Result = result
	}
}

// Remove deletes the PendingJob for eventID.
func (l *JobLedger) Remove(eventID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, eventID)
}

// Iter returns a snapshot of all PendingJobs. Safe to range over without
// holding the ledger's lock.
func (l *JobLedger) Iter() []*entities.PendingJob {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*entities.PendingJob, 0, len(l.jobs))
	for _, job := range l.jobs {
		out = append(out, job)
	}
	return out
}

// HoldJob places a request on the dependency wait-list (spec.md §3 HeldJob).
func (l *JobLedger) HoldJob(req entities.JobRequest, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[req.ID()] = &entities.HeldJob{Request: req, EnqueuedAt: now}
}

// UnholdJob removes a request from the hold-list, returning it if present.
func (l *JobLedger) UnholdJob(eventID string) (*entities.HeldJob, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.held[eventID]
	if ok {
		delete(l.held, eventID)
	}
	return held, ok
}

// IterHeld returns a snapshot of all HeldJobs.
func (l *JobLedger) IterHeld() []*entities.HeldJob {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*entities.HeldJob, 0, len(l.held))
	for _, h := range l.held {
		out = append(out, h)
	}
	return out
}

// RemoveHeld deletes a HeldJob by its request event id.
func (l *JobLedger) RemoveHeld(eventID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, eventID)
}
