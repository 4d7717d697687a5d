package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrdvm.backend/internal/domain/entities"
)

func newPendingJob(eventID string) *entities.PendingJob {
	return &entities.PendingJob{
		Request: entities.JobRequest{Event: entities.Event{ID: eventID}},
		Status:  entities.JobStatusNew,
	}
}

func TestUpsert_IsIdempotentOnEventID(t *testing.T) {
	l := New()
	job := newPendingJob("req1")

	l.Upsert(job)
	l.Upsert(job)

	assert.Len(t, l.Iter(), 1)
	found, ok := l.FindByEvent("req1")
	require.True(t, ok)
	assert.Equal(t, job, found)
}

func TestMarkPaidAndProcessed(t *testing.T) {
	l := New()
	job := newPendingJob("req1")
	l.Upsert(job)

	l.MarkPaid("req1")
	l.MarkProcessed("req1", []byte("result"))

	found, ok := l.FindByEvent("req1")
	require.True(t, ok)
	assert.True(t, found.IsPaid)
	assert.True(t, found.IsProcessed)
	assert.Equal(t, []byte("result"), found.Result)
	assert.True(t, found.Done())
}

func TestRemove(t *testing.T) {
	l := New()
	l.Upsert(newPendingJob("req1"))
	l.Remove("req1")

	_, ok := l.FindByEvent("req1")
	assert.False(t, ok)
}

func TestHoldAndUnholdJob(t *testing.T) {
	l := New()
	req := entities.JobRequest{Event: entities.Event{ID: "req2"}}
	now := time.Unix(1700000000, 0)

	l.HoldJob(req, now)
	assert.Len(t, l.IterHeld(), 1)

	held, ok := l.UnholdJob("req2")
	require.True(t, ok)
	assert.Equal(t, req.ID(), held.Request.ID())
	assert.Empty(t, l.IterHeld())
}

func TestHeldJob_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	held := entities.HeldJob{EnqueuedAt: now}

	assert.False(t, held.Expired(now.Add(19*time.Minute), 20*time.Minute))
	assert.True(t, held.Expired(now.Add(21*time.Minute), 20*time.Minute))
}
