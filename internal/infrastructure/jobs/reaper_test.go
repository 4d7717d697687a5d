package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nostrdvm.backend/internal/orchestrator"
)

func TestReaper_StopsByContext(t *testing.T) {
	orch := orchestrator.New(orchestrator.Config{OwnPubKey: "dvm"})
	reaper := &Reaper{orch: orch, interval: time.Millisecond, stop: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("reaper did not stop on context cancel")
	}
}

func TestReaper_StopsByStopChannel(t *testing.T) {
	orch := orchestrator.New(orchestrator.Config{OwnPubKey: "dvm"})
	reaper := &Reaper{orch: orch, interval: time.Millisecond, stop: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		reaper.Start(context.Background())
		close(done)
	}()
	reaper.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("reaper did not stop on Stop()")
	}
}

func TestReaper_TickRunsAllThreePolls(t *testing.T) {
	orch := orchestrator.New(orchestrator.Config{OwnPubKey: "dvm"})
	reaper := NewReaper(orch)

	require.NotPanics(t, func() {
		reaper.tick(context.Background())
	})
}
