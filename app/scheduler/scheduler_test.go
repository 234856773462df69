package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"regwatch/app/pipeline"
)

type mockRunner struct {
	runs     atomic.Int32
	overlaps atomic.Int32
	inFlight atomic.Bool
	duration time.Duration
}

func (m *mockRunner) Run(ctx context.Context) (*pipeline.CycleStats, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.overlaps.Add(1)
	}
	defer m.inFlight.Store(false)

	started := time.Now().UTC()
	if m.duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(m.duration):
		}
	}
	m.runs.Add(1)

	return &pipeline.CycleStats{StartedAt: started, FinishedAt: time.Now().UTC()}, nil
}

var _ CycleRunner = (*mockRunner)(nil)

func TestSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	runner := &mockRunner{}
	s := NewScheduler(runner, 20*time.Millisecond)

	s.Start()
	time.Sleep(70 * time.Millisecond)
	s.Stop()

	runs := runner.runs.Load()
	if runs < 2 {
		t.Errorf("expected at least 2 cycles within the window, got %d", runs)
	}
}

func TestSchedulerNeverOverlapsCycles(t *testing.T) {
	// Cycle duration exceeds the interval
	runner := &mockRunner{duration: 30 * time.Millisecond}
	s := NewScheduler(runner, 10*time.Millisecond)

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if overlaps := runner.overlaps.Load(); overlaps != 0 {
		t.Errorf("expected strictly serialized cycles, got %d overlaps", overlaps)
	}
	if runs := runner.runs.Load(); runs < 2 {
		t.Errorf("expected overrunning cycles to keep running back to back, got %d runs", runs)
	}
}

func TestSchedulerStopWaitsForInFlightCycle(t *testing.T) {
	runner := &mockRunner{duration: 20 * time.Millisecond}
	s := NewScheduler(runner, time.Hour)

	s.Start()
	time.Sleep(5 * time.Millisecond) // let the first cycle begin
	s.Stop()

	if runner.inFlight.Load() {
		t.Error("expected Stop to return only after the in-flight cycle finished")
	}
	if runner.runs.Load() < 1 {
		t.Error("expected the in-flight cycle to complete")
	}
}

func TestSchedulerRunningFlag(t *testing.T) {
	runner := &mockRunner{duration: 50 * time.Millisecond}
	s := NewScheduler(runner, time.Hour)

	if s.Running() {
		t.Error("expected no cycle in flight before Start")
	}

	s.Start()
	time.Sleep(10 * time.Millisecond)
	if !s.Running() {
		t.Error("expected a cycle in flight after Start")
	}

	s.Stop()
	if s.Running() {
		t.Error("expected no cycle in flight after Stop")
	}
}
