package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"regwatch/app/pipeline"
)

type CycleRunner interface {
	Run(ctx context.Context) (*pipeline.CycleStats, error)
}

var _ SchedulerInterface = (*Scheduler)(nil)

type SchedulerInterface interface {
	Start()
	Stop()
	Running() bool
}

// Scheduler drives the cycle runner on a fixed interval, measured from cycle
// start to cycle start. A cycle that overruns the interval pushes the next
// start back instead of overlapping it: cycles are strictly serialized.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	inFlight atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewScheduler(runner CycleRunner, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:   runner,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			started := time.Now()
			s.runCycle()

			// Drift-corrected wait: the elapsed cycle time counts against
			// the interval
			wait := s.interval - time.Since(started)
			if wait < 0 {
				slog.Warn("Cycle overran the interval, starting next cycle immediately",
					"interval", s.interval, "overrun", -wait)
				wait = 0
			}

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}

// Stop cancels the schedule and waits for an in-flight cycle to finish, so a
// cycle that already dispatched notifications reaches its commit step.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Running reports whether a cycle is currently in flight.
func (s *Scheduler) Running() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) runCycle() {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)

	stats, err := s.runner.Run(s.ctx)
	if err != nil {
		slog.Error("Cycle failed", "error", err)
		return
	}

	slog.Info("Cycle completed",
		"duration", stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond),
		"sources", stats.SourcesTotal,
		"sources_failed", stats.SourcesFailed,
		"found", stats.EntriesFound,
		"novel", stats.EntriesNovel,
		"relevant", stats.Relevant,
		"sent", stats.Sent,
		"failed", stats.Failed)
}
