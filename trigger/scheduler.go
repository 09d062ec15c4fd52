package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the poll-and-act cycle once immediately and then once per
// interval. Cycles never overlap: a tick that arrives while a cycle is still
// running is skipped.
type Scheduler struct {
	poller   *Poller
	executor *Executor
	interval time.Duration
	logger   *zap.SugaredLogger

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

func NewScheduler(poller *Poller, executor *Executor, interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		poller:   poller,
		executor: executor,
		interval: interval,
		logger:   logger,
	}
}

// RunCycle polls once and executes the command for the first candidate only.
// It returns nil when nothing matched.
func (s *Scheduler) RunCycle(ctx context.Context) *Execution {
	ids := s.poller.Poll(ctx)
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > 1 {
		s.logger.Infof("Scheduler: %d candidates, processing the first; the rest wait for a later check", len(ids))
	}

	messageID := ids[0]
	s.logger.Infof("Scheduler: processing message ID %s", messageID)
	run := s.executor.Execute(ctx, messageID)
	return &run
}

// Run blocks until ctx is done, then waits for an in-flight cycle to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infof("Scheduler: starting, check interval %v", s.interval)

	s.inFlight.Store(true)
	s.RunCycle(ctx)
	s.inFlight.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Scheduler: stopping, waiting for in-flight check")
			s.wg.Wait()
			s.logger.Infof("Scheduler: stopped")
			return
		case <-ticker.C:
			s.startCycle(ctx)
		}
	}
}

// startCycle launches a background cycle for a tick. It does nothing once ctx
// is done (select may pick a pending tick after cancellation) or while the
// previous cycle is still running.
func (s *Scheduler) startCycle(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warnf("Scheduler: previous check still running, skipping this interval")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.RunCycle(ctx)
	}()
	return true
}
