package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// WorkerPool drives a fixed number of goroutines that each call Enter
// once and then loop on Context.Run until Stop is requested, backing off
// onto WaitForWork whenever Run reports Idle. Thread/goroutine creation is
// explicitly out of scope for the scheduler itself (§1's Non-goals list it
// as an external collaborator's job); WorkerPool is that external
// collaborator, the Go analogue of the source library's MetaScheduler,
// built with golang.org/x/sync/errgroup the way the retrieved corpus's
// errgroup_helpers.go runs and joins a fixed worker fan-out.
type WorkerPool struct {
	scheduler *Scheduler
	cancel    context.CancelFunc
	group     *errgroup.Group
	idleBackoff time.Duration
}

// NewWorkerPool starts numWorkers goroutines against s, each running t
// (NullThrottler{} if nil) until the returned pool is stopped. numWorkers
// <= 0 falls back to s's Config.NumWorkers.
func NewWorkerPool(s *Scheduler, numWorkers int, t Throttler) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = s.config.NumWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	p := &WorkerPool{scheduler: s, cancel: cancel, group: group, idleBackoff: 10 * time.Millisecond}

	for i := 0; i < numWorkers; i++ {
		group.Go(func() error {
			workerCtx := s.Enter()
			defer s.Leave()
			for {
				select {
				case <-gctx.Done():
					return nil
				default:
				}
				switch workerCtx.Run(t) {
				case Idle:
					waitCtx, waitCancel := context.WithTimeout(gctx, p.idleBackoff)
					_ = s.WaitForWork(waitCtx)
					waitCancel()
				case Polling:
					// fall through and retry immediately; the steal budget
					// already backed off once inside Run.
				case Working:
					// throttler asked us to yield; loop around and check
					// gctx before calling Run again.
				}
			}
		})
	}
	return p
}

// Stop signals every worker to exit after its current Run call returns
// and waits for them to do so.
func (p *WorkerPool) Stop() error {
	p.cancel()
	return p.group.Wait()
}
