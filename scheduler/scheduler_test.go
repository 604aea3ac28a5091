package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/taskscheduler/future"
)

type SchedulerTestSuite struct {
	suite.Suite
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

// drain repeatedly calls Run on ctx until f resolves, bounding the loop so
// a scheduling bug fails the test instead of hanging the suite.
func drain[T any](ctx *Context, f future.Future[T]) {
	for i := 0; !f.IsSet() && i < 1_000_000; i++ {
		ctx.Run(NullThrottler{})
	}
}

func (ts *SchedulerTestSuite) TestAddGenericPlain() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	f := Add(s, func() int { return 42 })
	drain(ctx, f)
	ts.Equal(42, f.Get())
}

func (ts *SchedulerTestSuite) TestAddVoidPlain() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	var ran int32
	f := AddVoid(s, func() { atomic.StoreInt32(&ran, 1) })
	drain(ctx, f)
	ts.Equal(int32(1), atomic.LoadInt32(&ran))
}

func (ts *SchedulerTestSuite) TestAddFutureInstallsContinuation() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	outer := AddFuture(s, func() future.Future[int] {
		return Add(s, func() int { return 10 })
	})
	drain(ctx, outer)
	ts.Equal(10, outer.Get())
}

func (ts *SchedulerTestSuite) TestAddWithDependencies() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	dep := Add(s, func() int { return 5 })
	out := Add(s, func() int { return dep.Get() * 2 }, dep)
	drain(ctx, out)
	ts.Equal(10, out.Get())
}

func (ts *SchedulerTestSuite) TestAddWithAlreadyResolvedDependency() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	dep := Add(s, func() int { return 1 })
	drain(ctx, dep) // resolve before the next Add ever sees it

	out := Add(s, func() int { return dep.Get() + 41 }, dep)
	drain(ctx, out)
	ts.Equal(42, out.Get())
}

func (ts *SchedulerTestSuite) TestJoin2() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	a := Add(s, func() int { return 2 })
	b := Add(s, func() int { return 3 })
	sum := Join2(s, a, b, func(x, y int) int { return x + y })
	drain(ctx, sum)
	ts.Equal(5, sum.Get())
}

func (ts *SchedulerTestSuite) TestJoinN() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	var futures []future.Future[int]
	for i := 1; i <= 5; i++ {
		i := i
		futures = append(futures, Add(s, func() int { return i }))
	}
	total := JoinN(s, futures, func(vs []int) int {
		sum := 0
		for _, v := range vs {
			sum += v
		}
		return sum
	})
	drain(ctx, total)
	ts.Equal(15, total.Get())
}

func (ts *SchedulerTestSuite) TestTaskThen() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	t1 := NewTask(s, func() int { return 6 })
	t2 := Then(t1, func(v int) int { return v * 7 })
	drain(ctx, t2.Future)
	ts.Equal(42, t2.Get())
}

func (ts *SchedulerTestSuite) TestExecutionContextExtendWith() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	f := AddCtxFuture(s, func(ec *ExecutionContext[int]) future.Future[int] {
		return ec.ExtendWith(func() int { return 99 })
	})
	drain(ctx, f)
	ts.Equal(99, f.Get())
}

func (ts *SchedulerTestSuite) TestExecutionContextExtendWithTwicePanics() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	f := AddCtxFuture(s, func(ec *ExecutionContext[int]) future.Future[int] {
		var first future.Future[int]
		ts.Panics(func() {
			first = ec.ExtendWith(func() int { return 1 })
			ec.ExtendWith(func() int { return 2 })
		})
		return first
	})
	drain(ctx, f)
}

func (ts *SchedulerTestSuite) TestSlotReuseWhenOriginalClassIsLargeEnough() {
	s := New(DefaultConfig())
	rec := s.newTaskRecord(defaultSizeClass)
	cont := allocateContinuation(rec, continuationSizeClass)
	ts.Same(rec, cont)
}

func (ts *SchedulerTestSuite) TestFreshAllocationWhenOriginalClassTooSmall() {
	s := New(DefaultConfig())
	rec := s.newTaskRecord(0)
	cont := allocateContinuation(rec, continuationSizeClass)
	ts.NotSame(rec, cont)
}

func (ts *SchedulerTestSuite) TestAddFutureReusesRecordWhenSizedLargeEnough() {
	cfg := DefaultConfig()
	cfg.EnableRunLog = true
	s := New(cfg)
	ctx := s.Enter()
	defer s.Leave()

	f := AddFutureSized(s, 8, func() future.Future[int] {
		return Add(s, func() int { return 1 })
	})
	drain(ctx, f)
	ts.Equal(1, f.Get())

	// Dispatch order: original task, nested task, continuation. A reused
	// record keeps the original task's id.
	log := ctx.RunLog()
	ts.Len(log, 3)
	ts.Equal(log[0].TaskID, log[2].TaskID)
}

func (ts *SchedulerTestSuite) TestStealAcrossContextsUnderLoad() {
	s := New(DefaultConfig())
	pool := NewWorkerPool(s, 4, nil)
	defer func() { ts.NoError(pool.Stop()) }()

	const n = 2000
	var counter int64
	s.Enter()
	for i := 0; i < n; i++ {
		AddVoid(s, func() {
			atomic.AddInt64(&counter, 1)
		})
	}
	s.Leave()

	ts.Eventually(func() bool {
		return atomic.LoadInt64(&counter) == n
	}, 2*time.Second, time.Millisecond)
}

func (ts *SchedulerTestSuite) TestEnterTwiceOnSameGoroutinePanics() {
	s := New(DefaultConfig())
	s.Enter()
	defer s.Leave()
	ts.Panics(func() { s.Enter() })
}

func (ts *SchedulerTestSuite) TestLeaveWithoutEnterPanics() {
	s := New(DefaultConfig())
	ts.Panics(func() { s.Leave() })
}

func (ts *SchedulerTestSuite) TestWaitForWorkRespectsContextCancellation() {
	s := New(DefaultConfig())
	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.WaitForWork(cctx)
	ts.Error(err)
}

// parFib computes Fib(n) as two recursive sub-tasks joined by Join2,
// exercising AddFuture's in-task recursion and continuation installation.
func parFib(s *Scheduler, n int) future.Future[int] {
	if n < 2 {
		return Add(s, func() int { return n })
	}

	f0 := AddFuture(s, func() future.Future[int] { return parFib(s, n-1) })
	f1 := AddFuture(s, func() future.Future[int] { return parFib(s, n-2) })
	return Join2(s, f0, f1, func(a, b int) int { return a + b })
}

// fib is the serial reference parFib's result is checked against.
func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}

func (ts *SchedulerTestSuite) TestParFibSingleThreadedMatchesSerialFib() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	f := parFib(s, 5)
	drain(ctx, f)
	ts.Equal(5, f.Get())
	ts.Equal(fib(5), f.Get())
}

func (ts *SchedulerTestSuite) TestParFibSingleThreadedLargerInput() {
	s := New(DefaultConfig())
	ctx := s.Enter()
	defer s.Leave()

	f := parFib(s, 20)
	drain(ctx, f)
	ts.Equal(fib(20), f.Get())
}
