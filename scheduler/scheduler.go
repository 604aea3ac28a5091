// Package scheduler implements a work-stealing task scheduler: a set of
// per-goroutine Contexts, each owning a deque.ChaseLevDeque of tasks,
// stealing from randomly chosen neighbors when their own queue runs dry.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/go-foundations/taskscheduler/deque"
	"github.com/go-foundations/taskscheduler/future"
)

// Void stands in for a Generic<void> result class: tasks and futures with
// no meaningful value use Future[Void].
type Void = struct{}

// State is the outcome of one call to Context.Run, mirroring the source
// library's Working/Polling/Idle enum.
type State int

const (
	// Working means the context yielded back to its caller because the
	// supplied Throttler asked it to, with local work still possibly
	// pending.
	Working State = iota
	// Polling means a steal attempt failed but the retry budget
	// (Config.MaxStealAttemptsBeforeIdle) is not yet exhausted.
	Polling
	// Idle means either no neighbor context is registered, or the retry
	// budget was exhausted (in which case the scheduler's idle count was
	// incremented); the caller should wait on WorkAvailable.
	Idle
)

func (s State) String() string {
	switch s {
	case Working:
		return "Working"
	case Polling:
		return "Polling"
	case Idle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// Throttler lets a worker loop interrupt Run between tasks, e.g. to check
// a shutdown flag or yield to a fairness scheduler above this package.
type Throttler interface {
	ShouldYield() bool
}

// NullThrottler never asks Run to yield; it drains local work and steals
// until idle, matching the source library's default throttle policy.
type NullThrottler struct{}

func (NullThrottler) ShouldYield() bool { return false }

// RunLogEntry records one dispatched task for Config.EnableRunLog.
type RunLogEntry struct {
	TaskID uint64
	At     time.Time
	Stolen bool
}

// contextList is the copy-on-write snapshot of live contexts a Context
// refreshes its neighbor slice from. Replacing the whole slice on every
// Enter/Leave keeps readers lock-free, the same trade the teacher's
// strategy layer makes for its own worker registries.
type contextList struct {
	version   uint64
	contexts  []*Context
}

// Scheduler owns the shared context, the idle/wake bookkeeping, and the
// versioned list of per-goroutine Contexts that have called Enter.
type Scheduler struct {
	config Config
	metrics MetricsRecorder

	contexts   atomic.Pointer[contextList]
	contextsMu sync.Mutex

	idleCount     atomic.Uint32
	workAvailable *semaphore.Weighted

	sharedContext *Context
	sharedMu      sync.Mutex

	currentCtx sync.Map // goroutine id (int64) -> *Context

	nextTaskID atomic.Uint64
}

// New creates a Scheduler. It does not start any worker goroutines: owning
// and running Contexts is the caller's responsibility (see the WorkerPool
// helper in this package for a ready-made harness), the
// same boundary the source library drew around its MetaScheduler.
func New(config Config) *Scheduler {
	config = config.normalized()
	s := &Scheduler{config: config}
	if config.EnableMetrics {
		s.metrics = NewPrometheusMetrics(config.MetricsRegisterer)
	} else {
		s.metrics = NoopMetrics{}
	}
	s.contexts.Store(&contextList{})
	s.workAvailable = semaphore.NewWeighted(config.WorkAvailableCapacity)
	// Start with no posts outstanding: WaitForWork must block until
	// wakeIdle releases a permit.
	s.workAvailable.TryAcquire(config.WorkAvailableCapacity)
	s.sharedContext = newContext(s, true)
	return s
}

// Enter registers the calling goroutine with the scheduler and returns its
// Context. A goroutine must call Enter exactly once before driving
// Context.Run or calling Add from within a task it dispatches, and must
// call Leave before exiting.
func (s *Scheduler) Enter() *Context {
	gid := goroutineID()
	_, exists := s.currentCtx.Load(gid)
	assertAlways(!exists, "Enter called twice on the same goroutine")

	ctx := newContext(s, false)
	s.currentCtx.Store(gid, ctx)

	s.contextsMu.Lock()
	old := s.contexts.Load()
	next := make([]*Context, len(old.contexts), len(old.contexts)+1)
	copy(next, old.contexts)
	next = append(next, ctx)
	s.contexts.Store(&contextList{version: old.version + 1, contexts: next})
	s.contextsMu.Unlock()

	return ctx
}

// Leave deregisters the calling goroutine's Context.
func (s *Scheduler) Leave() {
	gid := goroutineID()
	v, ok := s.currentCtx.Load(gid)
	assertAlways(ok, "Leave called without a matching Enter")
	ctx := v.(*Context)

	s.contextsMu.Lock()
	old := s.contexts.Load()
	next := make([]*Context, 0, len(old.contexts))
	for _, c := range old.contexts {
		if c != ctx {
			next = append(next, c)
		}
	}
	s.contexts.Store(&contextList{version: old.version + 1, contexts: next})
	s.contextsMu.Unlock()

	s.currentCtx.Delete(gid)
}

// GetContext returns the calling goroutine's Context. Panics if it has not
// called Enter.
func (s *Scheduler) GetContext() *Context {
	ctx, ok := s.currentContext()
	assertAlways(ok, "GetContext called from a goroutine that never called Enter")
	return ctx
}

func (s *Scheduler) currentContext() (*Context, bool) {
	v, ok := s.currentCtx.Load(goroutineID())
	if !ok {
		return nil, false
	}
	return v.(*Context), true
}

// HasWorkCondition exposes the scheduler's wake semaphore as a Waitable,
// for callers that want to compose it with other dependency-style waits.
func (s *Scheduler) HasWorkCondition() future.Waitable {
	return semaphoreWaitable{s.workAvailable}
}

// WaitForWork blocks the calling goroutine until work becomes available or
// ctx is cancelled. This is the external meta-scheduler's wait primitive;
// the scheduler itself never blocks a worker on its own.
func (s *Scheduler) WaitForWork(ctx context.Context) error {
	return s.workAvailable.Acquire(ctx, 1)
}

// enqueue places rec on the calling goroutine's current context if one
// belongs to this scheduler, or on the shared fallback context otherwise
// (synchronized, since more than one foreign goroutine may push to it
// concurrently — the source library flags this path as "a spinlock or
// mutex is required" in its design notes).
func (s *Scheduler) enqueue(rec *taskRecord) {
	target := s.sharedContext
	if ctx, ok := s.currentContext(); ok && ctx.owner == s {
		target = ctx
		target.tasks.Push(rec)
	} else {
		s.sharedMu.Lock()
		target.tasks.Push(rec)
		s.sharedMu.Unlock()
	}
	s.metrics.QueueDepth(target.id.String(), target.tasks.Len())
	s.wakeIdle()
}

func (s *Scheduler) wakeIdle() {
	for {
		n := s.idleCount.Load()
		if n == 0 {
			return
		}
		if s.idleCount.CompareAndSwap(n, n-1) {
			s.workAvailable.Release(1)
			return
		}
	}
}

// semaphoreWaitable adapts a *semaphore.Weighted to future.Waitable by
// blocking a dedicated goroutine on Acquire and invoking cb when it
// returns, for the rare caller that wants to treat "work is available" as
// just another dependency.
type semaphoreWaitable struct {
	sem *semaphore.Weighted
}

func (w semaphoreWaitable) AddWaiter(cb func()) bool {
	go func() {
		if err := w.sem.Acquire(context.Background(), 1); err == nil {
			cb()
		}
	}()
	return true
}

// Context is a single goroutine's view of the scheduler: its own deque,
// its cached neighbor snapshot, and its steal-attempt counter.
type Context struct {
	id     uuid.UUID
	owner  *Scheduler
	tasks  *deque.ChaseLevDeque[*taskRecord]
	shared bool

	contextsVersion            uint64
	neighbors                  []*Context
	maxStealAttemptsBeforeIdle uint32
	stealAttemptCount          uint32

	rng *rand.Rand

	runLogMu sync.Mutex
	runLog   []RunLogEntry
}

func newContext(owner *Scheduler, shared bool) *Context {
	return &Context{
		id:                         uuid.New(),
		owner:                      owner,
		tasks:                      deque.New[*taskRecord](owner.config.InitialDequeLogSize),
		shared:                     shared,
		maxStealAttemptsBeforeIdle: owner.config.MaxStealAttemptsBeforeIdle,
		rng:                        rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(uuid.New().ID()))),
	}
}

// ID returns the context's stable identifier, used to correlate run-log
// entries across goroutines.
func (c *Context) ID() uuid.UUID { return c.id }

// Run drains local work, stealing from a random neighbor whenever the
// local deque is empty, until the throttler asks to yield (Working), a
// steal attempt misses (Polling), or there is no neighbor or the steal
// budget is exhausted (Idle). It never blocks.
func (c *Context) Run(t Throttler) State {
	if t == nil {
		t = NullThrottler{}
	}

	for {
		if c.stealAttemptCount == 0 {
			for {
				if t.ShouldYield() {
					return Working
				}
				rec, ok := c.tasks.Pop()
				if !ok {
					break
				}
				c.dispatch(rec, false)
			}
		}

		c.refreshNeighbors()
		if len(c.neighbors) == 0 {
			return Idle
		}

		victim := c.neighbors[c.rng.Intn(len(c.neighbors))]
		if rec, ok := victim.tasks.Steal(); ok {
			c.stealAttemptCount = 0
			c.owner.metrics.StealSuccess()
			c.dispatch(rec, true)
			continue
		}

		c.owner.metrics.StealAttempt()
		c.stealAttemptCount++
		if c.stealAttemptCount > c.maxStealAttemptsBeforeIdle {
			c.owner.idleCount.Add(1)
			c.owner.metrics.IdleContext()
			return Idle
		}
		return Polling
	}
}

func (c *Context) refreshNeighbors() {
	list := c.owner.contexts.Load()
	if list.version == c.contextsVersion && c.neighbors != nil {
		return
	}
	neighbors := make([]*Context, 0, len(list.contexts))
	for _, other := range list.contexts {
		if other != c {
			neighbors = append(neighbors, other)
		}
	}
	c.neighbors = neighbors
	c.contextsVersion = list.version
}

func (c *Context) dispatch(rec *taskRecord, stolen bool) {
	c.owner.metrics.ActiveContext()
	rec.run(rec, c)
	c.owner.metrics.TaskDispatched()
	if c.owner.config.EnableRunLog {
		c.runLogMu.Lock()
		c.runLog = append(c.runLog, RunLogEntry{TaskID: rec.id, At: runLogTime(), Stolen: stolen})
		c.runLogMu.Unlock()
	}
}

// RunLog returns a snapshot of dispatched-task entries recorded since the
// context was created. Empty unless Config.EnableRunLog is set.
func (c *Context) RunLog() []RunLogEntry {
	c.runLogMu.Lock()
	defer c.runLogMu.Unlock()
	out := make([]RunLogEntry, len(c.runLog))
	copy(out, c.runLog)
	return out
}

// runLogTime is split out so tests can't accidentally depend on wall-clock
// ordering across goroutines; it exists purely for humans reading a log
// dump, never for scheduling decisions.
func runLogTime() time.Time { return time.Now() }
