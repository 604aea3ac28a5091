package scheduler

import "github.com/go-foundations/taskscheduler/future"

// ExecutionContext is handed to a CallClass=ExecutionContext task body so
// it can install its own continuation in place of the "await my return
// value" one the scheduler would otherwise install automatically — the
// in-task continuation facility from §4.3/§6.
type ExecutionContext[T any] struct {
	owner           *Scheduler
	rec             *taskRecord
	data            *future.Data[T]
	hasContinuation bool
}

// ExtendWith installs f as this task's continuation: it runs once deps
// resolve, and its return value resolves the Future this task's caller is
// holding. May be called at most once per task.
func (ec *ExecutionContext[T]) ExtendWith(f func() T, deps ...future.Waitable) future.Future[T] {
	assertAlways(!ec.hasContinuation, "ExtendWith called more than once on the same ExecutionContext")
	ec.hasContinuation = true

	cont := allocateContinuation(ec.rec, defaultSizeClass)
	cont.run = func(_ *taskRecord, _ *Context) {
		value := f()
		ec.data.Set(value)
		ec.data.Release()
	}
	wireDeps(cont, deps)
	return future.New(ec.data)
}

// ExtendWithFuture installs a continuation whose own body returns a
// further Future[T], the ExecutionContext analogue of AddFuture: the
// "await the nested future's result, then resolve mine" continuation is
// installed automatically once f returns.
func (ec *ExecutionContext[T]) ExtendWithFuture(f func() future.Future[T], deps ...future.Waitable) future.Future[T] {
	assertAlways(!ec.hasContinuation, "ExtendWithFuture called more than once on the same ExecutionContext")
	ec.hasContinuation = true

	cont := allocateContinuation(ec.rec, defaultSizeClass)
	cont.run = func(self *taskRecord, _ *Context) {
		result := f()
		installFutureContinuation(self, ec.data, result)
	}
	wireDeps(cont, deps)
	return future.New(ec.data)
}

// Scheduler returns the scheduler this task was added to, for bodies that
// want to spawn further tasks without capturing the scheduler separately.
func (ec *ExecutionContext[T]) Scheduler() *Scheduler { return ec.owner }
