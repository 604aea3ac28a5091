package scheduler

import "github.com/go-foundations/taskscheduler/future"

// Task is a convenience handle around a Future[T] that remembers which
// scheduler produced it, so callers can chain continuations with Then
// without re-threading the scheduler through every call, mirroring the
// original library's sketched Task<T>::Then.
type Task[T any] struct {
	future.Future[T]
	scheduler *Scheduler
}

// NewTask schedules f on s and wraps the result in a Task handle.
func NewTask[T any](s *Scheduler, f func() T, deps ...future.Waitable) Task[T] {
	return Task[T]{Future: Add(s, f, deps...), scheduler: s}
}

// Then schedules g to run once t resolves, feeding it t's value, and
// returns a new Task wrapping g's result. The continuation depends on
// exactly one future: t itself.
func Then[T, R any](t Task[T], g func(T) R) Task[R] {
	return Task[R]{
		Future:    Add(t.scheduler, func() R { return g(t.Get()) }, t.Future),
		scheduler: t.scheduler,
	}
}

// Join2 schedules combine to run once both a and b resolve, feeding it
// their values. This is the two-dependency join spec.md's Testable
// Properties call out and samples/fib/main.cpp uses under the name Join.
func Join2[A, B, R any](s *Scheduler, a future.Future[A], b future.Future[B], combine func(A, B) R) future.Future[R] {
	return Add(s, func() R {
		return combine(a.Get(), b.Get())
	}, a, b)
}

// JoinN generalizes Join2 to an arbitrary number of same-typed futures,
// feeding combine their values in slice order once all have resolved.
func JoinN[T, R any](s *Scheduler, futures []future.Future[T], combine func([]T) R) future.Future[R] {
	deps := make([]future.Waitable, len(futures))
	for i, f := range futures {
		deps[i] = f
	}
	return Add(s, func() R {
		values := make([]T, len(futures))
		for i, f := range futures {
			values[i] = f.Get()
		}
		return combine(values)
	}, deps...)
}
