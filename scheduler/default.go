package scheduler

import "sync/atomic"

// defaultScheduler is the process-wide nullable handle spec.md's design
// notes allow as an alternative to threading a *Scheduler through every
// call site; original_source/samples/fib/main.cpp uses exactly this
// pattern via its global gDefaultTaskScheduler.
var defaultScheduler atomic.Pointer[Scheduler]

// SetDefault assigns the process-wide default scheduler. Typically called
// once during start-up.
func SetDefault(s *Scheduler) {
	defaultScheduler.Store(s)
}

// Current returns the process-wide default scheduler, or nil if SetDefault
// has never been called.
func Current() *Scheduler {
	return defaultScheduler.Load()
}
