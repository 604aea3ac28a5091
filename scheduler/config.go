package scheduler

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds tunables for a Scheduler, following the same
// normalize-on-construct convention as the teacher worker pool's
// Config/DefaultConfig/NewWithConfig trio.
type Config struct {
	// NumWorkers is the default goroutine count NewWorkerPool uses when
	// called with numWorkers <= 0. It has no effect on the Scheduler
	// itself, which never creates goroutines on its own.
	NumWorkers int

	// MaxStealAttemptsBeforeIdle bounds consecutive failed steal attempts
	// before a Context reports Idle. The source library used 20.
	MaxStealAttemptsBeforeIdle uint32

	// InitialDequeLogSize sizes each Context's deque at 1<<N slots.
	InitialDequeLogSize uint32

	// WorkAvailableCapacity bounds how many outstanding "work became
	// available" posts the scheduler's semaphore can hold; a Release
	// beyond that panics. It must be at least the number of contexts
	// that can go idle simultaneously.
	WorkAvailableCapacity int64

	// EnableMetrics turns on the Prometheus-backed MetricsRecorder. When
	// false, a no-op recorder is used and the scheduler carries no
	// Prometheus dependency at runtime.
	EnableMetrics bool

	// EnableRunLog keeps a per-Context log of dispatched tasks for
	// debugging, mirroring the source library's mRunLog.
	EnableRunLog bool

	// MetricsRegisterer receives the scheduler's metric family when
	// EnableMetrics is set. Defaults to a fresh, private prometheus.Registry
	// so multiple Schedulers in the same process (as in tests) never
	// collide on metric names by registering into prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
}

// DefaultConfig returns sensible defaults, normalizing the same way
// NewWithConfig does for the teacher's worker pool.
func DefaultConfig() Config {
	return Config{
		NumWorkers:                 runtime.NumCPU(),
		MaxStealAttemptsBeforeIdle: 20,
		InitialDequeLogSize:        6,
		WorkAvailableCapacity:      1024,
		EnableMetrics:              false,
		EnableRunLog:               false,
	}
}

func (c Config) normalized() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = runtime.NumCPU()
	}
	if c.MaxStealAttemptsBeforeIdle == 0 {
		c.MaxStealAttemptsBeforeIdle = 20
	}
	if c.InitialDequeLogSize == 0 {
		c.InitialDequeLogSize = 6
	}
	if c.WorkAvailableCapacity <= 0 {
		c.WorkAvailableCapacity = 1024
	}
	if c.EnableMetrics && c.MetricsRegisterer == nil {
		c.MetricsRegisterer = prometheus.NewRegistry()
	}
	return c
}
