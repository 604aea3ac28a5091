// Package future provides the reference-counted, single-assignment
// future cell used by the scheduler to propagate task results and by
// tasks to wait on each other's completion.
package future

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Waitable is anything that can register a single-shot completion
// callback and report whether it had already fired. Implementations must
// be safe to call AddWaiter on concurrently with the transition that
// fires existing callbacks.
type Waitable interface {
	// AddWaiter registers cb to run exactly once when the waitable
	// becomes signalled. It returns true if cb was queued for later
	// invocation, or false if the waitable was already signalled (the
	// caller is then responsible for invoking cb itself, or treating the
	// dependency as already satisfied).
	AddWaiter(cb func()) bool
}

// state values for Data[T].state.
const (
	stateUnset = iota
	stateSet
)

// Data is the reference-counted cell backing a Future[T]. It starts with
// a reference count of 2 when created by Add (one for the owning task,
// one for the handle returned to the caller) and is destroyed when the
// count reaches zero via Release. A Data[T] is used both for value
// results (T) and void results (T = struct{}).
type Data[T any] struct {
	mu      sync.Mutex
	state   int32
	value   T
	waiters []func()

	refCount atomic.Int32
}

// NewData creates a future cell in the unset state with the given
// initial reference count.
func NewData[T any](initialRefCount int32) *Data[T] {
	d := &Data[T]{}
	d.refCount.Store(initialRefCount)
	return d
}

// Set stores value in the cell and notifies any already-registered
// waiters. Must be called at most once.
func (d *Data[T]) Set(value T) {
	d.mu.Lock()
	if d.state == stateSet {
		d.mu.Unlock()
		panic(fmt.Errorf("future: Set called on an already-set cell"))
	}
	d.value = value
	d.state = stateSet
	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	for _, cb := range waiters {
		cb()
	}
}

// Get returns the stored value. Precondition: the cell must already be
// set; calling Get before Set is a precondition violation and panics,
// mirroring the source library's CRUNCH_ASSERT on an unset future.
func (d *Data[T]) Get() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateSet {
		panic(fmt.Errorf("future: Get called on an unset cell"))
	}
	return d.value
}

// IsSet reports whether the cell has been set without blocking.
func (d *Data[T]) IsSet() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == stateSet
}

// AddWaiter implements Waitable. Returns true if cb was queued, false if
// the cell was already set (cb is not invoked by AddWaiter in that case;
// the caller must handle the already-ready path itself, exactly as the
// scheduler's Add does when counting addedCount).
func (d *Data[T]) AddWaiter(cb func()) bool {
	d.mu.Lock()
	if d.state == stateSet {
		d.mu.Unlock()
		return false
	}
	d.waiters = append(d.waiters, cb)
	d.mu.Unlock()
	return true
}

// AddRef increments the reference count. Used when a handle is cloned.
func (d *Data[T]) AddRef() {
	d.refCount.Add(1)
}

// Release decrements the reference count. The cell carries no finalizer
// of its own in Go (the garbage collector reclaims it once unreferenced)
// but Release is kept as an explicit, observable operation so callers and
// tests can assert the same "exactly one logical owner drops it to zero"
// discipline the reference-counted C++ cell enforces; dropping to zero
// clears the stored value so it doesn't keep a large result alive via a
// stray reference to the Data[T].
func (d *Data[T]) Release() {
	if d.refCount.Add(-1) == 0 {
		d.mu.Lock()
		var zero T
		d.value = zero
		d.mu.Unlock()
	}
}

// RefCount returns the current reference count, for diagnostics/tests.
func (d *Data[T]) RefCount() int32 {
	return d.refCount.Load()
}

// Future is the external handle returned to callers of Add/ExtendWith. It
// holds a reference to the shared Data[T] cell; the cell's identity is
// preserved across any continuations installed on the originating task
// (§4.3), so external waiters registered on a Future before a
// continuation is installed stay valid after.
type Future[T any] struct {
	data *Data[T]
}

// New wraps an existing Data[T] cell in a Future handle without adding a
// reference: the caller must already account for this handle's share of
// the reference count (this mirrors Add's "no extra addref — the second
// reference count was pre-counted").
func New[T any](data *Data[T]) Future[T] {
	return Future[T]{data: data}
}

// Get returns the future's value, blocking is not implied here: callers
// that need to block until set should register via AddWaiter and an
// external synchronization primitive, or call Get only after waiting on
// the future as a dependency of another task. Calling Get before the
// value is set is a precondition violation.
func (f Future[T]) Get() T {
	return f.data.Get()
}

// IsSet reports whether the future's value is available yet.
func (f Future[T]) IsSet() bool {
	return f.data.IsSet()
}

// AddWaiter implements Waitable by delegating to the underlying cell.
func (f Future[T]) AddWaiter(cb func()) bool {
	return f.data.AddWaiter(cb)
}

// Data exposes the underlying cell. Used internally by the scheduler
// package to build continuations that share the same cell identity; not
// needed by ordinary callers.
func (f Future[T]) Data() *Data[T] {
	return f.data
}

// Release drops this handle's share of the cell's reference count.
func (f Future[T]) Release() {
	f.data.Release()
}
