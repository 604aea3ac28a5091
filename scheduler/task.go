package scheduler

import (
	"sync/atomic"

	"github.com/go-foundations/taskscheduler/future"
)

// sizeClass is a logical allocation-size bucket for a taskRecord, used by
// allocateContinuation to decide whether a dependent continuation can
// reuse the task record that spawned it in place rather than allocate a
// fresh one (§4.3's "slot reuse"). Go has no placement-new, so what we
// control and can observe reuse over is the *taskRecord pointer itself,
// not the bytes behind any particular closure it captures — see
// DESIGN.md for the full rationale.
type sizeClass = uint32

const (
	// continuationSizeClass is the size class of the tiny closure every
	// auto-installed Future-continuation captures (just the dependency
	// future and the destination cell) — always small enough to fit in
	// any task record that wasn't itself declared undersized.
	continuationSizeClass sizeClass = 1
	// defaultSizeClass is what Add/AddVoid/AddFuture use unless the
	// caller asks for a specific size class via the Sized variants.
	defaultSizeClass sizeClass = 8
)

// dispatchFunc is the erased task body: a closure capturing the
// user-supplied function and result cell, invoked by Context.dispatch on
// whichever goroutine pops or steals the record.
type dispatchFunc func(rec *taskRecord, ctx *Context)

// taskRecord is the scheduler's internal unit of work: a barrier counter,
// a size class, and an erased dispatch closure. One taskRecord models the
// original task, and — after installContinuation or ExtendWith runs — may
// be repurposed in place to also model its continuation.
type taskRecord struct {
	owner        *Scheduler
	id           uint64
	barrierCount atomic.Uint32
	class        sizeClass
	run          dispatchFunc
}

func (s *Scheduler) newTaskRecord(class sizeClass) *taskRecord {
	return &taskRecord{
		owner: s,
		id:    s.nextTaskID.Add(1),
		class: class,
	}
}

// allocateContinuation decides whether a continuation needing
// requiredClass can reuse rec's own allocation or must live in a fresh
// taskRecord. Reuse is legal exactly when the original record's declared
// class is large enough for the continuation's needs — mirroring
// ScheduledTaskExecutionContext::AllocateContinuation's "same allocation
// if the stored size is big enough, otherwise placement-new a new block"
// branch.
func allocateContinuation(rec *taskRecord, requiredClass sizeClass) *taskRecord {
	if rec.class >= requiredClass {
		rec.barrierCount.Store(0)
		return rec
	}
	return rec.owner.newTaskRecord(requiredClass)
}

// wireDeps sets rec's barrier count to len(deps), registers a waiter on
// each not-yet-resolved dependency, and enqueues rec immediately if every
// dependency was already resolved or none were supplied — the same
// addedCount/readyCount accounting as the source library's Add.
func wireDeps(rec *taskRecord, deps []future.Waitable) {
	depCount := uint32(len(deps))
	rec.barrierCount.Store(depCount)

	if depCount == 0 {
		rec.owner.enqueue(rec)
		return
	}

	var addedCount uint32
	for _, d := range deps {
		r := rec
		if d.AddWaiter(func() { notifyDependencyReady(r) }) {
			addedCount++
		}
	}

	if addedCount == 0 {
		rec.owner.enqueue(rec)
		return
	}

	readyCount := depCount - addedCount
	if readyCount > 0 {
		if rec.barrierCount.Add(^uint32(readyCount-1)) == 0 {
			rec.owner.enqueue(rec)
		}
	}
}

// notifyDependencyReady decrements rec's barrier count by one and
// enqueues rec once it reaches zero — the per-dependency counterpart of
// wireDeps's bulk subtract, invoked from whichever goroutine's Dispatch
// happened to resolve the dependency future.
func notifyDependencyReady(rec *taskRecord) {
	if rec.barrierCount.Add(^uint32(0)) == 0 {
		rec.owner.enqueue(rec)
	}
}

// installFutureContinuation builds and wires the continuation for a
// Future-returning task: a task that runs `result.Get()` into data once
// result resolves, installed via allocateContinuation so it can reuse the
// originating record's slot when big enough.
func installFutureContinuation[T any](rec *taskRecord, data *future.Data[T], result future.Future[T]) {
	cont := allocateContinuation(rec, continuationSizeClass)
	cont.run = func(_ *taskRecord, _ *Context) {
		value := result.Get()
		data.Set(value)
		data.Release()
	}
	wireDeps(cont, []future.Waitable{result})
}

// Add schedules f to run with no declared dependencies beyond deps, and
// returns a future for its result (ResultClass=Generic, CallClass=Plain).
func Add[T any](s *Scheduler, f func() T, deps ...future.Waitable) future.Future[T] {
	return AddSized(s, defaultSizeClass, f, deps...)
}

// AddSized is Add with an explicit size-class hint, for callers (mainly
// tests exercising §8's slot-reuse property) that need to control whether
// a later Future-continuation can reuse this task's record.
func AddSized[T any](s *Scheduler, class sizeClass, f func() T, deps ...future.Waitable) future.Future[T] {
	data := future.NewData[T](2)
	rec := s.newTaskRecord(class)
	rec.run = func(_ *taskRecord, _ *Context) {
		value := f()
		data.Set(value)
		data.Release()
	}
	wireDeps(rec, deps)
	return future.New(data)
}

// AddVoid schedules f, which returns nothing, with no result beyond
// completion signalling (ResultClass=Void, CallClass=Plain).
func AddVoid(s *Scheduler, f func(), deps ...future.Waitable) future.Future[Void] {
	data := future.NewData[Void](2)
	rec := s.newTaskRecord(defaultSizeClass)
	rec.run = func(_ *taskRecord, _ *Context) {
		f()
		data.Set(Void{})
		data.Release()
	}
	wireDeps(rec, deps)
	return future.New(data)
}

// AddFuture schedules f, whose own body returns a Future[T] obtained from
// a nested task, and installs the "await f's result, then resolve mine"
// continuation automatically (ResultClass=Future, CallClass=Plain).
func AddFuture[T any](s *Scheduler, f func() future.Future[T], deps ...future.Waitable) future.Future[T] {
	return AddFutureSized(s, defaultSizeClass, f, deps...)
}

// AddFutureSized is AddFuture with an explicit size-class hint.
func AddFutureSized[T any](s *Scheduler, class sizeClass, f func() future.Future[T], deps ...future.Waitable) future.Future[T] {
	data := future.NewData[T](2)
	rec := s.newTaskRecord(class)
	rec.run = func(self *taskRecord, _ *Context) {
		result := f()
		installFutureContinuation(self, data, result)
	}
	wireDeps(rec, deps)
	return future.New(data)
}

// AddCtxVoid schedules f with access to its own ExecutionContext, letting
// it install a continuation via ExtendWith before returning
// (ResultClass=Void, CallClass=ExecutionContext).
func AddCtxVoid(s *Scheduler, f func(ec *ExecutionContext[Void]), deps ...future.Waitable) future.Future[Void] {
	data := future.NewData[Void](2)
	rec := s.newTaskRecord(defaultSizeClass)
	ec := &ExecutionContext[Void]{owner: s, rec: rec, data: data}
	rec.run = func(_ *taskRecord, _ *Context) {
		f(ec)
		if !ec.hasContinuation {
			data.Set(Void{})
			data.Release()
		}
	}
	wireDeps(rec, deps)
	return future.New(data)
}

// AddCtxFuture schedules f with access to its own ExecutionContext; if f
// doesn't call ExtendWith itself, the returned Future[T] is awaited and
// its result installed as the continuation automatically, exactly as
// AddFuture does for the CallClass=Plain case (ResultClass=Future,
// CallClass=ExecutionContext).
func AddCtxFuture[T any](s *Scheduler, f func(ec *ExecutionContext[T]) future.Future[T], deps ...future.Waitable) future.Future[T] {
	data := future.NewData[T](2)
	rec := s.newTaskRecord(defaultSizeClass)
	ec := &ExecutionContext[T]{owner: s, rec: rec, data: data}
	rec.run = func(self *taskRecord, _ *Context) {
		result := f(ec)
		if !ec.hasContinuation {
			installFutureContinuation(self, data, result)
		}
	}
	wireDeps(rec, deps)
	return future.New(data)
}
