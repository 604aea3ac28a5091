// Package rangefor provides the Splittable range contract and the
// ParallelFor divide-and-conquer driver built on top of package scheduler,
// the Go counterpart of the source library's index_range.hpp/range.hpp
// and parallel_for.hpp.
package rangefor

import (
	"github.com/go-foundations/taskscheduler/future"
	"github.com/go-foundations/taskscheduler/scheduler"
)

// Range is the contract ParallelFor needs from whatever it divides and
// conquers: whether a further split is worthwhile, and how to produce the
// two halves. R is bound to itself so Split can return same-typed halves
// without an intermediate interface value, the same self-referencing
// generic constraint pattern used for Ordered-style comparisons elsewhere
// in Go generics code.
type Range[R any] interface {
	IsSplittable() bool
	Split() (R, R)
}

// IsRangeSplittable and SplitRange are free functions mirroring the
// original library's IsRangeSplittable/SplitRange helpers, kept separate
// from the interface methods so ParallelFor's call sites read the same
// whichever range implementation is plugged in.
func IsRangeSplittable[R Range[R]](r R) bool { return r.IsSplittable() }

func SplitRange[R Range[R]](r R) (R, R) { return r.Split() }

// IndexRange is a half-open [Begin, End) integer range that stops
// splitting once it's no larger than Grain, the direct analogue of
// index_range.hpp's IndexRange<T>.
type IndexRange struct {
	begin, end, grain int
}

// NewIndexRange builds a range over [begin, end) that ParallelFor will
// stop subdividing once a sub-range's length is <= grain. grain <= 0 is
// normalized to 1 (split down to single indices).
func NewIndexRange(begin, end, grain int) IndexRange {
	if grain <= 0 {
		grain = 1
	}
	return IndexRange{begin: begin, end: end, grain: grain}
}

func (r IndexRange) Begin() int { return r.begin }
func (r IndexRange) End() int   { return r.end }
func (r IndexRange) Len() int   { return r.end - r.begin }

func (r IndexRange) IsSplittable() bool {
	return r.end-r.begin > r.grain
}

func (r IndexRange) Split() (IndexRange, IndexRange) {
	mid := r.begin + (r.end-r.begin)/2
	return IndexRange{r.begin, mid, r.grain}, IndexRange{mid, r.end, r.grain}
}

// SliceRange is a generic Splittable view over a Go slice, supplementing
// IndexRange with the original library's IteratorRange/MyRange: the range
// contract isn't index-specific, it works over any contiguous sequence.
type SliceRange[T any] struct {
	items []T
	grain int
}

// NewSliceRange views items as a splittable range, stopping subdivision
// once a sub-slice's length is <= grain. grain <= 0 is normalized to 1.
func NewSliceRange[T any](items []T, grain int) SliceRange[T] {
	if grain <= 0 {
		grain = 1
	}
	return SliceRange[T]{items: items, grain: grain}
}

func (r SliceRange[T]) Items() []T { return r.items }
func (r SliceRange[T]) Len() int   { return len(r.items) }

func (r SliceRange[T]) IsSplittable() bool {
	return len(r.items) > r.grain
}

func (r SliceRange[T]) Split() (SliceRange[T], SliceRange[T]) {
	mid := len(r.items) / 2
	return SliceRange[T]{r.items[:mid], r.grain}, SliceRange[T]{r.items[mid:], r.grain}
}

// ParallelFor recursively splits r until each piece is no longer
// splittable, running body on each leaf: every right half is spawned as a
// task that recurses, while the leftmost leaf runs on the calling
// goroutine. Each level joins its spawned halves through one void
// task that depends on them — parallel_for.hpp
// translated from recursive task-spawning C++ into scheduler.AddFuture/
// scheduler.AddVoid calls.
func ParallelFor[R Range[R]](s *scheduler.Scheduler, r R, body func(R)) future.Future[scheduler.Void] {
	var children []future.Future[scheduler.Void]

	remainder := r
	for IsRangeSplittable(remainder) {
		left, right := SplitRange(remainder)
		child := scheduler.AddFuture(s, func() future.Future[scheduler.Void] {
			return ParallelFor(s, right, body)
		})
		children = append(children, child)
		remainder = left
	}

	body(remainder)

	deps := make([]future.Waitable, len(children))
	for i, c := range children {
		deps[i] = c
	}
	return scheduler.AddVoid(s, func() {}, deps...)
}
