package rangefor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/taskscheduler/future"
	"github.com/go-foundations/taskscheduler/scheduler"
)

type RangeForTestSuite struct {
	suite.Suite
}

func TestRangeForTestSuite(t *testing.T) {
	suite.Run(t, new(RangeForTestSuite))
}

func (ts *RangeForTestSuite) TestIndexRangeSplitHalves() {
	r := NewIndexRange(0, 10, 1)
	ts.True(r.IsSplittable())
	left, right := r.Split()
	ts.Equal(0, left.Begin())
	ts.Equal(5, left.End())
	ts.Equal(5, right.Begin())
	ts.Equal(10, right.End())
}

func (ts *RangeForTestSuite) TestIndexRangeNotSplittableAtGrain() {
	r := NewIndexRange(0, 4, 4)
	ts.False(r.IsSplittable())
}

func (ts *RangeForTestSuite) TestSliceRangeSplitHalves() {
	items := []int{1, 2, 3, 4, 5, 6}
	r := NewSliceRange(items, 1)
	ts.True(r.IsSplittable())
	left, right := r.Split()
	ts.Equal([]int{1, 2, 3}, left.Items())
	ts.Equal([]int{4, 5, 6}, right.Items())
}

// drain repeatedly runs ctx until f resolves, bounded so a bug fails
// instead of hanging the suite.
func drain[T any](ctx *scheduler.Context, f future.Future[T]) {
	for i := 0; !f.IsSet() && i < 5_000_000; i++ {
		ctx.Run(scheduler.NullThrottler{})
	}
}

func (ts *RangeForTestSuite) TestParallelForSingleThreadedSumIsDeterministic() {
	for size := 0; size <= 23; size++ {
		for grain := 1; grain <= max(size, 1); grain++ {
			s := scheduler.New(scheduler.DefaultConfig())
			ctx := s.Enter()

			items := make([]int, size)
			for i := range items {
				items[i] = i + 1
			}

			var mu sync.Mutex
			sum := 0
			r := NewSliceRange(items, grain)
			done := ParallelFor(s, r, func(rng SliceRange[int]) {
				local := 0
				for _, v := range rng.Items() {
					local += v
				}
				mu.Lock()
				sum += local
				mu.Unlock()
			})
			drain(ctx, done)
			s.Leave()

			expected := size * (size + 1) / 2
			ts.Equal(expected, sum, "size=%d grain=%d", size, grain)
		}
	}
}

func (ts *RangeForTestSuite) TestParallelForAcrossWorkerPool() {
	s := scheduler.New(scheduler.DefaultConfig())
	pool := scheduler.NewWorkerPool(s, 4, nil)
	defer func() { ts.NoError(pool.Stop()) }()

	const size = 5000
	items := make([]int, size)
	for i := range items {
		items[i] = 1
	}

	var sum int64
	var mu sync.Mutex
	s.Enter()
	r := NewSliceRange(items, 16)
	done := ParallelFor(s, r, func(rng SliceRange[int]) {
		local := 0
		for range rng.Items() {
			local++
		}
		mu.Lock()
		sum += int64(local)
		mu.Unlock()
	})
	s.Leave()

	ts.Eventually(func() bool {
		return done.IsSet()
	}, 5*time.Second, time.Millisecond)
	ts.Equal(int64(size), sum)
}
