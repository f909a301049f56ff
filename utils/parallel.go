// Package utils contains the work partitioning and goroutine helpers shared by the estimators.
package utils

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ParallelFactor is the number of parallel workers used when none is configured: the number of
// CPUs usable by this process. Tests may lower it when too much parallelism slows them down.
var ParallelFactor = max(1, runtime.GOMAXPROCS(0))

// WorkRange is the half open range [From, To) of work items given to one group.
type WorkRange struct {
	From, To int
}

// Size is the number of work items in the range.
func (r WorkRange) Size() int {
	return r.To - r.From
}

// PartitionWork splits totalSize items into numGroups contiguous ranges of totalSize/numGroups
// items. The last group absorbs the remainder so the sizes always sum to totalSize.
func PartitionWork(totalSize, numGroups int) []WorkRange {
	if numGroups <= 0 {
		numGroups = 1
	}
	if totalSize < 0 {
		totalSize = 0
	}
	groupSize := totalSize / numGroups
	ranges := make([]WorkRange, numGroups)
	for groupNum := range ranges {
		from := groupSize * groupNum
		to := from + groupSize
		if groupNum == numGroups-1 {
			to = totalSize
		}
		ranges[groupNum] = WorkRange{From: from, To: to}
	}
	return ranges
}

type (
	// BeforeParallelGroupWorkFunc executes before any work starts with the resolved number of groups.
	BeforeParallelGroupWorkFunc func(numGroups int)
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// GroupWorkParallel partitions totalSize work items over numGroups goroutines with
// PartitionWork and blocks until every group is done. Members of a group run sequentially in
// the group's goroutine. A non-positive numGroups uses ParallelFactor. A panicking group stops
// there, skips its done func and is reported in the returned error, along with ctx.Err().
func GroupWorkParallel(
	ctx context.Context,
	totalSize, numGroups int,
	before BeforeParallelGroupWorkFunc,
	groupWork GroupWorkFunc,
) error {
	if numGroups <= 0 {
		numGroups = ParallelFactor
	}
	ranges := PartitionWork(totalSize, numGroups)
	if before != nil {
		before(numGroups)
	}

	var (
		wait   sync.WaitGroup
		mu     sync.Mutex
		errAll error
	)
	wait.Add(numGroups)
	for groupNum, r := range ranges {
		go func() {
			defer wait.Done()
			err := CapturePanic(func() {
				memberWork, groupWorkDone := groupWork(groupNum, r.Size(), r.From, r.To)
				if memberWork != nil {
					memberNum := 0
					for workNum := r.From; workNum < r.To; workNum++ {
						memberWork(memberNum, workNum)
						memberNum++
					}
				}
				if groupWorkDone != nil {
					groupWorkDone()
				}
			})
			if err != nil {
				mu.Lock()
				errAll = multierr.Append(errAll, errors.Wrapf(err, "group %d", groupNum))
				mu.Unlock()
			}
		}()
	}
	wait.Wait()
	return multierr.Combine(errAll, ctx.Err())
}

// CapturePanic runs f and turns a panic into an error, so that a panicking work function fails
// the same way whether it ran inline or in a goroutine.
func CapturePanic(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	f()
	return nil
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs every function in its own goroutine and waits for all of them. The first
// failure or panic cancels the context handed to the others. It returns the elapsed time and
// the combined errors; cancellations caused by an earlier failure are not repeated.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errAll error
	)
	fail := func(err error) {
		mu.Lock()
		if errAll == nil || !errors.Is(err, context.Canceled) {
			errAll = multierr.Append(errAll, err)
		}
		mu.Unlock()
		cancel()
	}

	wg.Add(len(fs))
	for _, f := range fs {
		go func() {
			defer wg.Done()
			var err error
			if panicErr := CapturePanic(func() { err = f(ctx) }); panicErr != nil {
				err = panicErr
			}
			if err != nil {
				fail(err)
			}
		}()
	}
	wg.Wait()
	return time.Since(start), errAll
}
