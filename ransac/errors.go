package ransac

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrValidityRejected is the cause of a failed estimation when the validity check rejects the refined pose.
	ErrValidityRejected = errors.New("pose rejected by the validity check")
	// ErrSolverFailure is the cause of a failed estimation when the pose solver fails on the consensus set.
	ErrSolverFailure = errors.New("pose solver failed")
	// ErrDegenerateConfiguration is returned by TrialCount when no finite number of trials can reach
	// the requested probability.
	ErrDegenerateConfiguration = errors.New("degenerate trial count configuration")
)

// InsufficientPointsError is returned when fewer correspondences than a minimal sample are
// available to estimate a pose.
type InsufficientPointsError struct {
	Count int
	// Stage is where the count was taken: "input", "filtered" or "refinement".
	Stage string
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("not enough points to compute the pose: have %d %s points, need at least %d",
		e.Count, e.Stage, minSampleSize)
}

// NewInsufficientPointsError returns an error for count points available at stage.
func NewInsufficientPointsError(count int, stage string) error {
	return &InsufficientPointsError{Count: count, Stage: stage}
}

// RefinementFailedError is returned when the search found a consensus but the final fit over all
// of its points could not produce an acceptable pose.
type RefinementFailedError struct {
	NumInliers int
	Cause      error
}

func (e *RefinementFailedError) Error() string {
	return fmt.Sprintf("failed to refine pose over %d inliers: %v", e.NumInliers, e.Cause)
}

func (e *RefinementFailedError) Unwrap() error {
	return e.Cause
}
