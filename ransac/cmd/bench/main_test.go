package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/robustpose/logging"
)

func TestRunBench(t *testing.T) {
	var out bytes.Buffer
	plotPath := filepath.Join(t.TempDir(), "errors.png")
	err := runBench(context.Background(), benchOptions{
		points:       20,
		outlierRatio: 0.25,
		noise:        5e-5,
		threshold:    2e-3,
		probability:  0.99,
		threads:      2,
		runs:         2,
		plotPath:     plotPath,
		focal:        600,
	}, logging.NewTestLogger(t), &out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "TRUE INLIERS")
	test.That(t, out.String(), test.ShouldContainSubstring, "sequential")
	test.That(t, out.String(), test.ShouldContainSubstring, "parallel")
	test.That(t, out.String(), test.ShouldContainSubstring, "inlier reprojection error (px)")
	test.That(t, out.String(), test.ShouldContainSubstring, "2 scenes of 20 points (5 outliers)")
	info, err := os.Stat(plotPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	err = runBench(context.Background(), benchOptions{runs: 0}, logging.NewTestLogger(t), &out)
	test.That(t, err, test.ShouldNotBeNil)

	err = runBench(context.Background(), benchOptions{points: 10, outlierRatio: 0.25, runs: 1},
		logging.NewTestLogger(t), &out)
	test.That(t, err, test.ShouldNotBeNil)

	err = runBench(context.Background(), benchOptions{points: 10, outlierRatio: 1, probability: 0.99, runs: 1, focal: 600},
		logging.NewTestLogger(t), &out)
	test.That(t, err, test.ShouldNotBeNil)
}
