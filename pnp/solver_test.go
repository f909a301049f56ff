package pnp

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/robustpose/spatialmath"
	"go.viam.com/robustpose/testutils"
)

func poseErrors(a, b *spatialmath.Transform) (float64, float64) {
	return spatialmath.RotationAngleBetween(a.Rotation(), b.Rotation()), a.Translation().Sub(b.Translation()).Norm()
}

func TestSolveExact(t *testing.T) {
	for _, tc := range []struct {
		name   string
		n      int
		planar bool
	}{
		{"minimal", 4, false},
		{"many", 30, false},
		{"planar minimal", 4, true},
		{"planar many", 30, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			scene := testutils.NewScene(testutils.SceneConfig{NumInliers: tc.n, Planar: tc.planar, Seed: 3})
			fit, err := NewSolver().Solve(scene.Correspondences, false)
			test.That(t, err, test.ShouldBeNil)
			rotErr, transErr := poseErrors(fit.Pose, scene.Pose)
			test.That(t, rotErr, test.ShouldBeLessThan, 1e-6)
			test.That(t, transErr, test.ShouldBeLessThan, 1e-6)
			test.That(t, fit.Residual, test.ShouldBeLessThan, 1e-16)
			test.That(t, fit.Covariance, test.ShouldBeNil)
		})
	}
}

func TestSolveNoisyWithCovariance(t *testing.T) {
	scene := testutils.NewScene(testutils.SceneConfig{NumInliers: 50, Noise: 1e-3, Seed: 7})
	fit, err := NewSolver().Solve(scene.Correspondences, true)
	test.That(t, err, test.ShouldBeNil)
	rotErr, transErr := poseErrors(fit.Pose, scene.Pose)
	test.That(t, rotErr, test.ShouldBeLessThan, 0.02)
	test.That(t, transErr, test.ShouldBeLessThan, 0.05)

	// the fit can only do better than the generating pose on its own data
	test.That(t, fit.Residual, test.ShouldBeLessThanOrEqualTo, Residual(scene.Pose, scene.Correspondences))

	test.That(t, fit.Covariance, test.ShouldNotBeNil)
	r, c := fit.Covariance.Dims()
	test.That(t, r, test.ShouldEqual, 6)
	test.That(t, c, test.ShouldEqual, 6)
	for i := 0; i < 6; i++ {
		test.That(t, fit.Covariance.At(i, i), test.ShouldBeGreaterThan, 0)
	}
}

func TestSolveFailures(t *testing.T) {
	scene := testutils.NewScene(testutils.SceneConfig{NumInliers: 4, Seed: 1})
	_, err := NewSolver().Solve(scene.Correspondences[:3], false)
	test.That(t, err, test.ShouldBeError, ErrNotEnoughPoints)

	collinear := make([]spatialmath.Correspondence, 5)
	for i := range collinear {
		w := r3.Vector{X: float64(i) * 0.1, Y: float64(i) * 0.2, Z: 0}
		collinear[i] = spatialmath.Correspondence{World: w, Image: spatialmath.Project(scene.Pose, w)}
	}
	_, err = NewSolver().Solve(collinear, false)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)
}

func TestResidual(t *testing.T) {
	scene := testutils.NewScene(testutils.SceneConfig{NumInliers: 10, Seed: 2})
	test.That(t, Residual(scene.Pose, scene.Correspondences), test.ShouldBeLessThan, 1e-20)

	shifted := scene.Correspondences[0]
	shifted.Image.X += 0.01
	test.That(t, Residual(scene.Pose, []spatialmath.Correspondence{shifted}), test.ShouldAlmostEqual, 1e-4, 1e-12)

	behind := spatialmath.Correspondence{World: r3.Vector{Z: -10}}
	test.That(t, math.IsNaN(Residual(scene.Pose, []spatialmath.Correspondence{behind})), test.ShouldBeTrue)
}

func TestSolveMinimalSweep(t *testing.T) {
	for _, tc := range []struct {
		name   string
		n      int
		planar bool
	}{
		{"4 points", 4, false},
		{"5 points", 5, false},
		{"4 coplanar points", 4, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for seed := int64(0); seed < 300; seed++ {
				scene := testutils.NewScene(testutils.SceneConfig{NumInliers: tc.n, Planar: tc.planar, Seed: seed})
				fit, err := NewSolver().Solve(scene.Correspondences, false)
				test.That(t, err, test.ShouldBeNil)
				rotErr, transErr := poseErrors(fit.Pose, scene.Pose)
				test.That(t, rotErr, test.ShouldBeLessThan, 1e-5)
				test.That(t, transErr, test.ShouldBeLessThan, 1e-5)
			}
		})
	}
}

func TestP3P(t *testing.T) {
	scene := testutils.NewScene(testutils.SceneConfig{NumInliers: 3, Seed: 9})
	poses := p3pPoses(scene.Correspondences[0], scene.Correspondences[1], scene.Correspondences[2])
	test.That(t, len(poses), test.ShouldBeBetweenOrEqual, 1, 4)
	matched := false
	for _, pose := range poses {
		test.That(t, pose.CheckValid(), test.ShouldBeNil)
		// every solution reprojects the three points
		test.That(t, Residual(pose, scene.Correspondences), test.ShouldBeLessThan, 1e-10)
		if pose.AlmostEqual(scene.Pose, 1e-6) {
			matched = true
		}
	}
	test.That(t, matched, test.ShouldBeTrue)

	// x^3 - 6x^2 + 11x - 6
	roots := poly{-6, 11, -6, 1}.realRoots()
	sort.Float64s(roots)
	test.That(t, roots, test.ShouldHaveLength, 3)
	for i, want := range []float64{1, 2, 3} {
		test.That(t, roots[i], test.ShouldAlmostEqual, want, 1e-9)
	}
	test.That(t, poly{1, 0, 1}.realRoots(), test.ShouldBeEmpty)
}
