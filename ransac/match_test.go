package ransac

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/robustpose/logging"
	"go.viam.com/robustpose/spatialmath"
	"go.viam.com/robustpose/testutils"
)

func TestCrossCorrespondences(t *testing.T) {
	pixels := []r2.Point{{X: 1}, {X: 2}}
	world := []r3.Vector{{Z: 1}, {Z: 2}, {Z: 3}}
	pairs := CrossCorrespondences(pixels, world)
	test.That(t, pairs, test.ShouldHaveLength, 6)
	test.That(t, pairs[0], test.ShouldResemble, spatialmath.Correspondence{World: world[0], Image: pixels[0]})
	test.That(t, pairs[2], test.ShouldResemble, spatialmath.Correspondence{World: world[2], Image: pixels[0]})
	test.That(t, pairs[3], test.ShouldResemble, spatialmath.Correspondence{World: world[0], Image: pixels[1]})
}

func TestFindCorrespondenceMatch(t *testing.T) {
	scene := testutils.NewScene(testutils.SceneConfig{NumInliers: 5, Seed: 6})
	world := make([]r3.Vector, len(scene.Correspondences))
	pixels := make([]r2.Point, len(scene.Correspondences))
	for i, c := range scene.Correspondences {
		world[i] = c.World
		pixels[i] = c.Image
	}
	rand.New(rand.NewSource(1)).Shuffle(len(pixels), func(i, j int) { pixels[i], pixels[j] = pixels[j], pixels[i] })

	for _, parallel := range []bool{false, true} {
		res, err := FindCorrespondenceMatch(context.Background(), pixels, world, MatchConfig{
			InlierConsensus:   5,
			DistanceThreshold: 1e-4,
			MaxTrials:         3000,
			Parallel:          parallel,
			NumThreads:        2,
		}, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Found, test.ShouldBeTrue)
		test.That(t, res.NumInliers, test.ShouldEqual, 5)
		test.That(t, res.Inliers, test.ShouldHaveLength, 5)
		for _, c := range res.Inliers {
			test.That(t, spatialmath.ReprojectionError(scene.Pose, c), test.ShouldBeLessThan, 1e-9)
		}
		test.That(t, res.Pose.AlmostEqual(scene.Pose, 1e-6), test.ShouldBeTrue)
	}

	_, err := FindCorrespondenceMatch(context.Background(), pixels[:1], world[:3], MatchConfig{
		InlierConsensus: 4, DistanceThreshold: 1e-4, MaxTrials: 10,
	}, nil)
	var insufficient *InsufficientPointsError
	test.That(t, errors.As(err, &insufficient), test.ShouldBeTrue)
	test.That(t, insufficient.Count, test.ShouldEqual, 3)
}
