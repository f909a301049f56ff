package ransac

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/robustpose/spatialmath"
	"go.viam.com/robustpose/testutils"
)

func TestFilterDegenerate(t *testing.T) {
	a := spatialmath.NewCorrespondence(r3.Vector{X: 1, Y: 0, Z: 0}, 0.1, 0.1)
	b := spatialmath.NewCorrespondence(r3.Vector{X: 0, Y: 0.5, Z: 0}, 0.2, 0.1)
	c := spatialmath.NewCorrespondence(r3.Vector{X: 0, Y: 0, Z: 2}, 0.3, 0.1)
	dupA := a
	sameWorldAsB := spatialmath.NewCorrespondence(b.World, 0.9, -0.9)
	sameImageAsC := spatialmath.NewCorrespondence(r3.Vector{X: -3, Y: 0, Z: 0}, c.Image.X, c.Image.Y)

	points := []spatialmath.Correspondence{c, a, dupA, b, sameWorldAsB, sameImageAsC}
	filtered, indexMap := FilterDegenerate(points)

	// ordered by squared norm of the world point, first occurrence kept
	test.That(t, filtered, test.ShouldResemble, []spatialmath.Correspondence{b, a, c})
	test.That(t, indexMap, test.ShouldResemble, []int{3, 1, 0})

	t.Run("image pass keeps the first in world order", func(t *testing.T) {
		far := spatialmath.NewCorrespondence(r3.Vector{X: 5}, 0.4, 0.4)
		near := spatialmath.NewCorrespondence(r3.Vector{X: 0.5}, 0.4, 0.4)
		filtered, indexMap := FilterDegenerate([]spatialmath.Correspondence{far, near})
		test.That(t, filtered, test.ShouldResemble, []spatialmath.Correspondence{near})
		test.That(t, indexMap, test.ShouldResemble, []int{1})
	})

	t.Run("empty", func(t *testing.T) {
		filtered, indexMap := FilterDegenerate(nil)
		test.That(t, filtered, test.ShouldBeEmpty)
		test.That(t, indexMap, test.ShouldBeEmpty)
	})
}

func TestFilterDegenerateIdempotent(t *testing.T) {
	scene := testutils.NewScene(testutils.SceneConfig{NumInliers: 30, NumOutliers: 10, Noise: 1e-4, Seed: 5})
	points := append(scene.Correspondences, scene.Correspondences[:7]...)

	filtered, indexMap := FilterDegenerate(points)
	test.That(t, len(filtered), test.ShouldEqual, 40)
	for i, idx := range indexMap {
		test.That(t, idx, test.ShouldBeLessThan, 40)
		test.That(t, filtered[i], test.ShouldResemble, points[idx])
	}

	again, againMap := FilterDegenerate(filtered)
	test.That(t, again, test.ShouldResemble, filtered)
	for i, idx := range againMap {
		test.That(t, idx, test.ShouldEqual, i)
	}
}
