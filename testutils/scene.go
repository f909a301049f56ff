package testutils

import (
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/robustpose/spatialmath"
)

// SceneConfig describes a synthetic pose estimation problem.
type SceneConfig struct {
	NumInliers  int
	NumOutliers int
	// Noise is the standard deviation of the Gaussian noise added to inlier image points, in
	// normalized image units.
	Noise float64
	// Planar puts every world point on the z = 0 plane.
	Planar bool
	Seed   int64
}

// Scene is a set of correspondences generated from a known camera pose.
type Scene struct {
	Pose            *spatialmath.Transform
	Correspondences []spatialmath.Correspondence
	// IsInlier tells, for each correspondence, whether it was generated from Pose.
	IsInlier []bool
}

// NewScene generates a scene: a camera about 3 units in front of a unit cube of world points,
// with outliers pairing random world points with random image points. Inliers and outliers are
// shuffled together.
func NewScene(cfg SceneConfig) *Scene {
	r := rand.New(rand.NewSource(cfg.Seed))
	pose := spatialmath.NewTransform(
		spatialmath.RotationFromAxisAngle(r3.Vector{X: 0.15, Y: -0.25, Z: 0.1}),
		r3.Vector{X: 0.1, Y: -0.05, Z: 3},
	)
	randomWorld := func() r3.Vector {
		p := r3.Vector{X: r.Float64() - 0.5, Y: r.Float64() - 0.5, Z: r.Float64() - 0.5}
		if cfg.Planar {
			p.Z = 0
		}
		return p
	}

	scene := &Scene{Pose: pose}
	for i := 0; i < cfg.NumInliers; i++ {
		w := randomWorld()
		img := spatialmath.Project(pose, w)
		img = img.Add(r2.Point{X: r.NormFloat64() * cfg.Noise, Y: r.NormFloat64() * cfg.Noise})
		scene.Correspondences = append(scene.Correspondences, spatialmath.Correspondence{World: w, Image: img})
		scene.IsInlier = append(scene.IsInlier, true)
	}
	for i := 0; i < cfg.NumOutliers; i++ {
		img := r2.Point{X: r.Float64()*0.6 - 0.3, Y: r.Float64()*0.6 - 0.3}
		scene.Correspondences = append(scene.Correspondences, spatialmath.Correspondence{World: randomWorld(), Image: img})
		scene.IsInlier = append(scene.IsInlier, false)
	}
	r.Shuffle(len(scene.Correspondences), func(i, j int) {
		scene.Correspondences[i], scene.Correspondences[j] = scene.Correspondences[j], scene.Correspondences[i]
		scene.IsInlier[i], scene.IsInlier[j] = scene.IsInlier[j], scene.IsInlier[i]
	})
	return scene
}

// TrueInliers returns the indices of the correspondences generated from the scene pose.
func (s *Scene) TrueInliers() []int {
	var out []int
	for i, in := range s.IsInlier {
		if in {
			out = append(out, i)
		}
	}
	return out
}

// CountTrueInliers returns how many of the given indices are true inliers.
func (s *Scene) CountTrueInliers(indices []int) int {
	count := 0
	for _, i := range indices {
		if i >= 0 && i < len(s.IsInlier) && s.IsInlier[i] {
			count++
		}
	}
	return count
}
