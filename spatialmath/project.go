package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Project maps a world point through cMo and onto the normalized image plane (z = 1).
// Points at or behind the camera center project to NaN so that any distance computed from
// them fails every threshold comparison.
func Project(cMo *Transform, p r3.Vector) r2.Point {
	c := cMo.Apply(p)
	if c.Z <= 0 {
		return r2.Point{X: math.NaN(), Y: math.NaN()}
	}
	return r2.Point{X: c.X / c.Z, Y: c.Y / c.Z}
}

// ReprojectionError is the Euclidean distance between the observed image point of c and the
// projection of its world point under cMo.
func ReprojectionError(cMo *Transform, c Correspondence) float64 {
	return Project(cMo, c.World).Sub(c.Image).Norm()
}
