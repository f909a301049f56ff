// Package spatialmath defines the geometric primitives used for pose estimation: 2D-3D point
// correspondences, rigid homogeneous transforms and the pinhole projection between them.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Epsilon is the per-coordinate tolerance under which two points are considered coincident.
const Epsilon = 1e-6

// Correspondence pairs a point in the world frame with its observation on the normalized image
// plane (after pixel to meter conversion).
type Correspondence struct {
	World r3.Vector `json:"world"`
	Image r2.Point  `json:"image"`
}

// NewCorrespondence returns a correspondence between world point p and image point (x, y).
func NewCorrespondence(p r3.Vector, x, y float64) Correspondence {
	return Correspondence{World: p, Image: r2.Point{X: x, Y: y}}
}

// ObjectCoincides returns true if both world points are within Epsilon on every coordinate.
func (c Correspondence) ObjectCoincides(other Correspondence) bool {
	return math.Abs(c.World.X-other.World.X) < Epsilon &&
		math.Abs(c.World.Y-other.World.Y) < Epsilon &&
		math.Abs(c.World.Z-other.World.Z) < Epsilon
}

// ImageCoincides returns true if both image points are within Epsilon on every coordinate.
func (c Correspondence) ImageCoincides(other Correspondence) bool {
	return math.Abs(c.Image.X-other.Image.X) < Epsilon &&
		math.Abs(c.Image.Y-other.Image.Y) < Epsilon
}

// Coincides returns true if the correspondences share either their world point or their image point.
// Either kind of collision makes a minimal sample degenerate.
func (c Correspondence) Coincides(other Correspondence) bool {
	return c.ObjectCoincides(other) || c.ImageCoincides(other)
}

// CoincidesWithAny returns true if c coincides with any of the given correspondences.
func (c Correspondence) CoincidesWithAny(others []Correspondence) bool {
	for _, o := range others {
		if c.Coincides(o) {
			return true
		}
	}
	return false
}
