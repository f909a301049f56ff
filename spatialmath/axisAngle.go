package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation can be expressed by an axis on the unit sphere (rx, ry, rz) and a rotation theta
// around it. These four numbers can be used as-is (R4), or converted to R3, where theta is
// multiplied by each of the unit sphere components.

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates a zero rotation around the z axis.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// ToR3 converts an R4 angle axis to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// Normalize scales the x, y, and z components of a R4 axis angle to be on the unit sphere.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0.0 { // prevent division by 0
		panic("cannot normalize R4AA, divide by zero")
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// RotationMatrix returns the 3x3 rotation matrix using Rodrigues' formula.
func (r4 *R4AA) RotationMatrix() *mat.Dense {
	r4.Normalize()
	c, s := math.Cos(r4.Theta), math.Sin(r4.Theta)
	v := 1 - c
	x, y, z := r4.RX, r4.RY, r4.RZ
	return mat.NewDense(3, 3, []float64{
		c + x*x*v, x*y*v - z*s, x*z*v + y*s,
		y*x*v + z*s, c + y*y*v, y*z*v - x*s,
		z*x*v - y*s, z*y*v + x*s, c + z*z*v,
	})
}

// R3ToR4 converts an R3 angle axis to R4.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}

// RotationFromAxisAngle returns the rotation matrix exp([w]x) for an R3 axis angle w.
func RotationFromAxisAngle(w r3.Vector) *mat.Dense {
	return R3ToR4(w).RotationMatrix()
}

// AxisAngleFromRotation returns the R3 axis angle of a rotation matrix (the inverse of
// RotationFromAxisAngle for angles in [0, pi]).
func AxisAngleFromRotation(rot mat.Matrix) r3.Vector {
	cosTheta := (rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2) - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)
	skew := r3.Vector{
		X: rot.At(2, 1) - rot.At(1, 2),
		Y: rot.At(0, 2) - rot.At(2, 0),
		Z: rot.At(1, 0) - rot.At(0, 1),
	}
	if theta < 1e-9 {
		return skew.Mul(0.5)
	}
	if math.Pi-theta < 1e-6 {
		// sin(theta) vanishes; recover the axis from the symmetric part.
		x := math.Sqrt(math.Max(0, (rot.At(0, 0)+1)/2))
		y := math.Sqrt(math.Max(0, (rot.At(1, 1)+1)/2))
		z := math.Sqrt(math.Max(0, (rot.At(2, 2)+1)/2))
		if rot.At(0, 1) < 0 {
			y = -y
		}
		if rot.At(0, 2) < 0 {
			z = -z
		}
		if x == 0 && rot.At(1, 2) < 0 {
			z = -z
		}
		return r3.Vector{X: x, Y: y, Z: z}.Normalize().Mul(theta)
	}
	return skew.Mul(theta / (2 * math.Sin(theta)))
}

// RotationAngleBetween returns the angle in radians of the rotation taking a to b.
func RotationAngleBetween(a, b mat.Matrix) float64 {
	var rel mat.Dense
	rel.Mul(a.T(), b)
	return AxisAngleFromRotation(&rel).Norm()
}
