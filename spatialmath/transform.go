package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// orthonormalTol is the tolerance used when checking that a rotation block is orthonormal.
const orthonormalTol = 1e-6

// Transform is a rigid transform stored as a 4x4 homogeneous matrix [R t; 0 0 0 1].
// For pose estimation it maps world coordinates into the camera frame.
type Transform struct {
	m *mat.Dense
}

// NewIdentityTransform returns the identity transform.
func NewIdentityTransform() *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return &Transform{m}
}

// NewTransform builds a transform from a 3x3 rotation matrix and a translation.
// The rotation is copied, not validated; use CheckValid for that.
func NewTransform(rot mat.Matrix, t r3.Vector) *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, rot.At(i, j))
		}
	}
	m.Set(0, 3, t.X)
	m.Set(1, 3, t.Y)
	m.Set(2, 3, t.Z)
	m.Set(3, 3, 1)
	return &Transform{m}
}

// NewTransformFromMatrix copies a 4x4 homogeneous matrix into a Transform, returning an error if
// it is not a valid rigid transform.
func NewTransformFromMatrix(m mat.Matrix) (*Transform, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return nil, errors.Errorf("homogeneous matrix must be 4x4, got %dx%d", r, c)
	}
	t := &Transform{mat.DenseCopyOf(m)}
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	return t, nil
}

// Matrix returns a copy of the 4x4 homogeneous matrix.
func (t *Transform) Matrix() *mat.Dense {
	return mat.DenseCopyOf(t.m)
}

// Rotation returns a copy of the 3x3 rotation block.
func (t *Transform) Rotation() *mat.Dense {
	return mat.DenseCopyOf(t.m.Slice(0, 3, 0, 3))
}

// Translation returns the translation column.
func (t *Transform) Translation() r3.Vector {
	return r3.Vector{X: t.m.At(0, 3), Y: t.m.At(1, 3), Z: t.m.At(2, 3)}
}

// Apply maps p through the transform.
func (t *Transform) Apply(p r3.Vector) r3.Vector {
	m := t.m
	return r3.Vector{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3),
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3),
	}
}

// Compose returns t * other, i.e. other is applied first.
func (t *Transform) Compose(other *Transform) *Transform {
	var m mat.Dense
	m.Mul(t.m, other.m)
	return &Transform{&m}
}

// Inverse returns the inverse rigid transform [R^T -R^T t].
func (t *Transform) Inverse() *Transform {
	var rt mat.Dense
	rt.CloneFrom(t.m.Slice(0, 3, 0, 3).T())
	tr := t.Translation()
	inv := NewTransform(&rt, r3.Vector{})
	minusT := inv.Apply(tr).Mul(-1)
	inv.m.Set(0, 3, minusT.X)
	inv.m.Set(1, 3, minusT.Y)
	inv.m.Set(2, 3, minusT.Z)
	return inv
}

// CheckValid returns an error if the matrix is not a finite rigid transform with an orthonormal,
// right-handed rotation block.
func (t *Transform) CheckValid() error {
	if t == nil || t.m == nil {
		return errors.New("transform is nil")
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if v := t.m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Errorf("transform has non-finite value at (%d,%d)", i, j)
			}
		}
	}
	if t.m.At(3, 0) != 0 || t.m.At(3, 1) != 0 || t.m.At(3, 2) != 0 || t.m.At(3, 3) != 1 {
		return errors.New("last row of a homogeneous transform must be [0 0 0 1]")
	}
	rot := t.m.Slice(0, 3, 0, 3)
	var rtr mat.Dense
	rtr.Mul(rot.T(), rot)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.
			if i == j {
				want = 1
			}
			if !scalar.EqualWithinAbs(rtr.At(i, j), want, orthonormalTol) {
				return errors.New("rotation block is not orthonormal")
			}
		}
	}
	if det := mat.Det(rot); !scalar.EqualWithinAbs(det, 1, orthonormalTol) {
		return errors.Errorf("rotation block has determinant %v, expected 1", det)
	}
	return nil
}

// AlmostEqual returns true if every entry of both matrices is within tol.
func (t *Transform) AlmostEqual(other *Transform, tol float64) bool {
	return mat.EqualApprox(t.m, other.m, tol)
}

// AxisAngle returns the rotation block as an R3 axis angle (unit axis scaled by the angle).
func (t *Transform) AxisAngle() r3.Vector {
	return AxisAngleFromRotation(t.m.Slice(0, 3, 0, 3))
}

// String prints the matrix rows.
func (t *Transform) String() string {
	return fmt.Sprintf("%v", mat.Formatted(t.m, mat.Squeeze()))
}
