package pnp

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/robustpose/spatialmath"
)

const (
	// planarRatio is the ratio between the smallest and largest variance of the object points
	// below which the object is handled as coplanar.
	planarRatio = 1e-6
	// collinearRatio is the same ratio for the second variance, below which no pose exists.
	collinearRatio = 1e-10

	dementhonIterations = 50
	dementhonTolerance  = 1e-10
)

// objectFrame describes the object points relative to their centroid.
type objectFrame struct {
	centroid r3.Vector
	centered []r3.Vector
	// axes are the principal directions sorted by decreasing variance.
	axes     [3]r3.Vector
	variance [3]float64
}

func newObjectFrame(points []spatialmath.Correspondence) (*objectFrame, error) {
	f := &objectFrame{centered: make([]r3.Vector, len(points))}
	for _, p := range points {
		f.centroid = f.centroid.Add(p.World)
	}
	f.centroid = f.centroid.Mul(1 / float64(len(points)))

	scatter := mat.NewSymDense(3, nil)
	for i, p := range points {
		c := p.World.Sub(f.centroid)
		f.centered[i] = c
		v := [3]float64{c.X, c.Y, c.Z}
		for r := 0; r < 3; r++ {
			for col := r; col < 3; col++ {
				scatter.SetSym(r, col, scatter.At(r, col)+v[r]*v[col])
			}
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(scatter, true); !ok {
		return nil, errors.Wrap(ErrDegenerate, "eigen decomposition of object points failed")
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// EigenSym sorts ascending.
	for i := 0; i < 3; i++ {
		col := 2 - i
		f.variance[i] = values[col]
		f.axes[i] = r3.Vector{X: vecs.At(0, col), Y: vecs.At(1, col), Z: vecs.At(2, col)}
	}
	if f.variance[0] <= 0 || f.variance[1] < collinearRatio*f.variance[0] {
		return nil, errors.Wrap(ErrDegenerate, "object points are collinear")
	}
	return f, nil
}

func (f *objectFrame) planar() bool {
	return f.variance[2] < planarRatio*f.variance[0]
}

// initialPose returns a closed form approximation of the pose. With few points the Dementhon
// iteration can settle on the mirrored depth solution, so the p3p poses compete with it and the
// candidate with the lowest residual wins. Candidates putting a point behind the camera have a
// NaN residual and never win.
func initialPose(points []spatialmath.Correspondence) (*spatialmath.Transform, error) {
	frame, err := newObjectFrame(points)
	if err != nil {
		return nil, err
	}
	var candidates []*spatialmath.Transform
	var closedForm *spatialmath.Transform
	if frame.planar() {
		closedForm, err = planarPose(points, frame)
	} else {
		closedForm, err = dementhonPose(points, frame)
	}
	if err == nil {
		candidates = append(candidates, closedForm)
	}
	for _, tri := range triplets(points) {
		candidates = append(candidates, p3pPoses(points[tri[0]], points[tri[1]], points[tri[2]])...)
	}

	var best *spatialmath.Transform
	bestCost := math.Inf(1)
	for _, c := range candidates {
		if cost := Residual(c, points); cost < bestCost {
			best, bestCost = c, cost
		}
	}
	if best == nil {
		if err != nil {
			return nil, err
		}
		return nil, errors.Wrap(ErrDegenerate, "no initial pose puts every point in front of the camera")
	}
	return best, nil
}

// dementhonPose runs the POSIT iteration: the scaled orthographic projection of each point is
// corrected by its estimated depth until the corrections stop changing.
func dementhonPose(points []spatialmath.Correspondence, frame *objectFrame) (*spatialmath.Transform, error) {
	n := len(points)
	a := mat.NewDense(n, 4, nil)
	for i, c := range frame.centered {
		a.SetRow(i, []float64{c.X, c.Y, c.Z, 1})
	}
	pinv, err := pseudoInverse(a)
	if err != nil {
		return nil, err
	}

	eps := make([]float64, n)
	xp := mat.NewVecDense(n, nil)
	yp := mat.NewVecDense(n, nil)
	var i4, j4 mat.VecDense
	var r1, r2, r3v r3.Vector
	var tz float64
	for iter := 0; iter < dementhonIterations; iter++ {
		for i, p := range points {
			xp.SetVec(i, p.Image.X*(1+eps[i]))
			yp.SetVec(i, p.Image.Y*(1+eps[i]))
		}
		i4.MulVec(pinv, xp)
		j4.MulVec(pinv, yp)
		vi := r3.Vector{X: i4.AtVec(0), Y: i4.AtVec(1), Z: i4.AtVec(2)}
		vj := r3.Vector{X: j4.AtVec(0), Y: j4.AtVec(1), Z: j4.AtVec(2)}
		ni, nj := vi.Norm(), vj.Norm()
		if ni == 0 || nj == 0 {
			return nil, errors.Wrap(ErrDegenerate, "scaled orthographic projection vanished")
		}
		tz = 2 / (ni + nj)
		r1, r2 = vi.Mul(1/ni), vj.Mul(1/nj)
		r3v = r1.Cross(r2).Normalize()

		var change float64
		for i, c := range frame.centered {
			e := r3v.Dot(c) / tz
			change = math.Max(change, math.Abs(e-eps[i]))
			eps[i] = e
		}
		if change < dementhonTolerance {
			break
		}
	}

	rows := mat.NewDense(3, 3, []float64{
		r1.X, r1.Y, r1.Z,
		r2.X, r2.Y, r2.Z,
		r3v.X, r3v.Y, r3v.Z,
	})
	rot, err := nearestRotation(rows)
	if err != nil {
		return nil, err
	}
	t := r3.Vector{X: i4.AtVec(3) * tz, Y: j4.AtVec(3) * tz, Z: tz}
	return fromCentered(rot, t, frame.centroid), nil
}

// planarPose decomposes the homography between the object plane and the image plane.
func planarPose(points []spatialmath.Correspondence, frame *objectFrame) (*spatialmath.Transform, error) {
	e1, normal := frame.axes[0], frame.axes[2]
	e2 := normal.Cross(e1)

	n := len(points)
	a := mat.NewDense(2*n, 9, nil)
	for i, p := range points {
		u, v := e1.Dot(frame.centered[i]), e2.Dot(frame.centered[i])
		x, y := p.Image.X, p.Image.Y
		a.SetRow(2*i, []float64{u, v, 1, 0, 0, 0, -x * u, -x * v, -x})
		a.SetRow(2*i+1, []float64{0, 0, 0, u, v, 1, -y * u, -y * v, -y})
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errors.Wrap(ErrDegenerate, "failed to factorize homography system")
	}
	var v mat.Dense
	svd.VTo(&v)
	h := v.ColView(8)

	h1 := r3.Vector{X: h.AtVec(0), Y: h.AtVec(3), Z: h.AtVec(6)}
	h2 := r3.Vector{X: h.AtVec(1), Y: h.AtVec(4), Z: h.AtVec(7)}
	h3 := r3.Vector{X: h.AtVec(2), Y: h.AtVec(5), Z: h.AtVec(8)}
	scale := (h1.Norm() + h2.Norm()) / 2
	if scale == 0 {
		return nil, errors.Wrap(ErrDegenerate, "null homography")
	}
	// the plane origin is the centroid and must be in front of the camera
	if h3.Z < 0 {
		scale = -scale
	}
	c1, c2, t := h1.Mul(1/scale), h2.Mul(1/scale), h3.Mul(1/scale)
	c3 := c1.Cross(c2)
	planeRot, err := nearestRotation(mat.NewDense(3, 3, []float64{
		c1.X, c2.X, c3.X,
		c1.Y, c2.Y, c3.Y,
		c1.Z, c2.Z, c3.Z,
	}))
	if err != nil {
		return nil, err
	}
	basis := mat.NewDense(3, 3, []float64{
		e1.X, e1.Y, e1.Z,
		e2.X, e2.Y, e2.Z,
		normal.X, normal.Y, normal.Z,
	})
	var rot mat.Dense
	rot.Mul(planeRot, basis)
	return fromCentered(&rot, t, frame.centroid), nil
}

// fromCentered converts a pose expressed for centroid-relative points into a world pose.
func fromCentered(rot *mat.Dense, t, centroid r3.Vector) *spatialmath.Transform {
	rc := spatialmath.NewTransform(rot, r3.Vector{}).Apply(centroid)
	return spatialmath.NewTransform(rot, t.Sub(rc))
}

// nearestRotation projects m onto SO(3).
func nearestRotation(m *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.Wrap(ErrDegenerate, "failed to orthonormalize rotation")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	return &r, nil
}

// pseudoInverse returns the Moore-Penrose inverse of a full column rank matrix.
func pseudoInverse(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.Wrap(ErrDegenerate, "failed to factorize object points")
	}
	values := svd.Values(nil)
	const rcond = 1e-12
	if values[len(values)-1] <= rcond*values[0] {
		return nil, errors.Wrap(ErrDegenerate, "object points are rank deficient")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	for j, s := range values {
		col := v.ColView(j).(*mat.VecDense)
		col.ScaleVec(1/s, col)
	}
	var pinv mat.Dense
	pinv.Mul(&v, u.T())
	return &pinv, nil
}
