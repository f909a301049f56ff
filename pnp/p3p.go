package pnp

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/robustpose/spatialmath"
)

// p3pPoses returns the poses, at most four, that project three world points exactly onto their
// image points. Following Grunert, with s1, s2 = u*s1 and s3 = v*s1 the distances from the
// camera center to the points, the law of cosines on the three sides gives two quadratics in u
// whose elimination leaves a quartic in v.
func p3pPoses(p1, p2, p3 spatialmath.Correspondence) []*spatialmath.Transform {
	j1, j2, j3 := bearing(p1.Image), bearing(p2.Image), bearing(p3.Image)
	a2 := p2.World.Sub(p3.World).Norm2()
	b2 := p1.World.Sub(p3.World).Norm2()
	c2 := p1.World.Sub(p2.World).Norm2()
	if a2 == 0 || b2 == 0 || c2 == 0 {
		return nil
	}
	cosA, cosB, cosG := j2.Dot(j3), j1.Dot(j3), j1.Dot(j2)

	// b^2 = s1^2 q(v)
	q := poly{1, -2 * cosB, 1}
	// u = n(v) / d(v), the difference of the two quadratics in u.
	n := q.scale((a2 - c2) / b2).add(poly{1, 0, -1})
	d := poly{2 * cosG, -2 * cosA}
	// u^2 - 2 cosG u + 1 - (c^2/b^2) q(v) = 0, times d(v)^2.
	quartic := n.mul(n).
		add(n.mul(d).scale(-2 * cosG)).
		add(poly{1}.add(q.scale(-c2 / b2)).mul(d).mul(d))

	world := [3]r3.Vector{p1.World, p2.World, p3.World}
	var poses []*spatialmath.Transform
	for _, v := range quartic.realRoots() {
		dv, qv := d.eval(v), q.eval(v)
		if v <= 0 || math.Abs(dv) < 1e-12 || qv <= 0 {
			continue
		}
		u := n.eval(v) / dv
		if u <= 0 {
			continue
		}
		s1 := math.Sqrt(b2 / qv)
		cam := [3]r3.Vector{j1.Mul(s1), j2.Mul(u * s1), j3.Mul(v * s1)}
		if pose, err := absoluteOrientation(world, cam); err == nil {
			poses = append(poses, pose)
		}
	}
	return poses
}

func bearing(p r2.Point) r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: 1}.Normalize()
}

// absoluteOrientation returns the rigid transform mapping world onto cam in the least squares
// sense (Kabsch).
func absoluteOrientation(world, cam [3]r3.Vector) (*spatialmath.Transform, error) {
	var cw, cc r3.Vector
	for i := range world {
		cw = cw.Add(world[i])
		cc = cc.Add(cam[i])
	}
	cw, cc = cw.Mul(1./3), cc.Mul(1./3)

	h := mat.NewDense(3, 3, nil)
	for i := range world {
		dc, dw := cam[i].Sub(cc), world[i].Sub(cw)
		h.Add(h, mat.NewDense(3, 3, []float64{
			dc.X * dw.X, dc.X * dw.Y, dc.X * dw.Z,
			dc.Y * dw.X, dc.Y * dw.Y, dc.Y * dw.Z,
			dc.Z * dw.X, dc.Z * dw.Y, dc.Z * dw.Z,
		}))
	}
	rot, err := nearestRotation(h)
	if err != nil {
		return nil, err
	}
	return fromCentered(rot, cc, cw), nil
}

// triplets returns the point triplets used for p3p initial poses: every one of them for small
// sets, otherwise a single well spread triplet.
func triplets(points []spatialmath.Correspondence) [][3]int {
	n := len(points)
	if n <= 5 {
		var out [][3]int
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				for k := j + 1; k < n; k++ {
					out = append(out, [3]int{i, j, k})
				}
			}
		}
		return out
	}

	far := 1
	for i := 2; i < n; i++ {
		if points[i].World.Sub(points[0].World).Norm2() > points[far].World.Sub(points[0].World).Norm2() {
			far = i
		}
	}
	edge := points[far].World.Sub(points[0].World)
	wide, wideArea := -1, 0.0
	for i := 1; i < n; i++ {
		if area := edge.Cross(points[i].World.Sub(points[0].World)).Norm2(); area > wideArea {
			wide, wideArea = i, area
		}
	}
	if wide < 0 {
		return nil
	}
	return [][3]int{{0, far, wide}}
}

// poly is a real polynomial, coefficient i multiplying x^i.
type poly []float64

func (p poly) eval(x float64) float64 {
	var y float64
	for i := len(p) - 1; i >= 0; i-- {
		y = y*x + p[i]
	}
	return y
}

func (p poly) add(o poly) poly {
	out := make(poly, max(len(p), len(o)))
	copy(out, p)
	for i, c := range o {
		out[i] += c
	}
	return out
}

func (p poly) scale(s float64) poly {
	out := make(poly, len(p))
	floats.ScaleTo(out, s, p)
	return out
}

func (p poly) mul(o poly) poly {
	out := make(poly, len(p)+len(o)-1)
	for i, a := range p {
		for j, b := range o {
			out[i+j] += a * b
		}
	}
	return out
}

func (p poly) derivative() poly {
	if len(p) < 2 {
		return poly{0}
	}
	out := make(poly, len(p)-1)
	for i := 1; i < len(p); i++ {
		out[i-1] = float64(i) * p[i]
	}
	return out
}

// realRoots returns the real eigenvalues of the companion matrix, polished by Newton steps.
// Negligible leading coefficients lower the degree.
func (p poly) realRoots() []float64 {
	deg := len(p) - 1
	largest := floats.Norm(p, math.Inf(1))
	for deg > 0 && math.Abs(p[deg]) <= 1e-12*largest {
		deg--
	}
	if deg < 1 {
		return nil
	}
	companion := mat.NewDense(deg, deg, nil)
	for i := 0; i < deg; i++ {
		companion.Set(0, i, -p[deg-1-i]/p[deg])
		if i > 0 {
			companion.Set(i, i-1, 1)
		}
	}
	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return nil
	}
	var roots []float64
	for _, z := range eig.Values(nil) {
		if math.Abs(imag(z)) > 1e-6*(1+math.Abs(real(z))) {
			continue
		}
		roots = append(roots, p.polish(real(z)))
	}
	return roots
}

func (p poly) polish(x float64) float64 {
	dp := p.derivative()
	for i := 0; i < 5; i++ {
		slope := dp.eval(x)
		if slope == 0 {
			break
		}
		next := x - p.eval(x)/slope
		if math.IsNaN(next) || math.Abs(p.eval(next)) >= math.Abs(p.eval(x)) {
			break
		}
		x = next
	}
	return x
}
