package camera

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestIntrinsicsCheckValid(t *testing.T) {
	var nilParams *Intrinsics
	test.That(t, errors.Is(nilParams.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)

	params := &Intrinsics{Width: 640, Height: 480, Fx: 600, Fy: 600, Ppx: 320, Ppy: 240}
	test.That(t, params.CheckValid(), test.ShouldBeNil)

	params.Fy = 0
	err := params.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Invalid focal length Fy")
}

func TestPixelConversion(t *testing.T) {
	params := &Intrinsics{Width: 640, Height: 480, Fx: 500, Fy: 400, Ppx: 320, Ppy: 240}
	p := params.PixelToNormalized(820, 40)
	test.That(t, p, test.ShouldResemble, r2.Point{X: 1, Y: -0.5})
	u, v := params.NormalizedToPixel(p)
	test.That(t, u, test.ShouldAlmostEqual, 820)
	test.That(t, v, test.ShouldAlmostEqual, 40)

	pts, err := params.PixelsToNormalized([]float64{320, 820}, []float64{240, 40})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldResemble, []r2.Point{{X: 0, Y: 0}, {X: 1, Y: -0.5}})
	us, vs := params.NormalizedToPixels(pts)
	test.That(t, us, test.ShouldResemble, []float64{320, 820})
	test.That(t, vs, test.ShouldResemble, []float64{240, 40})

	_, err = params.PixelsToNormalized([]float64{1, 2}, []float64{1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "same number of elements")
}
