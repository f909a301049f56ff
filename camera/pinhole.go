// Package camera converts between pixel coordinates and the normalized image plane used by the
// pose estimators.
package camera

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// Intrinsics holds the parameters of a distortion free pinhole camera.
type Intrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for Intrinsics have valid inputs.
func (params *Intrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToNormalized converts pixel (u, v) to normalized coordinates x = (u - ppx)/fx, y = (v - ppy)/fy.
func (params *Intrinsics) PixelToNormalized(u, v float64) r2.Point {
	return r2.Point{X: (u - params.Ppx) / params.Fx, Y: (v - params.Ppy) / params.Fy}
}

// NormalizedToPixel converts a normalized image point back to pixel coordinates. The result is
// not rounded.
func (params *Intrinsics) NormalizedToPixel(p r2.Point) (float64, float64) {
	return p.X*params.Fx + params.Ppx, p.Y*params.Fy + params.Ppy
}

// PixelsToNormalized converts parallel slices of pixel coordinates.
func (params *Intrinsics) PixelsToNormalized(us, vs []float64) ([]r2.Point, error) {
	if len(us) != len(vs) {
		return nil, errors.Errorf("us and vs must have the same number of elements, got %d and %d", len(us), len(vs))
	}
	out := make([]r2.Point, len(us))
	for i := range us {
		out[i] = params.PixelToNormalized(us[i], vs[i])
	}
	return out, nil
}

// NormalizedToPixels converts normalized image points into parallel slices of pixel coordinates.
func (params *Intrinsics) NormalizedToPixels(pts []r2.Point) ([]float64, []float64) {
	us := make([]float64, len(pts))
	vs := make([]float64, len(pts))
	for i, p := range pts {
		us[i], vs[i] = params.NormalizedToPixel(p)
	}
	return us, vs
}
