package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Intrinsics is a pinhole camera model (3x3 K matrix reduced to its four
// meaningful entries).
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
}

// Color is an 8-bit RGB sample attached to a point.
type Color struct {
	R, G, B uint8
}

// CameraFrame couples a dense depth buffer with the camera that produced it.
// Intrinsics and extrinsics are copied on construction and immutable after.
type CameraFrame struct {
	width  int
	height int

	depth  []float64 // row-major, one value per pixel; <= 0 means no depth
	colors []Color   // optional, row-major, same dimensions as depth

	intr Intrinsics
	extr *mat.Dense // 4x4 camera-to-world rigid transform
}

// NewCameraFrame validates buffer dimensions and builds an immutable frame.
// colors may be nil when the source imagery carries no usable RGB.
func NewCameraFrame(width, height int, depth []float64, colors []Color, intr Intrinsics, extrinsic *mat.Dense) (*CameraFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	if len(depth) != width*height {
		return nil, fmt.Errorf("depth buffer has %d values, want %d", len(depth), width*height)
	}
	if colors != nil && len(colors) != width*height {
		return nil, fmt.Errorf("color buffer has %d values, want %d", len(colors), width*height)
	}
	if intr.Fx == 0 || intr.Fy == 0 {
		return nil, fmt.Errorf("intrinsics need nonzero focal lengths")
	}
	r, c := extrinsic.Dims()
	if r != 4 || c != 4 {
		return nil, fmt.Errorf("extrinsic matrix is %dx%d, want 4x4", r, c)
	}

	f := &CameraFrame{
		width:  width,
		height: height,
		depth:  append([]float64(nil), depth...),
		intr:   intr,
		extr:   mat.DenseCopyOf(extrinsic),
	}
	if colors != nil {
		f.colors = append([]Color(nil), colors...)
	}
	return f, nil
}

func (f *CameraFrame) Width() int  { return f.width }
func (f *CameraFrame) Height() int { return f.height }

func (f *CameraFrame) Intrinsics() Intrinsics { return f.intr }

// Extrinsic returns a copy of the camera-to-world transform.
func (f *CameraFrame) Extrinsic() *mat.Dense { return mat.DenseCopyOf(f.extr) }

// DepthAt returns the depth value at pixel (u,v).
func (f *CameraFrame) DepthAt(u, v int) float64 {
	return f.depth[v*f.width+u]
}
