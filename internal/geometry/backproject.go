package geometry

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// BackprojectDepth lifts every pixel with positive depth into world space:
// camera-space coordinates x=(u-cx)*z/fx, y=(v-cy)*z/fy, z=z, homogenised and
// transformed by the frame's camera-to-world extrinsic. The pixel's RGB rides
// along as the point color. When more than maxPoints pixels carry valid depth
// the cloud is uniformly subsampled to exactly maxPoints. A frame with no
// valid depth yields an empty cloud, not an error.
func BackprojectDepth(frame *CameraFrame, maxPoints int) *PointCloud {
	return backprojectDepth(frame, maxPoints, rand.New(rand.NewSource(rand.Int63())))
}

// BackprojectDepthSeeded is BackprojectDepth with a caller-supplied RNG, for
// reproducible subsampling.
func BackprojectDepthSeeded(frame *CameraFrame, maxPoints int, rng *rand.Rand) *PointCloud {
	return backprojectDepth(frame, maxPoints, rng)
}

func backprojectDepth(frame *CameraFrame, maxPoints int, rng *rand.Rand) *PointCloud {
	intr := frame.intr
	cloud := &PointCloud{}

	pixel := mat.NewVecDense(4, nil)
	world := mat.NewVecDense(4, nil)

	for v := 0; v < frame.height; v++ {
		for u := 0; u < frame.width; u++ {
			z := frame.depth[v*frame.width+u]
			if z <= 0 {
				continue
			}

			x := (float64(u) - intr.Cx) * z / intr.Fx
			y := (float64(v) - intr.Cy) * z / intr.Fy

			pixel.SetVec(0, x)
			pixel.SetVec(1, y)
			pixel.SetVec(2, z)
			pixel.SetVec(3, 1)
			world.MulVec(frame.extr, pixel)

			p := Point{
				X: world.AtVec(0),
				Y: world.AtVec(1),
				Z: world.AtVec(2),
			}
			if frame.colors != nil {
				p.Color = frame.colors[v*frame.width+u]
			}
			cloud.Points = append(cloud.Points, p)
		}
	}

	if maxPoints > 0 && cloud.Len() > maxPoints {
		return cloud.Downsample(maxPoints, rng)
	}
	return cloud
}
