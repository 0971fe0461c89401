package geometry

import (
	"math"
	"math/rand"
)

// Synthetic sample data for the simulated training stage: a layered-sphere
// point distribution with position-derived colors, matching the placeholder
// output shape the export stage promises downstream viewers.

// SyntheticPointCloud generates n points over five concentric noisy shells.
func SyntheticPointCloud(n int, rng *rand.Rand) *PointCloud {
	cloud := &PointCloud{Points: make([]Point, 0, n)}

	for i := 0; i < n; i++ {
		layer := i % 5
		theta := rng.Float64() * 2 * math.Pi
		phi := rng.Float64() * math.Pi
		radius := 0.5 + float64(layer)*0.3 + (rng.Float64()*0.2 - 0.1)

		x := radius*math.Sin(phi)*math.Cos(theta) + (rng.Float64()*0.1 - 0.05)
		y := radius*math.Sin(phi)*math.Sin(theta) + (rng.Float64()*0.1 - 0.05)
		z := radius*math.Cos(phi) + (rng.Float64()*0.1 - 0.05)

		cloud.Points = append(cloud.Points, Point{
			X: x, Y: y, Z: z,
			Color: positionColor(x, y, z),
		})
	}
	return cloud
}

// SyntheticSparseModel builds a single pinhole camera, a straight-line track
// of image poses, and a shell-distributed point set in SfM record form.
func SyntheticSparseModel(numImages, numPoints int, rng *rand.Rand) ([]SparseCamera, []SparseImage, []SparsePoint) {
	cams := []SparseCamera{{
		ID:     1,
		Model:  CameraModelPinhole,
		Width:  1920,
		Height: 1080,
		Params: [4]float64{1500, 1500, 960, 540},
	}}

	images := make([]SparseImage, 0, numImages)
	for i := 0; i < numImages; i++ {
		images = append(images, SparseImage{
			ID:       uint32(i + 1),
			Rotation: Quaternion{W: 1},
			Trans:    [3]float64{float64(i) * 0.1, 0, 0},
			CameraID: 1,
			Name:     imageName(i),
		})
	}

	points := make([]SparsePoint, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		theta := rng.Float64() * 2 * math.Pi
		phi := rng.Float64() * math.Pi
		radius := 0.5 + rng.Float64()*1.5

		x := radius * math.Sin(phi) * math.Cos(theta)
		y := radius * math.Sin(phi) * math.Sin(theta)
		z := radius * math.Cos(phi)

		points = append(points, SparsePoint{
			ID:    uint64(i + 1),
			XYZ:   [3]float64{x, y, z},
			Color: positionColor(x, y, z),
			Error: 0.1,
		})
	}
	return cams, images, points
}

func imageName(i int) string {
	return "image_" + pad4(i) + ".jpg"
}

func pad4(i int) string {
	s := ""
	for _, div := range []int{1000, 100, 10, 1} {
		s += string(rune('0' + (i/div)%10))
	}
	return s
}

func positionColor(x, y, z float64) Color {
	return Color{
		R: clampByte(255 * (0.3 + 0.7*(x+2)/4)),
		G: clampByte(255 * (0.3 + 0.7*(y+2)/4)),
		B: clampByte(255 * (0.3 + 0.7*(z+2)/4)),
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
