package geometry

import "math/rand"

// Point is a world-space point with its source pixel's color.
type Point struct {
	X, Y, Z float64
	Color   Color
}

// PointCloud is an unordered set of colored points.
type PointCloud struct {
	Points []Point
}

func (pc *PointCloud) Len() int { return len(pc.Points) }

// Downsample returns a cloud with at most max points, chosen uniformly
// without replacement. Point/color pairing is preserved; relative order of
// the survivors follows the source cloud.
func (pc *PointCloud) Downsample(max int, rng *rand.Rand) *PointCloud {
	if max <= 0 || len(pc.Points) <= max {
		out := &PointCloud{Points: append([]Point(nil), pc.Points...)}
		return out
	}

	perm := rng.Perm(len(pc.Points))
	keep := make([]bool, len(pc.Points))
	for _, idx := range perm[:max] {
		keep[idx] = true
	}

	out := &PointCloud{Points: make([]Point, 0, max)}
	for i, p := range pc.Points {
		if keep[i] {
			out.Points = append(out.Points, p)
		}
	}
	return out
}
