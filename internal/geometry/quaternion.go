package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Quaternion in scalar-first (w,x,y,z) order, the SfM on-disk convention.
type Quaternion struct {
	W, X, Y, Z float64
}

// RotationToQuaternion extracts a unit quaternion from a 3x3 rotation matrix
// using the four-branch Shepperd method, selecting the branch with the
// largest diagonal contribution for numeric stability.
func RotationToQuaternion(r *mat.Dense) (Quaternion, error) {
	rows, cols := r.Dims()
	if rows != 3 || cols != 3 {
		return Quaternion{}, fmt.Errorf("rotation matrix is %dx%d, want 3x3", rows, cols)
	}

	m00, m01, m02 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	m10, m11, m12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	m20, m21, m22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	trace := m00 + m11 + m22

	var q Quaternion
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q.W = 0.25 * s
		q.X = (m21 - m12) / s
		q.Y = (m02 - m20) / s
		q.Z = (m10 - m01) / s
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q.W = (m21 - m12) / s
		q.X = 0.25 * s
		q.Y = (m01 + m10) / s
		q.Z = (m02 + m20) / s
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q.W = (m02 - m20) / s
		q.X = (m01 + m10) / s
		q.Y = 0.25 * s
		q.Z = (m12 + m21) / s
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q.W = (m10 - m01) / s
		q.X = (m02 + m20) / s
		q.Y = (m12 + m21) / s
		q.Z = 0.25 * s
	}

	return q.normalized(), nil
}

func (q Quaternion) normalized() Quaternion {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return Quaternion{W: 1}
	}
	return Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}
