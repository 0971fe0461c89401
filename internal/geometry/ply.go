package geometry

import (
	"bufio"
	"fmt"
	"os"
)

// WritePLY writes the cloud as ASCII PLY with per-vertex RGB, the interchange
// format every downstream viewer accepts.
func WritePLY(path string, cloud *PointCloud) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ply: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ply\nformat ascii 1.0\nelement vertex %d\n", cloud.Len())
	fmt.Fprint(w, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprint(w, "property uchar red\nproperty uchar green\nproperty uchar blue\nend_header\n")

	for _, p := range cloud.Points {
		fmt.Fprintf(w, "%.6f %.6f %.6f %d %d %d\n", p.X, p.Y, p.Z, p.Color.R, p.Color.G, p.Color.B)
	}
	return w.Flush()
}
