package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Converter transforms a trained artifact into interchange formats. The
// orchestrator supplies the input path, desired formats, and output
// directory, and receives a format->path map or a failure. Real conversion
// is an external tool; PlaceholderConverter covers deployments without it.
type Converter interface {
	Convert(ctx context.Context, inputPath string, formats []string, outputDir string) (map[string]string, error)
}

var formatExts = map[string]string{
	"ply":  ".ply",
	"obj":  ".obj",
	"gltf": ".gltf",
	"glb":  ".glb",
}

// PlaceholderConverter passes .ply inputs through unchanged and writes a
// stub file for every other requested format.
type PlaceholderConverter struct{}

func (PlaceholderConverter) Convert(ctx context.Context, inputPath string, formats []string, outputDir string) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := make(map[string]string, len(formats))

	for _, format := range formats {
		ext, ok := formatExts[format]
		if !ok {
			// colmap and other non-mesh tags are exported elsewhere
			continue
		}
		dest := filepath.Join(outputDir, base+ext)

		if format == "ply" && strings.EqualFold(filepath.Ext(inputPath), ".ply") {
			if err := copyFile(inputPath, dest); err != nil {
				return nil, fmt.Errorf("convert to %s: %w", format, err)
			}
		} else {
			stub := fmt.Sprintf("# %s export of %s\n", format, filepath.Base(inputPath))
			if err := os.WriteFile(dest, []byte(stub), 0o644); err != nil {
				return nil, fmt.Errorf("convert to %s: %w", format, err)
			}
		}
		out[format] = dest
	}
	return out, nil
}
