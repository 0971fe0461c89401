package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/toolrunner"
)

var videoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".webm": true, ".m4v": true, ".flv": true, ".wmv": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tiff": true, ".tif": true, ".webp": true,
}

// ClassifyInput reports the file kind implied by a filename's extension.
func ClassifyInput(name string) (entity.FileKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case videoExts[ext]:
		return entity.FileVideo, true
	case imageExts[ext]:
		return entity.FileImage, true
	default:
		return "", false
	}
}

// prepareData flattens the job's heterogeneous inputs into a single image
// directory: videos are sampled into frames via ffmpeg, images copied as-is.
func (o *Orchestrator) prepareData(ctx context.Context, run *jobRun) error {
	imagesDir := filepath.Join(run.dataDir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	run.imagesDir = imagesDir

	processed := 0
	for i, f := range run.files {
		kind, ok := ClassifyInput(f.Path)
		if !ok {
			return &UnsupportedInputError{File: f.Name, Ext: filepath.Ext(f.Name)}
		}

		switch kind {
		case entity.FileVideo:
			n, err := o.extractFrames(ctx, run, f, imagesDir)
			if err != nil {
				return err
			}
			processed += n
		case entity.FileImage:
			dest := filepath.Join(imagesDir, f.ID+"_"+filepath.Base(f.Path))
			if err := copyFile(f.Path, dest); err != nil {
				return fmt.Errorf("copy image %s: %w", f.Name, err)
			}
			processed++
		}

		pct := (i + 1) * 100 / len(run.files)
		_ = run.tracker.UpdateProgress(stageDataPreparation, pct,
			fmt.Sprintf("prepared %d/%d inputs", i+1, len(run.files)))
	}

	if processed == 0 {
		return &InputError{Reason: "no usable images in input set"}
	}

	info := map[string]any{
		"images_dir":   imagesDir,
		"num_images":   processed,
		"source_files": run.files,
		"created_at":   time.Now().Format(time.RFC3339),
	}
	if err := writeJSON(filepath.Join(run.dataDir, "dataset_info.json"), info); err != nil {
		return err
	}

	log.Printf("[pipeline] job_id=%s stage=%s images=%d", run.jobID, stageDataPreparation, processed)
	return nil
}

// extractFrames samples a video into JPEG frames at the configured fixed
// rate, staging them in a per-stage temp dir before moving into imagesDir.
func (o *Orchestrator) extractFrames(ctx context.Context, run *jobRun, f entity.InputFile, imagesDir string) (int, error) {
	tmpDir, cleanup, err := run.tempDir("frames_" + f.ID)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	pattern := filepath.Join(tmpDir, f.ID+"_frame_%06d.jpg")
	res, err := o.runner.Run(ctx, toolrunner.Invocation{
		JobID: run.jobID,
		Tool:  o.cfg.FFmpegPath,
		Args: []string{
			"-i", f.Path,
			"-vf", fmt.Sprintf("fps=%d", o.cfg.Prepare.FrameRate),
			"-qscale:v", "2",
			pattern,
		},
		Timeout: o.cfg.Prepare.FFmpegTimeout,
	})
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, &toolrunner.ToolExecutionError{
			Tool:     o.cfg.FFmpegPath,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}

	frames, err := filepath.Glob(filepath.Join(tmpDir, "*.jpg"))
	if err != nil {
		return 0, err
	}
	for _, frame := range frames {
		dest := filepath.Join(imagesDir, filepath.Base(frame))
		if err := copyFile(frame, dest); err != nil {
			return 0, fmt.Errorf("stage frame %s: %w", filepath.Base(frame), err)
		}
	}
	return len(frames), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
