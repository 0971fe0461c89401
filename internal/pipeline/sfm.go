package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"reconstruction-service/internal/toolrunner"
)

// The three structure-from-motion stages each wrap one invocation of the
// external SfM binary. Nonzero exits abort the job with captured stderr.

func (o *Orchestrator) featureExtraction(ctx context.Context, run *jobRun) error {
	run.databasePath = filepath.Join(run.dataDir, "database.db")

	_ = run.tracker.UpdateProgress(stageFeatureExtraction, 10, "extracting features")
	return o.runSfM(ctx, run, stageFeatureExtraction, []string{
		"feature_extractor",
		"--database_path", run.databasePath,
		"--image_path", run.imagesDir,
		"--ImageReader.single_camera", "1",
		"--SiftExtraction.use_gpu", gpuFlag(o.cfg.UseGPU),
	}, o.cfg.SfM.ExtractionTimeout)
}

func (o *Orchestrator) featureMatching(ctx context.Context, run *jobRun) error {
	_ = run.tracker.UpdateProgress(stageFeatureMatching, 10, "matching features")
	return o.runSfM(ctx, run, stageFeatureMatching, []string{
		"exhaustive_matcher",
		"--database_path", run.databasePath,
		"--SiftMatching.use_gpu", gpuFlag(o.cfg.UseGPU),
	}, o.cfg.SfM.MatchingTimeout)
}

// sparseReconstruction runs the mapper and requires at least one
// reconstruction directory in its output tree.
func (o *Orchestrator) sparseReconstruction(ctx context.Context, run *jobRun) error {
	sparseDir := filepath.Join(run.dataDir, "sparse")
	if err := os.MkdirAll(sparseDir, 0o755); err != nil {
		return fmt.Errorf("create sparse dir: %w", err)
	}

	_ = run.tracker.UpdateProgress(stageSparseReconstruction, 10, "mapping sparse model")
	if err := o.runSfM(ctx, run, stageSparseReconstruction, []string{
		"mapper",
		"--database_path", run.databasePath,
		"--image_path", run.imagesDir,
		"--output_path", sparseDir,
	}, o.cfg.SfM.MappingTimeout); err != nil {
		return err
	}

	models, err := reconstructionDirs(sparseDir)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return &EmptyReconstructionError{SparseDir: sparseDir}
	}

	sort.Strings(models)
	run.sparseModelDir = filepath.Join(sparseDir, models[0])
	_ = run.tracker.UpdateProgress(stageSparseReconstruction, 90,
		fmt.Sprintf("%d reconstruction(s) found", len(models)))
	return nil
}

func (o *Orchestrator) runSfM(ctx context.Context, run *jobRun, stage string, args []string, timeout time.Duration) error {
	res, err := o.runner.Run(ctx, toolrunner.Invocation{
		JobID:   run.jobID,
		Tool:    o.cfg.ColmapPath,
		Args:    args,
		Timeout: timeout,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &toolrunner.ToolExecutionError{
			Tool:     o.cfg.ColmapPath,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}
	return nil
}

func reconstructionDirs(sparseDir string) ([]string, error) {
	entries, err := os.ReadDir(sparseDir)
	if err != nil {
		return nil, fmt.Errorf("read sparse dir: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

func gpuFlag(useGPU bool) string {
	if useGPU {
		return "1"
	}
	return "0"
}
