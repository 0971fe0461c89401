package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/pipeline"
	"reconstruction-service/internal/toolrunner"
	"reconstruction-service/internal/tracker"
)

// fakeRunner simulates the external binaries: it records every invocation and
// fabricates the side effects the pipeline expects on disk.
type fakeRunner struct {
	invocations []toolrunner.Invocation

	exitCode   int    // forced exit code for matching subcommands
	exitOn     string // subcommand to force the exit code on, "" for all
	stderr     string
	skipMapper bool // mapper succeeds but writes no reconstruction dirs
	runErr     error

	afterRun func(sub string) // called after each simulated invocation
}

func (r *fakeRunner) Run(ctx context.Context, inv toolrunner.Invocation) (toolrunner.Result, error) {
	r.invocations = append(r.invocations, inv)
	if r.runErr != nil {
		return toolrunner.Result{}, r.runErr
	}

	sub := ""
	if len(inv.Args) > 0 {
		sub = inv.Args[0]
	}
	if r.exitCode != 0 && (r.exitOn == "" || r.exitOn == sub) {
		return toolrunner.Result{ExitCode: r.exitCode, Stderr: r.stderr}, nil
	}

	switch sub {
	case "mapper":
		if !r.skipMapper {
			outputPath := argValue(inv.Args, "--output_path")
			if err := os.MkdirAll(filepath.Join(outputPath, "0"), 0o755); err != nil {
				return toolrunner.Result{}, err
			}
		}
	case "-i": // ffmpeg frame extraction; last arg is the output pattern
		pattern := inv.Args[len(inv.Args)-1]
		dir := filepath.Dir(pattern)
		for _, name := range []string{"frame_000001.jpg", "frame_000002.jpg"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("jpeg"), 0o644); err != nil {
				return toolrunner.Result{}, err
			}
		}
	}
	if r.afterRun != nil {
		r.afterRun(sub)
	}
	return toolrunner.Result{ExitCode: 0}, nil
}

func argValue(args []string, flag string) string {
	for i := range args {
		if args[i] == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func testConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Prepare.FFmpegTimeout = 5 * time.Second
	cfg.SfM.ExtractionTimeout = 5 * time.Second
	cfg.SfM.MatchingTimeout = 5 * time.Second
	cfg.SfM.MappingTimeout = 5 * time.Second
	cfg.Train.Iterations = 100
	cfg.Train.SyntheticPoints = 50
	cfg.Train.TickDelay = 0
	return cfg
}

func newJobTracker(t *testing.T, method entity.Method, files []entity.InputFile) *tracker.Tracker {
	t.Helper()
	tr := tracker.New(&entity.Job{
		ID:        uuid.New(),
		Method:    method,
		Status:    entity.StatusPending,
		Files:     files,
		OutputDir: t.TempDir(),
		CreatedAt: time.Now(),
	})
	require.NoError(t, tr.Start())
	return tr
}

func imageInput(t *testing.T, name string) entity.InputFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("image bytes"), 0o644))
	return entity.InputFile{ID: uuid.NewString()[:8], Name: name, Path: path, Kind: entity.FileImage}
}

func stepByName(t *testing.T, job *entity.Job, name string) entity.Step {
	t.Helper()
	for _, s := range job.Steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %s not found", name)
	return entity.Step{}
}

func TestRun_PointSplatEndToEnd(t *testing.T) {
	runner := &fakeRunner{}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())
	tr := newJobTracker(t, entity.MethodPointSplat, []entity.InputFile{
		imageInput(t, "a.jpg"),
		imageInput(t, "b.png"),
	})

	result, err := orch.Run(context.Background(), tr)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 50, result.NumPoints)
	assert.Equal(t, 45.2, result.ModelSizeMB)
	require.NotNil(t, result.PSNR)
	assert.Equal(t, 32.8, *result.PSNR)
	require.NotNil(t, result.SSIM)
	assert.Equal(t, 0.92, *result.SSIM)
	assert.Equal(t, []string{"ply", "obj", "gltf", "colmap"}, result.ExportFormats)

	// artifacts on disk
	for _, path := range []string{
		result.ThumbnailPath,
		result.MetadataPath,
		result.PointCloudPath,
		filepath.Join(result.ModelPath, "sparse", "0", "cameras.bin"),
		filepath.Join(result.ModelPath, "sparse", "0", "images.bin"),
		filepath.Join(result.ModelPath, "sparse", "0", "points3D.bin"),
	} {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, path)
	}

	snap := tr.Snapshot()
	require.Len(t, snap.Steps, 6)
	for _, s := range snap.Steps {
		assert.Equal(t, entity.StepCompleted, s.Status, s.Name)
		assert.Equal(t, 100, s.Progress, s.Name)
	}
	assert.Equal(t, 100, tr.OverallProgress())

	// one invocation per SfM stage, none for image-only inputs
	require.Len(t, runner.invocations, 3)
	assert.Equal(t, "feature_extractor", runner.invocations[0].Args[0])
	assert.Equal(t, "exhaustive_matcher", runner.invocations[1].Args[0])
	assert.Equal(t, "mapper", runner.invocations[2].Args[0])
}

func TestRun_RadianceFieldEndToEnd(t *testing.T) {
	runner := &fakeRunner{}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())
	tr := newJobTracker(t, entity.MethodRadianceField, []entity.InputFile{imageInput(t, "a.jpg")})

	result, err := orch.Run(context.Background(), tr)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "radiance_model.zip", filepath.Base(result.ModelPath))
	assert.Equal(t, 50000, result.NumPoints)
	assert.Equal(t, 15.5, result.ModelSizeMB)
	require.NotNil(t, result.PSNR)
	assert.Equal(t, 28.5, *result.PSNR)
	assert.Equal(t, []string{"ply", "obj"}, result.ExportFormats)
}

func TestRun_VideoInputExtractsFrames(t *testing.T) {
	runner := &fakeRunner{}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())

	videoPath := filepath.Join(t.TempDir(), "scene.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("video bytes"), 0o644))
	tr := newJobTracker(t, entity.MethodPointSplat, []entity.InputFile{
		{ID: "vid1", Name: "scene.mp4", Path: videoPath, Kind: entity.FileVideo},
	})

	_, err := orch.Run(context.Background(), tr)
	require.NoError(t, err)

	// ffmpeg first, then the three SfM invocations
	require.Len(t, runner.invocations, 4)
	assert.Equal(t, "-i", runner.invocations[0].Args[0])
	assert.Contains(t, runner.invocations[0].Args, "fps=2")

	// extracted frames landed in the shared images dir
	snap := tr.Snapshot()
	frames, err := filepath.Glob(filepath.Join(snap.OutputDir, "data", "images", "*.jpg"))
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestRun_UnsupportedInputFailsFirstStage(t *testing.T) {
	runner := &fakeRunner{}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())
	tr := newJobTracker(t, entity.MethodPointSplat, []entity.InputFile{
		{ID: "f1", Name: "notes.txt", Path: "/tmp/notes.txt"},
	})

	_, err := orch.Run(context.Background(), tr)
	var unsupported *pipeline.UnsupportedInputError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "notes.txt", unsupported.File)

	snap := tr.Snapshot()
	prep := stepByName(t, snap, "data_preparation")
	assert.Equal(t, entity.StepFailed, prep.Status)
	require.NotNil(t, prep.Error)

	// nothing past the failed stage ran
	assert.Equal(t, entity.StepPending, stepByName(t, snap, "feature_extraction").Status)
	assert.Empty(t, runner.invocations)
}

func TestRun_EmptyReconstruction(t *testing.T) {
	runner := &fakeRunner{skipMapper: true}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())
	tr := newJobTracker(t, entity.MethodPointSplat, []entity.InputFile{imageInput(t, "a.jpg")})

	_, err := orch.Run(context.Background(), tr)
	var empty *pipeline.EmptyReconstructionError
	require.ErrorAs(t, err, &empty)

	snap := tr.Snapshot()
	assert.Equal(t, entity.StepFailed, stepByName(t, snap, "sparse_reconstruction").Status)
	assert.Equal(t, entity.StepPending, stepByName(t, snap, "model_training").Status)
	assert.Equal(t, entity.StepPending, stepByName(t, snap, "export").Status)
}

func TestRun_ToolFailureCapturesStderr(t *testing.T) {
	runner := &fakeRunner{exitCode: 1, exitOn: "feature_extractor", stderr: "no images found"}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())
	tr := newJobTracker(t, entity.MethodPointSplat, []entity.InputFile{imageInput(t, "a.jpg")})

	_, err := orch.Run(context.Background(), tr)
	var execErr *toolrunner.ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.ExitCode)
	assert.Equal(t, "no images found", execErr.Stderr)

	snap := tr.Snapshot()
	step := stepByName(t, snap, "feature_extraction")
	assert.Equal(t, entity.StepFailed, step.Status)
	require.NotNil(t, step.Error)
	assert.Contains(t, *step.Error, "no images found")
}

func TestRun_CancelMidPipeline(t *testing.T) {
	runner := &fakeRunner{}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())
	tr := newJobTracker(t, entity.MethodPointSplat, []entity.InputFile{imageInput(t, "a.jpg")})

	// cancel lands while feature_matching is running; the orchestrator must
	// stop before sparse_reconstruction starts
	runner.afterRun = func(sub string) {
		if sub == "exhaustive_matcher" {
			require.NoError(t, tr.RequestCancel())
		}
	}

	_, err := orch.Run(context.Background(), tr)
	require.True(t, errors.Is(err, pipeline.ErrCancelled))

	snap := tr.Snapshot()
	assert.Equal(t, entity.StepCompleted, stepByName(t, snap, "feature_matching").Status)
	assert.Equal(t, entity.StepPending, stepByName(t, snap, "sparse_reconstruction").Status)

	// the mapper was never invoked
	for _, inv := range runner.invocations {
		assert.NotEqual(t, "mapper", inv.Args[0])
	}
	require.Len(t, runner.invocations, 2)
}

func TestRun_CancelBetweenStages(t *testing.T) {
	runner := &fakeRunner{}
	orch := pipeline.NewOrchestrator(runner, pipeline.NewSimTrainer(1), nil, testConfig())
	tr := newJobTracker(t, entity.MethodPointSplat, []entity.InputFile{imageInput(t, "a.jpg")})

	require.NoError(t, tr.RequestCancel())

	_, err := orch.Run(context.Background(), tr)
	require.True(t, errors.Is(err, pipeline.ErrCancelled))

	// no stage ever started, no tool was touched
	snap := tr.Snapshot()
	for _, s := range snap.Steps {
		assert.Equal(t, entity.StepPending, s.Status)
	}
	assert.Empty(t, runner.invocations)
}

func TestClassifyInput(t *testing.T) {
	cases := []struct {
		name string
		kind entity.FileKind
		ok   bool
	}{
		{"scene.mp4", entity.FileVideo, true},
		{"clip.MOV", entity.FileVideo, true},
		{"photo.jpg", entity.FileImage, true},
		{"photo.JPEG", entity.FileImage, true},
		{"scan.tiff", entity.FileImage, true},
		{"notes.txt", "", false},
		{"archive.tar.gz", "", false},
		{"noext", "", false},
	}
	for _, tc := range cases {
		kind, ok := pipeline.ClassifyInput(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.kind, kind, tc.name)
	}
}
