package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/toolrunner"
	"reconstruction-service/internal/tracker"
)

const (
	stageDataPreparation      = "data_preparation"
	stageFeatureExtraction    = "feature_extraction"
	stageFeatureMatching      = "feature_matching"
	stageSparseReconstruction = "sparse_reconstruction"
	stageModelTraining        = "model_training"
	stageExport               = "export"
)

// Orchestrator drives one job through its fixed stage list. Both supported
// methods share the stage names; training and export differ per method.
type Orchestrator struct {
	runner    toolrunner.Runner
	trainer   Trainer
	converter Converter
	cfg       Config

	// rngMu guards rng; one orchestrator serves every pool worker
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewOrchestrator(runner toolrunner.Runner, trainer Trainer, converter Converter, cfg Config) *Orchestrator {
	if converter == nil {
		converter = PlaceholderConverter{}
	}
	return &Orchestrator{
		runner:    runner,
		trainer:   trainer,
		converter: converter,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// jobRun is the mutable state threaded through one job's stages. It is only
// ever touched by the job's own worker.
type jobRun struct {
	jobID     string
	method    entity.Method
	files     []entity.InputFile
	outputDir string
	dataDir   string

	tracker *tracker.Tracker

	imagesDir      string
	databasePath   string
	sparseModelDir string
	trained        *TrainedModel
	result         *entity.Result
}

type stage struct {
	name string
	run  func(ctx context.Context, run *jobRun) error
	done string
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{stageDataPreparation, o.prepareData, "input data prepared"},
		{stageFeatureExtraction, o.featureExtraction, "features extracted"},
		{stageFeatureMatching, o.featureMatching, "features matched"},
		{stageSparseReconstruction, o.sparseReconstruction, "sparse model reconstructed"},
		{stageModelTraining, o.trainModel, "model trained"},
		{stageExport, o.exportResults, "results exported"},
	}
}

// Run executes the stage list for the tracked job. A stage only starts after
// the previous one completed; the first failing stage fails the job
// (fail-fast, already-written output left in place for inspection). Between
// stages the cancel flag is checked; a running external tool is never killed
// by cancellation, only by its own timeout.
func (o *Orchestrator) Run(ctx context.Context, t *tracker.Tracker) (*entity.Result, error) {
	job := t.Snapshot()
	run := &jobRun{
		jobID:     job.ID.String(),
		method:    job.Method,
		files:     job.Files,
		outputDir: job.OutputDir,
		dataDir:   filepath.Join(job.OutputDir, "data"),
		tracker:   t,
	}

	if err := os.MkdirAll(run.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	stages := o.stages()
	for _, st := range stages {
		if err := t.AddStep(st.name, ""); err != nil {
			return nil, err
		}
	}

	for _, st := range stages {
		if t.CancelRequested() {
			log.Printf("[pipeline] job_id=%s cancelled before stage=%s", run.jobID, st.name)
			return nil, ErrCancelled
		}

		if err := t.StartStep(st.name); err != nil {
			// state-machine misuse is a programmer error, not a job failure
			return nil, err
		}

		start := time.Now()
		if err := st.run(ctx, run); err != nil {
			_ = t.FailStep(st.name, err.Error())
			log.Printf("[pipeline] job_id=%s stage=%s status=failed duration_ms=%d error=%v",
				run.jobID, st.name, time.Since(start).Milliseconds(), err)
			return nil, fmt.Errorf("stage %s: %w", st.name, err)
		}

		if err := t.CompleteStep(st.name, st.done); err != nil {
			return nil, err
		}
		log.Printf("[pipeline] job_id=%s stage=%s status=completed duration_ms=%d",
			run.jobID, st.name, time.Since(start).Milliseconds())
	}

	return run.result, nil
}

// newRand derives an independent RNG for one stage's synthetic output.
func (o *Orchestrator) newRand() *rand.Rand {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return rand.New(rand.NewSource(o.rng.Int63()))
}

// trainModel delegates to the trainer, translating iteration callbacks into
// step progress. Progress values only ever grow within the running step.
func (o *Orchestrator) trainModel(ctx context.Context, run *jobRun) error {
	trained, err := o.trainer.Train(ctx, run.method, run.dataDir, run.outputDir, o.cfg.Train,
		func(iter, total int) {
			pct := iter * 100 / total
			_ = run.tracker.UpdateProgress(stageModelTraining, pct,
				fmt.Sprintf("training iteration %d/%d", iter, total))
		})
	if err != nil {
		return err
	}
	run.trained = trained
	return nil
}

// tempDir creates a per-stage scratch directory and returns a best-effort
// cleanup. Cleanup failures are logged, never fatal.
func (run *jobRun) tempDir(name string) (string, func(), error) {
	dir := filepath.Join(run.outputDir, "tmp", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[pipeline] job_id=%s temp cleanup dir=%s error=%v", run.jobID, dir, err)
		}
	}
	return dir, cleanup, nil
}
