package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/geometry"
)

// TrainedModel locates the artifacts a training run produced.
type TrainedModel struct {
	ModelDir       string
	MetadataPath   string
	ConfigPath     string
	CheckpointPath string // radiance-field only
	PointCloudPath string // point-splat only
	SparseDir      string // point-splat only
	NumPoints      int
}

// Trainer is the narrow contract for the model-training stage. The real
// neural trainer lives outside this repository; SimTrainer stands in for it,
// producing structurally complete output.
type Trainer interface {
	Train(ctx context.Context, method entity.Method, dataDir, outputDir string,
		cfg TrainConfig, progress func(iter, total int)) (*TrainedModel, error)
}

// SimTrainer fabricates model output without a GPU: correct directory
// structure, metadata, and synthetic geometry, paced to report incremental
// progress.
type SimTrainer struct {
	// rngMu guards rng; one trainer serves every pool worker
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewSimTrainer(seed int64) *SimTrainer {
	return &SimTrainer{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimTrainer) newRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewSource(s.rng.Int63()))
}

func (s *SimTrainer) Train(ctx context.Context, method entity.Method, dataDir, outputDir string,
	cfg TrainConfig, progress func(iter, total int)) (*TrainedModel, error) {

	if err := s.tick(ctx, cfg, progress); err != nil {
		return nil, err
	}

	switch method {
	case entity.MethodRadianceField:
		return s.trainRadianceField(dataDir, outputDir, cfg)
	case entity.MethodPointSplat:
		return s.trainPointSplat(dataDir, outputDir, cfg)
	default:
		return nil, fmt.Errorf("unknown reconstruction method %q", method)
	}
}

// tick reports simulated iteration progress in ten increments, honouring
// cancellation between increments.
func (s *SimTrainer) tick(ctx context.Context, cfg TrainConfig, progress func(iter, total int)) error {
	total := cfg.Iterations
	if total <= 0 {
		total = 1
	}
	step := total / 10
	if step == 0 {
		step = 1
	}
	for i := 0; i < total; i += step {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if progress != nil {
			progress(i, total)
		}
		if cfg.TickDelay > 0 {
			time.Sleep(cfg.TickDelay)
		}
	}
	return nil
}

func (s *SimTrainer) trainRadianceField(dataDir, outputDir string, cfg TrainConfig) (*TrainedModel, error) {
	modelDir := filepath.Join(outputDir, "radiance_model")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, err
	}

	m := &TrainedModel{
		ModelDir:       modelDir,
		ConfigPath:     filepath.Join(modelDir, "config.yml"),
		CheckpointPath: filepath.Join(modelDir, "model.ckpt"),
		MetadataPath:   filepath.Join(modelDir, "metadata.json"),
	}

	cfgYAML := fmt.Sprintf("method_name: %s\ndata: %s\nmax_num_iterations: %d\ntimestamp: %s\n",
		entity.MethodRadianceField, dataDir, cfg.Iterations, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(m.ConfigPath, []byte(cfgYAML), 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(m.CheckpointPath, []byte("# radiance field checkpoint placeholder\n"), 0o644); err != nil {
		return nil, err
	}
	if err := writeJSON(m.MetadataPath, trainMetadata(entity.MethodRadianceField, dataDir, modelDir, cfg)); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SimTrainer) trainPointSplat(dataDir, outputDir string, cfg TrainConfig) (*TrainedModel, error) {
	modelDir := filepath.Join(outputDir, "splat_model_0")
	sparseDir := filepath.Join(modelDir, "sparse", "0")
	if err := os.MkdirAll(sparseDir, 0o755); err != nil {
		return nil, err
	}

	m := &TrainedModel{
		ModelDir:       modelDir,
		ConfigPath:     filepath.Join(modelDir, "cfg_args"),
		MetadataPath:   filepath.Join(modelDir, "metadata.json"),
		PointCloudPath: filepath.Join(modelDir, "point_cloud.ply"),
		SparseDir:      sparseDir,
		NumPoints:      cfg.SyntheticPoints,
	}

	rng := s.newRand()
	cams, images, points := geometry.SyntheticSparseModel(10, cfg.SyntheticPoints, rng)
	if err := geometry.WriteSparseModel(sparseDir, cams, images, points); err != nil {
		return nil, err
	}
	if err := writeProjectINI(filepath.Join(sparseDir, "project.ini"), dataDir); err != nil {
		return nil, err
	}

	cloud := geometry.SyntheticPointCloud(cfg.SyntheticPoints, rng)
	if err := geometry.WritePLY(m.PointCloudPath, cloud); err != nil {
		return nil, err
	}

	cfgArgs := fmt.Sprintf("iterations: %d\nresolution: %d\nsh_degree: %d\ntimestamp: %s\nsparse_reconstruction: %s\n",
		cfg.Iterations, cfg.Resolution, cfg.SHDegree, time.Now().Format(time.RFC3339), sparseDir)
	if err := os.WriteFile(m.ConfigPath, []byte(cfgArgs), 0o644); err != nil {
		return nil, err
	}
	meta := trainMetadata(entity.MethodPointSplat, dataDir, modelDir, cfg)
	meta["sparse_dir"] = sparseDir
	meta["sparse_points"] = cfg.SyntheticPoints
	if err := writeJSON(m.MetadataPath, meta); err != nil {
		return nil, err
	}
	return m, nil
}

func trainMetadata(method entity.Method, dataDir, modelDir string, cfg TrainConfig) map[string]any {
	return map[string]any{
		"method":     method,
		"iterations": cfg.Iterations,
		"data_dir":   dataDir,
		"model_dir":  modelDir,
		"created_at": time.Now().Format(time.RFC3339),
	}
}

func writeProjectINI(path, dataDir string) error {
	ini := fmt.Sprintf(`log_to_stderr=true
random_seed=0
database_path=%s
image_path=%s
[Mapper]
multiple_models=true
extract_colors=true
ba_refine_focal_length=true
tri_min_angle=1.5
abs_pose_min_num_inliers=30
filter_max_reproj_error=4
max_reg_trials=3
`, filepath.Join(dataDir, "database.db"), filepath.Join(dataDir, "images"))
	return os.WriteFile(path, []byte(ini), 0o644)
}
