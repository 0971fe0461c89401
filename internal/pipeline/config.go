package pipeline

import "time"

// Config carries the per-stage settings; each stage reads only its own
// section.
type Config struct {
	ColmapPath string
	FFmpegPath string
	UseGPU     bool

	Prepare PrepareConfig
	SfM     SfMConfig
	Train   TrainConfig
}

// PrepareConfig controls data_preparation.
type PrepareConfig struct {
	// FrameRate is the fixed video sampling rate in frames per second.
	FrameRate     int
	FFmpegTimeout time.Duration
}

// SfMConfig controls the three structure-from-motion stages.
type SfMConfig struct {
	ExtractionTimeout time.Duration
	MatchingTimeout   time.Duration
	MappingTimeout    time.Duration
}

// TrainConfig controls model_training.
type TrainConfig struct {
	Iterations      int
	SyntheticPoints int
	SHDegree        int
	Resolution      int
	// TickDelay paces simulated progress ticks; zero disables pacing.
	TickDelay time.Duration
}

// DefaultConfig mirrors the stage timeouts and training parameters of the
// production deployment.
func DefaultConfig() Config {
	return Config{
		ColmapPath: "colmap",
		FFmpegPath: "ffmpeg",
		Prepare: PrepareConfig{
			FrameRate:     2,
			FFmpegTimeout: 10 * time.Minute,
		},
		SfM: SfMConfig{
			ExtractionTimeout: 30 * time.Minute,
			MatchingTimeout:   60 * time.Minute,
			MappingTimeout:    60 * time.Minute,
		},
		Train: TrainConfig{
			Iterations:      30000,
			SyntheticPoints: 5000,
			SHDegree:        3,
			Resolution:      1,
			TickDelay:       100 * time.Millisecond,
		},
	}
}
