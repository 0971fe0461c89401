package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a job in this status can never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Method string

const (
	MethodRadianceField Method = "radiance-field"
	MethodPointSplat    Method = "point-splat"
)

func (m Method) Valid() bool {
	return m == MethodRadianceField || m == MethodPointSplat
}

type FileKind string

const (
	FileImage FileKind = "image"
	FileVideo FileKind = "video"
)

// InputFile is one already-persisted upload handed to the service.
// MIME/size validation happened upstream; only the extension is re-checked here.
type InputFile struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Path string   `json:"path"`
	Size int64    `json:"size"`
	Kind FileKind `json:"kind"`
}

type Job struct {
	ID     uuid.UUID   `json:"id"`
	Method Method      `json:"method"`
	Status JobStatus   `json:"status"`
	Files  []InputFile `json:"files"`

	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`

	Progress int    `json:"progress"`
	Message  string `json:"message"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Steps  []Step  `json:"steps"`
	Result *Result `json:"result,omitempty"`
	Error  *string `json:"error,omitempty"`

	// Advisory performance counters.
	ProcessingSeconds float64 `json:"processing_seconds,omitempty"`
	MemoryUsageMB     float64 `json:"memory_usage_mb,omitempty"`
	GPUUsagePercent   float64 `json:"gpu_usage_percent,omitempty"`
}

// CurrentStep returns the name of the running step, or "" if none is running.
func (j *Job) CurrentStep() string {
	for i := range j.Steps {
		if j.Steps[i].Status == StepRunning {
			return j.Steps[i].Name
		}
	}
	return ""
}

// Clone returns a deep copy so status pollers never observe a torn update.
func (j *Job) Clone() *Job {
	c := *j
	c.Files = append([]InputFile(nil), j.Files...)
	c.Steps = make([]Step, len(j.Steps))
	for i := range j.Steps {
		c.Steps[i] = j.Steps[i].clone()
	}
	if j.Result != nil {
		r := *j.Result
		r.ExportFormats = append([]string(nil), j.Result.ExportFormats...)
		c.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Summary is the list-view projection of a job.
type Summary struct {
	ID                string    `json:"id"`
	Status            JobStatus `json:"status"`
	Method            Method    `json:"method"`
	Progress          int       `json:"progress"`
	CreatedAt         string    `json:"created_at"`
	FilesCount        int       `json:"files_count"`
	CompletedAt       string    `json:"completed_at,omitempty"`
	ProcessingSeconds float64   `json:"processing_seconds,omitempty"`
}

func (j *Job) Summary() Summary {
	s := Summary{
		ID:                j.ID.String(),
		Status:            j.Status,
		Method:            j.Method,
		Progress:          j.Progress,
		CreatedAt:         j.CreatedAt.Format(time.RFC3339),
		FilesCount:        len(j.Files),
		ProcessingSeconds: j.ProcessingSeconds,
	}
	if j.CompletedAt != nil {
		s.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return s
}
