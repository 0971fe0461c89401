package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/pipeline"
	"reconstruction-service/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{jobSvc: jobSvc}
}

type submitJobDTO struct {
	Method string             `json:"method"`
	Files  []entity.InputFile `json:"files"`
}

type submitJobResp struct {
	ID string `json:"id"`
}

type stepResp struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Message     string `json:"message,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

type resultResp struct {
	NumPoints     int      `json:"num_points,omitempty"`
	NumFaces      int      `json:"num_faces,omitempty"`
	ModelSizeMB   float64  `json:"model_size_mb,omitempty"`
	PSNR          *float64 `json:"psnr,omitempty"`
	SSIM          *float64 `json:"ssim,omitempty"`
	ExportFormats []string `json:"export_formats,omitempty"`
	// Artifacts are logical names resolvable via the download endpoint;
	// raw pipeline paths stay internal.
	Artifacts []string `json:"artifacts"`
}

type statusResp struct {
	ID          string      `json:"id"`
	Method      string      `json:"method"`
	Status      string      `json:"status"`
	Progress    int         `json:"progress"`
	Message     string      `json:"message,omitempty"`
	CurrentStep string      `json:"current_step,omitempty"`
	CreatedAt   string      `json:"created_at"`
	StartedAt   string      `json:"started_at,omitempty"`
	CompletedAt string      `json:"completed_at,omitempty"`
	Steps       []stepResp  `json:"steps"`
	Result      *resultResp `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// SubmitJob godoc
// @Summary Submit a reconstruction job
// @Description Registers a pending job for an already-uploaded file set.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body submitJobDTO true "method: radiance-field or point-splat"
// @Success 201 {object} submitJobResp
// @Failure 400 {object} apiError
// @Router /api/jobs [post]
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var dto submitJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := h.jobSvc.SubmitJob(r.Context(), entity.Method(dto.Method), dto.Files)
	if err != nil {
		var inputErr *pipeline.InputError
		var unsupported *pipeline.UnsupportedInputError
		if errors.As(err, &inputErr) || errors.As(err, &unsupported) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, http.StatusInternalServerError, "could not create job")
		return
	}

	writeJSON(w, http.StatusCreated, submitJobResp{ID: id.String()})
}

// StartJob godoc
// @Summary Start a pending job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 202 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/jobs/{id}/start [post]
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	if err := h.jobSvc.StartJob(r.Context(), id); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, apiError{Message: "job started"})
}

// GetStatus godoc
// @Summary Poll job status
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} statusResp
// @Failure 404 {object} apiError
// @Router /api/jobs/{id}/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	job, err := h.jobSvc.GetStatus(r.Context(), id)
	if err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResp(job))
}

// ListJobs godoc
// @Summary List all jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} entity.Summary
// @Router /api/jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobSvc.ListJobs(r.Context()))
}

// CancelJob godoc
// @Summary Cancel a pending or processing job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/jobs/{id}/cancel [post]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	if err := h.jobSvc.CancelJob(r.Context(), id); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiError{Message: "cancel requested"})
}

// GetResult godoc
// @Summary Get a completed job's result
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} resultResp
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/jobs/{id}/result [get]
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	job, err := h.jobSvc.GetStatus(r.Context(), id)
	if err != nil {
		h.writeServiceErr(w, err)
		return
	}
	if job.Status != entity.StatusCompleted || job.Result == nil {
		writeErr(w, http.StatusConflict, "job not completed")
		return
	}
	writeJSON(w, http.StatusOK, toResultResp(job.Result))
}

// DownloadArtifact godoc
// @Summary Download a result artifact by logical name
// @Tags jobs
// @Param id path string true "job id (uuid)"
// @Param kind path string true "model | thumbnail | metadata | point_cloud"
// @Success 200 {file} binary
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/jobs/{id}/download/{kind} [get]
func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	path, err := h.jobSvc.Artifact(r.Context(), id, chi.URLParam(r, "kind"))
	if err != nil {
		h.writeServiceErr(w, err)
		return
	}
	http.ServeFile(w, r, path)
}

// ListInvocations godoc
// @Summary List external tool invocations recorded for a job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {array} toollog.Entry
// @Failure 404 {object} apiError
// @Router /api/jobs/{id}/invocations [get]
func (h *Handler) ListInvocations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	entries, err := h.jobSvc.Invocations(r.Context(), id)
	if err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeErr(w, http.StatusNotFound, "job not found")
	case errors.Is(err, service.ErrInvalidState):
		writeErr(w, http.StatusConflict, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func toStatusResp(job *entity.Job) statusResp {
	resp := statusResp{
		ID:          job.ID.String(),
		Method:      string(job.Method),
		Status:      string(job.Status),
		Progress:    job.Progress,
		Message:     job.Message,
		CurrentStep: job.CurrentStep(),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		Steps:       make([]stepResp, 0, len(job.Steps)),
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	if job.Error != nil {
		resp.Error = *job.Error
	}
	for _, s := range job.Steps {
		sr := stepResp{
			Name:     s.Name,
			Status:   string(s.Status),
			Progress: s.Progress,
			Message:  s.Message,
		}
		if s.StartedAt != nil {
			sr.StartedAt = s.StartedAt.Format(time.RFC3339)
		}
		if s.CompletedAt != nil {
			sr.CompletedAt = s.CompletedAt.Format(time.RFC3339)
		}
		if s.Error != nil {
			sr.Error = *s.Error
		}
		resp.Steps = append(resp.Steps, sr)
	}
	if job.Result != nil {
		r := toResultResp(job.Result)
		resp.Result = &r
	}
	return resp
}

func toResultResp(res *entity.Result) resultResp {
	out := resultResp{
		NumPoints:     res.NumPoints,
		NumFaces:      res.NumFaces,
		ModelSizeMB:   res.ModelSizeMB,
		PSNR:          res.PSNR,
		SSIM:          res.SSIM,
		ExportFormats: res.ExportFormats,
		Artifacts:     []string{},
	}
	for _, kind := range []string{
		entity.ArtifactModel,
		entity.ArtifactThumbnail,
		entity.ArtifactMetadata,
		entity.ArtifactPointCloud,
	} {
		if res.ArtifactPath(kind) != "" {
			out.Artifacts = append(out.Artifacts, kind)
		}
	}
	return out
}
