package handler

import (
	"net/http"

	"freelancer_ops_backend/internal/journey/domain"
	"freelancer_ops_backend/internal/journey/repository"
	"freelancer_ops_backend/internal/journey/service"
	"freelancer_ops_backend/internal/journey/transport"
	"freelancer_ops_backend/platform/httpkit"
	"freelancer_ops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the journey pipeline.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidJobID     = "invalid job ID"
)

// New creates a new journey handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetPipeline returns every job with its current phase.
// GET /api/v1/journey/pipeline
func (h *Handler) GetPipeline(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	rows, err := h.svc.GetPipeline(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ListResponse[service.PipelineRow]{Items: rows})
}

// GetStats returns phase counts and conversion rates.
// GET /api/v1/journey/stats
func (h *Handler) GetStats(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	stats, err := h.svc.GetStats(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

// GetJobTimeline returns a job's activities, oldest first.
// GET /api/v1/journey/jobs/:jobId/timeline
func (h *Handler) GetJobTimeline(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidJobID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	entries, err := h.svc.GetJobTimeline(c.Request.Context(), identity.TenantID(), jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ListResponse[service.TimelineEntry]{Items: entries})
}

// RecordActivity appends a manual journey step to a known job.
// POST /api/v1/journey/jobs/:jobId/activities
func (h *Handler) RecordActivity(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidJobID, nil)
		return
	}

	var req transport.RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	phase, err := domain.ParsePhase(req.Phase)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"phase": err.Error()})
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	activity, err := h.svc.RecordForJob(c.Request.Context(), repository.AppendParams{
		TenantID:    identity.TenantID(),
		JobID:       jobID,
		ProposalID:  req.ProposalID,
		ProjectID:   req.ProjectID,
		Phase:       phase,
		Title:       req.Title,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.RecordActivityResponse{ID: activity.ID})
}

// CaptureJob stores a job reported by the browser extension.
// POST /api/v1/journey/captures
func (h *Handler) CaptureJob(c *gin.Context) {
	var req transport.CaptureJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	jobID, err := h.svc.Capture(c.Request.Context(), identity.TenantID(), service.CaptureParams{
		UserID:          identity.UserID(),
		Title:           req.Title,
		ClientName:      req.ClientName,
		SourceURL:       req.SourceURL,
		Budget:          req.Budget,
		MatchPercentage: req.MatchPercentage,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.CaptureJobResponse{JobID: jobID})
}
