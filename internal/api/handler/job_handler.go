package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/reminder-be/internal/api/dto"
	"github.com/cuongbtq/reminder-be/internal/scheduler"
	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
	"github.com/cuongbtq/reminder-be/internal/scheduler/storage"
)

// CreateJob handles POST /api/v1/jobs
// Creates a reminder job and its first run
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID := c.GetString(UserIDKey)

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), userID, scheduler.CreateJobInput{
		Name:        req.Name,
		Description: req.Description,
		Rule:        req.Rule,
		FirstRunAt:  req.FirstRunAt,
		LeadMinutes: req.LeadMinutes,
		Channel:     req.Channel,
		Status:      domain.JobStatus(req.Status),
	})
	if err != nil {
		h.respondError(c, err, "Failed to create job")
		return
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's reminder jobs, newest first
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID := c.GetString(UserIDKey)

	jobs, err := h.service.ListJobs(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "Failed to list jobs")
		return
	}

	out := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		out[i] = dto.NewJobDTO(&jobs[i])
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: out})
}

// ListRuns handles GET /api/v1/job-runs
// Lists runs of the caller's jobs filtered by status and scheduled-time range
func (h *JobHandler) ListRuns(c *gin.Context) {
	userID := c.GetString(UserIDKey)

	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	runs, err := h.service.ListRuns(c.Request.Context(), userID, storage.RunFilter{
		Status: domain.RunStatus(req.Status),
		From:   req.From,
		To:     req.To,
	})
	if err != nil {
		h.respondError(c, err, "Failed to list job runs")
		return
	}

	out := make([]dto.JobRunDTO, len(runs))
	for i := range runs {
		out[i] = dto.NewJobRunDTO(&runs[i])
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{Runs: out})
}

// UpsertRecipient handles PUT /api/v1/recipients/me
// Registers or updates where the caller receives push notifications
func (h *JobHandler) UpsertRecipient(c *gin.Context) {
	userID := c.GetString(UserIDKey)

	var req dto.UpsertRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	enabled := true
	if req.NotifyEnabled != nil {
		enabled = *req.NotifyEnabled
	}

	rec, err := h.service.RegisterRecipient(c.Request.Context(), userID, scheduler.RegisterRecipientInput{
		PushTarget:    req.PushTarget,
		NotifyEnabled: enabled,
	})
	if err != nil {
		h.respondError(c, err, "Failed to register recipient")
		return
	}

	c.JSON(http.StatusOK, dto.NewRecipientDTO(rec))
}

// Confirm handles POST /api/v1/confirmations
// Records a confirmation action on a run, deduplicated by idempotency key
func (h *JobHandler) Confirm(c *gin.Context) {
	userID := c.GetString(UserIDKey)

	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	var payload []byte
	if req.Payload != nil {
		payload = []byte(*req.Payload)
	}

	conf, err := h.service.Confirm(
		c.Request.Context(),
		userID,
		req.JobRunID,
		domain.ConfirmAction(req.Action),
		req.IdempotencyKey,
		payload,
	)
	if err != nil {
		h.respondError(c, err, "Failed to record confirmation")
		return
	}

	c.JSON(http.StatusCreated, dto.NewConfirmationDTO(conf))
}

// respondError maps service errors to HTTP statuses. Validation problems
// are 422, missing or foreign runs are 404, everything else is 500.
func (h *JobHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidJob),
		errors.Is(err, domain.ErrInvalidRule),
		errors.Is(err, domain.ErrUnsupportedChannel),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrMissingIdempotencyKey),
		errors.Is(err, domain.ErrInvalidRecipient),
		errors.Is(err, domain.ErrRecipientNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job run not found",
		})
	default:
		h.logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fallback,
		})
	}
}
