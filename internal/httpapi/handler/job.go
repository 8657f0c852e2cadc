// Package handler binds spec.md §6's Submission API onto gin, adapted
// from the teacher's internal/http/handler/job.go request/response
// shape.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/coordinator"
	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/httpapi/middleware"
	"github.com/arjunmehta-dev/taskforge/internal/stats"
	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	coordinator   *coordinator.Coordinator
	stats         *stats.Service
	bulkSubmitCap int
	logger        *slog.Logger
}

func NewJobHandler(c *coordinator.Coordinator, s *stats.Service, bulkSubmitCap int, logger *slog.Logger) *JobHandler {
	return &JobHandler{coordinator: c, stats: s, bulkSubmitCap: bulkSubmitCap, logger: logger.With("component", "job_handler")}
}

type submitJobRequest struct {
	Name        string          `json:"name"`
	JobType     string          `json:"job_type" binding:"required"`
	Priority    int             `json:"priority"`
	Payload     json.RawMessage `json:"payload"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	MaxRetries  *int            `json:"max_retries"`
}

func (req submitJobRequest) toDomain(ownerID string) *domain.Job {
	job := &domain.Job{
		Name:       req.Name,
		JobType:    req.JobType,
		Priority:   req.Priority,
		Payload:    req.Payload,
		MaxRetries: domain.DefaultMaxRetries,
		OwnerID:    ownerID,
	}
	if req.MaxRetries != nil {
		job.MaxRetries = *req.MaxRetries
	}
	if req.ScheduledAt != nil {
		job.ScheduledAt = *req.ScheduledAt
	} else {
		job.ScheduledAt = time.Now()
	}
	return job
}

// Submit implements submit(one) -> id.
func (h *JobHandler) Submit(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID, _ := c.Get(middleware.OwnerIDKey)
	job := req.toDomain(ownerID.(string))
	if err := job.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.coordinator.Submit(c.Request.Context(), job)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "submit failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type submitBulkRequest struct {
	Jobs []submitJobRequest `json:"jobs" binding:"required,min=1"`
}

// SubmitBulk implements submit_bulk(list, <=bulk_submit_cap) -> [id],
// atomic.
func (h *JobHandler) SubmitBulk(c *gin.Context) {
	var req submitBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Jobs) > h.bulkSubmitCap {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidation + ": bulk submission exceeds the configured cap"})
		return
	}

	ownerID, _ := c.Get(middleware.OwnerIDKey)
	jobs := make([]*domain.Job, len(req.Jobs))
	for i, jr := range req.Jobs {
		job := jr.toDomain(ownerID.(string))
		if err := job.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		jobs[i] = job
	}

	ids, err := h.coordinator.SubmitBulk(c.Request.Context(), jobs)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "bulk submit failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

// Get implements get(id).
func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")
	job, err := h.stats.Fetch(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "fetch failed", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, job)
}

// List implements list(filter, limit, offset).
func (h *JobHandler) List(c *gin.Context) {
	filter := domain.Filter{
		Status:  domain.Status(c.Query("status")),
		JobType: c.Query("job_type"),
	}
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)

	jobs, err := h.stats.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Cancel implements cancel(id) -> ok|error.
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	err := h.coordinator.Cancel(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
	case errors.Is(err, domain.ErrJobNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": errStateConflict})
	default:
		h.logger.ErrorContext(c.Request.Context(), "cancel failed", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

// Retry implements retry(id) -> ok|error.
func (h *JobHandler) Retry(c *gin.Context) {
	id := c.Param("id")
	err := h.coordinator.Retry(c.Request.Context(), id, time.Now())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
	case errors.Is(err, domain.ErrJobNotRetriable):
		c.JSON(http.StatusConflict, gin.H{"error": errStateConflict})
	default:
		h.logger.ErrorContext(c.Request.Context(), "retry failed", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

// Stats implements stats().
func (h *JobHandler) Stats(c *gin.Context) {
	counts, err := h.stats.CountsByStatus(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "counts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	depth, err := h.stats.QueueDepth(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "queue depth failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts_by_status": counts, "queue_depth": depth})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return def
	}
	return n
}
