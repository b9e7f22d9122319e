// Application HTTP handlers.
//
// This file exposes REST endpoints for application resources and the inbound
// lifecycle events that resume parked workflows:
//   - GET  /applications/{id}            (fetch one record)
//   - GET  /applications/{id}/timeline   (full audit trail)
//   - POST /applications/{id}/approval   (human review decision)
//   - POST /applications/{id}/outcome    (reported outcome)
//   - POST /applications/{id}/cancel     (operator cancellation)
//   - POST /applications/{id}/follow-ups (ad-hoc follow-up task)
//   - GET  /users/{id}/funnel            (conversion summary)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/repo"
	"github.com/growthengine/opportunity-engine/internal/services"
)

// StatusService serves the read side of the lifecycle plus follow-up
// scheduling.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type StatusService interface {
	Timeline(ctx context.Context, applicationID string) ([]domain.TimelineEvent, error)
	Funnel(ctx context.Context, userID string) (*repo.FunnelCounts, error)
	ScheduleFollowUp(ctx context.Context, applicationID, kind string, dueAt time.Time) (*domain.FollowUpTask, error)
}

// ApplicationReader fetches stored application records.
type ApplicationReader interface {
	Get(ctx context.Context, id string) (*domain.Application, error)
}

// ApplicationReaderFunc adapts a function to ApplicationReader.
type ApplicationReaderFunc func(ctx context.Context, id string) (*domain.Application, error)

// Get implements ApplicationReader.
func (f ApplicationReaderFunc) Get(ctx context.Context, id string) (*domain.Application, error) {
	return f(ctx, id)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for opportunities, applications, and
// scoring weights. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	ingest   IngestService
	workflow WorkflowService
	status   StatusService
	weights  WeightsService
	opps     OpportunityReader
	apps     ApplicationReader
}

// New constructs a Handlers instance bound to the given services.
func New(
	ingest IngestService,
	workflow WorkflowService,
	status StatusService,
	weights WeightsService,
	opps OpportunityReader,
	apps ApplicationReader,
) *Handlers {
	return &Handlers{
		ingest:   ingest,
		workflow: workflow,
		status:   status,
		weights:  weights,
		opps:     opps,
		apps:     apps,
	}
}

//
// DTOs
//

// ApprovalRequest is the JSON payload for a human review decision.
type ApprovalRequest struct {
	// Decision is "approved" or "rejected".
	Decision string `json:"decision" binding:"required"`
	// Reviewer identifies who made the call.
	Reviewer string `json:"reviewer"`
}

// OutcomeRequest is the JSON payload for a reported outcome.
type OutcomeRequest struct {
	// Outcome is "accepted", "rejected", or "no_response".
	Outcome string `json:"outcome" binding:"required"`
}

// FollowUpRequest is the JSON payload for scheduling an ad-hoc follow-up.
type FollowUpRequest struct {
	Kind  string    `json:"kind" binding:"required"`
	DueAt time.Time `json:"due_at" binding:"required"`
}

//
// Endpoints
//

// GetApplication handles GET /applications/:id.
func (h *Handlers) GetApplication(c *gin.Context) {
	app, err := h.apps.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load application")
		return
	}
	ok(c, http.StatusOK, app)
}

// GetTimeline handles GET /applications/:id/timeline.
func (h *Handlers) GetTimeline(c *gin.Context) {
	events, err := h.status.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrApplicationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load timeline")
		return
	}
	ok(c, http.StatusOK, gin.H{"application_id": c.Param("id"), "events": events})
}

// PostApproval handles POST /applications/:id/approval.
func (h *Handlers) PostApproval(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "decision is required")
		return
	}

	err := h.workflow.OnApprovalDecision(c.Request.Context(), c.Param("id"), req.Decision, req.Reviewer)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidDecision):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrApplicationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
	case errors.Is(err, services.ErrAlreadyTerminal):
		fail(c, http.StatusConflict, ErrCodeAlreadyTerminal, err.Error())
	case errors.Is(err, services.ErrNotAwaitingApproval):
		fail(c, http.StatusConflict, ErrCodeNotPendingApproval, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not apply decision")
	}
}

// PostOutcome handles POST /applications/:id/outcome.
func (h *Handlers) PostOutcome(c *gin.Context) {
	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "outcome is required")
		return
	}

	err := h.workflow.OnOutcome(c.Request.Context(), c.Param("id"), req.Outcome)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidOutcome):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrApplicationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
	case errors.Is(err, services.ErrAlreadyTerminal):
		fail(c, http.StatusConflict, ErrCodeAlreadyTerminal, err.Error())
	case errors.Is(err, services.ErrNotTracking):
		fail(c, http.StatusConflict, ErrCodeNotTracking, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not record outcome")
	}
}

// PostCancel handles POST /applications/:id/cancel.
func (h *Handlers) PostCancel(c *gin.Context) {
	err := h.workflow.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrApplicationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
	case errors.Is(err, services.ErrAlreadyTerminal):
		fail(c, http.StatusConflict, ErrCodeAlreadyTerminal, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not cancel application")
	}
}

// PostFollowUp handles POST /applications/:id/follow-ups.
func (h *Handlers) PostFollowUp(c *gin.Context) {
	var req FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind and due_at are required")
		return
	}

	task, err := h.status.ScheduleFollowUp(c.Request.Context(), c.Param("id"), req.Kind, req.DueAt)
	if err != nil {
		if errors.Is(err, services.ErrApplicationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not schedule follow-up")
		return
	}
	ok(c, http.StatusCreated, task)
}

// GetFunnel handles GET /users/:id/funnel.
func (h *Handlers) GetFunnel(c *gin.Context) {
	f, err := h.status.Funnel(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute funnel")
		return
	}
	ok(c, http.StatusOK, f)
}
