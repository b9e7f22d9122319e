// Opportunity HTTP handlers.
//
// This file exposes REST endpoints for opportunity resources:
//   - POST /opportunities        (ingest, dedup-or-merge, kick off workflow)
//   - GET  /opportunities/{id}   (fetch one record)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/repo"
	"github.com/growthengine/opportunity-engine/internal/services"
)

//
// Service contracts (context-aware)
//

// IngestService deduplicates and stores raw opportunity records.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IngestService interface {
	// Ingest canonicalizes and stores a raw record, merging on fingerprint
	// collision. isNew reports whether a fresh row was created.
	Ingest(ctx context.Context, raw services.RawOpportunity) (*domain.Opportunity, bool, error)
}

// WorkflowService drives applications through their lifecycle.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type WorkflowService interface {
	// KickoffOpportunity creates and queues one application per known user.
	KickoffOpportunity(ctx context.Context, opp *domain.Opportunity) error
	// OnApprovalDecision resolves a pending human review.
	OnApprovalDecision(ctx context.Context, applicationID, decision, reviewer string) error
	// OnOutcome closes a tracking application with a reported outcome.
	OnOutcome(ctx context.Context, applicationID, outcome string) error
	// Cancel flags an application for abandonment.
	Cancel(ctx context.Context, applicationID string) error
}

// OpportunityReader fetches stored opportunity records.
type OpportunityReader interface {
	Get(ctx context.Context, id string) (*domain.Opportunity, error)
}

// OpportunityReaderFunc adapts a function to OpportunityReader.
type OpportunityReaderFunc func(ctx context.Context, id string) (*domain.Opportunity, error)

// Get implements OpportunityReader.
func (f OpportunityReaderFunc) Get(ctx context.Context, id string) (*domain.Opportunity, error) {
	return f(ctx, id)
}

//
// DTOs
//

// IngestResponse wraps the stored record plus whether it was newly created.
type IngestResponse struct {
	Opportunity *domain.Opportunity `json:"opportunity"`
	New         bool                `json:"new"`
}

//
// Endpoints
//

// IngestOpportunity handles POST /opportunities.
//
// A new fingerprint returns 201 with the created record and kicks the
// workflow off for every configured user. A known fingerprint returns 200
// with the merged record and does not re-kick the workflow.
func (h *Handlers) IngestOpportunity(c *gin.Context) {
	var raw services.RawOpportunity
	if err := c.ShouldBindJSON(&raw); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON payload")
		return
	}

	opp, isNew, err := h.ingest.Ingest(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, "could not ingest opportunity")
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
		if err := h.workflow.KickoffOpportunity(c.Request.Context(), opp); err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, "could not start workflow")
			return
		}
	}
	ok(c, status, IngestResponse{Opportunity: opp, New: isNew})
}

// GetOpportunity handles GET /opportunities/:id.
func (h *Handlers) GetOpportunity(c *gin.Context) {
	id := c.Param("id")
	opp, err := h.opps.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "opportunity not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load opportunity")
		return
	}
	ok(c, http.StatusOK, opp)
}
