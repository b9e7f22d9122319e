// Scoring weights HTTP handlers.
//
// This file exposes the operator surface over the versioned scoring
// configuration:
//   - GET /weights  (active version)
//   - PUT /weights  (install a new version)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/growthengine/opportunity-engine/internal/scoring"
	"github.com/growthengine/opportunity-engine/internal/services"
)

// WeightsService exposes the versioned scoring configuration.
//
// Implementations should be safe for concurrent use.
type WeightsService interface {
	Current() scoring.Weights
	Install(ctx context.Context, w scoring.Weights) error
}

// WeightsRequest is the JSON payload for installing a new weights version.
type WeightsRequest struct {
	Version        int                `json:"version" binding:"required"`
	Features       map[string]float64 `json:"features" binding:"required"`
	Tier1Threshold float64            `json:"tier1_threshold" binding:"required"`
	Tier2Threshold float64            `json:"tier2_threshold" binding:"required"`
}

// WeightsResponse describes one weights version.
type WeightsResponse struct {
	Version        int                `json:"version"`
	Features       map[string]float64 `json:"features"`
	Tier1Threshold float64            `json:"tier1_threshold"`
	Tier2Threshold float64            `json:"tier2_threshold"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// GetWeights handles GET /weights.
func (h *Handlers) GetWeights(c *gin.Context) {
	w := h.weights.Current()
	ok(c, http.StatusOK, WeightsResponse{
		Version:        w.Version,
		Features:       w.Features,
		Tier1Threshold: w.Tier1Threshold,
		Tier2Threshold: w.Tier2Threshold,
		UpdatedAt:      w.UpdatedAt,
	})
}

// PutWeights handles PUT /weights.
//
// The new version must be internally consistent (weights summing to 1.0,
// ordered thresholds) and carry a version number above the active one.
func (h *Handlers) PutWeights(c *gin.Context) {
	var req WeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "version, features, and thresholds are required")
		return
	}

	w := scoring.Weights{
		Version:        req.Version,
		Features:       req.Features,
		Tier1Threshold: req.Tier1Threshold,
		Tier2Threshold: req.Tier2Threshold,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := h.weights.Install(c.Request.Context(), w); err != nil {
		if errors.Is(err, services.ErrValidation) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not install weights")
		return
	}
	noContent(c)
}
