// HTTP client for a remote generation service.
//
// The client POSTs the (profile, opportunity, constraints) triple and expects
// a Draft in response. Timeouts are owned by the caller through the context;
// the orchestrator treats deadline expiry as a recoverable failure and
// retries under its own policy.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// HTTPGenerator calls an external generation service over HTTP.
type HTTPGenerator struct {
	// Endpoint is the full URL of the generation endpoint.
	Endpoint string
	// Client defaults to http.DefaultClient when nil. Per-call deadlines come
	// from the request context, not from the client.
	Client *http.Client
}

type generateRequest struct {
	Profile     domain.Profile     `json:"profile"`
	Opportunity domain.Opportunity `json:"opportunity"`
	Constraints Constraints        `json:"constraints"`
}

// Generate implements Generator against the remote service.
func (g *HTTPGenerator) Generate(ctx context.Context, profile domain.Profile, opp domain.Opportunity, c Constraints) (Draft, error) {
	body, err := json.Marshal(generateRequest{Profile: profile, Opportunity: opp, Constraints: c})
	if err != nil {
		return Draft{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Draft{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Draft{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a bounded slice of the body for the error message.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Draft{}, fmt.Errorf("generator returned %d: %s", resp.StatusCode, string(msg))
	}

	var d Draft
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return Draft{}, fmt.Errorf("decode generator response: %w", err)
	}
	if d.ContentRef == "" {
		return Draft{}, fmt.Errorf("generator returned empty content ref")
	}
	return d, nil
}
