// Webhook-backed platform adapter.
//
// Each configured platform points at an HTTP endpoint (an ATS bridge, a mail
// relay, an internal submission proxy). The adapter POSTs the application
// package and forwards the idempotency key in a header so the receiving side
// can collapse duplicate deliveries; an HTTP 409 from the endpoint is
// likewise treated as "already delivered" and mapped to a success. Platforms
// configured with a shared secret get an HMAC-SHA256 signature over the body
// so the endpoint can authenticate the sender.
package platform

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HeaderIdempotencyKey carries the submission idempotency key to the
// receiving endpoint.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderSignature carries the hex HMAC-SHA256 of the request body, keyed by
// the platform's shared secret, as "sha256=<hex>".
const HeaderSignature = "X-Signature"

// WebhookAdapter delivers packages by POSTing them to a fixed endpoint.
type WebhookAdapter struct {
	// PlatformName is the platform identifier this adapter serves.
	PlatformName string
	// Endpoint is the delivery URL.
	Endpoint string
	// Secret keys the body signature; empty disables signing.
	Secret string
	// Client defaults to http.DefaultClient when nil.
	Client *http.Client
}

type webhookResponse struct {
	DeliveryID string `json:"delivery_id"`
}

// Name implements Adapter.
func (w *WebhookAdapter) Name() string { return w.PlatformName }

// Deliver implements Adapter. 2xx responses (and 409 replays) succeed; other
// statuses are returned as errors for the submission engine's retry policy.
func (w *WebhookAdapter) Deliver(ctx context.Context, pkg Package, idempotencyKey string) (string, error) {
	body, err := json.Marshal(pkg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	if w.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.Secret))
		mac.Write(body)
		req.Header.Set(HeaderSignature, "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// 409 means the endpoint already processed this key: a replay, not a
	// failure.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("platform %s returned %d: %s", w.PlatformName, resp.StatusCode, string(msg))
	}

	var wr webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil || wr.DeliveryID == "" {
		// Endpoints without a body still delivered; synthesize a stable ID
		// from the idempotency key so replays agree.
		return "wh-" + idempotencyKey[:16], nil
	}
	return wr.DeliveryID, nil
}
