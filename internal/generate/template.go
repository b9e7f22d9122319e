// Built-in template generator.
//
// Used when no external generation service is configured. Drafts are
// deterministic references derived from the (user, opportunity) pair, so a
// retried request always yields the same content ref, and the quality
// estimate is conservative enough that review-required deployments still put
// every draft in front of a human.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// Template returns a local Generator producing deterministic draft refs.
func Template() Generator {
	return Func(func(ctx context.Context, profile domain.Profile, opp domain.Opportunity, c Constraints) (Draft, error) {
		if err := ctx.Err(); err != nil {
			return Draft{}, err
		}
		sum := sha256.Sum256([]byte(profile.UserID + "\x1f" + opp.ID + "\x1f" + c.ContentType))
		ref := "tpl-" + hex.EncodeToString(sum[:8])
		return Draft{ContentRef: ref, QualityScore: 0.5}, nil
	})
}
