// Submission idempotency keys.
//
// The key is a stable hash of (applicationID, platform): every retry of the
// same logical submission carries the same key, letting a platform adapter
// recognize a repeated delivery and collapse it into a no-op success.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// IdempotencyKey derives the stable submission key for an application on a
// platform. The same inputs always produce the same key.
func IdempotencyKey(applicationID, platform string) string {
	sum := sha256.Sum256([]byte(applicationID + "\x1f" + platform))
	return hex.EncodeToString(sum[:])
}
