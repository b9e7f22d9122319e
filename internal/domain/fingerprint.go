// Opportunity fingerprinting.
//
// The fingerprint is a normalized SHA-256 over (title, organization,
// canonical URL), falling back to a shingle of the description when no URL is
// available. Two raw records that describe the same opportunity, possibly
// scraped from different sources with different casing, punctuation, or
// tracking query parameters, must produce the same fingerprint so the store
// can merge them instead of inserting duplicates.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"
)

// shingleTokens is the number of leading normalized description tokens used
// when no canonical URL is present.
const shingleTokens = 24

// Fingerprint computes the deduplication hash for an opportunity. It is a
// pure function of (title, organization, url-or-description).
func Fingerprint(title, organization, rawURL, description string) string {
	parts := []string{
		normalizeText(title),
		normalizeText(organization),
	}
	if canon := CanonicalURL(rawURL); canon != "" {
		parts = append(parts, canon)
	} else {
		parts = append(parts, descriptionShingle(description))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// CanonicalURL normalizes a URL for fingerprinting: lowercased scheme and
// host, no query string, no fragment, no trailing slash. Returns "" when the
// input is empty or unparseable, which makes the fingerprint fall back to the
// description shingle.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// normalizeText lowercases, strips punctuation, and collapses whitespace so
// "Senior Engineer / Backend" and "senior engineer backend" normalize alike.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// descriptionShingle returns the first shingleTokens normalized tokens of the
// description joined by spaces. Longer descriptions that differ only in their
// tails still fingerprint identically.
func descriptionShingle(description string) string {
	toks := strings.Fields(normalizeText(description))
	if len(toks) > shingleTokens {
		toks = toks[:shingleTokens]
	}
	return strings.Join(toks, " ")
}
