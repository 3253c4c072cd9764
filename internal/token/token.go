// Package token generates high-entropy, URL-safe, single-purpose tokens for
// check-in confirmations and trustee access grants.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Generate returns a URL-safe base64 token encoding n random bytes.
func Generate(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MustGenerate panics instead of returning an error; callers sizing a fixed,
// well-known byte count use this to avoid threading an error return through
// call sites that can't meaningfully recover from a broken system RNG.
func MustGenerate(n int) string {
	s, err := Generate(n)
	if err != nil {
		panic(err)
	}
	return s
}

// CheckInTokenBytes is the entropy for check-in confirmation tokens.
const CheckInTokenBytes = 32

// TrusteeAccessTokenBytes is the entropy for trustee access tokens.
const TrusteeAccessTokenBytes = 48
