package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// PKCEMethodS256 is the only challenge method this package produces.
const PKCEMethodS256 = "S256"

// PKCE is a Proof Key for Code Exchange verifier/challenge pair
// (RFC 7636).
type PKCE struct {
	// Verifier is the high-entropy code verifier, 43 characters from
	// the unreserved URL set.
	Verifier string

	// Challenge is the base64url-encoded SHA-256 digest of the
	// verifier, without padding.
	Challenge string

	// Method is the code challenge method, always "S256".
	Method string
}

// GeneratePKCE creates a new verifier/challenge pair from a
// cryptographically secure random source.
func GeneratePKCE() (PKCE, error) {
	// 32 random bytes encode to a 43-character verifier, the RFC 7636
	// minimum length.
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return PKCE{}, fmt.Errorf("oauth: pkce verifier generation failed: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(raw)
	return PKCE{
		Verifier:  verifier,
		Challenge: pkceChallenge(verifier),
		Method:    PKCEMethodS256,
	}, nil
}

// VerifyPKCE reports whether challenge is the S256 challenge for
// verifier. The comparison is constant-time.
func VerifyPKCE(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	expected := pkceChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
