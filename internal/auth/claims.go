package auth

import (
	"time"
)

// IdentityClaims represents the claims stored in a PASETO identity token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
type IdentityClaims struct {
	// Credential is the stable identity derived from issuer and subject.
	Credential string `json:"credential"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}
