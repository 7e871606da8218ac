package auth

import (
	"encoding/hex"
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/headercal/headercal-server/internal/id"
)

const (
	tokenIssuer   = "headercal-server"
	tokenAudience = "headercal-client"

	// PASETO v4 symmetric key requirements.
	keyBytesSize = 32 // 256 bits
	keyHexSize   = 64 // 32 bytes as hex string
)

// ErrCredentialMismatch is returned for a token whose credential claim
// does not match its subject.
var ErrCredentialMismatch = errors.New("credential does not match subject")

// IssuedIdentity is a freshly minted identity and its token.
type IssuedIdentity struct {
	Token      string    `json:"token"`
	Credential string    `json:"identity"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// TokenService handles PASETO identity token generation and verification.
type TokenService struct {
	symmetricKey  paseto.V4SymmetricKey
	tokenDuration time.Duration
}

// NewTokenService creates a new token service with the given configuration.
func NewTokenService(keyHex string, tokenDuration time.Duration) (*TokenService, error) {
	if len(keyHex) != keyHexSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d hex characters (%d bytes), got %d", keyHexSize, keyBytesSize, len(keyHex))
	}

	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string for PASETO key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{
		symmetricKey:  key,
		tokenDuration: tokenDuration,
	}, nil
}

// IssueIdentity mints a new identity: a random subject, the credential
// derived from it, and an encrypted token carrying both.
func (s *TokenService) IssueIdentity() (*IssuedIdentity, error) {
	subject, err := id.Secret()
	if err != nil {
		return nil, fmt.Errorf("generate subject: %w", err)
	}
	return s.issue(subject, time.Now())
}

// Refresh issues a new token for the identity in claims.
func (s *TokenService) Refresh(claims *IdentityClaims) (*IssuedIdentity, error) {
	return s.issue(claims.Subject, time.Now())
}

func (s *TokenService) issue(subject string, now time.Time) (*IssuedIdentity, error) {
	credential := DeriveCredential(tokenIssuer, subject)
	expires := now.Add(s.tokenDuration)

	token := paseto.NewToken()

	token.SetIssuer(tokenIssuer)
	token.SetSubject(subject)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expires)

	tokenID, err := id.Generate("tok")
	if err != nil {
		return nil, fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("credential", credential)

	return &IssuedIdentity{
		Token:      token.V4Encrypt(s.symmetricKey, nil),
		Credential: credential,
		ExpiresAt:  expires,
	}, nil
}

// Verify verifies and parses a PASETO identity token.
// Returns the claims if valid, or an error if they're invalid or expired.
func (s *TokenService) Verify(tokenString string) (*IdentityClaims, error) {
	parser := paseto.NewParser()

	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims IdentityClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	if claims.Credential != DeriveCredential(claims.Issuer, claims.Subject) {
		return nil, ErrCredentialMismatch
	}

	return &claims, nil
}

// TokenDuration returns the configured identity token lifetime.
func (s *TokenService) TokenDuration() time.Duration {
	return s.tokenDuration
}
