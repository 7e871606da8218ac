package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/headercal/headercal-server/internal/auth"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// claimsKey is the context key for the verified identity token claims.
const claimsKey ctxKey = "identityClaims"

// GetClaims returns the verified identity claims from context.
// Returns 401 error if the request carried no valid identity token.
func GetClaims(ctx context.Context) (*auth.IdentityClaims, error) {
	claims, ok := ctx.Value(claimsKey).(*auth.IdentityClaims)
	if !ok || claims == nil {
		return nil, domainerrors.Unauthorized("Identity token required")
	}
	return claims, nil
}

// GetCredential returns the caller's credential from context.
func GetCredential(ctx context.Context) (string, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return "", err
	}
	return claims.Credential, nil
}

// setClaims stores the verified claims in context.
func setClaims(ctx context.Context, claims *auth.IdentityClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// authMiddleware returns a middleware that verifies identity tokens and
// stores their claims in context. Requests without a valid token continue
// anonymously; handlers use GetCredential to require one.
func authMiddleware(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				// Invalid token - continue anonymously (handler will reject if required)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setClaims(r.Context(), claims)))
		})
	}
}

// streamCredential resolves the credential for SSE and WebSocket
// connections. Browsers cannot set headers on either, so a "token" query
// parameter is accepted when no header was verified.
func streamCredential(verifier auth.Verifier) func(r *http.Request) (string, bool) {
	return func(r *http.Request) (string, bool) {
		if credential, err := GetCredential(r.Context()); err == nil {
			return credential, true
		}
		token := r.URL.Query().Get("token")
		if token == "" {
			return "", false
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			return "", false
		}
		return claims.Credential, true
	}
}
