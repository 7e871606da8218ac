package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/headercal/headercal-server/internal/auth"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/logger"
)

func (s *Server) registerIdentityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "issueIdentity",
		Method:      http.MethodPost,
		Path:        "/api/v1/identity",
		Summary:     "Issue identity",
		Description: "Mints a new anonymous identity and the token that proves it. The identity is recorded on its first connection.",
		Tags:        []string{"Identity"},
		Middlewares: huma.Middlewares{s.rateLimitByIP()},
	}, s.handleIssueIdentity)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshIdentity",
		Method:      http.MethodPost,
		Path:        "/api/v1/identity/refresh",
		Summary:     "Refresh identity token",
		Description: "Issues a fresh token for the caller's identity",
		Tags:        []string{"Identity"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRefreshIdentity)
}

// === DTOs ===

// IdentityResponse contains a freshly issued identity token.
type IdentityResponse struct {
	Identity  string    `json:"identity" doc:"Stable identity credential"`
	Token     string    `json:"token" doc:"Bearer token proving the identity"`
	ExpiresAt time.Time `json:"expires_at" doc:"Token expiry"`
}

// IdentityOutput wraps the identity response for Huma.
type IdentityOutput struct {
	Body IdentityResponse
}

// MessageResponse contains a simple confirmation.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// RefreshIdentityInput contains parameters for refreshing a token.
type RefreshIdentityInput struct {
	Authorization string `header:"Authorization"`
}

// === Handlers ===

func (s *Server) handleIssueIdentity(ctx context.Context, _ *struct{}) (*IdentityOutput, error) {
	issued, err := s.services.Tokens.IssueIdentity()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to issue identity")
	}

	logger.FromContext(ctx, s.logger).Info("identity issued", logger.Credential(issued.Credential))
	return identityOutput(issued), nil
}

func (s *Server) handleRefreshIdentity(ctx context.Context, _ *RefreshIdentityInput) (*IdentityOutput, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}

	issued, err := s.services.Tokens.Refresh(claims)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to refresh identity token")
	}
	return identityOutput(issued), nil
}

func identityOutput(issued *auth.IssuedIdentity) *IdentityOutput {
	return &IdentityOutput{
		Body: IdentityResponse{
			Identity:  issued.Credential,
			Token:     issued.Token,
			ExpiresAt: issued.ExpiresAt,
		},
	}
}
