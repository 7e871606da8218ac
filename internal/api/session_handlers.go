package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/session",
		Summary:     "Get session",
		Description: "Returns the caller's identity and the user it is signed in as",
		Tags:        []string{"Session"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "connectToClient",
		Method:      http.MethodPost,
		Path:        "/api/v1/session/connect",
		Summary:     "Sign in as user",
		Description: "Binds the caller's identity to an existing user. The identity must be signed out.",
		Tags:        []string{"Session"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleConnectToClient)

	huma.Register(s.api, huma.Operation{
		OperationID: "disconnectFromClient",
		Method:      http.MethodPost,
		Path:        "/api/v1/session/disconnect",
		Summary:     "Sign out",
		Description: "Unbinds the caller's identity from its user and recounts that user's presence",
		Tags:        []string{"Session"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDisconnectFromClient)
}

// === DTOs ===

// SessionInput carries the caller's token.
type SessionInput struct {
	Authorization string `header:"Authorization"`
}

// SessionResponse describes the caller's resolved session.
type SessionResponse struct {
	Identity  string       `json:"identity" doc:"Caller's identity credential"`
	Known     bool         `json:"known" doc:"Whether the identity has connected at least once"`
	Online    bool         `json:"online" doc:"Whether the identity has an open connection"`
	Connected int          `json:"connected" doc:"Open connections on this server for the identity"`
	User      *domain.User `json:"user" doc:"User the identity is signed in as, or null"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

// ConnectRequest is the request body for signing in.
type ConnectRequest struct {
	UserID uint32 `json:"user_id" minimum:"1" doc:"User to sign in as"`
}

// ConnectInput wraps the connect request for Huma.
type ConnectInput struct {
	Authorization string `header:"Authorization"`
	Body          ConnectRequest
}

// === Handlers ===

func (s *Server) handleGetSession(ctx context.Context, _ *SessionInput) (*SessionOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessionOutput(ctx, credential)
}

func (s *Server) handleConnectToClient(ctx context.Context, input *ConnectInput) (*SessionOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Session.ConnectToClient(ctx, credential, input.Body.UserID); err != nil {
		return nil, err
	}
	return s.sessionOutput(ctx, credential)
}

func (s *Server) handleDisconnectFromClient(ctx context.Context, _ *SessionInput) (*SessionOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Session.DisconnectFromClient(ctx, credential); err != nil {
		return nil, err
	}
	return s.sessionOutput(ctx, credential)
}

func (s *Server) sessionOutput(ctx context.Context, credential string) (*SessionOutput, error) {
	session, err := s.services.Session.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: s.toSessionResponse(credential, session)}, nil
}

func (s *Server) toSessionResponse(credential string, session *service.Session) SessionResponse {
	resp := SessionResponse{
		Identity: credential,
		Known:    session.Identity != nil,
		User:     session.User,
	}
	if session.Identity != nil {
		resp.Online = session.Identity.Online
	}
	if s.sseManager != nil {
		resp.Connected = s.sseManager.ConnectionsOf(credential)
	}
	return resp
}
