package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Description: "Returns every user with its presence",
		Tags:        []string{"Users"},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createUser",
		Method:        http.MethodPost,
		Path:          "/api/v1/users",
		Summary:       "Create user",
		Description:   "Creates an offline user that identities can sign in as",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get user",
		Description: "Returns a user by ID",
		Tags:        []string{"Users"},
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "renameUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/{id}",
		Summary:     "Rename user",
		Description: "Changes the username of the user the caller is signed in as",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRenameUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteUser",
		Method:      http.MethodDelete,
		Path:        "/api/v1/users/{id}",
		Summary:     "Delete user",
		Description: "Deletes the user the caller is signed in as, signs out every identity bound to it, and deletes its labels and availability",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteUser)
}

// === DTOs ===

// ListUsersResponse contains a list of users.
type ListUsersResponse struct {
	Users []*domain.User `json:"users" doc:"Users ordered by ID"`
}

// ListUsersOutput wraps the list users response for Huma.
type ListUsersOutput struct {
	Body ListUsersResponse
}

// UserOutput wraps a single user for Huma.
type UserOutput struct {
	Body *domain.User
}

// UsernameRequest is the request body for creating or renaming a user.
type UsernameRequest struct {
	Username string `json:"username" maxLength:"64" doc:"Display name"`
}

// CreateUserInput wraps the create user request for Huma.
type CreateUserInput struct {
	Authorization string `header:"Authorization"`
	Body          UsernameRequest
}

// GetUserInput contains parameters for getting a user.
type GetUserInput struct {
	ID uint32 `path:"id" doc:"User ID"`
}

// RenameUserInput wraps the rename request for Huma.
type RenameUserInput struct {
	Authorization string `header:"Authorization"`
	ID            uint32 `path:"id" doc:"User ID"`
	Body          UsernameRequest
}

// DeleteUserInput contains parameters for deleting a user.
type DeleteUserInput struct {
	Authorization string `header:"Authorization"`
	ID            uint32 `path:"id" doc:"User ID"`
}

// DeleteUserOutput reports what the deletion removed.
type DeleteUserOutput struct {
	Body service.DeleteResult
}

// === Handlers ===

func (s *Server) handleListUsers(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
	users, err := s.services.User.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return &ListUsersOutput{Body: ListUsersResponse{Users: users}}, nil
}

func (s *Server) handleCreateUser(ctx context.Context, input *CreateUserInput) (*UserOutput, error) {
	if _, err := GetCredential(ctx); err != nil {
		return nil, err
	}

	user, err := s.services.User.Create(ctx, input.Body.Username)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleGetUser(ctx context.Context, input *GetUserInput) (*UserOutput, error) {
	user, err := s.services.User.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleRenameUser(ctx context.Context, input *RenameUserInput) (*UserOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.User.Rename(ctx, credential, input.ID, input.Body.Username)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleDeleteUser(ctx context.Context, input *DeleteUserInput) (*DeleteUserOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.User.Delete(ctx, credential, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteUserOutput{Body: result}, nil
}
