package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/headercal/headercal-server/internal/domain"
)

func (s *Server) registerAvailabilityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAvailability",
		Method:      http.MethodGet,
		Path:        "/api/v1/availability",
		Summary:     "List availability",
		Description: "Returns availability rows. A single creator's rows are ordered by start.",
		Tags:        []string{"Availability"},
	}, s.handleListAvailability)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createAvailability",
		Method:        http.MethodPost,
		Path:          "/api/v1/availability",
		Summary:       "Set availability",
		Description:   "Sets the caller's availability over a closed range. Overlapping rows are trimmed, split, or replaced. Level 0 clears the range.",
		Tags:          []string{"Availability"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateAvailability)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAvailabilityLevel",
		Method:      http.MethodGet,
		Path:        "/api/v1/availability/level",
		Summary:     "Get effective level",
		Description: "Returns a user's availability level at an instant; 0 where no row covers it",
		Tags:        []string{"Availability"},
	}, s.handleGetAvailabilityLevel)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAvailability",
		Method:      http.MethodDelete,
		Path:        "/api/v1/availability/{id}",
		Summary:     "Delete availability row",
		Description: "Deletes one row created by the caller's user. Neighboring rows are not merged or extended.",
		Tags:        []string{"Availability"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteAvailability)
}

// === DTOs ===

// ListAvailabilityInput contains parameters for listing availability.
type ListAvailabilityInput struct {
	CreatorUserID uint32 `query:"creator_user_id" doc:"Only rows created by this user"`
}

// ListAvailabilityResponse contains a list of availability rows.
type ListAvailabilityResponse struct {
	Availability []*domain.RangeAvailability `json:"availability" doc:"Availability rows"`
}

// ListAvailabilityOutput wraps the list response for Huma.
type ListAvailabilityOutput struct {
	Body ListAvailabilityResponse
}

// CreateAvailabilityRequest is the request body for setting availability.
type CreateAvailabilityRequest struct {
	RangeStart string `json:"range_start" doc:"Inclusive start, RFC 3339"`
	RangeEnd   string `json:"range_end" doc:"Inclusive end, RFC 3339"`
	Level      int8   `json:"availability_level" doc:"Level to apply; 0 clears"`
}

// CreateAvailabilityInput wraps the create request for Huma.
type CreateAvailabilityInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateAvailabilityRequest
}

// CreateAvailabilityResponse reports the reconciliation outcome.
type CreateAvailabilityResponse struct {
	Row     *domain.RangeAvailability `json:"row" doc:"Inserted row, or null when the level was 0"`
	Updated int                       `json:"updated" doc:"Existing rows trimmed"`
	Deleted int                       `json:"deleted" doc:"Existing rows removed"`
	Split   int                       `json:"split" doc:"Remainder rows inserted by splitting"`
}

// CreateAvailabilityOutput wraps the create response for Huma.
type CreateAvailabilityOutput struct {
	Body CreateAvailabilityResponse
}

// AvailabilityLevelInput contains parameters for the level query.
type AvailabilityLevelInput struct {
	UserID uint32 `query:"user_id" required:"true" doc:"User ID"`
	At     string `query:"at" required:"true" doc:"Instant, RFC 3339"`
}

// AvailabilityLevelResponse contains the effective level.
type AvailabilityLevelResponse struct {
	UserID uint32 `json:"user_id" doc:"User ID"`
	At     string `json:"at" doc:"Queried instant"`
	Level  int8   `json:"availability_level" doc:"Effective level"`
}

// AvailabilityLevelOutput wraps the level response for Huma.
type AvailabilityLevelOutput struct {
	Body AvailabilityLevelResponse
}

// DeleteAvailabilityInput contains parameters for deleting a row.
type DeleteAvailabilityInput struct {
	Authorization string `header:"Authorization"`
	ID            uint32 `path:"id" doc:"Availability row ID"`
}

// === Handlers ===

func (s *Server) handleListAvailability(ctx context.Context, input *ListAvailabilityInput) (*ListAvailabilityOutput, error) {
	rows, err := s.services.Availability.List(ctx, input.CreatorUserID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*domain.RangeAvailability{}
	}
	return &ListAvailabilityOutput{Body: ListAvailabilityResponse{Availability: rows}}, nil
}

func (s *Server) handleCreateAvailability(ctx context.Context, input *CreateAvailabilityInput) (*CreateAvailabilityOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Availability.Create(ctx, credential,
		input.Body.RangeStart, input.Body.RangeEnd, input.Body.Level)
	if err != nil {
		return nil, err
	}

	return &CreateAvailabilityOutput{
		Body: CreateAvailabilityResponse{
			Row:     result.Row,
			Updated: result.Updated,
			Deleted: result.Deleted,
			Split:   result.Split,
		},
	}, nil
}

func (s *Server) handleGetAvailabilityLevel(ctx context.Context, input *AvailabilityLevelInput) (*AvailabilityLevelOutput, error) {
	level, err := s.services.Availability.LevelAt(ctx, input.UserID, input.At)
	if err != nil {
		return nil, err
	}
	return &AvailabilityLevelOutput{
		Body: AvailabilityLevelResponse{UserID: input.UserID, At: input.At, Level: level},
	}, nil
}

func (s *Server) handleDeleteAvailability(ctx context.Context, input *DeleteAvailabilityInput) (*MessageOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Availability.Delete(ctx, credential, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Range availability deleted"}}, nil
}
