package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/headercal/headercal-server/internal/domain"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/service"
)

func (s *Server) registerLabelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLabels",
		Method:      http.MethodGet,
		Path:        "/api/v1/labels",
		Summary:     "List range labels",
		Description: "Returns range labels, optionally restricted to one creator",
		Tags:        []string{"Labels"},
	}, s.handleListLabels)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createLabel",
		Method:        http.MethodPost,
		Path:          "/api/v1/labels",
		Summary:       "Create range label",
		Description:   "Creates a titled span owned by the caller's user. Labels may overlap.",
		Tags:          []string{"Labels"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateLabel)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchLabels",
		Method:      http.MethodGet,
		Path:        "/api/v1/labels/search",
		Summary:     "Search range labels",
		Description: "Full-text search over label titles, best match first",
		Tags:        []string{"Labels"},
	}, s.handleSearchLabels)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteLabel",
		Method:      http.MethodDelete,
		Path:        "/api/v1/labels/{id}",
		Summary:     "Delete range label",
		Description: "Deletes a label created by the caller's user",
		Tags:        []string{"Labels"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteLabel)
}

// === DTOs ===

// ListLabelsInput contains parameters for listing labels.
type ListLabelsInput struct {
	CreatorUserID uint32 `query:"creator_user_id" doc:"Only labels created by this user"`
}

// LabelResponse contains label data in API responses.
type LabelResponse struct {
	ID            uint32 `json:"id" doc:"Label ID"`
	CreatorUserID uint32 `json:"creator_user_id" doc:"Creator's user ID"`
	Title         string `json:"title" doc:"Label title"`
	Color         string `json:"color" doc:"Display color as #RRGGBB"`
	RangeStart    string `json:"range_start" doc:"Inclusive start, RFC 3339"`
	RangeEnd      string `json:"range_end" doc:"Inclusive end, RFC 3339"`
}

// ListLabelsResponse contains a list of labels.
type ListLabelsResponse struct {
	Labels []LabelResponse `json:"labels" doc:"List of labels"`
}

// ListLabelsOutput wraps the list labels response for Huma.
type ListLabelsOutput struct {
	Body ListLabelsResponse
}

// CreateLabelRequest is the request body for creating a label.
type CreateLabelRequest struct {
	Title      string `json:"title" maxLength:"256" doc:"Label title"`
	Color      string `json:"color,omitempty" doc:"Display color as #RRGGBB; defaults to the creator's color"`
	RangeStart string `json:"range_start" doc:"Inclusive start, RFC 3339"`
	RangeEnd   string `json:"range_end" doc:"Inclusive end, RFC 3339"`
}

// CreateLabelInput wraps the create label request for Huma.
type CreateLabelInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateLabelRequest
}

// LabelOutput wraps the label response for Huma.
type LabelOutput struct {
	Body LabelResponse
}

// SearchLabelsInput contains parameters for searching labels.
type SearchLabelsInput struct {
	Query string `query:"q" required:"true" doc:"Search text"`
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum results"`
}

// DeleteLabelInput contains parameters for deleting a label.
type DeleteLabelInput struct {
	Authorization string `header:"Authorization"`
	ID            uint32 `path:"id" doc:"Label ID"`
}

// === Handlers ===

func (s *Server) handleListLabels(ctx context.Context, input *ListLabelsInput) (*ListLabelsOutput, error) {
	labels, err := s.services.Label.List(ctx, input.CreatorUserID)
	if err != nil {
		return nil, err
	}
	return &ListLabelsOutput{Body: ListLabelsResponse{Labels: toLabelResponses(labels)}}, nil
}

func (s *Server) handleCreateLabel(ctx context.Context, input *CreateLabelInput) (*LabelOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	req := service.CreateLabelRequest{
		Title:      input.Body.Title,
		RangeStart: input.Body.RangeStart,
		RangeEnd:   input.Body.RangeEnd,
	}
	if input.Body.Color != "" {
		c, err := domain.ParseColor(input.Body.Color)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("Invalid color", map[string]string{"color": input.Body.Color})
		}
		req.Color = &c
	}

	label, err := s.services.Label.Create(ctx, credential, req)
	if err != nil {
		return nil, err
	}
	return &LabelOutput{Body: toLabelResponse(label)}, nil
}

func (s *Server) handleSearchLabels(ctx context.Context, input *SearchLabelsInput) (*ListLabelsOutput, error) {
	labels, err := s.services.Label.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ListLabelsOutput{Body: ListLabelsResponse{Labels: toLabelResponses(labels)}}, nil
}

func (s *Server) handleDeleteLabel(ctx context.Context, input *DeleteLabelInput) (*MessageOutput, error) {
	credential, err := GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Label.Delete(ctx, credential, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Range label deleted"}}, nil
}

func toLabelResponse(l *domain.RangeLabel) LabelResponse {
	return LabelResponse{
		ID:            l.ID,
		CreatorUserID: l.CreatorUserID,
		Title:         l.Title,
		Color:         l.Color.Hex(),
		RangeStart:    l.RangeStart,
		RangeEnd:      l.RangeEnd,
	}
}

func toLabelResponses(labels []*domain.RangeLabel) []LabelResponse {
	resp := make([]LabelResponse, len(labels))
	for i, l := range labels {
		resp[i] = toLabelResponse(l)
	}
	return resp
}
