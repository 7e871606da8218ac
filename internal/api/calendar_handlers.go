package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerCalendarRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "exportCalendar",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/calendar.ics",
		Summary:     "Export calendar",
		Description: "Returns a user's range labels and availability as an iCalendar feed",
		Tags:        []string{"Users"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "iCalendar feed",
				Content: map[string]*huma.MediaType{
					"text/calendar": {Schema: &huma.Schema{Type: huma.TypeString}},
				},
			},
		},
	}, s.handleExportCalendar)
}

// ExportCalendarInput contains parameters for exporting a calendar.
type ExportCalendarInput struct {
	ID uint32 `path:"id" doc:"User ID"`
}

// CalendarOutput carries the raw feed.
type CalendarOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func (s *Server) handleExportCalendar(ctx context.Context, input *ExportCalendarInput) (*CalendarOutput, error) {
	var buf bytes.Buffer
	if err := s.services.Export.WriteCalendar(ctx, input.ID, &buf); err != nil {
		return nil, err
	}

	return &CalendarOutput{
		ContentType:        "text/calendar; charset=utf-8",
		ContentDisposition: fmt.Sprintf("inline; filename=\"user-%d.ics\"", input.ID),
		Body:               buf.Bytes(),
	}, nil
}
