package api

import (
	"github.com/headercal/headercal-server/internal/auth"
	"github.com/headercal/headercal-server/internal/search"
	"github.com/headercal/headercal-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Tokens       *auth.TokenService
	Session      *service.SessionService
	Presence     *service.PresenceService
	User         *service.UserService
	Label        *service.LabelService
	Availability *service.AvailabilityService
	Export       *service.ExportService
	Search       *search.SearchIndex // nil when search is disabled
}
