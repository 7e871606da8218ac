package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/headercal/headercal-server/internal/logger"
	"github.com/headercal/headercal-server/internal/service"
	"github.com/headercal/headercal-server/internal/validation"
)

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideSessionService provides the identity and session service. It is
// also installed as the connection manager's hooks, so a credential's
// first and last connections drive presence.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewSessionService(storeHandle, log.Logger)
	sseHandle.SetHooks(svc)

	return svc, nil
}

// ProvidePresenceService provides the presence aggregation service.
func ProvidePresenceService(i do.Injector) (*service.PresenceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPresenceService(storeHandle, log.Logger), nil
}

// ProvideUserService provides the user service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle, v, log.Logger), nil
}

// ProvideLabelService provides the range label service.
func ProvideLabelService(i do.Injector) (*service.LabelService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	// A nil index must reach the service as a nil interface.
	var searcher service.LabelSearcher
	if searchHandle.SearchIndex != nil {
		searcher = searchHandle.SearchIndex
	}

	return service.NewLabelService(storeHandle, searcher, v, log.Logger), nil
}

// ProvideAvailabilityService provides the range availability service.
func ProvideAvailabilityService(i do.Injector) (*service.AvailabilityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAvailabilityService(storeHandle, log.Logger), nil
}

// ProvideExportService provides the iCalendar export service.
func ProvideExportService(i do.Injector) (*service.ExportService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "headercal.local"
	}

	return service.NewExportService(storeHandle, host, log.Logger), nil
}
