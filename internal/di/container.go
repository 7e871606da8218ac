// Package di provides dependency injection configuration for the HeaderCal server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/headercal/headercal-server/internal/auth"
	"github.com/headercal/headercal-server/internal/config"
	"github.com/headercal/headercal-server/internal/di/providers"
	"github.com/headercal/headercal-server/internal/logger"
	"github.com/headercal/headercal-server/internal/service"
	"github.com/headercal/headercal-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideValidator)

	// Connections and storage
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideVerifier)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvidePresenceService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideLabelService)
	do.Provide(injector, providers.ProvideAvailabilityService)
	do.Provide(injector, providers.ProvideExportService)

	// Jobs
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order. The session
// service is invoked before the server so the connection hooks are in
// place when the first stream opens.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*auth.CachedVerifier](injector)

	// Business services
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.PresenceService](injector)
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.LabelService](injector)
	_ = do.MustInvoke[*service.AvailabilityService](injector)
	_ = do.MustInvoke[*service.ExportService](injector)

	// Jobs
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
