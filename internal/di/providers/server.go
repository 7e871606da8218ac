package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/headercal/headercal-server/internal/api"
	"github.com/headercal/headercal-server/internal/auth"
	"github.com/headercal/headercal-server/internal/config"
	"github.com/headercal/headercal-server/internal/logger"
	"github.com/headercal/headercal-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	schedHandle := do.MustInvoke[*SchedulerHandle](i)
	verifier := do.MustInvoke[*auth.CachedVerifier](i)

	services := &api.Services{
		Tokens:       do.MustInvoke[*auth.TokenService](i),
		Session:      do.MustInvoke[*service.SessionService](i),
		Presence:     do.MustInvoke[*service.PresenceService](i),
		User:         do.MustInvoke[*service.UserService](i),
		Label:        do.MustInvoke[*service.LabelService](i),
		Availability: do.MustInvoke[*service.AvailabilityService](i),
		Export:       do.MustInvoke[*service.ExportService](i),
		Search:       searchHandle.SearchIndex,
	}

	handler := api.NewServer(storeHandle, services, verifier, sseHandle.Manager, schedHandle.Scheduler, api.Options{
		Name:                  cfg.Server.Name,
		CORSAllowedOrigins:    cfg.Server.CORSAllowedOrigins,
		MetricsEnabled:        cfg.Metrics.Enabled,
		IdentityRatePerMinute: cfg.RateLimit.PerMinute,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "name", cfg.Server.Name)

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
