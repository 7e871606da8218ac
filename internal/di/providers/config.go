// Package providers contains dependency injection providers for the HeaderCal server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/headercal/headercal-server/internal/config"
	"github.com/headercal/headercal-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.ForEnvironment(cfg.App.Environment, cfg.Logger.Level)

	log.Info("Starting HeaderCal Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.Path,
		"store_driver", cfg.Store.Driver,
	)

	return log, nil
}
