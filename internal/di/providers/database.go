package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/headercal/headercal-server/internal/config"
	"github.com/headercal/headercal-server/internal/logger"
	"github.com/headercal/headercal-server/internal/sse"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/headercal/headercal-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the connection manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the connection manager for streams and sockets.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger, cfg.Presence.HeartbeatInterval)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("Connection manager started", "heartbeat", cfg.Presence.HeartbeatInterval)

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the configured backend with shutdown capability.
type StoreHandle struct {
	store.Backend
	setIndexer func(store.SearchIndexer)
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// SetSearchIndexer routes committed label changes to indexer.
func (h *StoreHandle) SetSearchIndexer(indexer store.SearchIndexer) {
	h.setIndexer(indexer)
}

// ProvideStore opens the backend selected by the store driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		dbPath := filepath.Join(cfg.Data.Path, "calendar.sqlite")
		db, err := sqlite.Open(dbPath, log.Logger)
		if err != nil {
			return nil, err
		}
		db.SetEventEmitter(sseHandle.Manager)

		log.Info("Database initialized", "driver", cfg.Store.Driver, "path", dbPath)
		return &StoreHandle{Backend: db, setIndexer: db.SetSearchIndexer}, nil

	case config.StoreDriverBadger, "":
		dbPath := filepath.Join(cfg.Data.Path, "db")
		db, err := store.New(dbPath, log.Logger, sseHandle.Manager)
		if err != nil {
			return nil, err
		}

		log.Info("Database initialized", "driver", config.StoreDriverBadger, "path", dbPath)
		return &StoreHandle{Backend: db, setIndexer: db.SetSearchIndexer}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
