package sse

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/headercal/headercal-server/internal/id"
	"github.com/headercal/headercal-server/internal/metrics"
)

// Transports a client can connect over.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// ErrShutdown is returned by Connect once the manager is shutting down.
var ErrShutdown = errors.New("connection manager is shut down")

// Client represents one open connection.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	Credential  string
	Transport   string
}

// Hooks run when a credential's connection count leaves or returns to zero.
type Hooks interface {
	OnConnect(ctx context.Context, credential string) error
	OnDisconnect(ctx context.Context, credential string) error
}

// Manager tracks open connections, broadcasts events to them, and fires
// the connect hook on a credential's first connection and the disconnect
// hook when its last one closes.
type Manager struct {
	hooks             Hooks
	clients           map[string]*Client
	credentials       map[string]int
	events            chan Event
	logger            *slog.Logger
	wg                sync.WaitGroup
	heartbeatInterval time.Duration
	mu                sync.RWMutex

	// hookMu orders count transitions and their hooks.
	hookMu sync.Mutex

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewManager creates a new connection Manager.
func NewManager(logger *slog.Logger, heartbeatInterval time.Duration) *Manager {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Manager{
		clients:           make(map[string]*Client),
		credentials:       make(map[string]int),
		events:            make(chan Event, 1000), // Buffer 1000 events
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
	}
}

// SetHooks sets the connect/disconnect hooks. It must be called before the
// first connection.
func (m *Manager) SetHooks(hooks Hooks) {
	m.hooks = hooks
}

// Start begins the event broadcasting loop.
// This should be called once at server startup in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("connection manager starting")

	heartbeatTicker := time.NewTicker(m.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(event)

		case <-heartbeatTicker.C:
			m.broadcast(NewHeartbeatEvent())

		case <-ctx.Done():
			m.logger.Info("connection manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown gracefully shuts down the manager.
// It stops accepting new events, drains remaining events, and closes all clients.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("connection manager shutdown initiated")

	// Mark as shutdown AND close channel atomically while holding lock.
	// This prevents race with Emit() which holds read lock during send.
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("events drained successfully")
	case <-ctx.Done():
		m.logger.Warn("event drain timeout, some events may be lost")
	}

	m.wg.Wait()
	m.closeAllClients()

	m.logger.Info("connection manager shutdown complete")
	return nil
}

// broadcast sends an event to connected clients. Events addressed to a
// credential reach only that credential's connections.
func (m *Manager) broadcast(event Event) {
	var delivered, dropped, filtered int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		if event.Credential != "" && event.Credential != client.Credential {
			filtered++
			continue
		}

		// Non-blocking send (drop if client is slow/stuck).
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", client.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("filtered", filtered),
				slog.Int("dropped", dropped)))
	}
}

// Connect registers a new connection for credential. If it is the
// credential's only open connection the connect hook runs before the client
// is registered; a hook failure rejects the connection.
func (m *Manager) Connect(ctx context.Context, credential, transport string) (*Client, error) {
	m.shutdownMu.RLock()
	closed := m.shutdown
	m.shutdownMu.RUnlock()
	if closed {
		return nil, ErrShutdown
	}

	clientID, err := id.Generate("conn")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		Credential:  credential,
		Transport:   transport,
		EventChan:   make(chan Event, 100), // Buffer 100 events per client
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.hookMu.Lock()
	defer m.hookMu.Unlock()

	// The credential counts as live before the hook runs, so a presence
	// sweep racing the hook never clears what the hook just recorded.
	m.mu.Lock()
	first := m.credentials[credential] == 0
	m.credentials[credential]++
	m.mu.Unlock()

	if first && m.hooks != nil {
		if err := m.hooks.OnConnect(ctx, credential); err != nil {
			m.mu.Lock()
			m.release(credential)
			m.mu.Unlock()
			return nil, err
		}
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	totalClients := len(m.clients)
	m.mu.Unlock()

	metrics.ActiveConnections.WithLabelValues(transport).Inc()
	m.logger.Info("client connected",
		slog.String("client_id", clientID),
		slog.String("identity", credential),
		slog.String("transport", transport),
		slog.Int("total_clients", totalClients))
	return client, nil
}

// Disconnect removes a client and closes its channels. When it was the
// credential's last connection the disconnect hook runs.
func (m *Manager) Disconnect(ctx context.Context, clientID string) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()

	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	last := m.release(client.Credential)
	totalClients := len(m.clients)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)
	metrics.ActiveConnections.WithLabelValues(client.Transport).Dec()

	m.logger.Info("client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", totalClients))

	if last && m.hooks != nil {
		if err := m.hooks.OnDisconnect(ctx, client.Credential); err != nil {
			m.logger.Error("disconnect hook failed",
				slog.String("identity", client.Credential),
				slog.String("error", err.Error()))
		}
	}
}

// release drops one connection of credential and reports whether it was
// the last. Callers hold mu.
func (m *Manager) release(credential string) bool {
	n := m.credentials[credential] - 1
	if n <= 0 {
		delete(m.credentials, credential)
		return true
	}
	m.credentials[credential] = n
	return false
}

// Emit queues an event for broadcasting to clients.
// This implements the store.EventEmitter interface.
func (m *Manager) Emit(event any) {
	evt, ok := event.(Event)
	if !ok {
		m.logger.Error("invalid event type emitted",
			slog.String("type", "unknown"))
		return
	}

	// Hold read lock through the entire send operation.
	// This prevents race with Shutdown() which holds write lock when closing channel.
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}

	select {
	case m.events <- evt:
	default:
		m.logger.Error("event channel full, dropping event",
			slog.String("event_type", string(evt.Type)))
	}
}

// IsLive reports whether credential has at least one open connection.
func (m *Manager) IsLive(credential string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credentials[credential] > 0
}

// ConnectionsOf returns the number of open connections for credential.
func (m *Manager) ConnectionsOf(credential string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credentials[credential]
}

// Clients returns an iterator over all connected clients.
func (m *Manager) Clients() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for _, client := range m.clients {
			if !yield(client) {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IdentityCount returns the number of credentials with open connections.
func (m *Manager) IdentityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.credentials)
}

// closeAllClients closes all client connections (used during shutdown).
// Hooks do not run; the startup presence sweep clears what they would have.
func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
		metrics.ActiveConnections.WithLabelValues(client.Transport).Dec()
	}
	m.clients = make(map[string]*Client)
	m.credentials = make(map[string]int)

	m.logger.Info("all clients disconnected")
}
