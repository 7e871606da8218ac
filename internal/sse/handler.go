package sse

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// CredentialFunc extracts the authenticated credential from a request.
// ok is false for unauthenticated requests.
type CredentialFunc func(r *http.Request) (credential string, ok bool)

// Handler handles SSE connections at GET /api/v1/stream.
type Handler struct {
	manager    *Manager
	credential CredentialFunc
	logger     *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, credential CredentialFunc, logger *slog.Logger) *Handler {
	return &Handler{
		manager:    manager,
		credential: credential,
		logger:     logger,
	}
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	credential, ok := h.credential(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Check if request context is already canceled (early client disconnect).
	if r.Context().Err() != nil {
		return
	}

	// Register before writing headers so a failed hook can still be reported.
	client, err := h.manager.Connect(r.Context(), credential, TransportSSE)
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusServiceUnavailable)
		return
	}
	// The request context is done by the time the deferred call runs.
	defer h.manager.Disconnect(context.WithoutCancel(r.Context()), client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)

	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		return
	}

	log := h.logger.With(slog.String("client_id", client.ID))

	if err := h.send(w, rc, NewConnectedEvent(client)); err != nil {
		log.Warn("failed to send connected event", slog.String("error", err.Error()))
		return
	}

	for {
		var (
			event Event
			open  bool
		)
		select {
		case event, open = <-client.EventChan:
		case <-client.Done:
		case <-r.Context().Done():
			log.Debug("stream closed by client")
			return
		}
		if !open {
			log.Info("stream closed by manager")
			return
		}
		// A failed write means the client went away.
		if err := h.send(w, rc, event); err != nil {
			log.Debug("stream write failed", slog.String("error", err.Error()))
			return
		}
	}
}

// send writes one SSE frame and flushes it. The event id doubles as the
// frame id so clients can report the last one they saw.
func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", event.Type, event.ID, data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}

	// Each write pushes the deadline out, so a stuck client times out
	// after two missed heartbeats.
	if err := rc.SetWriteDeadline(time.Now().Add(2 * h.manager.heartbeatInterval)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
