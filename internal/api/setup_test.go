package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/headercal/headercal-server/internal/auth"
	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/search"
	"github.com/headercal/headercal-server/internal/service"
	"github.com/headercal/headercal-server/internal/sse"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/headercal/headercal-server/internal/validation"
)

// testEnvelope is the decoded response envelope.
type testEnvelope[T any] struct {
	V       int       `json:"v"`
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error"`
}

// testServer wraps the API server for handler tests.
type testServer struct {
	*Server
	api   humatest.TestAPI
	store *store.Store
}

// setupTestServer wires a server over a fresh badger store and label index.
func setupTestServer(t *testing.T, configure ...func(*Options)) *testServer {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	sseManager := sse.NewManager(logger, time.Minute)
	st, err := store.New(filepath.Join(dir, "db"), logger, sseManager)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: dir, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	st.SetSearchIndexer(index)

	key, err := auth.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(hex.EncodeToString(key), time.Hour)
	require.NoError(t, err)

	v := validation.New()
	services := &Services{
		Tokens:       tokens,
		Session:      service.NewSessionService(st, logger),
		Presence:     service.NewPresenceService(st, logger),
		User:         service.NewUserService(st, v, logger),
		Label:        service.NewLabelService(st, index, v, logger),
		Availability: service.NewAvailabilityService(st, logger),
		Export:       service.NewExportService(st, "calendar.test", logger),
		Search:       index,
	}
	sseManager.SetHooks(services.Session)

	ctx, cancel := context.WithCancel(context.Background())
	go sseManager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = sseManager.Shutdown(context.Background())
	})

	opts := Options{
		Name:                  "HeaderCal Test",
		IdentityRatePerMinute: 100,
	}
	for _, fn := range configure {
		fn(&opts)
	}

	s := NewServer(st, services, auth.NewCachedVerifier(tokens, time.Minute), sseManager, nil, opts, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		store:  st,
	}
}

// decode unmarshals a response envelope.
func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

// issueIdentity mints an identity through the API.
func (ts *testServer) issueIdentity(t *testing.T) IdentityResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/identity")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decode[IdentityResponse](t, resp.Body.Bytes()).Data
}

// connect opens an identity's first connection, as a stream would.
func (ts *testServer) connect(t *testing.T, id IdentityResponse) {
	t.Helper()
	require.NoError(t, ts.services.Session.OnConnect(context.Background(), id.Identity))
}

// createUser creates a user through the API.
func (ts *testServer) createUser(t *testing.T, token, username string) *domain.User {
	t.Helper()
	resp := ts.api.Post("/api/v1/users", bearer(token), map[string]any{"username": username})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[*domain.User](t, resp.Body.Bytes()).Data
}

// signIn issues and connects an identity, then binds it to a new user.
func (ts *testServer) signIn(t *testing.T, username string) (string, *domain.User) {
	t.Helper()
	id := ts.issueIdentity(t)
	ts.connect(t, id)
	user := ts.createUser(t, id.Token, username)

	resp := ts.api.Post("/api/v1/session/connect", bearer(id.Token), map[string]any{"user_id": user.ID})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return id.Token, user
}

func urlf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
