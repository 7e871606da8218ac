package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/headercal/headercal-server/internal/validation"
)

type testEnv struct {
	store        *store.Store
	sessions     *SessionService
	presence     *PresenceService
	users        *UserService
	labels       *LabelService
	availability *AvailabilityService
	export       *ExportService
}

type stubSearcher struct {
	ids []uint32
}

func (s *stubSearcher) SearchLabels(_ context.Context, _ string, _ int) ([]uint32, error) {
	return s.ids, nil
}

// setupServices wires every service to a fresh badger store.
func setupServices(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.DiscardHandler)
	v := validation.New()

	return &testEnv{
		store:        s,
		sessions:     NewSessionService(s, logger),
		presence:     NewPresenceService(s, logger),
		users:        NewUserService(s, v, logger),
		labels:       NewLabelService(s, &stubSearcher{}, v, logger),
		availability: NewAvailabilityService(s, logger),
		export:       NewExportService(s, "calendar.test", logger),
	}
}

// signIn connects credential and binds it to a new user.
func (e *testEnv) signIn(t *testing.T, credential, username string) *domain.User {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.sessions.OnConnect(ctx, credential))
	user, err := e.users.Create(ctx, username)
	require.NoError(t, err)
	require.NoError(t, e.sessions.ConnectToClient(ctx, credential, user.ID))
	return e.user(t, user.ID)
}

func (e *testEnv) user(t *testing.T, id uint32) *domain.User {
	t.Helper()
	u, err := e.users.Get(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) identity(t *testing.T, credential string) *domain.Identity {
	t.Helper()
	session, err := e.sessions.Resolve(context.Background(), credential)
	require.NoError(t, err)
	require.NotNil(t, session.Identity)
	return session.Identity
}
