package store_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/headercal/headercal-server/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T, emitter store.EventEmitter) store.Backend {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := store.New(filepath.Join(dir, "db"), logger, emitter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerBackend(t *testing.T) {
	storetest.Run(t, openBadger)
}

func TestStore_IDsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")
	ctx := context.Background()

	s, err := store.New(path, nil, nil)
	require.NoError(t, err)

	var first domain.User
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		first = domain.User{Username: "ada"}
		return tx.InsertUser(ctx, &first)
	}))
	require.NoError(t, s.Close())

	s, err = store.New(path, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	var second domain.User
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		second = domain.User{Username: "grace"}
		return tx.InsertUser(ctx, &second)
	}))
	require.Greater(t, second.ID, first.ID)

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetUser(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, "ada", got.Username)
		return nil
	}))
}
