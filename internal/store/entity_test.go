package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Team  string `json:"team"`
}

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "entity-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath, nil, NewNoopEmitter())
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func newTestEntity() *Entity[testEntity] {
	return NewEntity[testEntity]("test:").
		WithIndex("email", func(e *testEntity) []string {
			return []string{e.Email}
		}).
		WithMultiIndex("team", func(e *testEntity) []string {
			return []string{e.Team}
		})
}

func (s *Store) update(t *testing.T, fn func(txn *badger.Txn) error) error {
	t.Helper()
	return s.db.Update(fn)
}

func (s *Store) view(t *testing.T, fn func(txn *badger.Txn) error) {
	t.Helper()
	require.NoError(t, s.db.View(fn))
}

func TestEntity_CreateAndGet(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx := context.Background()
	want := &testEntity{ID: "1", Name: "John Doe", Email: "john@example.com", Team: "red"}

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "1", want)
	}))

	s.view(t, func(txn *badger.Txn) error {
		got, err := entity.Get(ctx, txn, "1")
		require.NoError(t, err)
		require.Equal(t, want, got)

		byEmail, err := entity.GetByIndex(ctx, txn, "email", "john@example.com")
		require.NoError(t, err)
		require.Equal(t, want, byEmail)
		return nil
	})
}

func TestEntity_Create_AlreadyExists(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx := context.Background()

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "1", &testEntity{ID: "1", Email: "a@example.com"})
	}))

	err := s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "1", &testEntity{ID: "1", Email: "b@example.com"})
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestEntity_IndexConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx := context.Background()

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "1", &testEntity{ID: "1", Email: "same@example.com"})
	}))

	err := s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "2", &testEntity{ID: "2", Email: "same@example.com"})
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.Contains(t, err.Error(), "email")
}

func TestEntity_Get_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()

	s.view(t, func(txn *badger.Txn) error {
		got, err := entity.Get(context.Background(), txn, "nonexistent")
		require.ErrorIs(t, err, ErrNotFound)
		require.Nil(t, got)

		_, err = entity.GetByIndex(context.Background(), txn, "email", "nobody@example.com")
		require.ErrorIs(t, err, ErrNotFound)
		return nil
	})
}

func TestEntity_Update_MovesIndexes(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx := context.Background()

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "1", &testEntity{ID: "1", Email: "old@example.com", Team: "red"})
	}))

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		return entity.Update(ctx, txn, "1", &testEntity{ID: "1", Email: "new@example.com", Team: "blue"})
	}))

	s.view(t, func(txn *badger.Txn) error {
		_, err := entity.GetByIndex(ctx, txn, "email", "old@example.com")
		require.ErrorIs(t, err, ErrNotFound)

		got, err := entity.GetByIndex(ctx, txn, "email", "new@example.com")
		require.NoError(t, err)
		require.Equal(t, "blue", got.Team)

		red, err := entity.Count(ctx, txn, "team", "red")
		require.NoError(t, err)
		require.Zero(t, red)

		blue, err := entity.Count(ctx, txn, "team", "blue")
		require.NoError(t, err)
		require.Equal(t, 1, blue)
		return nil
	})
}

func TestEntity_Update_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	err := s.update(t, func(txn *badger.Txn) error {
		return newTestEntity().Update(context.Background(), txn, "nonexistent", &testEntity{})
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEntity_Delete(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx := context.Background()

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "1", &testEntity{ID: "1", Email: "a@example.com", Team: "red"})
	}))

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		old, err := entity.Delete(ctx, txn, "1")
		require.NoError(t, err)
		require.Equal(t, "a@example.com", old.Email)

		// Idempotent.
		old, err = entity.Delete(ctx, txn, "1")
		require.NoError(t, err)
		require.Nil(t, old)
		return nil
	}))

	s.view(t, func(txn *badger.Txn) error {
		_, err := entity.Get(ctx, txn, "1")
		require.ErrorIs(t, err, ErrNotFound)

		n, err := entity.Count(ctx, txn, "team", "red")
		require.NoError(t, err)
		require.Zero(t, n)
		return nil
	})
}

func TestEntity_ScanAndList(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx := context.Background()

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		for i := 1; i <= 6; i++ {
			team := "red"
			if i%3 == 0 {
				team = "blue"
			}
			e := &testEntity{ID: fmt.Sprintf("t%d", i), Email: fmt.Sprintf("t%d@example.com", i), Team: team}
			if err := entity.Create(ctx, txn, e.ID, e); err != nil {
				return err
			}
		}
		return nil
	}))

	s.view(t, func(txn *badger.Txn) error {
		all, err := collect(entity.List(ctx, txn))
		require.NoError(t, err)
		require.Len(t, all, 6, "index keys must be skipped")

		blue, err := collect(entity.Scan(ctx, txn, "team", "blue"))
		require.NoError(t, err)
		require.Len(t, blue, 2)
		for _, e := range blue {
			require.Equal(t, "blue", e.Team)
		}

		_, err = collect(entity.Scan(ctx, txn, "email", "t1@example.com"))
		require.Error(t, err, "unique indexes are not scannable")
		return nil
	})
}

func TestEntity_List_EarlyTermination(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx := context.Background()

	require.NoError(t, s.update(t, func(txn *badger.Txn) error {
		for i := 1; i <= 10; i++ {
			e := &testEntity{ID: fmt.Sprintf("t%02d", i), Email: fmt.Sprintf("t%d@example.com", i)}
			if err := entity.Create(ctx, txn, e.ID, e); err != nil {
				return err
			}
		}
		return nil
	}))

	s.view(t, func(txn *badger.Txn) error {
		var count int
		for got, err := range entity.List(ctx, txn) {
			require.NoError(t, err)
			require.NotEmpty(t, got.ID)
			count++
			if count == 3 {
				break
			}
		}
		require.Equal(t, 3, count)
		return nil
	})
}

func TestEntity_ContextCancellation(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := newTestEntity()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.update(t, func(txn *badger.Txn) error {
		return entity.Create(ctx, txn, "1", &testEntity{ID: "1"})
	})
	require.ErrorIs(t, err, context.Canceled)

	s.view(t, func(txn *badger.Txn) error {
		_, err := entity.Get(ctx, txn, "1")
		require.ErrorIs(t, err, context.Canceled)
		return nil
	})
}
