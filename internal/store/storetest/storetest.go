// Package storetest is a behavioral suite shared by every store.Backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/sse"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener creates an empty backend that publishes to emitter. The backend
// is closed by the caller's cleanup.
type Opener func(t *testing.T, emitter store.EventEmitter) store.Backend

// Recorder is an EventEmitter that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

// Emit implements store.EventEmitter.
func (r *Recorder) Emit(event any) {
	if e, ok := event.(sse.Event); ok {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	}
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Run executes the suite against backends produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("Identities", func(t *testing.T) { testIdentities(t, open) })
	t.Run("OnlineIndex", func(t *testing.T) { testOnlineIndex(t, open) })
	t.Run("UserIDs", func(t *testing.T) { testUserIDs(t, open) })
	t.Run("LabelsByCreator", func(t *testing.T) { testLabelsByCreator(t, open) })
	t.Run("AvailabilityUpdate", func(t *testing.T) { testAvailabilityUpdate(t, open) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open) })
	t.Run("ViewIsReadOnly", func(t *testing.T) { testViewIsReadOnly(t, open) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, open) })
	t.Run("ChangeEvents", func(t *testing.T) { testChangeEvents(t, open) })
	t.Run("ContextCancelled", func(t *testing.T) { testContextCancelled(t, open) })
}

func update(t *testing.T, s store.Backend, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return fn(ctx, tx) }))
}

func view(t *testing.T, s store.Backend, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.View(ctx, func(tx store.Tx) error { return fn(ctx, tx) }))
}

func testIdentities(t *testing.T, open Opener) {
	s := open(t, nil)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertIdentity(ctx, &domain.Identity{Credential: "aa", Online: true})
	})

	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.InsertIdentity(context.Background(), &domain.Identity{Credential: "aa"})
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetIdentity(ctx, "aa")
		require.NoError(t, err)
		assert.True(t, got.Online)
		assert.Zero(t, got.UserID)

		got.UserID = 3
		return tx.UpdateIdentity(ctx, got)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		bound, err := tx.ListIdentitiesByUser(ctx, 3)
		require.NoError(t, err)
		require.Len(t, bound, 1)
		assert.Equal(t, "aa", bound[0].Credential)

		unbound, err := tx.ListIdentitiesByUser(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, unbound, "rebinding must move the user index entry")

		all, err := tx.ListIdentities(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	})
}

func testOnlineIndex(t *testing.T, open Opener) {
	s := open(t, nil)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		for _, i := range []*domain.Identity{
			{Credential: "a", UserID: 1, Online: true},
			{Credential: "b", UserID: 1, Online: false},
			{Credential: "c", UserID: 1, Online: true},
			{Credential: "d", UserID: 2, Online: true},
			{Credential: "e", UserID: 0, Online: true},
		} {
			if err := tx.InsertIdentity(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})

	count := func(userID uint32) int {
		var n int
		view(t, s, func(ctx context.Context, tx store.Tx) error {
			var err error
			n, err = tx.CountOnlineIdentities(ctx, userID)
			return err
		})
		return n
	}

	assert.Equal(t, 2, count(1))
	assert.Equal(t, 1, count(2))
	assert.Equal(t, 0, count(3))

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.GetIdentity(ctx, "a")
		if err != nil {
			return err
		}
		a.Online = false
		return tx.UpdateIdentity(ctx, a)
	})
	assert.Equal(t, 1, count(1))
}

func testUserIDs(t *testing.T, open Opener) {
	s := open(t, nil)

	var first, second domain.User
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		first = domain.User{Username: "ada"}
		if err := tx.InsertUser(ctx, &first); err != nil {
			return err
		}
		second = domain.User{Username: "grace"}
		return tx.InsertUser(ctx, &second)
	})

	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteUser(ctx, second.ID)
	})

	var third domain.User
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		third = domain.User{Username: "linus"}
		return tx.InsertUser(ctx, &third)
	})
	assert.Greater(t, third.ID, second.ID, "ids are never reused")

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		users, err := tx.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "ada", users[0].Username)
		assert.Equal(t, "linus", users[1].Username)
		return nil
	})
}

func testLabelsByCreator(t *testing.T, open Opener) {
	s := open(t, nil)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		for i, creator := range []uint32{1, 2, 1} {
			l := &domain.RangeLabel{
				CreatorUserID: creator,
				Color:         domain.Color{R: uint8(i)},
				Title:         "standup",
				RangeStart:    "2024-01-01T09:00:00Z",
				RangeEnd:      "2024-01-01T09:15:00Z",
			}
			if err := tx.InsertLabel(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		mine, err := tx.ListLabelsByCreator(ctx, 1)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, domain.Color{R: 0}, mine[0].Color)
		assert.Equal(t, domain.Color{R: 2}, mine[1].Color)

		all, err := tx.ListLabels(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
		return nil
	})

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		mine, err := tx.ListLabelsByCreator(ctx, 1)
		if err != nil {
			return err
		}
		return tx.DeleteLabel(ctx, mine[0].ID)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		mine, err := tx.ListLabelsByCreator(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
		return nil
	})
}

func testAvailabilityUpdate(t *testing.T, open Opener) {
	s := open(t, nil)

	row := &domain.RangeAvailability{
		CreatorUserID:     4,
		AvailabilityLevel: -2,
		RangeStart:        "2024-01-01T00:00:00Z",
		RangeEnd:          "2024-01-03T00:00:00Z",
	}
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAvailability(ctx, row)
	})
	require.NotZero(t, row.ID)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		row.RangeEnd = "2024-01-01T23:59:59.999999999Z"
		return tx.UpdateAvailability(ctx, row)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetAvailability(ctx, row.ID)
		require.NoError(t, err)
		assert.Equal(t, *row, *got)

		rows, err := tx.ListAvailabilityByCreator(ctx, 4)
		require.NoError(t, err)
		assert.Len(t, rows, 1)

		all, err := tx.ListAvailability(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	})
}

func testRollback(t *testing.T, open Opener) {
	rec := &Recorder{}
	s := open(t, rec)
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.InsertUser(ctx, &domain.User{Username: "ghost"}); err != nil {
			return err
		}
		if err := tx.InsertIdentity(ctx, &domain.Identity{Credential: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		users, err := tx.ListUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)

		_, err = tx.GetIdentity(ctx, "ghost")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	assert.Empty(t, rec.Types(), "rolled back changes must not be published")
}

func testViewIsReadOnly(t *testing.T, open Opener) {
	s := open(t, nil)

	err := s.View(context.Background(), func(tx store.Tx) error {
		return tx.InsertUser(context.Background(), &domain.User{Username: "nope"})
	})
	require.ErrorIs(t, err, store.ErrReadOnly)
}

func testNotFound(t *testing.T, open Opener) {
	s := open(t, nil)

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetUser(ctx, 99)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetLabel(ctx, 99)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetAvailability(ctx, 99)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetIdentity(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})

	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.UpdateUser(context.Background(), &domain.User{ID: 99, Username: "x"})
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testChangeEvents(t *testing.T, open Opener) {
	rec := &Recorder{}
	s := open(t, rec)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		u := &domain.User{Username: "ada"}
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		u.Online = true
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		l := &domain.RangeLabel{CreatorUserID: u.ID, Title: "x", RangeStart: "2024-01-01T00:00:00Z", RangeEnd: "2024-01-01T00:00:00Z"}
		if err := tx.InsertLabel(ctx, l); err != nil {
			return err
		}
		return tx.DeleteLabel(ctx, l.ID)
	})

	assert.Equal(t, []sse.EventType{
		"user.created",
		"user.updated",
		"range_label.created",
		"range_label.deleted",
	}, rec.Types())

	rec.Reset()
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		// Deleting a missing row is a no-op and publishes nothing.
		return tx.DeleteAvailability(ctx, 12345)
	})
	assert.Empty(t, rec.Types())
}

func testContextCancelled(t *testing.T, open Opener) {
	s := open(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(store.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
