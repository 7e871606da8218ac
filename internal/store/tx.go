package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/sse"
)

// tx adapts a badger transaction to Tx.
type tx struct {
	store    *Store
	txn      *badger.Txn
	changes  *ChangeLog
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

// Identities

func (t *tx) GetIdentity(ctx context.Context, credential string) (*domain.Identity, error) {
	return t.store.identities.Get(ctx, t.txn, credential)
}

func (t *tx) InsertIdentity(ctx context.Context, identity *domain.Identity) error {
	if err := t.writable(); err != nil {
		return err
	}
	if identity.Credential == "" {
		return fmt.Errorf("insert identity: empty credential")
	}
	if err := t.store.identities.Create(ctx, t.txn, identity.Credential, identity); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	t.changes.Identity(sse.OpCreated, identity)
	return nil
}

func (t *tx) UpdateIdentity(ctx context.Context, identity *domain.Identity) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.store.identities.Update(ctx, t.txn, identity.Credential, identity); err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	t.changes.Identity(sse.OpUpdated, identity)
	return nil
}

func (t *tx) ListIdentities(ctx context.Context) ([]*domain.Identity, error) {
	return collect(t.store.identities.List(ctx, t.txn))
}

func (t *tx) ListIdentitiesByUser(ctx context.Context, userID uint32) ([]*domain.Identity, error) {
	return collect(t.store.identities.Scan(ctx, t.txn, "user", formatID(userID)))
}

func (t *tx) CountOnlineIdentities(ctx context.Context, userID uint32) (int, error) {
	return t.store.identities.Count(ctx, t.txn, "online_user", onlineUserKey(true, userID))
}

// Users

func (t *tx) GetUser(ctx context.Context, id uint32) (*domain.User, error) {
	return t.store.users.Get(ctx, t.txn, formatID(id))
}

func (t *tx) InsertUser(ctx context.Context, user *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	id, err := t.store.nextID("user")
	if err != nil {
		return err
	}
	user.ID = id
	if err := t.store.users.Create(ctx, t.txn, formatID(id), user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	t.changes.User(sse.OpCreated, user)
	return nil
}

func (t *tx) UpdateUser(ctx context.Context, user *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.store.users.Update(ctx, t.txn, formatID(user.ID), user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	t.changes.User(sse.OpUpdated, user)
	return nil
}

func (t *tx) DeleteUser(ctx context.Context, id uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, err := t.store.users.Delete(ctx, t.txn, formatID(id))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if old != nil {
		t.changes.User(sse.OpDeleted, old)
	}
	return nil
}

func (t *tx) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return collect(t.store.users.List(ctx, t.txn))
}

// Range labels

func (t *tx) GetLabel(ctx context.Context, id uint32) (*domain.RangeLabel, error) {
	return t.store.labels.Get(ctx, t.txn, formatID(id))
}

func (t *tx) InsertLabel(ctx context.Context, label *domain.RangeLabel) error {
	if err := t.writable(); err != nil {
		return err
	}
	id, err := t.store.nextID("range_label")
	if err != nil {
		return err
	}
	label.ID = id
	if err := t.store.labels.Create(ctx, t.txn, formatID(id), label); err != nil {
		return fmt.Errorf("insert range label: %w", err)
	}
	t.changes.Label(sse.OpCreated, label)
	return nil
}

func (t *tx) DeleteLabel(ctx context.Context, id uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, err := t.store.labels.Delete(ctx, t.txn, formatID(id))
	if err != nil {
		return fmt.Errorf("delete range label: %w", err)
	}
	if old != nil {
		t.changes.Label(sse.OpDeleted, old)
	}
	return nil
}

func (t *tx) ListLabels(ctx context.Context) ([]*domain.RangeLabel, error) {
	return collect(t.store.labels.List(ctx, t.txn))
}

func (t *tx) ListLabelsByCreator(ctx context.Context, userID uint32) ([]*domain.RangeLabel, error) {
	return collect(t.store.labels.Scan(ctx, t.txn, "creator", formatID(userID)))
}

// Range availability

func (t *tx) GetAvailability(ctx context.Context, id uint32) (*domain.RangeAvailability, error) {
	return t.store.availability.Get(ctx, t.txn, formatID(id))
}

func (t *tx) InsertAvailability(ctx context.Context, row *domain.RangeAvailability) error {
	if err := t.writable(); err != nil {
		return err
	}
	id, err := t.store.nextID("range_availability")
	if err != nil {
		return err
	}
	row.ID = id
	if err := t.store.availability.Create(ctx, t.txn, formatID(id), row); err != nil {
		return fmt.Errorf("insert range availability: %w", err)
	}
	t.changes.Availability(sse.OpCreated, row)
	return nil
}

func (t *tx) UpdateAvailability(ctx context.Context, row *domain.RangeAvailability) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.store.availability.Update(ctx, t.txn, formatID(row.ID), row); err != nil {
		return fmt.Errorf("update range availability: %w", err)
	}
	t.changes.Availability(sse.OpUpdated, row)
	return nil
}

func (t *tx) DeleteAvailability(ctx context.Context, id uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, err := t.store.availability.Delete(ctx, t.txn, formatID(id))
	if err != nil {
		return fmt.Errorf("delete range availability: %w", err)
	}
	if old != nil {
		t.changes.Availability(sse.OpDeleted, old)
	}
	return nil
}

func (t *tx) ListAvailability(ctx context.Context) ([]*domain.RangeAvailability, error) {
	return collect(t.store.availability.List(ctx, t.txn))
}

func (t *tx) ListAvailabilityByCreator(ctx context.Context, userID uint32) ([]*domain.RangeAvailability, error) {
	return collect(t.store.availability.Scan(ctx, t.txn, "creator", formatID(userID)))
}
