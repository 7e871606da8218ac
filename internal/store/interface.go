// Package store defines the persistence contract for the calendar server
// and its badger implementation.
package store

import (
	"context"

	"github.com/headercal/headercal-server/internal/domain"
)

// Backend runs entry points against durable tables. Each Update call is one
// atomic unit: writers are serialized, and either every write made through
// the Tx commits or none does.
type Backend interface {
	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing is committed. Change events are published after commit.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a read-only snapshot.
	View(ctx context.Context, fn func(Tx) error) error

	Close() error
}

// Tx is the table surface available inside one transaction.
//
// Lookups by primary key return ErrNotFound for missing rows. Inserts assign
// a fresh positive id that is never reused and write it back to the row.
type Tx interface {
	// Identities, keyed by credential.
	GetIdentity(ctx context.Context, credential string) (*domain.Identity, error)
	InsertIdentity(ctx context.Context, identity *domain.Identity) error
	UpdateIdentity(ctx context.Context, identity *domain.Identity) error
	ListIdentities(ctx context.Context) ([]*domain.Identity, error)
	// ListIdentitiesByUser scans the user_id index.
	ListIdentitiesByUser(ctx context.Context, userID uint32) ([]*domain.Identity, error)
	// CountOnlineIdentities scans the composite (online, user_id) index.
	CountOnlineIdentities(ctx context.Context, userID uint32) (int, error)

	// Users.
	GetUser(ctx context.Context, id uint32) (*domain.User, error)
	InsertUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id uint32) error
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// Range labels.
	GetLabel(ctx context.Context, id uint32) (*domain.RangeLabel, error)
	InsertLabel(ctx context.Context, label *domain.RangeLabel) error
	DeleteLabel(ctx context.Context, id uint32) error
	ListLabels(ctx context.Context) ([]*domain.RangeLabel, error)
	ListLabelsByCreator(ctx context.Context, userID uint32) ([]*domain.RangeLabel, error)

	// Range availability.
	GetAvailability(ctx context.Context, id uint32) (*domain.RangeAvailability, error)
	InsertAvailability(ctx context.Context, row *domain.RangeAvailability) error
	UpdateAvailability(ctx context.Context, row *domain.RangeAvailability) error
	DeleteAvailability(ctx context.Context, id uint32) error
	ListAvailability(ctx context.Context) ([]*domain.RangeAvailability, error)
	ListAvailabilityByCreator(ctx context.Context, userID uint32) ([]*domain.RangeAvailability, error)
}
