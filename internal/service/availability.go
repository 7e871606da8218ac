package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/headercal/headercal-server/internal/availability"
	"github.com/headercal/headercal-server/internal/domain"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/metrics"
	"github.com/headercal/headercal-server/internal/store"
)

// AvailabilityService maintains each user's non-overlapping availability
// rows.
type AvailabilityService struct {
	store  store.Backend
	logger *slog.Logger
}

// NewAvailabilityService creates a new availability service.
func NewAvailabilityService(store store.Backend, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{
		store:  store,
		logger: logger,
	}
}

// CreateResult reports what one insertion did to the caller's rows.
// Row is nil when the level was the default level.
type CreateResult struct {
	Row     *domain.RangeAvailability `json:"row"`
	Updated int                       `json:"updated"`
	Deleted int                       `json:"deleted"`
	Split   int                       `json:"split"`
}

// Create sets the caller's availability over [start, end] to level.
// Overlapping rows are trimmed, split, or deleted so that the caller's
// rows stay pairwise disjoint. Level 0 clears the span without inserting.
func (s *AvailabilityService) Create(ctx context.Context, credential, start, end string, level int8) (result CreateResult, err error) {
	defer func() { record(opCreateAvailability, err) }()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		result = CreateResult{}

		identity, err := signedIn(ctx, tx, credential)
		if err != nil {
			return err
		}

		span, err := parseRange(start, end)
		if err != nil {
			return err
		}

		began := time.Now()
		defer func() { metrics.ReconcileDuration.Observe(time.Since(began).Seconds()) }()

		owned, err := tx.ListAvailabilityByCreator(ctx, identity.UserID)
		if err != nil {
			return err
		}
		existing := make([]domain.RangeAvailability, len(owned))
		for i, row := range owned {
			existing[i] = *row
		}

		plan, err := availability.Reconcile(existing, availability.Request{
			UserID: identity.UserID,
			Span:   span,
			Level:  level,
		})
		if err != nil {
			return fmt.Errorf("reconcile availability for user %d: %w", identity.UserID, err)
		}

		for i := range plan.Updates {
			if err := tx.UpdateAvailability(ctx, &plan.Updates[i]); err != nil {
				return err
			}
		}
		for _, id := range plan.Deletes {
			if err := tx.DeleteAvailability(ctx, id); err != nil {
				return err
			}
		}
		for i := range plan.Inserts {
			if err := tx.InsertAvailability(ctx, &plan.Inserts[i]); err != nil {
				return err
			}
		}

		result.Updated = len(plan.Updates)
		result.Deleted = len(plan.Deletes)
		if level != domain.DefaultLevel {
			result.Row = &plan.Inserts[len(plan.Inserts)-1]
			result.Split = len(plan.Inserts) - 1
		} else {
			result.Split = len(plan.Inserts)
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	metrics.ReconcileMutations.WithLabelValues("update").Add(float64(result.Updated))
	metrics.ReconcileMutations.WithLabelValues("delete").Add(float64(result.Deleted))
	metrics.ReconcileMutations.WithLabelValues("split").Add(float64(result.Split))
	if result.Row != nil {
		metrics.ReconcileMutations.WithLabelValues("insert").Inc()
	}
	return result, nil
}

// Delete removes one availability row created by the caller's user.
// Neighboring rows are left as they are.
func (s *AvailabilityService) Delete(ctx context.Context, credential string, id uint32) (err error) {
	defer func() { record(opDeleteAvailability, err) }()

	return s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := signedIn(ctx, tx, credential)
		if err != nil {
			return err
		}

		row, err := tx.GetAvailability(ctx, id)
		if isNotFound(err) {
			return domainerrors.RowNotFound("No such range availability")
		}
		if err != nil {
			return err
		}
		if row.CreatorUserID != identity.UserID {
			return domainerrors.ErrNotOwner
		}
		return tx.DeleteAvailability(ctx, id)
	})
}

// List returns availability rows, restricted to one creator when
// creatorID is non-zero. A single creator's rows are ordered by start.
func (s *AvailabilityService) List(ctx context.Context, creatorID uint32) ([]*domain.RangeAvailability, error) {
	var rows []*domain.RangeAvailability
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if creatorID != 0 {
			rows, err = tx.ListAvailabilityByCreator(ctx, creatorID)
		} else {
			rows, err = tx.ListAvailability(ctx)
		}
		return err
	})
	if err != nil || creatorID == 0 {
		return rows, err
	}

	sorted := make([]domain.RangeAvailability, len(rows))
	for i, row := range rows {
		sorted[i] = *row
	}
	if err := availability.SortByStart(sorted); err != nil {
		return nil, err
	}
	for i := range sorted {
		rows[i] = &sorted[i]
	}
	return rows, nil
}

// LevelAt returns a user's effective level at an instant: the level of the
// row covering it, or the default level.
func (s *AvailabilityService) LevelAt(ctx context.Context, userID uint32, at string) (int8, error) {
	t, err := domain.ParseTimestamp(at)
	if err != nil {
		return 0, domainerrors.InvalidTimestamp("Invalid time")
	}

	var rows []domain.RangeAvailability
	err = s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			if isNotFound(err) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}
		owned, err := tx.ListAvailabilityByCreator(ctx, userID)
		if err != nil {
			return err
		}
		rows = make([]domain.RangeAvailability, len(owned))
		for i, row := range owned {
			rows[i] = *row
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return availability.LevelAt(rows, t)
}
