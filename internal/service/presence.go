package service

import (
	"context"
	"log/slog"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/metrics"
	"github.com/headercal/headercal-server/internal/store"
)

// recomputePresence sets a user's online flag from the number of online
// identities bound to it. It writes only when the flag changes. A missing
// user is not an error: the identity may outlive an account.
func recomputePresence(ctx context.Context, tx store.Tx, userID uint32) error {
	if userID == 0 {
		return nil
	}

	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			metrics.PresenceRecomputes.WithLabelValues("missing_user").Inc()
			return nil
		}
		return err
	}

	n, err := tx.CountOnlineIdentities(ctx, userID)
	if err != nil {
		return err
	}

	online := n > 0
	if user.Online == online {
		metrics.PresenceRecomputes.WithLabelValues("unchanged").Inc()
		return nil
	}

	user.Online = online
	metrics.PresenceRecomputes.WithLabelValues("changed").Inc()
	return tx.UpdateUser(ctx, user)
}

// markOnline flips a user online without a recount. Adding an online
// identity can only ever turn presence on.
func markOnline(ctx context.Context, tx store.Tx, user *domain.User) error {
	if user.Online {
		return nil
	}
	user.Online = true
	return tx.UpdateUser(ctx, user)
}

// PresenceService reconciles persisted presence with live connections.
type PresenceService struct {
	store  store.Backend
	logger *slog.Logger
}

// NewPresenceService creates a new presence service.
func NewPresenceService(store store.Backend, logger *slog.Logger) *PresenceService {
	return &PresenceService{
		store:  store,
		logger: logger,
	}
}

// Recompute recounts one user's presence in its own transaction.
func (s *PresenceService) Recompute(ctx context.Context, userID uint32) error {
	return s.store.Update(ctx, func(tx store.Tx) error {
		return recomputePresence(ctx, tx, userID)
	})
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	IdentitiesOffline int
	UsersRecomputed   int
}

// Sweep marks offline every identity that is flagged online but has no
// live connection, then recounts every user. isLive may be nil, in which
// case no connection is live, as on startup.
func (s *PresenceService) Sweep(ctx context.Context, isLive func(credential string) bool) (SweepResult, error) {
	var result SweepResult

	err := s.store.Update(ctx, func(tx store.Tx) error {
		result = SweepResult{}

		identities, err := tx.ListIdentities(ctx)
		if err != nil {
			return err
		}
		for _, identity := range identities {
			if !identity.Online || (isLive != nil && isLive(identity.Credential)) {
				continue
			}
			identity.Online = false
			if err := tx.UpdateIdentity(ctx, identity); err != nil {
				return err
			}
			result.IdentitiesOffline++
		}

		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if err := recomputePresence(ctx, tx, u.ID); err != nil {
				return err
			}
			result.UsersRecomputed++
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	metrics.PresenceSweeps.Inc()
	if result.IdentitiesOffline > 0 {
		s.logger.Info("presence sweep cleared stale identities",
			"identities_offline", result.IdentitiesOffline,
			"users_recomputed", result.UsersRecomputed,
		)
	}
	return result, nil
}
