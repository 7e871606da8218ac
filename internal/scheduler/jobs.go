package scheduler

import (
	"context"
	"log/slog"

	"github.com/headercal/headercal-server/internal/service"
)

// PresenceSweepTask is the registered name of the presence sweep.
const PresenceSweepTask = "presence-sweep"

// PresenceSweep returns a job that clears identities left online without a
// live connection and recounts every user.
func PresenceSweep(presence *service.PresenceService, isLive func(credential string) bool, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		result, err := presence.Sweep(ctx, isLive)
		if err != nil {
			return err
		}
		logger.Debug("presence sweep",
			"identities_offline", result.IdentitiesOffline,
			"users_recomputed", result.UsersRecomputed,
		)
		return nil
	}
}
