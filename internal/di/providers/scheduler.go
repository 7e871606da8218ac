package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/headercal/headercal-server/internal/config"
	"github.com/headercal/headercal-server/internal/logger"
	"github.com/headercal/headercal-server/internal/scheduler"
	"github.com/headercal/headercal-server/internal/service"
)

// SchedulerHandle wraps the periodic job scheduler.
type SchedulerHandle struct {
	*scheduler.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Stop(ctx)
}

// ProvideScheduler registers the presence sweep, runs it once, and starts
// the schedule.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	presence := do.MustInvoke[*service.PresenceService](i)

	sched := scheduler.New(log.Logger)

	sweep := scheduler.PresenceSweep(presence, sseHandle.IsLive, log.Logger)
	if err := sched.AddTask(scheduler.PresenceSweepTask, cfg.Presence.SweepSchedule, sweep); err != nil {
		return nil, err
	}

	// Nothing is connected yet, so the first sweep clears every identity
	// a previous process left online.
	if err := sched.RunNow(context.Background(), scheduler.PresenceSweepTask); err != nil {
		log.Warn("Initial presence sweep failed", "error", err)
	}

	sched.Start()
	log.Info("Scheduler started", "presence_sweep", cfg.Presence.SweepSchedule)

	return &SchedulerHandle{Scheduler: sched}, nil
}
