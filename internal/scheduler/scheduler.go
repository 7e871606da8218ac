// Package scheduler runs maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/headercal/headercal-server/internal/metrics"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Task is a named job registered with the scheduler.
type Task struct {
	Name     string
	Schedule string // "@every 1m", "*/5 * * * *", "@hourly"
	fn       JobFunc
	entryID  cron.EntryID

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// TaskStatus is a snapshot of a task for diagnostics.
type TaskStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run,omitzero"`
}

// Scheduler manages scheduled tasks using robfig/cron.
type Scheduler struct {
	cron   *cron.Cron
	tasks  map[string]*Task
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a scheduler accepting standard five-field cron specs and
// descriptors such as "@every 5m".
func New(logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   c,
		tasks:  make(map[string]*Task),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddTask registers fn under name. A run that is still going when the next
// tick fires is skipped, not queued.
func (s *Scheduler) AddTask(name, schedule string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}

	task := &Task{Name: name, Schedule: schedule, fn: fn}
	entryID, err := s.cron.AddFunc(schedule, func() { s.execute(s.ctx, task) })
	if err != nil {
		return fmt.Errorf("add task %q with schedule %q: %w", name, schedule, err)
	}

	task.entryID = entryID
	s.tasks[name] = task
	return nil
}

// RunNow runs a task immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	task, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task %q not found", name)
	}
	return s.execute(ctx, task)
}

func (s *Scheduler) execute(ctx context.Context, task *Task) error {
	task.mu.Lock()
	if task.running {
		task.mu.Unlock()
		s.logger.Debug("skipping overlapping run", "task", task.Name)
		metrics.JobRuns.WithLabelValues(task.Name, "skipped").Inc()
		return nil
	}
	task.running = true
	task.mu.Unlock()

	start := time.Now()
	err := task.fn(ctx)

	task.mu.Lock()
	task.running = false
	task.lastRun = start
	task.lastErr = err
	task.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled task failed", "task", task.Name, "error", err)
		metrics.JobRuns.WithLabelValues(task.Name, "error").Inc()
		return err
	}
	s.logger.Debug("scheduled task finished", "task", task.Name, "duration", time.Since(start))
	metrics.JobRuns.WithLabelValues(task.Name, "ok").Inc()
	return nil
}

// Tasks returns every registered task ordered by name.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		task.mu.Lock()
		status := TaskStatus{
			Name:     task.Name,
			Schedule: task.Schedule,
			LastRun:  task.lastRun,
			NextRun:  s.cron.Entry(task.entryID).Next,
		}
		if task.lastErr != nil {
			status.LastError = task.lastErr.Error()
		}
		task.mu.Unlock()
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.mu.RLock()
	count := len(s.tasks)
	s.mu.RUnlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "tasks", count)
}

// Stop stops scheduling, cancels running jobs, and waits for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
