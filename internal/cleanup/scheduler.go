package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Scheduler defaults.
const (
	DefaultSchedule = "0 2 * * *"
	DefaultTimezone = "Asia/Kolkata"
)

// SchedulerConfig configures the retention job.
type SchedulerConfig struct {
	// Schedule is a standard five-field cron expression.
	Schedule string
	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string
	// RunTimeout bounds a single run. Zero means no timeout.
	RunTimeout time.Duration
}

// Runner is the job executed on each tick.
type Runner interface {
	RunScheduled(ctx context.Context) (*PurgeResult, error)
}

// Scheduler fires the scheduled retention run on a cron schedule. Overlapping runs
// are allowed.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	runner  Runner
	cfg     SchedulerConfig
	logger  *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewScheduler creates a scheduler for runner. An invalid schedule or timezone is an error.
func NewScheduler(runner Runner, cfg SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.Recover(cronLogger{logger: logger})),
	)

	s := &Scheduler{
		cron:   c,
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}

	id, err := c.AddFunc(cfg.Schedule, s.tick)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", cfg.Schedule, err)
	}
	s.entryID = id
	return s, nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	s.logger.Info("scheduled log cleanup starting")
	if _, err := s.runner.RunScheduled(ctx); err != nil {
		s.logger.Error("scheduled log cleanup failed", "error", err)
	}
}

// Start begins firing the schedule. A stopped scheduler may be started again.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.logger.Info("log cleanup scheduler started",
		"schedule", s.cfg.Schedule,
		"timezone", s.cfg.Timezone,
		"next_run", s.Next(),
	)
}

// Stop halts the schedule, cancels in-flight runs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	cancel()

	select {
	case <-done.Done():
		s.logger.Info("log cleanup scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for cleanup runs: %w", ctx.Err())
	}
}

// Next returns the next fire time, or the zero time when the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
