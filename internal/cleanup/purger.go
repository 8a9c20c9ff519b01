package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// DefaultMaxIterations bounds the chunked delete loop per stream.
const DefaultMaxIterations = 10000

// PurgeResult holds the per-stream deletion counts of a successful purge.
type PurgeResult struct {
	ActivityLogsDeleted int           `json:"activityLogsDeleted"`
	SystemLogsDeleted   int           `json:"systemLogsDeleted"`
	CutoffDate          time.Time     `json:"cutoffDate"`
	Duration            time.Duration `json:"-"`
}

// PurgerOption configures a Purger.
type PurgerOption func(*Purger)

// WithBatchSize sets the number of entries deleted per atomic batch.
// Values outside (0, store.MaxAtomicBatchSize] fall back to the maximum.
func WithBatchSize(n int) PurgerOption {
	return func(p *Purger) {
		if n > 0 && n <= store.MaxAtomicBatchSize {
			p.batchSize = n
		}
	}
}

// WithMaxIterations caps the number of batches per stream. Zero or less disables the cap.
func WithMaxIterations(n int) PurgerOption {
	return func(p *Purger) {
		p.maxIterations = n
	}
}

// WithSingleBatch makes each stream purge issue one unbounded query and one atomic
// delete. Streams with more than store.MaxAtomicBatchSize expired entries fail whole.
// Service applies it to manual runs only.
func WithSingleBatch() PurgerOption {
	return func(p *Purger) {
		p.singleBatch = true
	}
}

// Purger deletes expired entries from the log streams.
type Purger struct {
	store         store.Store
	logger        *slog.Logger
	batchSize     int
	maxIterations int
	singleBatch   bool
}

// NewPurger creates a Purger over s.
func NewPurger(s store.Store, logger *slog.Logger, opts ...PurgerOption) *Purger {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Purger{
		store:         s,
		logger:        logger,
		batchSize:     store.MaxAtomicBatchSize,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// chunked returns a copy of p that always deletes in bounded batches.
func (p *Purger) chunked() *Purger {
	c := *p
	c.singleBatch = false
	return &c
}

// PurgeStream removes every entry of stream older than cutoff and returns the number
// removed. On error the returned count reflects the batches already committed.
func (p *Purger) PurgeStream(ctx context.Context, stream models.Stream, cutoff time.Time) (int, error) {
	logs := p.store.Logs(stream)
	if p.singleBatch {
		return p.purgeOnce(ctx, logs, stream, cutoff)
	}

	deleted := 0
	for i := 0; p.maxIterations <= 0 || i < p.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		expired, err := logs.ListOlderThan(ctx, cutoff, p.batchSize)
		if err != nil {
			return deleted, fmt.Errorf("listing expired %s: %w", stream, err)
		}
		if len(expired) == 0 {
			return deleted, nil
		}

		if err := logs.DeleteBatch(ctx, ids(expired)); err != nil {
			return deleted, fmt.Errorf("deleting expired %s: %w", stream, err)
		}
		deleted += len(expired)

		p.logger.Debug("purged batch",
			"stream", stream,
			"batch", i+1,
			"size", len(expired),
		)

		if len(expired) < p.batchSize {
			return deleted, nil
		}
	}

	p.logger.Warn("purge stopped at iteration cap",
		"stream", stream,
		"max_iterations", p.maxIterations,
		"deleted", deleted,
	)
	return deleted, nil
}

func (p *Purger) purgeOnce(ctx context.Context, logs store.LogStore, stream models.Stream, cutoff time.Time) (int, error) {
	expired, err := logs.ListOlderThan(ctx, cutoff, 0)
	if err != nil {
		return 0, fmt.Errorf("listing expired %s: %w", stream, err)
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := logs.DeleteBatch(ctx, ids(expired)); err != nil {
		return 0, fmt.Errorf("deleting expired %s: %w", stream, err)
	}
	return len(expired), nil
}

// Purge runs PurgeStream on the activity stream, then the system stream. The first
// failure aborts the run and no counts are returned.
func (p *Purger) Purge(ctx context.Context, cutoff time.Time) (*PurgeResult, error) {
	start := time.Now()
	p.logger.Info("starting log purge", "cutoff", cutoff, "single_batch", p.singleBatch)

	activity, err := p.PurgeStream(ctx, models.StreamActivity, cutoff)
	if err != nil {
		p.logger.Error("activity log purge failed", "deleted_before_failure", activity, "error", err)
		return nil, err
	}

	system, err := p.PurgeStream(ctx, models.StreamSystem, cutoff)
	if err != nil {
		p.logger.Error("system log purge failed",
			"activity_deleted", activity,
			"deleted_before_failure", system,
			"error", err,
		)
		return nil, err
	}

	result := &PurgeResult{
		ActivityLogsDeleted: activity,
		SystemLogsDeleted:   system,
		CutoffDate:          cutoff,
		Duration:            time.Since(start),
	}
	p.logger.Info("log purge completed",
		"activity_deleted", result.ActivityLogsDeleted,
		"system_deleted", result.SystemLogsDeleted,
		"duration", result.Duration,
	)
	return result, nil
}

func ids(entries []*models.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
