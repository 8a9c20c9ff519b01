package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/logkeeper/internal/auth"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// Manual trigger errors.
var (
	ErrUnauthenticated  = errors.New("unauthenticated: no caller identity")
	ErrPermissionDenied = errors.New("permission denied: super admin role required")
	ErrInvalidDays      = errors.New("retention days must not be negative")
	ErrInternal         = errors.New("internal error during log cleanup")
)

// ManualResult is returned to the caller of a successful manual run.
type ManualResult struct {
	Success             bool      `json:"success"`
	ActivityLogsDeleted int       `json:"activityLogsDeleted"`
	SystemLogsDeleted   int       `json:"systemLogsDeleted"`
	CutoffDate          time.Time `json:"cutoffDate"`
}

// auditTimeout bounds the audit write that follows every run.
const auditTimeout = 10 * time.Second

// Service runs retention purges and records their outcome.
type Service struct {
	store     store.Store
	rbac      *auth.RBACService
	manual    *Purger
	scheduled *Purger
	audit     *AuditEmitter
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new cleanup service. Manual runs use purger as configured;
// scheduled runs always delete in bounded batches.
func NewService(s store.Store, purger *Purger, policy Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if purger == nil {
		purger = NewPurger(s, logger)
	}
	return &Service{
		store:     s,
		rbac:      auth.NewRBACService(s.Admins(), logger),
		manual:    purger,
		scheduled: purger.chunked(),
		audit:     NewAuditEmitter(s, logger),
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// Policy returns the retention policy in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// RunScheduled purges with the default window under the system actor. A failure is
// recorded in the audit stream and returned unchanged.
func (s *Service) RunScheduled(ctx context.Context) (*PurgeResult, error) {
	days := s.policy.Resolve(nil)
	return s.run(ctx, s.scheduled, models.TriggerScheduled, models.SystemActor(), days)
}

// RunManual purges on behalf of callerID, who must be an enabled super admin.
// Authorization is checked before any entry is read.
func (s *Service) RunManual(ctx context.Context, callerID string, days *int) (*ManualResult, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	admin, err := s.rbac.Authorize(ctx, callerID, auth.PermissionTriggerCleanup)
	switch {
	case errors.Is(err, auth.ErrAdminNotFound), errors.Is(err, auth.ErrAdminDisabled), errors.Is(err, auth.ErrPermissionDenied):
		s.logger.Warn("manual cleanup denied", "caller_id", callerID, "reason", err)
		return nil, ErrPermissionDenied
	case err != nil:
		s.logger.Error("failed to resolve caller", "caller_id", callerID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if days != nil && *days < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDays, *days)
	}

	actor := models.StructuredActor(admin.Performer())
	result, err := s.run(ctx, s.manual, models.TriggerManual, actor, s.policy.Resolve(days))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return &ManualResult{
		Success:             true,
		ActivityLogsDeleted: result.ActivityLogsDeleted,
		SystemLogsDeleted:   result.SystemLogsDeleted,
		CutoffDate:          result.CutoffDate,
	}, nil
}

func (s *Service) run(ctx context.Context, purger *Purger, trigger models.Trigger, actor models.Actor, days int) (*PurgeResult, error) {
	cutoff := Cutoff(days, s.now().UTC())
	logger := s.logger.With("trigger", trigger, "retention_days", days)

	result, purgeErr := purger.Purge(ctx, cutoff)

	run := &models.RetentionRun{
		ID:         uuid.New().String(),
		Trigger:    trigger,
		Actor:      actor,
		CutoffDate: cutoff,
		Err:        purgeErr,
		Timestamp:  s.now().UTC(),
	}
	if result != nil {
		run.ActivityLogsDeleted = result.ActivityLogsDeleted
		run.SystemLogsDeleted = result.SystemLogsDeleted
	}

	// The run's context may already be done when the purge failed on it.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.audit.Emit(auditCtx, run); err != nil {
		// Audit write failures are logged, not returned.
		logger.Error("failed to record cleanup audit", "error", err)
	}

	if purgeErr != nil {
		logger.Error("log cleanup failed", "cutoff", cutoff, "error", purgeErr)
		return nil, purgeErr
	}

	logger.Info("log cleanup finished",
		"cutoff", cutoff,
		"activity_deleted", result.ActivityLogsDeleted,
		"system_deleted", result.SystemLogsDeleted,
	)
	return result, nil
}
