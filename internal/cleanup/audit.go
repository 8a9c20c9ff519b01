package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

type successDetails struct {
	ActivityLogsDeleted int            `json:"activityLogsDeleted"`
	SystemLogsDeleted   int            `json:"systemLogsDeleted"`
	CutoffDate          time.Time      `json:"cutoffDate"`
	Trigger             models.Trigger `json:"trigger"`
}

type failureDetails struct {
	Error      string         `json:"error"`
	CutoffDate time.Time      `json:"cutoffDate"`
	Trigger    models.Trigger `json:"trigger"`
}

// AuditEmitter records each retention run as a single systemLogs entry.
type AuditEmitter struct {
	logs   store.LogStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditEmitter creates an emitter writing to the system stream of s.
func NewAuditEmitter(s store.Store, logger *slog.Logger) *AuditEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditEmitter{
		logs:   s.Logs(models.StreamSystem),
		logger: logger,
		now:    time.Now,
	}
}

// Entry builds the audit entry for run without persisting it.
func (a *AuditEmitter) Entry(run *models.RetentionRun) (*models.LogEntry, error) {
	var (
		details any
		level   = models.LevelSuccess
		message string
	)
	if run.Failed() {
		level = models.LevelError
		details = failureDetails{
			Error:      run.Err.Error(),
			CutoffDate: run.CutoffDate.UTC(),
			Trigger:    run.Trigger,
		}
		message = fmt.Sprintf("Log cleanup failed: %v", run.Err)
	} else {
		details = successDetails{
			ActivityLogsDeleted: run.ActivityLogsDeleted,
			SystemLogsDeleted:   run.SystemLogsDeleted,
			CutoffDate:          run.CutoffDate.UTC(),
			Trigger:             run.Trigger,
		}
		message = fmt.Sprintf("Log cleanup completed: %d activity logs and %d system logs deleted",
			run.ActivityLogsDeleted, run.SystemLogsDeleted)
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encoding audit details: %w", err)
	}

	ts := run.Timestamp
	if ts.IsZero() {
		ts = a.now().UTC()
	}
	id := run.ID
	if id == "" {
		id = uuid.New().String()
	}

	return &models.LogEntry{
		ID:        id,
		Timestamp: ts,
		Level:     level,
		Module:    models.ModuleSystem,
		SubModule: models.SubModuleMaintenance,
		Action:    run.Action(),
		Message:   message,
		Actor:     run.Actor,
		Details:   raw,
		Status:    run.Status(),
	}, nil
}

// Emit persists the audit entry for run.
func (a *AuditEmitter) Emit(ctx context.Context, run *models.RetentionRun) error {
	entry, err := a.Entry(run)
	if err != nil {
		return err
	}
	if err := a.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	a.logger.Debug("recorded retention audit", "action", entry.Action, "trigger", run.Trigger)
	return nil
}
