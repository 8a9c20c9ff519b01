package models

import "time"

// Audit record constants for retention runs.
const (
	ActionCleanupCompleted = "logs_cleanup_completed"
	ActionCleanupFailed    = "logs_cleanup_failed"

	ModuleSystem         = "system"
	SubModuleMaintenance = "maintenance"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Trigger identifies what started a retention run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// RetentionRun describes one purge invocation. It is never stored as an entity;
// it becomes a single systemLogs audit record.
type RetentionRun struct {
	ID                  string
	Trigger             Trigger
	Actor               Actor
	CutoffDate          time.Time
	ActivityLogsDeleted int
	SystemLogsDeleted   int
	Err                 error
	Timestamp           time.Time
}

// Failed reports whether the run ended with an error.
func (r *RetentionRun) Failed() bool {
	return r.Err != nil
}

// Action returns the audit action for the outcome.
func (r *RetentionRun) Action() string {
	if r.Failed() {
		return ActionCleanupFailed
	}
	return ActionCleanupCompleted
}

// Status returns the audit status for the outcome.
func (r *RetentionRun) Status() string {
	if r.Failed() {
		return StatusError
	}
	return StatusSuccess
}
