// Package events provides the in-process publish/subscribe bus used to fan
// out run lifecycle notifications to interested listeners (the websocket
// stream, loggers, and anything else wired at startup).
package events

// EventType identifies a category of event
type EventType string

// Event types emitted by the engine
const (
	// RunStarted fires when a scoring run begins
	RunStarted EventType = "run_started"

	// SecurityScored fires after each security is scored during a run
	SecurityScored EventType = "security_scored"

	// SecuritySkipped fires when a security is dropped from a run because
	// its data could not be fetched or scored
	SecuritySkipped EventType = "security_skipped"

	// RunCompleted fires when a scoring run finishes and results are persisted
	RunCompleted EventType = "run_completed"

	// AllocationChanged fires when a run produces a new target portfolio
	AllocationChanged EventType = "allocation_changed"

	// BackupCompleted fires when a database backup cycle finishes
	BackupCompleted EventType = "backup_completed"

	// SystemStatusChanged fires when overall system health changes
	SystemStatusChanged EventType = "system_status_changed"
)
