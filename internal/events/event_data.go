package events

// EventData is the interface that all typed event payloads implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	RunID   string `json:"run_id"`
	Engine  string `json:"engine"`
	Tickers int    `json:"tickers"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// SecurityScoredData contains data for SecurityScored events
type SecurityScoredData struct {
	RunID      string  `json:"run_id"`
	Ticker     string  `json:"ticker"`
	Engine     string  `json:"engine"`
	Score      float64 `json:"score"`
	Eliminated bool    `json:"eliminated"`
}

// EventType returns the event type for SecurityScoredData
func (d *SecurityScoredData) EventType() EventType {
	return SecurityScored
}

// SecuritySkippedData contains data for SecuritySkipped events
type SecuritySkippedData struct {
	RunID  string `json:"run_id"`
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// EventType returns the event type for SecuritySkippedData
func (d *SecuritySkippedData) EventType() EventType {
	return SecuritySkipped
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	RunID      string  `json:"run_id"`
	Engine     string  `json:"engine"`
	Scored     int     `json:"scored"`
	Skipped    int     `json:"skipped"`
	Qualified  int     `json:"qualified"`
	Eliminated int     `json:"eliminated"`
	Positions  int     `json:"positions"`
	Duration   float64 `json:"duration_seconds"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// AllocationChangedData contains data for AllocationChanged events
type AllocationChangedData struct {
	RunID     string `json:"run_id"`
	Positions int    `json:"positions"`
}

// EventType returns the event type for AllocationChangedData
func (d *AllocationChangedData) EventType() EventType {
	return AllocationChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Databases int     `json:"databases"`
	Duration  float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}
