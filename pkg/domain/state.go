package domain

import "time"

// RunState is the lifecycle position of an executor.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// RunStats counts what a run did. They are informational only.
type RunStats struct {
	StepsExecuted int   `json:"steps_executed"`
	CommandsSent  int   `json:"commands_sent"`
	BytesWritten  int64 `json:"bytes_written"`
	Matches       int   `json:"matches"`
	Timeouts      int   `json:"timeouts"`
	Requests      int   `json:"requests"`
}

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID         string    `json:"id"`
	Macro      string    `json:"macro"`
	Transport  string    `json:"transport,omitempty"`
	State      RunState  `json:"state"`
	StepIndex  int       `json:"step_index"`
	Reason     string    `json:"reason,omitempty"`
	Stats      RunStats  `json:"stats"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
