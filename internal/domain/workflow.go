package domain

import "time"

// RunTrigger is the source that started a workflow run. Triggers are
// uniform: a run behaves identically regardless of its source.
type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerManual   RunTrigger = "manual"
	TriggerSignal   RunTrigger = "signal"
)

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// WorkflowRun is the durable record of one agent trading cycle. A crash
// between steps resumes at the first step without a checkpoint; a crash
// mid-step re-executes that whole step from its start.
type WorkflowRun struct {
	ID        string
	AgentID   string
	SessionID string
	Trigger   RunTrigger
	Status    RunStatus
	Error     string
	StartedAt time.Time
	UpdatedAt time.Time
}

// StepCheckpoint is the persisted output of one completed durable step.
type StepCheckpoint struct {
	RunID       string
	Step        int
	Output      []byte // JSON-encoded step output, replayed on resume
	CompletedAt time.Time
}
