package models

type WorkflowStatus string

const (
	WorkflowStatusIdle      WorkflowStatus = "idle"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	// WorkflowStatusFailed is part of the status vocabulary but no
	// transition currently leads to it.
	WorkflowStatusFailed WorkflowStatus = "failed"
)

type WorkflowStep struct {
	Agent AgentRef `json:"agent" yaml:"agent"`
	Task  Task     `json:"task" yaml:"task"`
}

type Workflow struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Steps  []WorkflowStep `json:"steps"`
	Status WorkflowStatus `json:"status"`
}
