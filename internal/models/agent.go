package models

import "time"

const (
	DefaultAgentModel = "gpt-4o"
	AgentStatusReady  = "ready"
)

// AgentDefinition is the registry's view of an agent. The orchestrator
// only ever sees its ID.
type AgentDefinition struct {
	ID          AgentRef  `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Model       string    `json:"model"`
	Tools       []string  `json:"tools"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
