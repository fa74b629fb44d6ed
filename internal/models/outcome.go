package models

// AgentRef identifies an agent within a registry.
type AgentRef string

// Task is the text description of a unit of work.
type Task string

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the result of a single backend call.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Output string        `json:"output"`
	Agent  AgentRef      `json:"agent"`
}

func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// Failed builds a failure outcome for agent with the given reason as output.
func Failed(agent AgentRef, reason string) Outcome {
	return Outcome{Status: OutcomeFailure, Output: reason, Agent: agent}
}

// Succeeded builds a success outcome for agent.
func Succeeded(agent AgentRef, output string) Outcome {
	return Outcome{Status: OutcomeSuccess, Output: output, Agent: agent}
}
