package models

type RecordKind string

const (
	RecordKindBattle        RecordKind = "battle"
	RecordKindCollaboration RecordKind = "collaboration"
	RecordKindWorkflowRun   RecordKind = "workflow_run"
)

// Record is one completed orchestration unit in the run log.
type Record interface {
	Kind() RecordKind
	RecordID() string
}

// BattleRecord compares two agents on the same task. Latencies are in
// seconds; Timestamp is unix seconds.
type BattleRecord struct {
	ID        string   `json:"id"`
	Task      Task     `json:"task"`
	AgentA    AgentRef `json:"agent_a"`
	AgentB    AgentRef `json:"agent_b"`
	LatencyA  float64  `json:"latency_a"`
	LatencyB  float64  `json:"latency_b"`
	OutcomeA  Outcome  `json:"outcome_a"`
	OutcomeB  Outcome  `json:"outcome_b"`
	Timestamp float64  `json:"timestamp"`
}

func (r *BattleRecord) Kind() RecordKind { return RecordKindBattle }
func (r *BattleRecord) RecordID() string { return r.ID }

// Faster returns the agent with the lower latency, or "" on a tie.
func (r *BattleRecord) Faster() AgentRef {
	switch {
	case r.LatencyA < r.LatencyB:
		return r.AgentA
	case r.LatencyB < r.LatencyA:
		return r.AgentB
	default:
		return ""
	}
}

type CollaborationStep struct {
	Agent  AgentRef `json:"agent"`
	Output string   `json:"output"`
}

type CollaborationRecord struct {
	ID        string              `json:"id"`
	Objective string              `json:"objective"`
	Steps     []CollaborationStep `json:"steps"`
}

func (r *CollaborationRecord) Kind() RecordKind { return RecordKindCollaboration }
func (r *CollaborationRecord) RecordID() string { return r.ID }

// FinalOutput is the output of the last step, which is the context the
// collaboration ended with.
func (r *CollaborationRecord) FinalOutput() string {
	if len(r.Steps) == 0 {
		return ""
	}
	return r.Steps[len(r.Steps)-1].Output
}

type WorkflowRun struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Results    []Outcome `json:"results"`
}

func (r *WorkflowRun) Kind() RecordKind { return RecordKindWorkflowRun }
func (r *WorkflowRun) RecordID() string { return r.ID }

// Failures counts the step outcomes that reported failure.
func (r *WorkflowRun) Failures() int {
	n := 0
	for _, o := range r.Results {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// CloneRecord returns a deep copy of rec. Record types defined elsewhere
// are returned unchanged.
func CloneRecord(rec Record) Record {
	switch r := rec.(type) {
	case *BattleRecord:
		if r == nil {
			return rec
		}
		cp := *r
		return &cp
	case *CollaborationRecord:
		if r == nil {
			return rec
		}
		cp := *r
		cp.Steps = cloneSlice(r.Steps)
		return &cp
	case *WorkflowRun:
		if r == nil {
			return rec
		}
		cp := *r
		cp.Results = cloneSlice(r.Results)
		return &cp
	}
	return rec
}

// cloneSlice copies s, keeping nil and empty distinct so the JSON form
// ("null" vs "[]") survives.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
