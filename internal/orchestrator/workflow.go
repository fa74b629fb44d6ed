package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mpataki/arena/internal/models"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrInvalidWorkflow  = errors.New("invalid workflow")
)

// WorkflowID derives a workflow id from its name: lowercased, spaces
// replaced with hyphens.
func WorkflowID(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// CreateWorkflow stores a workflow in the idle state and returns its id.
// A workflow already stored under the same id is replaced.
func (o *Orchestrator) CreateWorkflow(name string, steps []models.WorkflowStep) (string, error) {
	id := WorkflowID(name)
	if id == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}
	for i, s := range steps {
		if s.Agent == "" {
			return "", fmt.Errorf("%w: step %d has no agent", ErrInvalidWorkflow, i+1)
		}
	}

	wf := &models.Workflow{
		ID:     id,
		Name:   name,
		Steps:  append([]models.WorkflowStep(nil), steps...),
		Status: models.WorkflowStatusIdle,
	}

	o.mu.Lock()
	if _, exists := o.workflows[id]; exists {
		o.logger.Log("workflow: replacing existing definition %s", id)
	}
	o.workflows[id] = wf
	o.mu.Unlock()

	o.logger.Log("workflow: created %s with %d steps", id, len(steps))
	return id, nil
}

// ExecuteWorkflow runs every step in declared order and returns their
// outcomes. A failed step does not stop the run.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, id string) ([]models.Outcome, error) {
	o.mu.Lock()
	wf, ok := o.workflows[id]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	wf.Status = models.WorkflowStatusRunning
	o.active[wf]++
	steps := wf.Steps
	o.mu.Unlock()

	results := make([]models.Outcome, 0, len(steps))
	for i, step := range steps {
		o.logger.Log("workflow %s: step %d/%d: %s with agent %s", id, i+1, len(steps), step.Task, step.Agent)
		results = append(results, o.dispatch(ctx, step.Agent, step.Task))
	}

	o.mu.Lock()
	o.active[wf]--
	remaining := o.active[wf]
	if remaining == 0 {
		delete(o.active, wf)
	}
	// The last concurrent run completes the workflow. A redefinition during
	// the run starts idle and is left alone.
	if remaining == 0 && o.workflows[id] == wf {
		wf.Status = models.WorkflowStatusCompleted
	}
	o.mu.Unlock()

	run := &models.WorkflowRun{
		ID:         o.newID(),
		WorkflowID: id,
		Results:    results,
	}
	o.recorder.Append(run)

	o.logger.Log("workflow %s: completed, %d/%d steps failed", id, run.Failures(), len(results))
	return results, nil
}

// Workflow returns a copy of the stored workflow.
func (o *Orchestrator) Workflow(id string) (models.Workflow, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	wf, ok := o.workflows[id]
	if !ok {
		return models.Workflow{}, false
	}
	return copyWorkflow(wf), true
}

// Workflows returns copies of all stored workflows, sorted by id.
func (o *Orchestrator) Workflows() []models.Workflow {
	o.mu.RLock()
	out := make([]models.Workflow, 0, len(o.workflows))
	for _, wf := range o.workflows {
		out = append(out, copyWorkflow(wf))
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyWorkflow(wf *models.Workflow) models.Workflow {
	cp := *wf
	cp.Steps = append([]models.WorkflowStep(nil), wf.Steps...)
	return cp
}
