// Package orchestrator sequences backend calls for battles,
// collaborations and declarative workflows, and records each completed
// run.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpataki/arena/internal/backend"
	"github.com/mpataki/arena/internal/logging"
	"github.com/mpataki/arena/internal/models"
	"github.com/mpataki/arena/internal/optimizer"
	"github.com/mpataki/arena/internal/recorder"
)

// CollaborationTemplate builds each collaboration step's task from the
// running context and the objective.
const CollaborationTemplate = "Current State: %s. Objective: %s"

type Orchestrator struct {
	backend   backend.Backend
	recorder  *recorder.Recorder
	logger    logging.Logger
	optimizer optimizer.Optimizer
	now       func() time.Time
	newID     func() string

	mu        sync.RWMutex
	workflows map[string]*models.Workflow
	// active counts in-flight executions per stored definition.
	active map[*models.Workflow]int
}

type Option func(*Orchestrator)

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock replaces time.Now for latency and timestamp measurement.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithOptimizer(opt optimizer.Optimizer) Option {
	return func(o *Orchestrator) { o.optimizer = opt }
}

func New(b backend.Backend, rec *recorder.Recorder, opts ...Option) *Orchestrator {
	if rec == nil {
		rec = recorder.New()
	}
	o := &Orchestrator{
		backend:   b,
		recorder:  rec,
		logger:    logging.Nop(),
		now:       time.Now,
		newID:     uuid.NewString,
		workflows: make(map[string]*models.Workflow),
		active:    make(map[*models.Workflow]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.optimizer == nil {
		o.optimizer = optimizer.NewSelfPlay(o.logger)
	}
	return o
}

func (o *Orchestrator) Recorder() *recorder.Recorder {
	return o.recorder
}

// dispatch is the single path to the backend. Empty agent refs are never
// sent; they come back as failures.
func (o *Orchestrator) dispatch(ctx context.Context, agent models.AgentRef, task models.Task) models.Outcome {
	if agent == "" {
		o.logger.Log("dispatch: refusing empty agent reference")
		return models.Failed(agent, "empty agent reference")
	}
	return o.backend.RunTask(ctx, agent, task)
}

// timed dispatches and reports the elapsed wall-clock time in seconds.
func (o *Orchestrator) timed(ctx context.Context, agent models.AgentRef, task models.Task) (models.Outcome, float64) {
	start := o.now()
	out := o.dispatch(ctx, agent, task)
	elapsed := o.now().Sub(start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return out, elapsed
}

// RunTask executes a single task. Single runs are not recorded.
func (o *Orchestrator) RunTask(ctx context.Context, agent models.AgentRef, task models.Task) models.Outcome {
	o.logger.Log("task: agent %s executing: %s", agent, task)
	out := o.dispatch(ctx, agent, task)
	o.logger.Log("task: agent %s finished with %s", agent, out.Status)
	return out
}

// RunBattle runs a then b on the same task, one after the other, and
// records the comparison. It cannot fail as a unit; individual outcomes
// carry any failure.
func (o *Orchestrator) RunBattle(ctx context.Context, a, b models.AgentRef, task models.Task) *models.BattleRecord {
	o.logger.Log("battle: starting %s vs %s", a, b)

	outA, latencyA := o.timed(ctx, a, task)
	outB, latencyB := o.timed(ctx, b, task)

	rec := &models.BattleRecord{
		ID:        o.newID(),
		Task:      task,
		AgentA:    a,
		AgentB:    b,
		LatencyA:  latencyA,
		LatencyB:  latencyB,
		OutcomeA:  outA,
		OutcomeB:  outB,
		Timestamp: unixSeconds(o.now()),
	}
	o.recorder.Append(rec)

	o.logger.Log("battle: %s %s in %.3fs, %s %s in %.3fs", a, outA.Status, latencyA, b, outB.Status, latencyB)
	return rec
}

// RunCollaboration hands the objective down the agent chain. Each agent
// sees the previous agent's output as its current state.
func (o *Orchestrator) RunCollaboration(ctx context.Context, agents []models.AgentRef, objective string) *models.CollaborationRecord {
	o.logger.Log("collaboration: starting with %d agents", len(agents))

	var state string
	steps := make([]models.CollaborationStep, 0, len(agents))
	for i, agent := range agents {
		task := models.Task(fmt.Sprintf(CollaborationTemplate, state, objective))
		out := o.dispatch(ctx, agent, task)
		state = out.Output
		steps = append(steps, models.CollaborationStep{Agent: agent, Output: out.Output})
		o.logger.Log("collaboration: step %d/%d agent %s %s", i+1, len(agents), agent, out.Status)
	}

	rec := &models.CollaborationRecord{
		ID:        o.newID(),
		Objective: objective,
		Steps:     steps,
	}
	o.recorder.Append(rec)
	return rec
}

// Optimize delegates prompt refinement to the configured optimizer.
func (o *Orchestrator) Optimize(ctx context.Context, req optimizer.Request) (optimizer.Result, error) {
	res, err := o.optimizer.Optimize(ctx, req)
	if err != nil {
		return optimizer.Result{}, fmt.Errorf("failed to optimize agent %s: %w", req.Agent, err)
	}
	return res, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
