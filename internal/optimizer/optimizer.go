// Package optimizer refines an agent's system prompt through self-play.
package optimizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpataki/arena/internal/logging"
	"github.com/mpataki/arena/internal/models"
)

const (
	DefaultPrompt     = "You are an AI assistant."
	DefaultIterations = 3
	optimizedSuffix   = " [Optimized with Self-Play]"
)

var ErrInvalidIterations = errors.New("iterations must not be negative")

type Request struct {
	Agent        models.AgentRef
	Name         string
	SystemPrompt string
	// Iterations is the number of self-play rounds. Zero means
	// DefaultIterations; negative counts are rejected.
	Iterations int
}

type Result struct {
	Status     string `json:"status"`
	NewPrompt  string `json:"new_prompt"`
	Iterations int    `json:"iterations"`
}

// Optimizer is the capability the orchestrator delegates prompt
// refinement to.
type Optimizer interface {
	Optimize(ctx context.Context, req Request) (Result, error)
}

// SelfPlay runs a fixed number of rounds. Rounds do not evaluate anything
// yet; the prompt is tagged as optimized once all rounds have run.
type SelfPlay struct {
	logger logging.Logger
}

func NewSelfPlay(logger logging.Logger) *SelfPlay {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SelfPlay{logger: logger}
}

func (s *SelfPlay) Optimize(ctx context.Context, req Request) (Result, error) {
	iterations := req.Iterations
	if iterations < 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidIterations, iterations)
	}
	if iterations == 0 {
		iterations = DefaultIterations
	}
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	name := req.Name
	if name == "" {
		name = string(req.Agent)
	}

	s.logger.Log("optimizer: starting self-play for agent %s", name)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("optimization interrupted after %d iterations: %w", i, err)
		}
		s.logger.Log("optimizer: iteration %d/%d", i+1, iterations)
	}

	return Result{
		Status:     "optimized",
		NewPrompt:  prompt + optimizedSuffix,
		Iterations: iterations,
	}, nil
}
