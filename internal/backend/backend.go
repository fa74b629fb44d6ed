// Package backend defines the execution capability the orchestrator
// dispatches agents to, and its in-process and isolated variants.
package backend

import (
	"context"
	"fmt"

	"github.com/mpataki/arena/internal/models"
)

// Backend runs one task for one agent. Implementations must always return
// an Outcome: internal errors become status=failure, never a panic or an
// error value. The orchestrator has no recovery logic of its own.
type Backend interface {
	RunTask(ctx context.Context, agent models.AgentRef, task models.Task) models.Outcome
}

type Kind string

const (
	KindLocal    Kind = "local"
	KindIsolated Kind = "isolated"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLocal, "":
		return KindLocal, nil
	case KindIsolated:
		return KindIsolated, nil
	default:
		return "", fmt.Errorf("unknown backend kind %q (want %q or %q)", s, KindLocal, KindIsolated)
	}
}

// KindOf reports which variant b is, or "custom" for other implementations.
func KindOf(b Backend) Kind {
	switch b.(type) {
	case *Local:
		return KindLocal
	case *Isolated:
		return KindIsolated
	default:
		return "custom"
	}
}
