package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mpataki/arena/internal/logging"
	"github.com/mpataki/arena/internal/lua"
	"github.com/mpataki/arena/internal/models"
)

// Handler produces an agent's output for a task.
type Handler func(ctx context.Context, agent models.AgentRef, task models.Task) (string, error)

// DefaultHandler is used for agents with neither a registered handler nor
// a script.
func DefaultHandler(_ context.Context, _ models.AgentRef, task models.Task) (string, error) {
	return "Refined output for: " + string(task), nil
}

// Local dispatches tasks inside the current process. An agent resolves to,
// in order: a registered Handler, a Lua script <scriptsDir>/<agent>.lua,
// the fallback handler.
type Local struct {
	mu         sync.RWMutex
	handlers   map[models.AgentRef]Handler
	scriptsDir string
	fallback   Handler
	logger     logging.Logger
}

type LocalOption func(*Local)

func WithScriptsDir(dir string) LocalOption {
	return func(l *Local) { l.scriptsDir = dir }
}

func WithFallback(h Handler) LocalOption {
	return func(l *Local) { l.fallback = h }
}

func WithLocalLogger(logger logging.Logger) LocalOption {
	return func(l *Local) { l.logger = logger }
}

func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		handlers: make(map[models.AgentRef]Handler),
		fallback: DefaultHandler,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register binds a handler to an agent, replacing any previous one.
func (l *Local) Register(agent models.AgentRef, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[agent] = h
}

func (l *Local) RunTask(ctx context.Context, agent models.AgentRef, task models.Task) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Log("local: agent %s panicked: %v", agent, r)
			out = models.Failed(agent, fmt.Sprintf("agent panicked: %v", r))
		}
	}()

	l.logger.Log("local: agent %s executing task: %s", agent, task)

	output, err := l.resolve(agent)(ctx, agent, task)
	if err != nil {
		l.logger.Log("local: agent %s failed: %v", agent, err)
		return models.Failed(agent, err.Error())
	}
	return models.Succeeded(agent, output)
}

func (l *Local) resolve(agent models.AgentRef) Handler {
	l.mu.RLock()
	h, ok := l.handlers[agent]
	l.mu.RUnlock()
	if ok {
		return h
	}

	if l.scriptsDir != "" && !strings.ContainsAny(string(agent), `/\`) {
		path := lua.ScriptPath(l.scriptsDir, agent)
		if _, err := os.Stat(path); err == nil {
			return l.scriptHandler(path)
		}
	}

	return l.fallback
}

func (l *Local) scriptHandler(path string) Handler {
	return func(ctx context.Context, agent models.AgentRef, task models.Task) (string, error) {
		return lua.NewRuntime(agent, task, l.logger).Execute(ctx, path)
	}
}
