package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mpataki/arena/internal/logging"
	"github.com/mpataki/arena/internal/models"
	"github.com/mpataki/arena/internal/workspace"
)

// DefaultIsolatedCommand runs the Claude CLI non-interactively, using the
// arena agent id as the Claude agent name.
var DefaultIsolatedCommand = []string{
	"claude", "--agent", "{{agent}}",
	"-p", "{{task}}",
	"--dangerously-skip-permissions",
	"--max-turns", "10",
}

type IsolatedConfig struct {
	// Command is the argv run per task. {{agent}}, {{task}} and
	// {{workspace}} are substituted in every element.
	Command        []string
	WorkspacesDir  string
	Timeout        time.Duration
	KeepWorkspaces bool
	Logger         logging.Logger
}

// Isolated runs every task in its own process and scratch directory.
type Isolated struct {
	cfg IsolatedConfig
}

func NewIsolated(cfg IsolatedConfig) (*Isolated, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("isolated backend requires a command")
	}
	if cfg.WorkspacesDir == "" {
		cfg.WorkspacesDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Isolated{cfg: cfg}, nil
}

func (b *Isolated) RunTask(ctx context.Context, agent models.AgentRef, task models.Task) models.Outcome {
	ws, err := workspace.Create(b.cfg.WorkspacesDir, agent)
	if err != nil {
		return models.Failed(agent, fmt.Sprintf("failed to prepare workspace: %v", err))
	}
	if !b.cfg.KeepWorkspaces {
		defer ws.Remove()
	}

	meta := &workspace.TaskMetadata{Agent: agent, Task: task, CreatedAt: time.Now()}
	if err := ws.WriteTaskMetadata(meta); err != nil {
		return models.Failed(agent, err.Error())
	}

	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	argv := b.expand(agent, task, ws.Path)
	b.cfg.Logger.Log("isolated: launching %s for agent %s in %s", argv[0], agent, ws.Path)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = ws.Path
	cmd.Env = append(os.Environ(),
		"ARENA_AGENT="+string(agent),
		"ARENA_TASK="+string(task),
		"ARENA_WORKSPACE="+ws.Path,
	)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	b.cfg.Logger.Log("isolated: agent %s finished in %s", agent, time.Since(start).Round(time.Millisecond))

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Failed(agent, fmt.Sprintf("agent timed out after %s", b.cfg.Timeout))
		}
		return models.Failed(agent, fmt.Sprintf("agent cancelled: %v", ctx.Err()))
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason := strings.TrimSpace(stderr.String())
			if reason == "" {
				reason = strings.TrimSpace(stdout.String())
			}
			return models.Failed(agent, fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), reason))
		}
		return models.Failed(agent, fmt.Sprintf("failed to start agent process: %v", err))
	}

	output, ok, err := ws.ReadOutput()
	if err != nil {
		return models.Failed(agent, err.Error())
	}
	if !ok {
		output = strings.TrimSpace(stdout.String())
	}
	return models.Succeeded(agent, output)
}

func (b *Isolated) expand(agent models.AgentRef, task models.Task, dir string) []string {
	r := strings.NewReplacer(
		"{{agent}}", string(agent),
		"{{task}}", string(task),
		"{{workspace}}", dir,
	)
	argv := make([]string, len(b.cfg.Command))
	for i, arg := range b.cfg.Command {
		argv[i] = r.Replace(arg)
	}
	return argv
}
