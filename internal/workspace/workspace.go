package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpataki/arena/internal/models"
)

// Workspace is the scratch directory an isolated agent process runs in.
type Workspace struct {
	Path string
}

type TaskMetadata struct {
	Agent     models.AgentRef `json:"agent"`
	Task      models.Task     `json:"task"`
	CreatedAt time.Time       `json:"created_at"`
}

// Create makes a fresh directory under baseDir for one task.
func Create(baseDir string, agent models.AgentRef) (*Workspace, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspaces directory: %w", err)
	}

	path, err := os.MkdirTemp(baseDir, "task-"+sanitize(string(agent))+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	w := &Workspace{Path: path}
	if err := os.MkdirAll(w.metaDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", w.metaDir(), err)
	}
	if err := os.WriteFile(filepath.Join(w.metaDir(), "PROTOCOL.md"), []byte(protocolContent), 0644); err != nil {
		return nil, fmt.Errorf("failed to write protocol file: %w", err)
	}

	return w, nil
}

func (w *Workspace) metaDir() string {
	return filepath.Join(w.Path, ".arena")
}

// OutputPath is where an agent process may write its answer instead of
// printing it.
func (w *Workspace) OutputPath() string {
	return filepath.Join(w.metaDir(), "output.txt")
}

func (w *Workspace) WriteTaskMetadata(meta *TaskMetadata) error {
	path := filepath.Join(w.metaDir(), "task.json")

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write task.json: %w", err)
	}

	return nil
}

// ReadOutput returns the contents of the output file. ok is false when the
// agent did not write one.
func (w *Workspace) ReadOutput() (output string, ok bool, err error) {
	data, err := os.ReadFile(w.OutputPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read output file: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Path)
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "agent"
	}
	return s
}

const protocolContent = `# Arena Task Protocol

You are running as one agent inside an arena orchestration.

- ` + "`" + `.arena/task.json` + "`" + ` holds your agent id and the task text.
- Print your answer to stdout, or write it to ` + "`" + `.arena/output.txt` + "`" + `.
  The output file wins when both are present.
- Exit non-zero to report failure. Whatever you printed becomes the
  failure reason.
- This directory is removed after the task finishes.
`
