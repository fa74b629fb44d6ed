// Package registry persists agent definitions. The orchestrator never
// reads it; agents reach the orchestrator only as AgentRefs.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mpataki/arena/internal/models"
	"github.com/mpataki/arena/internal/storage"
)

type Registry interface {
	Create(name, description, model string, tools []string) (*models.AgentDefinition, error)
	// Get returns nil, nil when the agent does not exist.
	Get(id models.AgentRef) (*models.AgentDefinition, error)
	List() ([]*models.AgentDefinition, error)
}

// AgentID derives an agent id from its display name: lowercased, with
// every space replaced by a hyphen.
func AgentID(name string) models.AgentRef {
	return models.AgentRef(strings.ReplaceAll(strings.ToLower(name), " ", "-"))
}

func newDefinition(name, description, model string, tools []string) (*models.AgentDefinition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	id := AgentID(name)
	if strings.ContainsAny(string(id), `/\`) {
		return nil, fmt.Errorf("agent name %q must not contain path separators", name)
	}
	if model == "" {
		model = models.DefaultAgentModel
	}
	if tools == nil {
		tools = []string{}
	}
	return &models.AgentDefinition{
		ID:          id,
		Name:        name,
		Description: description,
		Model:       model,
		Tools:       tools,
		Status:      models.AgentStatusReady,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}, nil
}

// FileRegistry keeps one JSON file per agent in a directory. Creating an
// agent whose id already exists replaces it.
type FileRegistry struct {
	dir string
}

func NewFileRegistry(dir string) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create agents directory: %w", err)
	}
	return &FileRegistry{dir: dir}, nil
}

func (r *FileRegistry) path(id models.AgentRef) string {
	return filepath.Join(r.dir, string(id)+".json")
}

func (r *FileRegistry) Create(name, description, model string, tools []string) (*models.AgentDefinition, error) {
	def, err := newDefinition(name, description, model, tools)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent: %w", err)
	}
	if err := os.WriteFile(r.path(def.ID), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write agent file: %w", err)
	}

	return def, nil
}

func (r *FileRegistry) Get(id models.AgentRef) (*models.AgentDefinition, error) {
	if id == "" || strings.ContainsAny(string(id), `/\`) {
		return nil, nil
	}

	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read agent file: %w", err)
	}

	var def models.AgentDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse agent %s: %w", id, err)
	}
	return &def, nil
}

func (r *FileRegistry) List() ([]*models.AgentDefinition, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	var defs []*models.AgentDefinition
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		def, err := r.Get(models.AgentRef(strings.TrimSuffix(name, ".json")))
		if err != nil {
			return nil, err
		}
		if def != nil {
			defs = append(defs, def)
		}
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// SQLRegistry stores agents in the SQLite archive.
type SQLRegistry struct {
	store *storage.Storage
}

func NewSQLRegistry(store *storage.Storage) *SQLRegistry {
	return &SQLRegistry{store: store}
}

func (r *SQLRegistry) Create(name, description, model string, tools []string) (*models.AgentDefinition, error) {
	def, err := newDefinition(name, description, model, tools)
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveAgent(def); err != nil {
		return nil, fmt.Errorf("failed to save agent: %w", err)
	}
	return def, nil
}

func (r *SQLRegistry) Get(id models.AgentRef) (*models.AgentDefinition, error) {
	return r.store.GetAgent(id)
}

func (r *SQLRegistry) List() ([]*models.AgentDefinition, error) {
	return r.store.ListAgents()
}
