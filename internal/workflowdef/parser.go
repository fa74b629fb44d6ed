// Package workflowdef reads workflow definitions from YAML files:
//
//	name: Research and Write
//	steps:
//	  - agent: researcher
//	    task: find sources
//	  - agent: writer
//	    task: draft the report
package workflowdef

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mpataki/arena/internal/models"
	"gopkg.in/yaml.v3"
)

type Definition struct {
	Name  string                `yaml:"name"`
	Steps []models.WorkflowStep `yaml:"steps"`

	// Path is the file the definition was read from.
	Path string `yaml:"-"`
}

// Creator is the part of the orchestrator that accepts workflows.
type Creator interface {
	CreateWorkflow(name string, steps []models.WorkflowStep) (string, error)
}

func Parse(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	def, err := ParseBytes(data)
	if err != nil {
		return nil, err
	}
	def.Path = path

	if def.Name == "" {
		def.Name = baseName(path)
	}
	return def, nil
}

func ParseBytes(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	return &def, nil
}

// LoadAll reads every .yaml/.yml file in dirs, keyed by workflow name.
// Later directories override earlier ones. Missing directories are
// skipped.
func LoadAll(dirs []string) (map[string]*Definition, error) {
	defs := make(map[string]*Definition)

	for _, dir := range dirs {
		if err := loadFromDir(dir, defs); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	return defs, nil
}

func loadFromDir(dir string, defs map[string]*Definition) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !isYAML(name) {
			continue
		}

		path := filepath.Join(dir, name)
		def, err := Parse(path)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		defs[def.Name] = def
	}

	return nil
}

func Validate(def *Definition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("workflow must have a name")
	}

	for i, s := range def.Steps {
		if s.Agent == "" {
			return fmt.Errorf("step %d must have an 'agent' field", i+1)
		}
	}

	return nil
}

// Save writes def to path as YAML.
func Save(path string, def *Definition) error {
	steps := def.Steps
	if steps == nil {
		steps = []models.WorkflowStep{}
	}
	data, err := yaml.Marshal(&Definition{Name: def.Name, Steps: steps})
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}
	return nil
}

// Register validates def and hands it to c, returning the workflow id.
func Register(c Creator, def *Definition) (string, error) {
	if err := Validate(def); err != nil {
		return "", err
	}
	return c.CreateWorkflow(def.Name, def.Steps)
}

// Names returns the keys of defs in sorted order.
func Names(defs map[string]*Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
}
