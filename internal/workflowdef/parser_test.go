package workflowdef

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mpataki/arena/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.yaml", `
name: Research and Write
steps:
  - agent: researcher
    task: find sources
  - agent: writer
    task: draft the report
`)

	def, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Name != "Research and Write" || def.Path != path {
		t.Errorf("def = %+v", def)
	}
	want := []models.WorkflowStep{
		{Agent: "researcher", Task: "find sources"},
		{Agent: "writer", Task: "draft the report"},
	}
	if !reflect.DeepEqual(def.Steps, want) {
		t.Errorf("steps = %v, want %v", def.Steps, want)
	}
}

func TestParse_NameFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "nightly.yml", "steps:\n  - agent: a\n    task: t\n")
	def, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "nightly" {
		t.Errorf("name = %q, want nightly", def.Name)
	}
}

func TestParse_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "steps: [unterminated")
	if _, err := Parse(path); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoadAll(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	writeFile(t, first, "a.yaml", "name: alpha\nsteps: []\n")
	writeFile(t, first, "b.yaml", "name: beta\nsteps:\n  - agent: old\n    task: t\n")
	writeFile(t, first, "notes.txt", "ignored")
	writeFile(t, second, "b.yml", "name: beta\nsteps:\n  - agent: new\n    task: t\n")

	defs, err := LoadAll([]string{filepath.Join(first, "missing"), first, second})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := Names(defs); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Errorf("names = %v", got)
	}
	if defs["beta"].Steps[0].Agent != "new" {
		t.Errorf("later directory should override: %v", defs["beta"].Steps)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr bool
	}{
		{"valid", Definition{Name: "w", Steps: []models.WorkflowStep{{Agent: "a", Task: "t"}}}, false},
		{"no steps", Definition{Name: "w"}, false},
		{"no name", Definition{Name: "  "}, true},
		{"step without agent", Definition{Name: "w", Steps: []models.WorkflowStep{{Task: "t"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(&tt.def); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type fakeCreator struct {
	name  string
	steps []models.WorkflowStep
}

func (f *fakeCreator) CreateWorkflow(name string, steps []models.WorkflowStep) (string, error) {
	f.name, f.steps = name, steps
	return "id-" + name, nil
}

func TestRegister(t *testing.T) {
	c := &fakeCreator{}
	def := &Definition{Name: "w", Steps: []models.WorkflowStep{{Agent: "a", Task: "t"}}}

	id, err := Register(c, def)
	if err != nil {
		t.Fatal(err)
	}
	if id != "id-w" || c.name != "w" || len(c.steps) != 1 {
		t.Errorf("id = %q, creator = %+v", id, c)
	}

	if _, err := Register(c, &Definition{}); err == nil {
		t.Error("invalid definition should not be registered")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.yaml")
	def := &Definition{Name: "Daily Digest", Steps: []models.WorkflowStep{{Agent: "reader", Task: "skim feeds"}}}

	if err := Save(path, def); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != def.Name || !reflect.DeepEqual(got.Steps, def.Steps) {
		t.Errorf("got %+v", got)
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := Save(empty, &Definition{Name: "stub"}); err != nil {
		t.Fatal(err)
	}
	got, err = Parse(empty)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "stub" || len(got.Steps) != 0 {
		t.Errorf("stub = %+v", got)
	}
}
