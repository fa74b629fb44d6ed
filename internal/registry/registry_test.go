package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mpataki/arena/internal/models"
	"github.com/mpataki/arena/internal/storage"
)

func registries(t *testing.T) map[string]Registry {
	t.Helper()

	files, err := NewFileRegistry(filepath.Join(t.TempDir(), "agents"))
	if err != nil {
		t.Fatal(err)
	}

	store, err := storage.New(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return map[string]Registry{
		"file":   files,
		"sqlite": NewSQLRegistry(store),
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			def, err := reg.Create("Research Bot", "finds sources", "", []string{"search"})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if def.ID != "research-bot" || def.Model != models.DefaultAgentModel || def.Status != models.AgentStatusReady {
				t.Errorf("unexpected definition %+v", def)
			}

			got, err := reg.Get("research-bot")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got == nil || got.Name != "Research Bot" || !reflect.DeepEqual(got.Tools, []string{"search"}) {
				t.Errorf("got %+v", got)
			}

			missing, err := reg.Get("ghost")
			if err != nil || missing != nil {
				t.Errorf("Get(ghost) = %v, %v; want nil, nil", missing, err)
			}
		})
	}
}

func TestRegistry_CreateReplaces(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := reg.Create("Writer", "v1", "gpt-4o", nil); err != nil {
				t.Fatal(err)
			}
			if _, err := reg.Create("writer", "v2", "claude", nil); err != nil {
				t.Fatal(err)
			}

			got, err := reg.Get("writer")
			if err != nil {
				t.Fatal(err)
			}
			if got.Description != "v2" || got.Model != "claude" {
				t.Errorf("definition not replaced: %+v", got)
			}

			all, err := reg.List()
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 1 {
				t.Errorf("List = %d agents, want 1", len(all))
			}
		})
	}
}

func TestRegistry_InvalidNames(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "   ", "../escape"} {
				if _, err := reg.Create(bad, "", "", nil); err == nil {
					t.Errorf("Create(%q) should fail", bad)
				}
			}
		})
	}
}

func TestAgentID(t *testing.T) {
	tests := map[string]models.AgentRef{
		"Researcher":     "researcher",
		"Senior Writer":  "senior-writer",
		" Bob":           "-bob",
		"Two  Spaces":    "two--spaces",
		"already-hyphen": "already-hyphen",
	}
	for name, want := range tests {
		if got := AgentID(name); got != want {
			t.Errorf("AgentID(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			for _, n := range []string{"zed", "amy", "kim"} {
				if _, err := reg.Create(n, "", "", nil); err != nil {
					t.Fatal(err)
				}
			}
			all, err := reg.List()
			if err != nil {
				t.Fatal(err)
			}
			var ids []models.AgentRef
			for _, d := range all {
				ids = append(ids, d.ID)
			}
			if !reflect.DeepEqual(ids, []models.AgentRef{"amy", "kim", "zed"}) {
				t.Errorf("ids = %v", ids)
			}
		})
	}
}

func TestFileRegistry_FileLayout(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Create("Critic", "reviews drafts", "gpt-4o", []string{"lint"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "critic.json"))
	if err != nil {
		t.Fatalf("agent file missing: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"id", "name", "description", "model", "tools", "status"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("agent file missing %q", k)
		}
	}

	// Non-agent files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	all, err := reg.List()
	if err != nil || len(all) != 1 {
		t.Errorf("List = %v, %v", all, err)
	}
}
