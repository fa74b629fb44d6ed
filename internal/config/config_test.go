package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARENA_DATA_DIR", dir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.Backend.Kind != "local" {
		t.Errorf("Backend.Kind = %q, want local", cfg.Backend.Kind)
	}
	if cfg.Backend.Timeout != 10*time.Minute {
		t.Errorf("Backend.Timeout = %s", cfg.Backend.Timeout)
	}
	if len(cfg.Backend.Command) != 0 {
		t.Errorf("Backend.Command = %v, want empty", cfg.Backend.Command)
	}
	if cfg.Registry.Kind != "file" {
		t.Errorf("Registry.Kind = %q, want file", cfg.Registry.Kind)
	}
	if cfg.Log.Path != "" {
		t.Errorf("Log.Path = %q, want empty", cfg.Log.Path)
	}
	if got := cfg.DBPath(); got != filepath.Join(dir, "arena.db") {
		t.Errorf("DBPath = %q", got)
	}
	if got := cfg.ExportPath(); got != filepath.Join(dir, "runs.json") {
		t.Errorf("ExportPath = %q", got)
	}
}

func TestNew_ConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARENA_DATA_DIR", dir)

	yaml := `
backend:
  kind: isolated
  command: ["my-agent", "--name", "{{agent}}"]
  timeout: 30s
  keep_workspaces: true
log:
  path: /tmp/arena.log
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Backend.Kind != "isolated" || !cfg.Backend.KeepWorkspaces {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if !reflect.DeepEqual(cfg.Backend.Command, []string{"my-agent", "--name", "{{agent}}"}) {
		t.Errorf("Command = %v", cfg.Backend.Command)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s", cfg.Backend.Timeout)
	}

	t.Setenv("ARENA_BACKEND_KIND", "local")
	t.Setenv("ARENA_LOG_PATH", "/tmp/other.log")
	cfg, err = New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Backend.Kind != "local" {
		t.Errorf("env override ignored: kind = %q", cfg.Backend.Kind)
	}
	if cfg.Log.Path != "/tmp/other.log" {
		t.Errorf("env override ignored: log = %q", cfg.Log.Path)
	}
}

func TestNew_InvalidKind(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARENA_DATA_DIR", dir)
	t.Setenv("ARENA_BACKEND_KIND", "docker")

	if _, err := New(); err == nil {
		t.Error("expected error for unknown backend kind")
	}
}

func TestNew_InvalidRegistry(t *testing.T) {
	t.Setenv("ARENA_DATA_DIR", t.TempDir())
	t.Setenv("ARENA_REGISTRY_KIND", "etcd")

	if _, err := New(); err == nil {
		t.Error("expected error for unknown registry kind")
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("ARENA_DATA_DIR", dir)

	cfg, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	for _, d := range []string{cfg.DataDir, cfg.AgentsDir(), cfg.ScriptsDir(), cfg.WorkflowsDir()} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("%s not created", d)
		}
	}
}
