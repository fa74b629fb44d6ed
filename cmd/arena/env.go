package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mpataki/arena/internal/backend"
	"github.com/mpataki/arena/internal/config"
	"github.com/mpataki/arena/internal/logging"
	"github.com/mpataki/arena/internal/orchestrator"
	"github.com/mpataki/arena/internal/recorder"
	"github.com/mpataki/arena/internal/registry"
	"github.com/mpataki/arena/internal/storage"
)

// env is everything a command needs, built from config and global flags.
type env struct {
	cfg      *config.Config
	store    *storage.Storage
	logger   *logging.DebugLogger
	orch     *orchestrator.Orchestrator
	registry registry.Registry
	out      string
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFromPath(flagConfig)
	}
	return config.New()
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagBackend != "" {
		cfg.Backend.Kind = flagBackend
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logger, err := logging.NewDebugLogger(cfg.Log.Path)
	if err != nil {
		return nil, err
	}
	var log logging.Logger = logger
	if flagVerbose {
		log = logging.Tee{logger, logging.NewWriterLogger(os.Stderr)}
	}

	store, err := storage.New(cfg.DBPath())
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b, err := newBackend(cfg, log)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	// The archive holds the log from earlier invocations; new records are
	// appended after it.
	rec := recorder.New()
	archived, err := store.ListRecords(0)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, fmt.Errorf("failed to load run log: %w", err)
	}
	for _, r := range archived {
		rec.Append(r)
	}

	reg, err := newRegistry(cfg, store)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	out := flagOut
	if out == "" {
		out = cfg.ExportPath()
	}

	log.Log("arena: backend=%s registry=%s data_dir=%s archived=%d", backend.KindOf(b), cfg.Registry.Kind, cfg.DataDir, rec.Len())

	return &env{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		orch:     orchestrator.New(b, rec, orchestrator.WithLogger(log)),
		registry: reg,
		out:      out,
	}, nil
}

func newBackend(cfg *config.Config, logger logging.Logger) (backend.Backend, error) {
	kind, err := backend.ParseKind(cfg.Backend.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case backend.KindIsolated:
		command := cfg.Backend.Command
		if len(command) == 0 {
			command = backend.DefaultIsolatedCommand
		}
		return backend.NewIsolated(backend.IsolatedConfig{
			Command:        command,
			WorkspacesDir:  cfg.WorkspacesDir(),
			Timeout:        cfg.Backend.Timeout,
			KeepWorkspaces: cfg.Backend.KeepWorkspaces,
			Logger:         logger,
		})
	default:
		return backend.NewLocal(
			backend.WithScriptsDir(cfg.ScriptsDir()),
			backend.WithLocalLogger(logger),
		), nil
	}
}

func newRegistry(cfg *config.Config, store *storage.Storage) (registry.Registry, error) {
	if cfg.Registry.Kind == "sqlite" {
		return registry.NewSQLRegistry(store), nil
	}
	return registry.NewFileRegistry(cfg.AgentsDir())
}

// persist writes the run log to the JSON export and the SQLite archive.
func (e *env) persist(ctx context.Context) error {
	rec := e.orch.Recorder()
	if err := rec.Persist(e.out); err != nil {
		return err
	}
	return rec.PersistTo(ctx, e.store)
}

func (e *env) Close() {
	e.store.Close()
	e.logger.Close()
}

// workflowDirs lists definition directories; later entries win.
func (e *env) workflowDirs() []string {
	return []string{e.cfg.WorkflowsDir(), ".arena/workflows"}
}
