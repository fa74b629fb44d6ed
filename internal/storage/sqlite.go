package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mpataki/arena/internal/models"
	_ "modernc.org/sqlite"
)

// Storage is the SQLite archive for exported run logs and agent
// definitions.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		exported_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		tools TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_run_records_kind ON run_records(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ExportRecords replaces the archived log with records, preserving their
// order.
func (s *Storage) ExportRecords(ctx context.Context, records []models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_records`); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, rec := range records {
		payload, err := models.EncodeRecord(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_records (id, kind, payload, exported_at) VALUES (?, ?, ?, ?)`,
			rec.RecordID(), string(rec.Kind()), string(payload), now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRecords returns the newest limit archived records in log order
// (oldest first). A limit <= 0 returns the whole log.
func (s *Storage) ListRecords(limit int) ([]models.Record, error) {
	query := `SELECT payload FROM run_records ORDER BY seq`
	args := []any{}
	if limit > 0 {
		query = `SELECT payload FROM (
			SELECT seq, payload FROM run_records ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := models.DecodeRecord([]byte(payload))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *Storage) SaveAgent(def *models.AgentDefinition) error {
	tools, err := json.Marshal(nonNil(def.Tools))
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO agents (id, name, description, model, tools, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(def.ID), def.Name, def.Description, def.Model, string(tools), def.Status, def.CreatedAt,
	)
	return err
}

// GetAgent returns nil, nil when no agent has the id.
func (s *Storage) GetAgent(id models.AgentRef) (*models.AgentDefinition, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, model, tools, status, created_at FROM agents WHERE id = ?`, string(id),
	)

	def, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return def, err
}

func (s *Storage) ListAgents() ([]*models.AgentDefinition, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, model, tools, status, created_at FROM agents ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*models.AgentDefinition
	for rows.Next() {
		def, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	return defs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*models.AgentDefinition, error) {
	var def models.AgentDefinition
	var id, tools string
	var createdAt sql.NullTime

	if err := row.Scan(&id, &def.Name, &def.Description, &def.Model, &tools, &def.Status, &createdAt); err != nil {
		return nil, err
	}

	def.ID = models.AgentRef(id)
	if createdAt.Valid {
		def.CreatedAt = createdAt.Time
	}
	if err := json.Unmarshal([]byte(tools), &def.Tools); err != nil {
		return nil, err
	}

	return &def, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// FormatTimeAgo renders t relative to now for list views.
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
