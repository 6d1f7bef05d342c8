package workerstore

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/mother/pkg/registry"
)

// SQLiteStore implements Store over the ai_workers / mother_voices tables.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("worker store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "worker store: open")
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("worker store: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ai_workers (
			name TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			type TEXT NOT NULL,
			is_blacklisted INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS mother_voices (
			llm_name TEXT PRIMARY KEY,
			voice_id TEXT NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "worker store: migrate")
		}
	}
	return nil
}

// LoadActiveWorkers returns every non-blacklisted worker, with its stored
// voice preference attached when one exists.
func (s *SQLiteStore) LoadActiveWorkers(ctx context.Context) ([]registry.Worker, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("worker store: db is nil")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.name, w.address, w.type, COALESCE(v.voice_id, '')
		FROM ai_workers w
		LEFT JOIN mother_voices v ON v.llm_name = w.name
		WHERE w.is_blacklisted = 0
		ORDER BY w.name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "worker store: query workers")
	}
	defer func() { _ = rows.Close() }()

	var out []registry.Worker
	for rows.Next() {
		w := registry.Worker{Enabled: true}
		if err := rows.Scan(&w.Name, &w.Address, &w.Type, &w.VoiceID); err != nil {
			return nil, errors.Wrap(err, "worker store: scan worker")
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "worker store: iterate workers")
	}
	return out, nil
}

func (s *SQLiteStore) VoiceForWorker(ctx context.Context, name string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("worker store: db is nil")
	}
	var voice string
	err := s.db.QueryRowContext(ctx, `SELECT voice_id FROM mother_voices WHERE llm_name = ?`, name).Scan(&voice)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "worker store: query voice")
	}
	return voice, nil
}

func (s *SQLiteStore) SaveVoice(ctx context.Context, name, voiceID string) error {
	if s == nil || s.db == nil {
		return errors.New("worker store: db is nil")
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("worker store: worker name is empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mother_voices(llm_name, voice_id) VALUES(?, ?)
		ON CONFLICT(llm_name) DO UPDATE SET voice_id = excluded.voice_id
	`, name, voiceID)
	return errors.Wrap(err, "worker store: save voice")
}

// SaveWorker upserts a worker registration row. Runtime registrations go
// through here so a restart sees them again.
func (s *SQLiteStore) SaveWorker(ctx context.Context, w registry.Worker) error {
	if s == nil || s.db == nil {
		return errors.New("worker store: db is nil")
	}
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("worker store: worker name is empty")
	}
	blacklisted := 0
	if !w.Enabled {
		blacklisted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_workers(name, address, type, is_blacklisted) VALUES(?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET address = excluded.address, type = excluded.type, is_blacklisted = excluded.is_blacklisted
	`, w.Name, w.Address, w.Type, blacklisted)
	return errors.Wrap(err, "worker store: save worker")
}
