package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/pkg/logging"

	_ "modernc.org/sqlite"
)

const sqliteStoreSchema = `
CREATE TABLE IF NOT EXISTS mcp_servers (
	name TEXT PRIMARY KEY,
	descriptor BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStore persists the registry in a SQLite database.
type SQLiteStore struct {
	// SQLite allows one writer; mu keeps the duplicate check and insert
	// atomic from the caller's view.
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed registry at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite registry path is required")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", dsn, err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite registry open: %w", err)
	}
	// One connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite registry set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite registry create schema: %w", err)
	}

	logging.Debug("ConfigStore", "Opened sqlite registry at %s", dsn)
	return &SQLiteStore{db: db}, nil
}

// List returns all entries in name order.
func (s *SQLiteStore) List(ctx context.Context) ([]api.ServerConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT name, descriptor
FROM mcp_servers
ORDER BY name ASC`)
	if err != nil {
		return nil, api.NewStorageError("sqlite list servers", err)
	}
	defer rows.Close()

	var out []api.ServerConfig
	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, api.NewStorageError("sqlite scan server", err)
		}
		cfg, err := decodeEntry(name, payload)
		if err != nil {
			logging.Warn("ConfigStore", "Skipping invalid registry entry %s: %v", name, err)
			continue
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, api.NewStorageError("sqlite server rows", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (api.ServerConfig, bool, error) {
	if err := ctx.Err(); err != nil {
		return api.ServerConfig{}, false, err
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT descriptor FROM mcp_servers WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return api.ServerConfig{}, false, nil
	}
	if err != nil {
		return api.ServerConfig{}, false, api.NewStorageError("sqlite get server", err)
	}
	cfg, err := decodeEntry(name, payload)
	if err != nil {
		return api.ServerConfig{}, false, nil
	}
	return cfg, true, nil
}

func (s *SQLiteStore) Add(ctx context.Context, cfg api.ServerConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(DescriptorToMap(cfg.Descriptor))
	if err != nil {
		return api.NewStorageError("failed to encode descriptor", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
INSERT INTO mcp_servers (name, descriptor, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO NOTHING`,
		cfg.Name, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return api.NewStorageError("sqlite insert server", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return api.NewStorageError("sqlite insert server", err)
	}
	if n == 0 {
		return api.NewDuplicateNameError(cfg.Name)
	}
	logging.Info("ConfigStore", "Added %s to sqlite registry", cfg.Name)
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM mcp_servers WHERE name = ?`, name)
	if err != nil {
		return api.NewStorageError("sqlite delete server", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return api.NewStorageError("sqlite delete server", err)
	}
	if n == 0 {
		return api.NewNotFoundError(name)
	}
	logging.Info("ConfigStore", "Removed %s from sqlite registry", name)
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
