package events

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"orchestrator-backend/core/workflow"
)

// SQLiteStore persists workflow events in a local SQLite file.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workflow_events (
  pos INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  seq INTEGER NOT NULL,
  type TEXT NOT NULL,
  module TEXT NOT NULL,
  entity_id TEXT NOT NULL DEFAULT '0',
  actor TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  amount TEXT NOT NULL DEFAULT '0',
  wallet_id TEXT NOT NULL DEFAULT '0',
  data TEXT,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_events_type ON workflow_events(type);
CREATE INDEX IF NOT EXISTS idx_workflow_events_module_entity ON workflow_events(module, entity_id);
`

// NewSQLiteStore opens (creating if needed) the database at path.
// WAL mode is enabled for concurrent reads.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, ErrMissingDSN
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer connection keeps pragmas and inserts consistent.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init event schema: %w", err)
	}
	return &SQLiteStore{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Append inserts rec.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := marshalData(rec.Data)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
INSERT INTO workflow_events (id, seq, type, module, entity_id, actor, subject, amount, wallet_id, data, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, int64(rec.Seq), string(rec.Type), rec.Module,
		strconv.FormatUint(rec.EntityID, 10), rec.Actor, rec.Subject,
		strconv.FormatUint(rec.Amount, 10), strconv.FormatUint(rec.WalletID, 10),
		data, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	entity := strconv.FormatUint(filter.EntityID, 10)
	rows, err := s.conn.QueryContext(ctx, `
SELECT id, seq, type, module, entity_id, actor, subject, amount, wallet_id, COALESCE(data, ''), created_at
FROM workflow_events
WHERE (? = '' OR type = ?)
  AND (? = '' OR module = ?)
  AND (? = '0' OR entity_id = ?)
  AND (? = '' OR actor = ? OR subject = ?)
ORDER BY pos DESC
LIMIT ?`,
		string(filter.Type), string(filter.Type),
		filter.Module, filter.Module,
		entity, entity,
		filter.Address, filter.Address, filter.Address,
		filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                      Record
			seq, createdAt           int64
			typ, entity, amount, wid string
			data                     string
		)
		if err := rows.Scan(&rec.ID, &seq, &typ, &rec.Module, &entity, &rec.Actor, &rec.Subject, &amount, &wid, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Seq = uint64(seq)
		rec.Type = workflow.EventType(typ)
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		rec, err = decodeColumns(rec, entity, amount, wid, data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.conn.Close()
}
