package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator-backend/core/workflow"
)

// PGStore persists workflow events in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and initializes the schema.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := NewSchemaManager(pool).Initialize(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init event schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Pool exposes the connection pool so other stores can share it.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

// Append inserts rec.
func (s *PGStore) Append(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := marshalData(rec.Data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO workflow_events (id, seq, type, module, entity_id, actor, subject, amount, wallet_id, data, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8::numeric, $9::numeric, $10::jsonb, $11)`,
		rec.ID, int64(rec.Seq), string(rec.Type), rec.Module,
		strconv.FormatUint(rec.EntityID, 10), rec.Actor, rec.Subject,
		strconv.FormatUint(rec.Amount, 10), strconv.FormatUint(rec.WalletID, 10),
		data, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (s *PGStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
SELECT id::text, seq, type, module, entity_id::text, actor, subject, amount::text, wallet_id::text,
       COALESCE(data::text, ''), created_at
FROM workflow_events
WHERE ($1 = '' OR type = $1)
  AND ($2 = '' OR module = $2)
  AND ($3 = '0' OR entity_id = $3::numeric)
  AND ($4 = '' OR actor = $4 OR subject = $4)
ORDER BY pos DESC
LIMIT $5`
	rows, err := s.pool.Query(ctx, query,
		string(filter.Type), filter.Module, strconv.FormatUint(filter.EntityID, 10), filter.Address, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec                      Record
		seq                      int64
		typ, entity, amount, wid string
		data                     string
	)
	if err := row.Scan(&rec.ID, &seq, &typ, &rec.Module, &entity, &rec.Actor, &rec.Subject, &amount, &wid, &data, &rec.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("scan event: %w", err)
	}
	rec.Seq = uint64(seq)
	rec.Type = workflow.EventType(typ)
	return decodeColumns(rec, entity, amount, wid, data)
}

func marshalData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}
	return string(b), nil
}

// decodeColumns parses the textual numeric and json columns shared by the
// SQL stores.
func decodeColumns(rec Record, entity, amount, walletID, data string) (Record, error) {
	var err error
	if rec.EntityID, err = strconv.ParseUint(entity, 10, 64); err != nil {
		return Record{}, fmt.Errorf("parse entity id: %w", err)
	}
	if rec.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
		return Record{}, fmt.Errorf("parse amount: %w", err)
	}
	if rec.WalletID, err = strconv.ParseUint(walletID, 10, 64); err != nil {
		return Record{}, fmt.Errorf("parse wallet id: %w", err)
	}
	if data != "" && data != "{}" {
		if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
			return Record{}, fmt.Errorf("decode event data: %w", err)
		}
	}
	return rec, nil
}
