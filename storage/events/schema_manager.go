package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaManager handles database schema migrations
type SchemaManager struct {
	pool *pgxpool.Pool
}

// NewSchemaManager creates a new schema manager
func NewSchemaManager(pool *pgxpool.Pool) *SchemaManager {
	return &SchemaManager{pool: pool}
}

// Initialize creates the database schema
func (m *SchemaManager) Initialize(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, pgSchema)
	return err
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS workflow_events (
  pos BIGSERIAL PRIMARY KEY,
  id UUID NOT NULL UNIQUE,
  seq BIGINT NOT NULL,
  type TEXT NOT NULL,
  module TEXT NOT NULL,
  entity_id NUMERIC(20,0) NOT NULL DEFAULT 0,
  actor TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  amount NUMERIC(20,0) NOT NULL DEFAULT 0,
  wallet_id NUMERIC(20,0) NOT NULL DEFAULT 0,
  data JSONB,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_workflow_events_type ON workflow_events(type);
CREATE INDEX IF NOT EXISTS idx_workflow_events_module_entity ON workflow_events(module, entity_id);
CREATE INDEX IF NOT EXISTS idx_workflow_events_actor ON workflow_events(actor);
CREATE INDEX IF NOT EXISTS idx_workflow_events_subject ON workflow_events(subject);
`
