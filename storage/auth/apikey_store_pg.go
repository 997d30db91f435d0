package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator-backend/core/workflow"
)

// hashKey is the lookup key stored instead of the plain API key.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// PGAPIKeyStore persists API keys in Postgres. Only key hashes are stored.
type PGAPIKeyStore struct {
	pool *pgxpool.Pool
}

// NewPGAPIKeyStore initializes the schema on an existing pool.
func NewPGAPIKeyStore(ctx context.Context, pool *pgxpool.Pool) (*PGAPIKeyStore, error) {
	s := &PGAPIKeyStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGAPIKeyStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
  key_hash TEXT PRIMARY KEY,
  id UUID NOT NULL,
  label TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_api_keys_address ON api_keys(address);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Validate implements APIKeyValidator.
func (s *PGAPIKeyStore) Validate(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Get returns the API key record for the provided key. The plain key is not
// stored, so the returned record echoes the caller's key.
func (s *PGAPIKeyStore) Get(key string) (APIKey, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return APIKey{}, false
	}
	var rec APIKey
	var address string
	err := s.pool.QueryRow(context.Background(),
		"SELECT id::text, label, address, source, created_at FROM api_keys WHERE key_hash=$1",
		hashKey(key),
	).Scan(&rec.ID, &rec.Label, &address, &rec.Source, &rec.CreatedAt)
	if err != nil {
		return APIKey{}, false
	}
	rec.Key = key
	rec.Address = workflow.Address(address)
	return rec, true
}

// Issue implements APIKeyIssuer.
func (s *PGAPIKeyStore) Issue(label string, address workflow.Address, source string) (APIKey, error) {
	if address.IsZero() {
		return APIKey{}, fmt.Errorf("address required")
	}
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{
		ID:        uuid.NewString(),
		Key:       key,
		Label:     label,
		Address:   address,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if err := s.insert(context.Background(), rec, false); err != nil {
		return APIKey{}, err
	}
	return rec, nil
}

// Seed inserts a provided key if not empty. Existing keys are left alone.
func (s *PGAPIKeyStore) Seed(key string, address workflow.Address, source string) {
	key = strings.TrimSpace(key)
	if key == "" || address.IsZero() {
		return
	}
	rec := APIKey{ID: uuid.NewString(), Key: key, Address: address, Source: source, CreatedAt: time.Now()}
	_ = s.insert(context.Background(), rec, true)
}

func (s *PGAPIKeyStore) insert(ctx context.Context, rec APIKey, ignoreConflict bool) error {
	query := "INSERT INTO api_keys (key_hash, id, label, address, source, created_at) VALUES ($1,$2,$3,$4,$5,$6)"
	if ignoreConflict {
		query += " ON CONFLICT DO NOTHING"
	}
	_, err := s.pool.Exec(ctx, query,
		hashKey(rec.Key), rec.ID, rec.Label, rec.Address.String(), rec.Source, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}
