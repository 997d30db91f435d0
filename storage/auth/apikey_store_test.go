package auth

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator-backend/core/workflow"
)

func exerciseKeyStore(t *testing.T, s interface {
	APIKeyValidator
	APIKeyIssuer
	Seed(key string, address workflow.Address, source string)
}) {
	s.Seed("seed-key", "alice", "seed")
	s.Seed("", "bob", "seed")
	s.Seed("no-address", "", "seed")

	if !s.Validate("seed-key") {
		t.Error("Expected the seeded key to validate")
	}
	if s.Validate("") || s.Validate("no-address") {
		t.Error("Expected empty and address-less keys to be ignored")
	}
	rec, ok := s.Get("seed-key")
	if !ok || rec.Address != "alice" || rec.Source != "seed" {
		t.Errorf("Unexpected record %+v", rec)
	}

	issued, err := s.Issue("ci", "bob", "cli")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(issued.Key) != 64 {
		t.Errorf("Expected a 64 character key but got %d", len(issued.Key))
	}
	got, ok := s.Get(issued.Key)
	if !ok || got.Address != "bob" || got.Label != "ci" {
		t.Errorf("Unexpected record %+v", got)
	}
	if _, err := s.Issue("x", workflow.ZeroAddress, "cli"); err == nil {
		t.Error("Expected an error without an address")
	}
}

func TestAPIKeyStore(t *testing.T) {
	exerciseKeyStore(t, NewAPIKeyStore())
}

func TestPGAPIKeyStore(t *testing.T) {
	dsn := os.Getenv("ORCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ORCH_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer pool.Close()
	s, err := NewPGAPIKeyStore(ctx, pool)
	if err != nil {
		t.Fatalf("NewPGAPIKeyStore failed: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM api_keys WHERE source IN ('seed', 'cli')"); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	exerciseKeyStore(t, s)
}
