package events

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"orchestrator-backend/core/workflow"
)

func sampleRecords() []Record {
	evts := []workflow.Event{
		{Seq: 1, Type: workflow.EventBountyAdded, Module: "bounty-manager", EntityID: 1, Actor: "issuer", Timestamp: 1_700_000_000,
			Data: map[string]any{"details": "fix parser"}},
		{Seq: 2, Type: workflow.EventClaimAdded, Module: "bounty-manager", EntityID: 1, Actor: "claimant", Amount: 300, Timestamp: 1_700_000_010},
		{Seq: 3, Type: workflow.EventTokensReleased, Module: "processor", Actor: "bounty-manager", Subject: "alice",
			Amount: 18_446_744_073_709_551_615, WalletID: 2, Timestamp: 1_700_000_020},
	}
	out := make([]Record, len(evts))
	for i, e := range evts {
		out[i] = FromEvent(e)
	}
	return out
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	for _, rec := range sampleRecords() {
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := s.Append(ctx, Record{}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord but got %v", err)
	}

	t.Run("Newest first", func(t *testing.T) {
		recs, err := s.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("Expected 3 records but got %d", len(recs))
		}
		if recs[0].Type != workflow.EventTokensReleased || recs[2].Type != workflow.EventBountyAdded {
			t.Errorf("Unexpected order: %s ... %s", recs[0].Type, recs[2].Type)
		}
		if recs[0].Amount != 18_446_744_073_709_551_615 || recs[0].WalletID != 2 {
			t.Errorf("Expected full-width amount and wallet id but got %d and %d", recs[0].Amount, recs[0].WalletID)
		}
		if recs[2].Data["details"] != "fix parser" {
			t.Errorf("Expected data to round trip but got %v", recs[2].Data)
		}
		if recs[2].CreatedAt.Unix() != 1_700_000_000 {
			t.Errorf("Expected created_at 1700000000 but got %d", recs[2].CreatedAt.Unix())
		}
	})

	t.Run("Filters", func(t *testing.T) {
		tests := []struct {
			name   string
			filter Filter
			want   int
		}{
			{"By type", Filter{Type: workflow.EventClaimAdded}, 1},
			{"By module and entity", Filter{Module: "bounty-manager", EntityID: 1}, 2},
			{"By subject address", Filter{Address: "alice"}, 1},
			{"By actor address", Filter{Address: "issuer"}, 1},
			{"Limit", Filter{Limit: 2}, 2},
			{"No match", Filter{Module: "nobody"}, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				recs, err := s.List(ctx, tt.filter)
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				if len(recs) != tt.want {
					t.Errorf("Expected %d records but got %d", tt.want, len(recs))
				}
			})
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "events.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("ORCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ORCH_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPGStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPGStore failed: %v", err)
	}
	defer s.Close()
	if _, err := s.Pool().Exec(ctx, "TRUNCATE workflow_events"); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Expected a memory store but got %T", s)
	}
	if _, err := Open(ctx, "mongo", ""); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Expected ErrUnknownDriver but got %v", err)
	}
	if _, err := Open(ctx, DriverSQLite, ""); !errors.Is(err, ErrMissingDSN) {
		t.Errorf("Expected ErrMissingDSN but got %v", err)
	}
}
