package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"orchestrator-backend/core/workflow"
)

// Record is a persisted workflow event.
type Record struct {
	ID        string             `json:"id"`
	Seq       uint64             `json:"seq"`
	Type      workflow.EventType `json:"type"`
	Module    string             `json:"module"`
	EntityID  uint64             `json:"entity_id,omitempty"`
	Actor     string             `json:"actor,omitempty"`
	Subject   string             `json:"subject,omitempty"`
	Amount    uint64             `json:"amount,omitempty"`
	WalletID  uint64             `json:"wallet_id,omitempty"`
	Data      map[string]any     `json:"data,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// FromEvent converts a committed workflow event into a record with a fresh id.
func FromEvent(evt workflow.Event) Record {
	return Record{
		ID:        uuid.NewString(),
		Seq:       evt.Seq,
		Type:      evt.Type,
		Module:    evt.Module.String(),
		EntityID:  evt.EntityID,
		Actor:     evt.Actor.String(),
		Subject:   evt.Subject.String(),
		Amount:    evt.Amount,
		WalletID:  evt.WalletID,
		Data:      evt.Data,
		CreatedAt: time.Unix(evt.Timestamp, 0).UTC(),
	}
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Type     workflow.EventType
	Module   string
	EntityID uint64
	Address  string // actor or subject
	Limit    int
}

// DefaultLimit caps List results when Filter.Limit is not set.
const DefaultLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultLimit
	}
	return f.Limit
}

func (f Filter) matches(r Record) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Module != "" && r.Module != f.Module {
		return false
	}
	if f.EntityID != 0 && r.EntityID != f.EntityID {
		return false
	}
	if f.Address != "" && r.Actor != f.Address && r.Subject != f.Address {
		return false
	}
	return true
}

// Store is the durable audit log of workflow events. List returns records
// newest first.
type Store interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
	Close()
}

func validate(rec Record) error {
	if rec.ID == "" || rec.Type == "" {
		return ErrInvalidRecord
	}
	return nil
}
