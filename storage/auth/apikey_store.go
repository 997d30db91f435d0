package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orchestrator-backend/core/workflow"
)

// APIKey binds an issued key to the ledger address that acts for its holder.
type APIKey struct {
	ID        string           `json:"id"`
	Key       string           `json:"key,omitempty"`
	Label     string           `json:"label,omitempty"`
	Address   workflow.Address `json:"address"`
	CreatedAt time.Time        `json:"created_at"`
	Source    string           `json:"source,omitempty"` // e.g. "seed", "cli"
}

// APIKeyValidator defines the minimal interface required by auth middleware.
type APIKeyValidator interface {
	Validate(key string) bool
	Get(key string) (APIKey, bool)
}

// APIKeyIssuer allows creating new API keys.
type APIKeyIssuer interface {
	Issue(label string, address workflow.Address, source string) (APIKey, error)
}

// APIKeyStore provides in-memory API key validation/issuance.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

// NewAPIKeyStore constructs an empty store.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[string]APIKey)}
}

// Seed adds a pre-existing key (e.g., from config) bound to address.
func (s *APIKeyStore) Seed(key string, address workflow.Address, source string) {
	key = strings.TrimSpace(key)
	if key == "" || address.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = APIKey{ID: uuid.NewString(), Key: key, Address: address, Source: source, CreatedAt: time.Now()}
}

// Validate returns true if the key exists.
func (s *APIKeyStore) Validate(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Get returns the stored record for a key, if present.
func (s *APIKeyStore) Get(key string) (APIKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[key]
	return rec, ok
}

// Issue creates and stores a new API key for address.
func (s *APIKeyStore) Issue(label string, address workflow.Address, source string) (APIKey, error) {
	if address.IsZero() {
		return APIKey{}, fmt.Errorf("address required")
	}
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{ID: uuid.NewString(), Key: key, Label: label, Address: address, Source: source, CreatedAt: time.Now()}
	s.mu.Lock()
	s.keys[key] = rec
	s.mu.Unlock()
	return rec, nil
}

func generateKey() (string, error) {
	b := make([]byte, 32) // 256-bit key
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
