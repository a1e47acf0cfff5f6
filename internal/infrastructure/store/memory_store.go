package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// MemoryStore keeps encoded records in memory. Values are round-tripped through
// JSON so callers see the same semantics as the durable stores.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	history []domain.HistoryRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Load implements ports.RecordStore.
func (m *MemoryStore) Load(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	data, ok := m.records[key]
	m.mu.Unlock()
	if !ok {
		return domain.ErrRecordNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Save implements ports.RecordStore.
func (m *MemoryStore) Save(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.records[key] = data
	m.mu.Unlock()
	return nil
}

// Put stores raw bytes under key, used to simulate corrupt records.
func (m *MemoryStore) Put(key string, raw []byte) {
	m.mu.Lock()
	m.records[key] = raw
	m.mu.Unlock()
}

// Append implements ports.HistoryRepository.
func (m *MemoryStore) Append(_ context.Context, record domain.HistoryRecord) error {
	m.mu.Lock()
	m.history = append(m.history, record)
	m.mu.Unlock()
	return nil
}

// Records implements ports.HistoryRepository, newest first.
func (m *MemoryStore) Records(_ context.Context, limit int, command string) ([]domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HistoryRecord
	for i := len(m.history) - 1; i >= 0; i-- {
		if command != "" && m.history[i].Command != command {
			continue
		}
		out = append(out, m.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

var (
	_ ports.RecordStore       = (*MemoryStore)(nil)
	_ ports.HistoryRepository = (*MemoryStore)(nil)
)
