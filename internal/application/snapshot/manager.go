// Package snapshot keeps a bounded arena of immutable state captures.
package snapshot

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/doeshing/orca-go/internal/domain"
)

// Manager stores encoded copies of T. The encoded form is the capture, so a
// snapshot can never alias the live value it was taken from.
// Only exported fields of T survive a round trip.
type Manager[T any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]entry
	now      func() time.Time
}

type entry struct {
	info domain.SnapshotInfo
	data []byte
}

// NewManager builds an arena holding at most capacity snapshots.
func NewManager[T any](capacity int) *Manager[T] {
	if capacity <= 0 {
		capacity = domain.DefaultSnapshotCapacity
	}
	return &Manager[T]{
		capacity: capacity,
		entries:  make(map[string]entry, capacity),
		now:      time.Now,
	}
}

// Create captures state and returns its id. The oldest snapshot is evicted
// when the arena is full.
func (m *Manager[T]) Create(state T, description string) string {
	data, err := json.Marshal(state)
	if err != nil {
		// Unencodable state is still recorded so Restore reports a decode error
		// instead of an unknown id.
		data = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	m.entries[id] = entry{
		info: domain.SnapshotInfo{
			ID:          id,
			Timestamp:   now,
			Description: description,
			Size:        len(data),
		},
		data: data,
	}
	for len(m.entries) > m.capacity {
		m.evictOldestLocked()
	}
	return id
}

// Restore decodes a fresh copy of the captured state.
func (m *Manager[T]) Restore(id string) (T, error) {
	var state T

	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()

	if !ok {
		return state, &domain.SnapshotNotFoundError{ID: id}
	}
	if e.data == nil {
		return state, fmt.Errorf("snapshot %s: state could not be encoded", id)
	}
	if err := json.Unmarshal(e.data, &state); err != nil {
		return state, fmt.Errorf("snapshot %s: decode: %w", id, err)
	}
	return state, nil
}

// List returns snapshot metadata, newest first.
func (m *Manager[T]) List() []domain.SnapshotInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.SnapshotInfo, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Delete removes a snapshot explicitly.
func (m *Manager[T]) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return false
	}
	delete(m.entries, id)
	return true
}

// Len returns the number of stored snapshots.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Capacity returns the arena bound.
func (m *Manager[T]) Capacity() int {
	return m.capacity
}

func (m *Manager[T]) evictOldestLocked() {
	var (
		oldestID string
		oldest   domain.SnapshotInfo
	)
	for id, e := range m.entries {
		if oldestID == "" || e.info.Timestamp.Before(oldest.Timestamp) ||
			(e.info.Timestamp.Equal(oldest.Timestamp) && id < oldestID) {
			oldestID = id
			oldest = e.info
		}
	}
	delete(m.entries, oldestID)
}
