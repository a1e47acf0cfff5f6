package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// QuotaTracker counts calls per role and command inside a sliding window.
type QuotaTracker struct {
	mu       sync.Mutex
	window   time.Duration
	counters map[string]*quotaCounter
	store    ports.RecordStore
	logger   ports.Logger
	clock    ports.Clock
}

type quotaCounter struct {
	Role        string    `json:"role"`
	Command     string    `json:"command"`
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}

// NewQuotaTracker builds a tracker. store may be nil.
func NewQuotaTracker(store ports.RecordStore, logger ports.Logger, window time.Duration) *QuotaTracker {
	if window <= 0 {
		window = domain.DefaultQuotaWindow
	}
	return &QuotaTracker{
		window:   window,
		counters: make(map[string]*quotaCounter),
		store:    store,
		logger:   logger,
		clock:    ports.SystemClock{},
	}
}

// Load restores persisted counters, tolerating missing or corrupt records.
func (q *QuotaTracker) Load(ctx context.Context) {
	if q.store == nil {
		return
	}
	var saved []quotaCounter
	if err := q.store.Load(ctx, domain.KeyQuota, &saved); err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			q.logger.Warn("quota state unreadable, starting empty", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range saved {
		c := saved[i]
		q.counters[quotaKey(c.Role, c.Command)] = &c
	}
}

// Used returns the calls already charged in the current window.
func (q *QuotaTracker) Used(role, command string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	c := q.currentLocked(role, command)
	if c == nil {
		return 0
	}
	return c.Count
}

// Check reports a LimitExceededError when no call is left. It does not charge.
func (q *QuotaTracker) Check(role, command string, limit int) error {
	if q.Used(role, command) >= limit {
		return &domain.LimitExceededError{Role: role, Command: command, Limit: limit}
	}
	return nil
}

// Reserve consumes one call when the limit allows it. The check and the
// increment happen under one lock so concurrent callers never overshoot.
func (q *QuotaTracker) Reserve(ctx context.Context, role, command string, limit int) error {
	q.mu.Lock()
	c := q.currentLocked(role, command)
	if c != nil && c.Count >= limit {
		q.mu.Unlock()
		return &domain.LimitExceededError{Role: role, Command: command, Limit: limit}
	}
	if c == nil {
		c = &quotaCounter{Role: role, Command: command, WindowStart: q.clock.Now()}
		q.counters[quotaKey(role, command)] = c
	}
	c.Count++
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	q.persist(ctx, snapshot)
	return nil
}

// Release refunds a call taken by Reserve whose plan was abandoned.
func (q *QuotaTracker) Release(ctx context.Context, role, command string) {
	q.mu.Lock()
	c := q.currentLocked(role, command)
	if c == nil || c.Count == 0 {
		q.mu.Unlock()
		return
	}
	c.Count--
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	q.persist(ctx, snapshot)
}

func (q *QuotaTracker) snapshotLocked() []quotaCounter {
	snapshot := make([]quotaCounter, 0, len(q.counters))
	for _, counter := range q.counters {
		snapshot = append(snapshot, *counter)
	}
	return snapshot
}

func (q *QuotaTracker) persist(ctx context.Context, snapshot []quotaCounter) {
	if q.store == nil {
		return
	}
	if err := q.store.Save(ctx, domain.KeyQuota, snapshot); err != nil {
		q.logger.Error("persist quota counters", err, nil)
	}
}

// currentLocked returns the live counter, dropping it once its window has passed.
func (q *QuotaTracker) currentLocked(role, command string) *quotaCounter {
	key := quotaKey(role, command)
	c, ok := q.counters[key]
	if !ok {
		return nil
	}
	if q.clock.Now().Sub(c.WindowStart) >= q.window {
		delete(q.counters, key)
		return nil
	}
	return c
}

func quotaKey(role, command string) string {
	return role + "\x00" + command
}
