package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// Session is the persisted active role and user.
type Session struct {
	mu      sync.Mutex
	table   *Table
	store   ports.RecordStore
	logger  ports.Logger
	current domain.Actor
}

// NewSession starts from fallback and is overridden by any persisted session.
func NewSession(table *Table, store ports.RecordStore, logger ports.Logger, fallback domain.Actor) *Session {
	return &Session{table: table, store: store, logger: logger, current: fallback}
}

// Load reads the persisted session. Unknown persisted roles are ignored.
func (s *Session) Load(ctx context.Context) {
	if s.store == nil {
		return
	}
	var saved domain.Actor
	if err := s.store.Load(ctx, domain.KeySession, &saved); err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Warn("session state unreadable, using defaults", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if saved.Role != "" && s.table.HasRole(saved.Role) {
		s.current.Role = saved.Role
	}
	if saved.User != "" {
		s.current.User = saved.User
	}
}

// Current returns the active actor.
func (s *Session) Current() domain.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetRole switches the active role and persists it.
func (s *Session) SetRole(ctx context.Context, role string) (domain.Actor, error) {
	if !s.table.HasRole(role) {
		return domain.Actor{}, fmt.Errorf("unknown role %q", role)
	}

	s.mu.Lock()
	s.current.Role = role
	actor := s.current
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, domain.KeySession, actor); err != nil {
			return actor, fmt.Errorf("persist session: %w", err)
		}
	}
	s.logger.Info("role changed", map[string]interface{}{"role": role, "user": actor.User})
	return actor, nil
}
