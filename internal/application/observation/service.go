// Package observation keeps the sliding window of per-attempt metrics.
package observation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// Service is a bounded ring of AgentMetrics with aggregate queries.
type Service struct {
	mu        sync.Mutex
	ring      []domain.AgentMetrics
	retention int

	store  ports.RecordStore
	logger ports.Logger
	clock  ports.Clock
}

// NewService builds an empty ring. store may be nil.
func NewService(store ports.RecordStore, logger ports.Logger, retention int) *Service {
	if retention <= 0 {
		retention = domain.DefaultMetricsRetention
	}
	return &Service{
		retention: retention,
		store:     store,
		logger:    logger,
		clock:     ports.SystemClock{},
	}
}

// Load restores the ring, tolerating missing or corrupt records.
func (s *Service) Load(ctx context.Context) {
	if s.store == nil {
		return
	}
	var saved []domain.AgentMetrics
	if err := s.store.Load(ctx, domain.KeyMetrics, &saved); err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Warn("metrics state unreadable, starting empty", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = saved
	s.trimLocked()
}

// Record implements ports.MetricsSink.
func (s *Service) Record(m domain.AgentMetrics) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.clock.Now()
	}
	s.mu.Lock()
	s.ring = append(s.ring, m)
	s.trimLocked()
	snapshot := append([]domain.AgentMetrics(nil), s.ring...)
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Save(context.Background(), domain.KeyMetrics, snapshot)
}

// Entries returns a copy of the ring, oldest first.
func (s *Service) Entries() []domain.AgentMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AgentMetrics(nil), s.ring...)
}

// GetCommandMetrics aggregates the ring for one command.
func (s *Service) GetCommandMetrics(command string) domain.CommandMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.CommandMetrics{Command: command}
	var total time.Duration
	for _, m := range s.ring {
		if m.Command != command {
			continue
		}
		out.TotalCalls++
		total += m.ExecutionTime
		out.TotalRetries += m.RetryCount
		if m.Success {
			out.Successes++
		} else {
			out.Failures++
		}
		if m.Timestamp.After(out.LastExecutionTime) {
			out.LastExecutionTime = m.Timestamp
		}
	}
	if out.TotalCalls > 0 {
		out.AvgExecutionTime = total / time.Duration(out.TotalCalls)
	}
	out.ErrorRate = Percent(out.Failures, out.TotalCalls)
	return out
}

// GetOverallMetrics aggregates the whole ring.
func (s *Service) GetOverallMetrics() domain.OverallMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.OverallMetrics{TotalCalls: len(s.ring)}
	frequency := make(map[string]int)
	var (
		total    time.Duration
		failures int
	)
	for _, m := range s.ring {
		total += m.ExecutionTime
		frequency[m.Command]++
		if !m.Success {
			failures++
		}
	}
	if out.TotalCalls > 0 {
		out.AvgExecutionTime = total / time.Duration(out.TotalCalls)
	}
	out.ErrorRate = Percent(failures, out.TotalCalls)
	out.TopCommands = TopCommands(frequency, domain.TopCommandsLimit)

	cutoff := s.clock.Now().Add(-domain.RecentErrorsWindow)
	for i := len(s.ring) - 1; i >= 0 && len(out.RecentErrors) < domain.RecentErrorsLimit; i-- {
		m := s.ring[i]
		if !m.Success && m.Timestamp.After(cutoff) {
			out.RecentErrors = append(out.RecentErrors, m)
		}
	}
	return out
}

func (s *Service) trimLocked() {
	if over := len(s.ring) - s.retention; over > 0 {
		s.ring = append([]domain.AgentMetrics(nil), s.ring[over:]...)
	}
}

var _ ports.MetricsSink = (*Service)(nil)
