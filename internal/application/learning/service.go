// Package learning tracks per-command reliability and schedules adaptive retries.
package learning

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// maxBackoffExponent caps 2^n minutes so the schedule cannot overflow.
const maxBackoffExponent = 20

// Service consumes metrics events and maintains the learning model.
type Service struct {
	mu        sync.Mutex
	entries   []domain.LearningEntry
	retries   map[string]*domain.AdaptiveRetryEntry
	rates     map[string]float64
	promoted  map[string]bool
	retention int

	store  ports.RecordStore
	logger ports.Logger
	clock  ports.Clock
}

type persistedState struct {
	Entries  []domain.LearningEntry      `json:"entries"`
	Retries  []domain.AdaptiveRetryEntry `json:"retries"`
	Promoted []string                    `json:"promoted"`
}

// NewService builds an empty model. store may be nil.
func NewService(store ports.RecordStore, logger ports.Logger, retention int) *Service {
	if retention <= 0 {
		retention = domain.DefaultLearningRetention
	}
	return &Service{
		retries:   make(map[string]*domain.AdaptiveRetryEntry),
		rates:     make(map[string]float64),
		promoted:  make(map[string]bool),
		retention: retention,
		store:     store,
		logger:    logger,
		clock:     ports.SystemClock{},
	}
}

// Load restores the model, tolerating missing or corrupt records.
func (s *Service) Load(ctx context.Context) {
	if s.store == nil {
		return
	}
	var state persistedState
	if err := s.store.Load(ctx, domain.KeyLearning, &state); err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Warn("learning state unreadable, starting empty", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = state.Entries
	s.trimLocked()
	for i := range state.Retries {
		r := state.Retries[i]
		s.retries[r.Command] = &r
	}
	for _, c := range state.Promoted {
		s.promoted[c] = true
	}
	seen := make(map[string]bool)
	for _, e := range s.entries {
		if !seen[e.Command] {
			seen[e.Command] = true
			s.recomputeLocked(e.Command, false)
		}
	}
}

// Record implements ports.MetricsSink.
func (s *Service) Record(m domain.AgentMetrics) error {
	now := s.clock.Now()
	timestamp := m.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	s.mu.Lock()
	s.entries = append(s.entries, domain.LearningEntry{
		Command:       m.Command,
		ExecutionTime: m.ExecutionTime,
		Success:       m.Success,
		RetryCount:    m.RetryCount,
		Timestamp:     timestamp,
		Input:         m.Context[domain.ContextArgs],
		Output:        m.Context[domain.ContextOutput],
		Error:         m.Error,
	})
	s.trimLocked()

	if m.Success {
		delete(s.retries, m.Command)
	} else {
		entry, ok := s.retries[m.Command]
		if !ok {
			entry = &domain.AdaptiveRetryEntry{Command: m.Command}
			s.retries[m.Command] = entry
		}
		entry.RetryCount++
		entry.NextRetryTime = now.Add(Backoff(entry.RetryCount))
		entry.LastError = m.Error
		entry.UpdatedAt = now
	}
	s.recomputeLocked(m.Command, true)
	state := s.stateLocked()
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Save(context.Background(), domain.KeyLearning, state)
}

// Backoff is 2^retryCount minutes.
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxBackoffExponent {
		retryCount = maxBackoffExponent
	}
	return time.Duration(1<<uint(retryCount)) * time.Minute
}

// SuccessRate returns the rolling success rate once enough samples exist.
func (s *Service) SuccessRate(command string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate, ok := s.rates[command]
	return rate, ok
}

// Stats summarises the model.
func (s *Service) Stats() domain.LearningStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.LearningStats{
		TotalEntries: len(s.entries),
		Commands:     make(map[string]domain.CommandLearning),
		Promoted:     []string{},
		RetryQueue:   s.retryQueueLocked(),
	}
	for _, e := range s.entries {
		c := stats.Commands[e.Command]
		c.Command = e.Command
		c.Samples++
		stats.Commands[e.Command] = c
	}
	for name, c := range stats.Commands {
		c.SuccessRate = s.rates[name]
		c.Promoted = s.promoted[name]
		stats.Commands[name] = c
	}
	for name, ok := range s.promoted {
		if ok {
			stats.Promoted = append(stats.Promoted, name)
		}
	}
	sort.Strings(stats.Promoted)
	return stats
}

// RetryQueue lists adaptive retry entries, soonest first.
func (s *Service) RetryQueue() []domain.AdaptiveRetryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryQueueLocked()
}

// DueRetries lists entries whose next retry time has passed.
func (s *Service) DueRetries(now time.Time) []domain.AdaptiveRetryEntry {
	var due []domain.AdaptiveRetryEntry
	for _, e := range s.RetryQueue() {
		if !e.NextRetryTime.After(now) {
			due = append(due, e)
		}
	}
	return due
}

// AnalyzeCommandPatterns buckets success by hour of day and flags commands
// failing too often.
func (s *Service) AnalyzeCommandPatterns() domain.PatternAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	type tally struct{ samples, successes int }
	hours := make(map[int]*tally)
	commands := make(map[string]*tally)
	for _, e := range s.entries {
		h := e.Timestamp.Hour()
		if hours[h] == nil {
			hours[h] = &tally{}
		}
		if commands[e.Command] == nil {
			commands[e.Command] = &tally{}
		}
		hours[h].samples++
		commands[e.Command].samples++
		if e.Success {
			hours[h].successes++
			commands[e.Command].successes++
		}
	}

	analysis := domain.PatternAnalysis{
		HourlySuccess:       []domain.HourlyBucket{},
		CommandSuccess:      make(map[string]float64, len(commands)),
		ProblematicCommands: []domain.ProblematicCommand{},
	}
	for h, t := range hours {
		analysis.HourlySuccess = append(analysis.HourlySuccess, domain.HourlyBucket{
			Hour:        h,
			Samples:     t.samples,
			SuccessRate: float64(t.successes) / float64(t.samples),
		})
	}
	sort.Slice(analysis.HourlySuccess, func(i, j int) bool {
		return analysis.HourlySuccess[i].Hour < analysis.HourlySuccess[j].Hour
	})

	for name, t := range commands {
		rate := float64(t.successes) / float64(t.samples)
		analysis.CommandSuccess[name] = rate
		if t.samples >= domain.ProblematicMinSamples && 1-rate >= domain.ProblematicFailureRate {
			analysis.ProblematicCommands = append(analysis.ProblematicCommands, domain.ProblematicCommand{
				Command:     name,
				Samples:     t.samples,
				FailureRate: 1 - rate,
			})
		}
	}
	sort.Slice(analysis.ProblematicCommands, func(i, j int) bool {
		a, b := analysis.ProblematicCommands[i], analysis.ProblematicCommands[j]
		if a.FailureRate == b.FailureRate {
			return a.Command < b.Command
		}
		return a.FailureRate > b.FailureRate
	})
	return analysis
}

// recomputeLocked refreshes the success rate of command once it has enough
// samples and logs the first promotion.
func (s *Service) recomputeLocked(command string, announce bool) {
	var samples, successes int
	for _, e := range s.entries {
		if e.Command != command {
			continue
		}
		samples++
		if e.Success {
			successes++
		}
	}
	if samples < domain.MinLearningSamples {
		delete(s.rates, command)
		return
	}
	rate := float64(successes) / float64(samples)
	s.rates[command] = rate

	if rate >= domain.PromotionThreshold {
		if !s.promoted[command] && announce {
			s.logger.Info("command promoted", map[string]interface{}{
				"command":      command,
				"success_rate": rate,
				"samples":      samples,
			})
		}
		s.promoted[command] = true
		return
	}
	delete(s.promoted, command)
}

func (s *Service) retryQueueLocked() []domain.AdaptiveRetryEntry {
	out := make([]domain.AdaptiveRetryEntry, 0, len(s.retries))
	for _, e := range s.retries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextRetryTime.Equal(out[j].NextRetryTime) {
			return out[i].Command < out[j].Command
		}
		return out[i].NextRetryTime.Before(out[j].NextRetryTime)
	})
	return out
}

func (s *Service) stateLocked() persistedState {
	state := persistedState{
		Entries: append([]domain.LearningEntry(nil), s.entries...),
		Retries: s.retryQueueLocked(),
	}
	for name, ok := range s.promoted {
		if ok {
			state.Promoted = append(state.Promoted, name)
		}
	}
	sort.Strings(state.Promoted)
	return state
}

func (s *Service) trimLocked() {
	if over := len(s.entries) - s.retention; over > 0 {
		s.entries = append([]domain.LearningEntry(nil), s.entries[over:]...)
	}
}

var _ ports.MetricsSink = (*Service)(nil)
