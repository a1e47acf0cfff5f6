package observation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/infrastructure/store"
	"github.com/doeshing/orca-go/internal/pkg/logger"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var now = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func metric(command string, success bool, age time.Duration, took time.Duration) domain.AgentMetrics {
	m := domain.AgentMetrics{
		Command:       command,
		Success:       success,
		ExecutionTime: took,
		Timestamp:     now.Add(-age),
	}
	if !success {
		m.ErrorRate = 100
		m.Error = command + " failed"
	}
	return m
}

func TestCommandMetrics(t *testing.T) {
	svc := NewService(nil, logger.NewNop(), 0)
	require.NoError(t, svc.Record(metric("build", true, time.Minute, 2*time.Second)))
	require.NoError(t, svc.Record(metric("build", false, 0, 4*time.Second)))
	require.NoError(t, svc.Record(metric("test", true, 0, time.Second)))

	got := svc.GetCommandMetrics("build")
	assert.Equal(t, 2, got.TotalCalls)
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, 3*time.Second, got.AvgExecutionTime)
	assert.Equal(t, 50.0, got.ErrorRate)
	assert.True(t, got.LastExecutionTime.Equal(now))

	assert.Zero(t, svc.GetCommandMetrics("missing").TotalCalls)
}

func TestOverallMetrics(t *testing.T) {
	svc := NewService(nil, logger.NewNop(), 0)
	svc.clock = fixedClock{now: now}

	commands := []string{"a", "b", "b", "c", "c", "c", "d", "e", "f"}
	for _, c := range commands {
		require.NoError(t, svc.Record(metric(c, true, time.Hour, time.Second)))
	}
	require.NoError(t, svc.Record(metric("old", false, 48*time.Hour, time.Second)))
	for i := 0; i < 12; i++ {
		require.NoError(t, svc.Record(metric(fmt.Sprintf("err-%02d", i), false, time.Minute, time.Second)))
	}

	got := svc.GetOverallMetrics()
	assert.Equal(t, 22, got.TotalCalls)
	assert.InDelta(t, 13.0/22.0*100, got.ErrorRate, 0.001)
	require.Len(t, got.TopCommands, domain.TopCommandsLimit)
	assert.Equal(t, domain.CommandUsage{Command: "c", Count: 3}, got.TopCommands[0])
	assert.Equal(t, domain.CommandUsage{Command: "b", Count: 2}, got.TopCommands[1])

	require.Len(t, got.RecentErrors, domain.RecentErrorsLimit)
	assert.Equal(t, "err-11", got.RecentErrors[0].Command)
	for _, e := range got.RecentErrors {
		assert.NotEqual(t, "old", e.Command)
	}
}

func TestRingIsBoundedAndPersisted(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := NewService(mem, logger.NewNop(), 5)
	for i := 0; i < 8; i++ {
		require.NoError(t, svc.Record(metric(fmt.Sprintf("c%d", i), true, 0, 0)))
	}
	entries := svc.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "c3", entries[0].Command)

	restored := NewService(mem, logger.NewNop(), 5)
	restored.Load(context.Background())
	assert.Len(t, restored.Entries(), 5)

	mem.Put(domain.KeyMetrics, []byte("[{"))
	corrupt := NewService(mem, logger.NewNop(), 5)
	corrupt.Load(context.Background())
	assert.Empty(t, corrupt.Entries())
}

type slowSink struct {
	mu      sync.Mutex
	release chan struct{}
	got     []string
}

func (s *slowSink) Record(m domain.AgentMetrics) error {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, m.Command)
	s.mu.Unlock()
	return nil
}

type failingSink struct{ panics bool }

func (f failingSink) Record(domain.AgentMetrics) error {
	if f.panics {
		panic("boom")
	}
	return errors.New("disk full")
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := NewService(nil, logger.NewNop(), 0)
	d := NewDispatcher(16, logger.NewNop(), failingSink{panics: true}, failingSink{}, ring)
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Record(metric("build", true, 0, 0)))
	}
	d.Close()

	assert.Len(t, ring.Entries(), 10)
	assert.ErrorIs(t, d.Record(metric("late", true, 0, 0)), ErrDispatcherClosed)
	d.Close()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &slowSink{release: make(chan struct{})}
	d := NewDispatcher(1, logger.NewNop(), sink)

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Record(metric(fmt.Sprintf("c%d", i), true, 0, 0)))
	}
	assert.Positive(t, d.Dropped())

	close(sink.release)
	d.Close()
	assert.Equal(t, int64(20), d.Dropped()+int64(len(sink.got)))
}

func TestTopCommandsTieBreak(t *testing.T) {
	got := TopCommands(map[string]int{"b": 2, "a": 2, "c": 5}, 0)
	assert.Equal(t, []domain.CommandUsage{{Command: "c", Count: 5}, {Command: "a", Count: 2}, {Command: "b", Count: 2}}, got)
	assert.Zero(t, Percent(1, 0))
}
