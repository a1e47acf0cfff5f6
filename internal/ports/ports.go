// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the orchestration core and external
// adapters (infrastructure). The planner, executor, governance and observation
// services depend only on these interfaces, so subprocess backends, durable stores
// and output parsers can be swapped without touching the core.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., CommandBackend, RecordStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.orca/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// CommandBackend runs a named program with arguments out of process.
// A failed run returns an error whose message carries the exit code, signal or
// stderr excerpt so the classifier can match on it.
type CommandBackend interface {
	Run(ctx context.Context, command string, args []string) (domain.CommandOutput, error)
}

// ActionFunc is an in-process action. The returned payload becomes the result record.
type ActionFunc func(ctx context.Context, plan domain.Plan) (map[string]interface{}, error)

// ActionRegistry resolves in-process actions by name.
type ActionRegistry interface {
	Lookup(name string) (ActionFunc, bool)
}

// RecordStore persists independently keyed records.
// Load returns domain.ErrRecordNotFound for keys that were never saved.
type RecordStore interface {
	Load(ctx context.Context, key string, dest interface{}) error
	Save(ctx context.Context, key string, value interface{}) error
}

// HistoryRepository is the append-only execution history.
type HistoryRepository interface {
	Append(ctx context.Context, record domain.HistoryRecord) error
	Records(ctx context.Context, limit int, command string) ([]domain.HistoryRecord, error)
}

// OutputParser extracts one embedded structured record from noisy text.
type OutputParser interface {
	Parse(raw string) domain.ParsedResult
}

// CommandResolver turns a symbolic command into a plan template.
// ok is false when the resolver does not know the command.
type CommandResolver interface {
	Resolve(ctx context.Context, command string, args []string) (plan domain.Plan, ok bool, err error)
}

// MetricsSink consumes one metrics event per executor attempt.
type MetricsSink interface {
	Record(metrics domain.AgentMetrics) error
}

// SnapshotStore captures plans before risky attempts and restores them for repairs.
type SnapshotStore interface {
	Create(state domain.Plan, description string) string
	Restore(id string) (domain.Plan, error)
}

// Clock abstracts time for services with time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stderr, rotated files).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
