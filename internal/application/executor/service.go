// Package executor runs plans and drives the bounded repair loop.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/orca-go/internal/application/repair"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// Service executes plans. Each attempt is snapshotted first; failures are
// classified and, when a strategy exists, retried from the restored snapshot
// until the retry ceiling is reached.
type Service struct {
	Backend    ports.CommandBackend
	Actions    ports.ActionRegistry
	Snapshots  ports.SnapshotStore
	Classifier *repair.Classifier
	Repairs    *repair.Engine
	Parser     ports.OutputParser
	Metrics    ports.MetricsSink
	Logger     ports.Logger
	Shell      string
	MaxRetries int
}

// Run executes plan. A failure on the first attempt with no repair strategy is
// returned unchanged; once a repair has been tried, failures surface as
// *domain.RepairFailedError wrapping the latest underlying error.
func (s *Service) Run(ctx context.Context, plan domain.Plan) (domain.ExecutionResult, error) {
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}

	current := plan.Clone()
	var (
		applied *domain.RepairPlan
		result  domain.ExecutionResult
		err     error
		attempt int
	)
	for attempt = 0; attempt <= maxRetries; attempt++ {
		snapshotID := s.Snapshots.Create(current, "before "+current.String())

		start := time.Now()
		result, err = s.attempt(ctx, current)
		elapsed := time.Since(start)
		result.DurationMS = elapsed.Milliseconds()
		result.Attempts = attempt + 1
		s.emit(current, result, err, elapsed, applied)

		if err == nil {
			if applied != nil {
				result.Repaired = true
				result.RepairDescription = applied.Description
			}
			return result, nil
		}

		classification := s.Classifier.Classify(err)
		s.Logger.Warn("attempt failed", map[string]interface{}{
			"command":     current.Label(),
			"retry_count": current.RetryCount,
			"kind":        string(classification.Kind),
			"error":       err.Error(),
		})
		if current.RetryCount >= maxRetries {
			break
		}

		restored, restoreErr := s.Snapshots.Restore(snapshotID)
		if restoreErr != nil {
			s.Logger.Error("restore snapshot", restoreErr, map[string]interface{}{"snapshot": snapshotID})
			restored = current
		}
		proposal, ok := s.Repairs.Propose(classification, restored)
		if !ok {
			break
		}

		next := proposal.Plan
		next.RetryCount = restored.RetryCount + 1
		proposal.Plan = next
		applied = &proposal
		s.Logger.Info("repairing", map[string]interface{}{
			"command":     current.Label(),
			"repair":      proposal.Description,
			"type":        string(proposal.Type),
			"retry_count": next.RetryCount,
		})
		current = next
	}

	result.Status = domain.StatusError
	if applied == nil {
		return result, err
	}
	attempts := attempt + 1
	if attempts > maxRetries+1 {
		attempts = maxRetries + 1
	}
	return result, &domain.RepairFailedError{
		Command:  current.Label(),
		Attempts: attempts,
		Repair:   applied.Description,
		Err:      err,
	}
}

func (s *Service) attempt(ctx context.Context, plan domain.Plan) (domain.ExecutionResult, error) {
	if plan.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, plan.Timeout)
		defer cancel()
	}

	result := domain.ExecutionResult{
		Status:  domain.StatusSuccess,
		Command: plan.Label(),
		Args:    append([]string(nil), plan.Args...),
	}

	if plan.Kind == domain.PlanAction {
		action, ok := s.lookupAction(plan.Command)
		if !ok {
			result.Status = domain.StatusError
			return result, fmt.Errorf("action %q is not registered", plan.Command)
		}
		payload, err := action(ctx, plan)
		result.Payload = payload
		result.Record = payload
		if err != nil {
			result.Status = domain.StatusError
			return result, err
		}
		return result, nil
	}

	command, args := plan.Command, plan.Args
	if plan.Kind == domain.PlanScript {
		command = s.shell()
		args = append([]string{"-c", plan.Script, plan.Label()}, plan.Args...)
	}
	out, err := s.Backend.Run(ctx, command, args)
	result.Stdout = out.Stdout
	result.Stderr = out.Stderr
	result.ExitCode = out.ExitCode
	if err != nil {
		result.Status = domain.StatusError
		return result, withTimeoutWording(ctx, plan, err)
	}

	if s.Parser != nil {
		parsed := s.Parser.Parse(out.Stdout)
		if parsed.OK {
			result.Record = parsed.Record
		}
		if parsed.ReportsError() {
			result.Status = domain.StatusError
			message := parsed.Message
			if message == "" {
				message = "record reported status error"
			}
			return result, fmt.Errorf("%s: %s", plan.Label(), message)
		}
	}
	return result, nil
}

// emit hands one event to the metrics sink. Sink failures are logged only.
func (s *Service) emit(plan domain.Plan, result domain.ExecutionResult, runErr error, elapsed time.Duration, applied *domain.RepairPlan) {
	if s.Metrics == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("metrics sink panicked", fmt.Errorf("%v", r), map[string]interface{}{"command": plan.Label()})
		}
	}()

	m := domain.AgentMetrics{
		Command:       plan.Label(),
		ExecutionTime: elapsed,
		RetryCount:    plan.RetryCount,
		Success:       runErr == nil,
		Timestamp:     time.Now(),
		Context: map[string]string{
			domain.ContextArgs:   strings.Join(plan.Args, " "),
			domain.ContextRole:   plan.Actor.Role,
			domain.ContextOutput: truncate(result.Stdout, domain.OutputExcerptLimit),
		},
	}
	if runErr != nil {
		m.ErrorRate = 100
		m.Error = runErr.Error()
		m.ErrorKind = s.Classifier.Classify(runErr).Kind
	}
	if applied != nil {
		m.Context[domain.ContextRepair] = applied.Description
	}
	if err := s.Metrics.Record(m); err != nil {
		s.Logger.Warn("metrics not recorded", map[string]interface{}{"command": plan.Label(), "error": err.Error()})
	}
}

func (s *Service) lookupAction(name string) (ports.ActionFunc, bool) {
	if s.Actions == nil {
		return nil, false
	}
	return s.Actions.Lookup(name)
}

func (s *Service) shell() string {
	if s.Shell == "" {
		return "sh"
	}
	return s.Shell
}

// withTimeoutWording makes sure a deadline hit is recognisable as a timeout even
// when the backend reports it as a plain kill.
func withTimeoutWording(ctx context.Context, plan domain.Plan, err error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return err
	}
	return fmt.Errorf("%s timeout after %s: %w", plan.Label(), plan.Timeout, err)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
