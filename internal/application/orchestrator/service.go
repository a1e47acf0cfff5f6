// Package orchestrator is the single entry point callers use: plan, execute,
// record history, and answer with exactly one response.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/doeshing/orca-go/internal/application/repair"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// Planner builds plans.
type Planner interface {
	BuildPlan(ctx context.Context, command string, args []string, actor domain.Actor) (domain.Plan, error)
}

// Executor runs plans.
type Executor interface {
	Run(ctx context.Context, plan domain.Plan) (domain.ExecutionResult, error)
}

// Request is one caller invocation.
type Request struct {
	Command string
	Args    []string
	Actor   domain.Actor
}

// Service wires planner and executor together.
type Service struct {
	Planner    Planner
	Executor   Executor
	History    ports.HistoryRepository
	Classifier *repair.Classifier
	Logger     ports.Logger
	Clock      ports.Clock
}

// Handle never fails: every outcome is folded into the response.
func (s *Service) Handle(ctx context.Context, req Request) domain.Response {
	plan, err := s.Planner.BuildPlan(ctx, req.Command, req.Args, req.Actor)
	if err != nil {
		s.Logger.Info("plan rejected", map[string]interface{}{
			"command": req.Command,
			"role":    req.Actor.Role,
			"error":   err.Error(),
		})
		return planningFailure(req.Command, err)
	}

	started := s.now()
	result, runErr := s.Executor.Run(ctx, plan)
	s.appendHistory(ctx, req, plan, result, runErr, started)

	if runErr != nil {
		return domain.Response{
			Status:    domain.StatusError,
			Command:   req.Command,
			Message:   runErr.Error(),
			Data:      resultData(plan, result),
			ErrorKind: string(s.errorKind(runErr)),
		}
	}
	return domain.Response{
		Status:            domain.StatusSuccess,
		Command:           req.Command,
		Data:              resultData(plan, result),
		Repaired:          result.Repaired,
		RepairDescription: result.RepairDescription,
	}
}

func planningFailure(command string, err error) domain.Response {
	resp := domain.Response{
		Status:    domain.StatusError,
		Command:   command,
		Message:   err.Error(),
		ErrorKind: string(domain.PlanningErrorKind(err)),
	}
	var blocked *domain.GovernanceBlockedError
	if errors.As(err, &blocked) {
		resp.RequestID = blocked.RequestID
	}
	return resp
}

func resultData(plan domain.Plan, result domain.ExecutionResult) map[string]interface{} {
	if plan.Kind == domain.PlanAction {
		return result.Payload
	}
	data := map[string]interface{}{
		"program":     plan.Command,
		"args":        result.Args,
		"exit_code":   result.ExitCode,
		"attempts":    result.Attempts,
		"duration_ms": result.DurationMS,
	}
	if result.Stdout != "" {
		data["stdout"] = result.Stdout
	}
	if result.Stderr != "" {
		data["stderr"] = result.Stderr
	}
	if result.Record != nil {
		data["record"] = result.Record
	}
	return data
}

func (s *Service) errorKind(err error) domain.ErrorKind {
	var failed *domain.RepairFailedError
	if errors.As(err, &failed) {
		return domain.KindRepairFailed
	}
	if s.Classifier == nil {
		return domain.KindUnknown
	}
	return s.Classifier.Classify(err).Kind
}

func (s *Service) appendHistory(ctx context.Context, req Request, plan domain.Plan, result domain.ExecutionResult, runErr error, started time.Time) {
	if s.History == nil {
		return
	}
	record := domain.HistoryRecord{
		Timestamp:       started,
		Command:         req.Command,
		Args:            append([]string(nil), req.Args...),
		Role:            req.Actor.Role,
		User:            req.Actor.User,
		Success:         runErr == nil,
		Repaired:        result.Repaired,
		ExitCode:        result.ExitCode,
		ExecutionTimeMS: s.now().Sub(started).Milliseconds(),
	}
	if runErr != nil {
		record.ErrorKind = s.errorKind(runErr)
		record.Message = runErr.Error()
	}
	if err := s.History.Append(ctx, record); err != nil {
		s.Logger.Error("append history", err, map[string]interface{}{"command": plan.Label()})
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
