// Package planner turns a symbolic command into an executable plan after the
// role, quota and governance gates have passed.
package planner

import (
	"context"
	"fmt"

	"github.com/doeshing/orca-go/internal/application/governance"
	"github.com/doeshing/orca-go/internal/application/policy"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// Service builds plans.
type Service struct {
	Table      *policy.Table
	Governance *governance.Service
	Quota      *QuotaTracker
	Resolver   ports.CommandResolver
	Logger     ports.Logger
}

// IsControlCommand reports whether command manipulates the session or approvals.
func IsControlCommand(command string) bool {
	switch command {
	case domain.CmdSetRole, domain.CmdApprove, domain.CmdReject, domain.CmdPendingApprovals:
		return true
	default:
		return false
	}
}

// BuildPlan checks the gates in order and resolves the command. The quota and
// any approval are only spent once a plan exists.
func (s *Service) BuildPlan(ctx context.Context, command string, args []string, actor domain.Actor) (domain.Plan, error) {
	if command == "" {
		return domain.Plan{}, fmt.Errorf("no command given")
	}

	if IsControlCommand(command) {
		return domain.Plan{
			Name:    command,
			Kind:    domain.PlanAction,
			Command: command,
			Args:    append([]string(nil), args...),
			Actor:   actor,
		}, nil
	}

	if !s.Table.Allowed(actor.Role, command) {
		return domain.Plan{}, &domain.AuthorizationError{Role: actor.Role, Command: command}
	}

	limit, limited := s.Table.Limit(actor.Role, command)
	if limited && s.Quota != nil {
		if err := s.Quota.Check(actor.Role, command, limit); err != nil {
			return domain.Plan{}, err
		}
	}

	approved := false
	if s.Governance != nil {
		approved = s.Governance.HasApproval(command, args, actor.User)
		if !approved {
			if decision := s.Governance.CanProceed(ctx, command, args, actor.User, actor.Role); !decision.Allowed {
				return domain.Plan{}, &domain.GovernanceBlockedError{Command: command, RequestID: decision.RequestID}
			}
		}
	}

	plan, ok, err := s.Resolver.Resolve(ctx, command, args)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("resolve %s: %w", command, err)
	}
	if !ok {
		return domain.Plan{}, &domain.UnknownCommandError{Command: command}
	}
	plan.Name = command
	plan.Actor = actor
	plan.RetryCount = 0

	if limited && s.Quota != nil {
		if err := s.Quota.Reserve(ctx, actor.Role, command, limit); err != nil {
			return domain.Plan{}, err
		}
	}

	if approved {
		if req, ok := s.Governance.ConsumeApproval(ctx, command, args, actor.User); ok {
			s.Logger.Info("using approval", map[string]interface{}{
				"request_id":  req.ID,
				"command":     command,
				"approved_by": req.ApprovedBy,
			})
		} else if decision := s.Governance.CanProceed(ctx, command, args, actor.User, actor.Role); !decision.Allowed {
			// Another caller used the approval between the gate and here.
			if limited && s.Quota != nil {
				s.Quota.Release(ctx, actor.Role, command)
			}
			return domain.Plan{}, &domain.GovernanceBlockedError{Command: command, RequestID: decision.RequestID}
		}
	}

	s.Logger.Debug("plan built", map[string]interface{}{
		"command": command,
		"plan":    plan.String(),
		"kind":    string(plan.Kind),
		"role":    actor.Role,
	})
	return plan, nil
}
