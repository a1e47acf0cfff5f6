package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/doeshing/orca-go/internal/application/governance"
	"github.com/doeshing/orca-go/internal/application/learning"
	"github.com/doeshing/orca-go/internal/application/observation"
	"github.com/doeshing/orca-go/internal/application/policy"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/infrastructure/discovery"
	"github.com/doeshing/orca-go/internal/ports"
)

// SnapshotLister lists the snapshot arena.
type SnapshotLister interface {
	List() []domain.SnapshotInfo
}

// DiscoveryLister lists discovered commands.
type DiscoveryLister interface {
	List() []discovery.Command
}

// Doctor produces a health report.
type Doctor interface {
	Run(ctx context.Context) (domain.HealthReport, error)
}

// Deps are the services the built-in actions read from.
type Deps struct {
	Session     *policy.Session
	Table       *policy.Table
	Governance  *governance.Service
	Observation *observation.Service
	Learning    *learning.Service
	History     ports.HistoryRepository
	Snapshots   SnapshotLister
	Discovery   DiscoveryLister
	Doctor      Doctor
	Clock       ports.Clock
}

// RegisterBuiltins wires every built-in and control action into r.
func RegisterBuiltins(r *Registry, d Deps) {
	if d.Clock == nil {
		d.Clock = ports.SystemClock{}
	}

	r.Register(domain.ActionWhoami, func(_ context.Context, plan domain.Plan) (map[string]interface{}, error) {
		return map[string]interface{}{
			"user":     plan.Actor.User,
			"role":     plan.Actor.Role,
			"commands": d.Table.Commands(plan.Actor.Role),
		}, nil
	})

	r.Register(domain.CmdSetRole, func(ctx context.Context, plan domain.Plan) (map[string]interface{}, error) {
		if len(plan.Args) != 1 {
			return nil, fmt.Errorf("usage: %s <role>", domain.CmdSetRole)
		}
		// Only an admin session may hand out the admin role.
		if plan.Args[0] == domain.RoleAdmin && plan.Actor.Role != domain.RoleAdmin {
			return nil, &domain.AuthorizationError{Role: plan.Actor.Role, Command: domain.CmdSetRole + " " + domain.RoleAdmin}
		}
		actor, err := d.Session.SetRole(ctx, plan.Args[0])
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"user": actor.User, "role": actor.Role}, nil
	})

	r.Register(domain.CmdApprove, func(ctx context.Context, plan domain.Plan) (map[string]interface{}, error) {
		if len(plan.Args) != 1 {
			return nil, fmt.Errorf("usage: %s <request-id>", domain.CmdApprove)
		}
		id := plan.Args[0]
		if !d.Governance.ApproveCommand(ctx, id, plan.Actor.User, plan.Actor.Role) {
			return nil, fmt.Errorf("cannot approve request %s as %s", id, plan.Actor.Role)
		}
		return map[string]interface{}{"request_id": id, "status": domain.ApprovalApproved}, nil
	})

	r.Register(domain.CmdReject, func(ctx context.Context, plan domain.Plan) (map[string]interface{}, error) {
		if len(plan.Args) < 1 {
			return nil, fmt.Errorf("usage: %s <request-id> [reason]", domain.CmdReject)
		}
		id, reason := plan.Args[0], strings.Join(plan.Args[1:], " ")
		if reason == "" {
			reason = "rejected by " + plan.Actor.User
		}
		if !d.Governance.RejectCommand(ctx, id, plan.Actor.User, plan.Actor.Role, reason) {
			return nil, fmt.Errorf("cannot reject request %s as %s", id, plan.Actor.Role)
		}
		return map[string]interface{}{"request_id": id, "status": domain.ApprovalRejected, "reason": reason}, nil
	})

	r.Register(domain.CmdPendingApprovals, func(context.Context, domain.Plan) (map[string]interface{}, error) {
		return map[string]interface{}{"pending": d.Governance.Pending()}, nil
	})

	r.Register(domain.ActionApprovalLog, func(_ context.Context, plan domain.Plan) (map[string]interface{}, error) {
		limit, err := limitArg(plan.Args, 0, domain.DefaultHistoryLimit)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"log": d.Governance.Log(limit)}, nil
	})

	r.Register(domain.ActionMetrics, func(_ context.Context, plan domain.Plan) (map[string]interface{}, error) {
		if len(plan.Args) > 0 {
			return map[string]interface{}{"command": d.Observation.GetCommandMetrics(plan.Args[0])}, nil
		}
		return map[string]interface{}{"overall": d.Observation.GetOverallMetrics()}, nil
	})

	r.Register(domain.ActionLearningStats, func(context.Context, domain.Plan) (map[string]interface{}, error) {
		return map[string]interface{}{"stats": d.Learning.Stats()}, nil
	})

	r.Register(domain.ActionPatterns, func(context.Context, domain.Plan) (map[string]interface{}, error) {
		return map[string]interface{}{"patterns": d.Learning.AnalyzeCommandPatterns()}, nil
	})

	r.Register(domain.ActionRetryQueue, func(context.Context, domain.Plan) (map[string]interface{}, error) {
		return map[string]interface{}{
			"queue": d.Learning.RetryQueue(),
			"due":   d.Learning.DueRetries(d.Clock.Now()),
		}, nil
	})

	r.Register(domain.ActionHistory, func(ctx context.Context, plan domain.Plan) (map[string]interface{}, error) {
		var command string
		args := plan.Args
		if len(args) > 0 {
			if _, err := strconv.Atoi(args[0]); err != nil {
				command, args = args[0], args[1:]
			}
		}
		limit, err := limitArg(args, 0, domain.DefaultHistoryLimit)
		if err != nil {
			return nil, err
		}
		records, err := d.History.Records(ctx, limit, command)
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		return map[string]interface{}{"records": records}, nil
	})

	r.Register(domain.ActionSnapshots, func(context.Context, domain.Plan) (map[string]interface{}, error) {
		return map[string]interface{}{"snapshots": d.Snapshots.List()}, nil
	})

	r.Register(domain.ActionDiscovered, func(context.Context, domain.Plan) (map[string]interface{}, error) {
		if d.Discovery == nil {
			return map[string]interface{}{"commands": []discovery.Command{}}, nil
		}
		return map[string]interface{}{"commands": d.Discovery.List()}, nil
	})

	r.Register(domain.ActionDoctor, func(ctx context.Context, _ domain.Plan) (map[string]interface{}, error) {
		report, err := d.Doctor.Run(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"healthy":    report.Healthy(),
			"checks":     report.Checks,
			"checked_at": d.Clock.Now().Format(domain.TimestampFormat),
		}, nil
	})
}

func limitArg(args []string, index, fallback int) (int, error) {
	if len(args) <= index {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[index])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", args[index])
	}
	return n, nil
}
