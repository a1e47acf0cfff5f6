// Package repair classifies execution failures and proposes replacement plans.
package repair

import (
	"fmt"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
)

// Options tune the strategy table.
type Options struct {
	BaseTimeout time.Duration
	MinTimeout  time.Duration
	HelpFlag    string
	ForceFlag   string
	Fallbacks   map[string]string
}

// Engine maps an error kind and the failed plan to a new plan.
// It never touches RetryCount; the executor owns the retry counter.
type Engine struct {
	opts Options
}

// NewEngine builds an engine, filling unset options with defaults.
func NewEngine(opts Options) *Engine {
	if opts.BaseTimeout <= 0 {
		opts.BaseTimeout = domain.DefaultPlanTimeout
	}
	if opts.MinTimeout <= 0 {
		opts.MinTimeout = domain.MinPlanTimeout
	}
	if opts.HelpFlag == "" {
		opts.HelpFlag = domain.DefaultHelpFlag
	}
	if opts.ForceFlag == "" {
		opts.ForceFlag = domain.DefaultForceFlag
	}
	if opts.Fallbacks == nil {
		opts.Fallbacks = domain.DefaultFallbacks()
	}
	return &Engine{opts: opts}
}

// NewEngineFromConfig builds an engine from the execution settings.
func NewEngineFromConfig(cfg domain.Config) *Engine {
	return NewEngine(Options{
		BaseTimeout: cfg.GetDefaultTimeout(),
		HelpFlag:    cfg.GetHelpFlag(),
		ForceFlag:   cfg.GetForceFlag(),
		Fallbacks:   cfg.GetFallbacks(),
	})
}

// Propose returns a repair for the classified failure, or false when the kind
// has no strategy.
func (e *Engine) Propose(c Classification, plan domain.Plan) (domain.RepairPlan, bool) {
	switch c.Kind {
	case domain.KindTimeout:
		timeout := e.currentTimeout(plan) * 2
		return domain.RepairPlan{
			Type:        domain.RepairRetry,
			Kind:        c.Kind,
			Plan:        plan.WithTimeout(timeout),
			Description: fmt.Sprintf("retry %s with extended timeout %s", plan.Command, timeout),
		}, true

	case domain.KindExitCode:
		if !c.HasCode || c.Code != 1 || plan.Kind != domain.PlanSubprocess {
			return domain.RepairPlan{}, false
		}
		if len(plan.Args) == 1 && plan.Args[0] == e.opts.HelpFlag {
			return domain.RepairPlan{}, false
		}
		return domain.RepairPlan{
			Type:        domain.RepairAlternative,
			Kind:        c.Kind,
			Plan:        plan.WithArgs(e.opts.HelpFlag),
			Description: fmt.Sprintf("exit code 1 from %s, retry with %s for diagnostics", plan.Command, e.opts.HelpFlag),
		}, true

	case domain.KindFileNotFound:
		fallback, ok := e.opts.Fallbacks[plan.Command]
		if !ok || fallback == "" || fallback == plan.Command {
			return domain.RepairPlan{}, false
		}
		next := plan.Clone()
		next.Command = fallback
		return domain.RepairPlan{
			Type:        domain.RepairFallback,
			Kind:        c.Kind,
			Plan:        next,
			Description: fmt.Sprintf("%s not found, falling back to %s", plan.Command, fallback),
		}, true

	case domain.KindPermission:
		if plan.Kind != domain.PlanSubprocess {
			return domain.RepairPlan{}, false
		}
		next := plan.Clone()
		if !next.HasArg(e.opts.ForceFlag) {
			next.Args = append(next.Args, e.opts.ForceFlag)
		}
		return domain.RepairPlan{
			Type:        domain.RepairRetry,
			Kind:        c.Kind,
			Plan:        next,
			Description: fmt.Sprintf("permission denied for %s, retry with %s", plan.Command, e.opts.ForceFlag),
		}, true

	case domain.KindNetwork:
		timeout := e.currentTimeout(plan) / 2
		if timeout < e.opts.MinTimeout {
			timeout = e.opts.MinTimeout
		}
		return domain.RepairPlan{
			Type:        domain.RepairRetry,
			Kind:        c.Kind,
			Plan:        plan.WithTimeout(timeout),
			Description: fmt.Sprintf("network error for %s, retry with shorter timeout %s", plan.Command, timeout),
		}, true

	default:
		return domain.RepairPlan{}, false
	}
}

func (e *Engine) currentTimeout(plan domain.Plan) time.Duration {
	if plan.Timeout > 0 {
		return plan.Timeout
	}
	return e.opts.BaseTimeout
}
