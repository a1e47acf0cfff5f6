package planner

import (
	"context"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// StaticResolver resolves commands from the configured dispatch table.
type StaticResolver struct {
	specs          map[string]domain.CommandSpec
	defaultTimeout time.Duration
}

// NewStaticResolver copies the dispatch table.
func NewStaticResolver(specs map[string]domain.CommandSpec, defaultTimeout time.Duration) *StaticResolver {
	copied := make(map[string]domain.CommandSpec, len(specs))
	for name, spec := range specs {
		copied[name] = spec
	}
	if defaultTimeout <= 0 {
		defaultTimeout = domain.DefaultPlanTimeout
	}
	return &StaticResolver{specs: copied, defaultTimeout: defaultTimeout}
}

// Resolve implements ports.CommandResolver. Caller arguments are appended to the
// table's fixed arguments.
func (r *StaticResolver) Resolve(_ context.Context, command string, args []string) (domain.Plan, bool, error) {
	spec, ok := r.specs[command]
	if !ok {
		return domain.Plan{}, false, nil
	}

	kind := spec.Kind
	if kind == "" {
		kind = domain.PlanSubprocess
	}
	plan := domain.Plan{
		Kind:        kind,
		Description: spec.Description,
	}
	switch kind {
	case domain.PlanAction:
		plan.Command = command
		plan.Args = append([]string(nil), args...)
	case domain.PlanScript:
		plan.Command = command
		plan.Script = spec.Script
		plan.Args = append([]string(nil), args...)
	default:
		plan.Command = spec.Program
		plan.Args = append(append([]string(nil), spec.Args...), args...)
	}
	if kind != domain.PlanAction {
		plan.Timeout = r.defaultTimeout
		if spec.TimeoutSeconds > 0 {
			plan.Timeout = time.Duration(spec.TimeoutSeconds) * time.Second
		}
	}
	return plan, true, nil
}

// Names lists the commands the table knows.
func (r *StaticResolver) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	return names
}

// ChainResolver asks each resolver in order and returns the first hit.
type ChainResolver []ports.CommandResolver

// Resolve implements ports.CommandResolver.
func (c ChainResolver) Resolve(ctx context.Context, command string, args []string) (domain.Plan, bool, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		plan, ok, err := r.Resolve(ctx, command, args)
		if err != nil {
			return domain.Plan{}, false, err
		}
		if ok {
			return plan, true, nil
		}
	}
	return domain.Plan{}, false, nil
}
