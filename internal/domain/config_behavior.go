package domain

import (
	"fmt"
	"sort"
	"time"
)

// GetMaxRetries returns the repair ceiling
func (c *Config) GetMaxRetries() int {
	if c.Execution.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.Execution.MaxRetries
}

// GetSnapshotCapacity returns the snapshot arena bound
func (c *Config) GetSnapshotCapacity() int {
	if c.Execution.SnapshotCapacity <= 0 {
		return DefaultSnapshotCapacity
	}
	return c.Execution.SnapshotCapacity
}

// GetHelpFlag returns the flag used when exit code 1 hints at bad arguments
func (c *Config) GetHelpFlag() string {
	if c.Execution.HelpFlag == "" {
		return DefaultHelpFlag
	}
	return c.Execution.HelpFlag
}

// GetForceFlag returns the flag appended on permission errors
func (c *Config) GetForceFlag() string {
	if c.Execution.ForceFlag == "" {
		return DefaultForceFlag
	}
	return c.Execution.ForceFlag
}

// GetExecutionShell returns the configured shell for script plans
// Returns the default shell if not configured
func (c *Config) GetExecutionShell() string {
	const defaultShell = "sh"

	if c.Execution.Shell == "" || c.Execution.Shell == "auto" {
		return defaultShell
	}
	return c.Execution.Shell
}

// GetDefaultTimeout returns the plan timeout applied when a command spec has none
func (c *Config) GetDefaultTimeout() time.Duration {
	if c.Preferences.TimeoutSeconds <= 0 {
		return DefaultPlanTimeout
	}
	return time.Duration(c.Preferences.TimeoutSeconds) * time.Second
}

// GetDefaultRole returns the role used when no session role is stored
func (c *Config) GetDefaultRole() string {
	if c.Preferences.DefaultRole == "" {
		return RoleDeveloper
	}
	return c.Preferences.DefaultRole
}

// GetMetricsRetention returns the size of the metrics ring
func (c *Config) GetMetricsRetention() int {
	if c.Metrics.Retention <= 0 {
		return DefaultMetricsRetention
	}
	return c.Metrics.Retention
}

// GetMetricsBuffer returns the async dispatcher queue length
func (c *Config) GetMetricsBuffer() int {
	if c.Metrics.BufferSize <= 0 {
		return DefaultMetricsBuffer
	}
	return c.Metrics.BufferSize
}

// GetApprovalLogRetention returns how many audit entries are kept
func (c *Config) GetApprovalLogRetention() int {
	if c.Governance.LogRetention <= 0 {
		return DefaultApprovalLogRetention
	}
	return c.Governance.LogRetention
}

// GetQuotaWindow returns how long call counters live
func (c *Config) GetQuotaWindow() time.Duration {
	if c.Governance.QuotaWindowMinutes <= 0 {
		return DefaultQuotaWindow
	}
	return time.Duration(c.Governance.QuotaWindowMinutes) * time.Minute
}

// GetRoles returns the configured role table, or the defaults when none is set
func (c *Config) GetRoles() map[string]RolePolicy {
	if len(c.Roles) == 0 {
		return DefaultRolePolicies()
	}
	return c.Roles
}

// GetCommands returns the dispatch table, or the defaults when none is set
func (c *Config) GetCommands() map[string]CommandSpec {
	if len(c.Commands) == 0 {
		return DefaultCommandSpecs()
	}
	return c.Commands
}

// GetFallbacks returns the safer fallback command table
func (c *Config) GetFallbacks() map[string]string {
	if len(c.Execution.Fallbacks) == 0 {
		return DefaultFallbacks()
	}
	return c.Execution.Fallbacks
}

// CommandNames returns the dispatch table keys in sorted order
func (c *Config) CommandNames() []string {
	commands := c.GetCommands()
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateConsistency checks the internal consistency of the configuration
func (c *Config) ValidateConsistency() error {
	roles := c.GetRoles()
	if _, ok := roles[RoleAdmin]; !ok {
		return fmt.Errorf("role table must define %q", RoleAdmin)
	}
	if _, ok := roles[c.GetDefaultRole()]; !ok {
		return fmt.Errorf("default role %s does not exist in roles table", c.GetDefaultRole())
	}

	for name, policy := range roles {
		for command, limit := range policy.Limits {
			if limit < 0 {
				return fmt.Errorf("role %s: limit for %s must be >= 0", name, command)
			}
		}
	}

	for name, spec := range c.GetCommands() {
		switch spec.Kind {
		case PlanSubprocess, "":
			if spec.Program == "" {
				return fmt.Errorf("command %s: program is required", name)
			}
		case PlanScript:
			if spec.Script == "" {
				return fmt.Errorf("command %s: script is required", name)
			}
		case PlanAction:
		default:
			return fmt.Errorf("command %s: unknown kind %q", name, spec.Kind)
		}
	}

	return nil
}
