package domain

// Built-in in-process actions.
const (
	ActionWhoami        = "whoami"
	ActionMetrics       = "metrics"
	ActionLearningStats = "learning-stats"
	ActionPatterns      = "patterns"
	ActionHistory       = "history"
	ActionSnapshots     = "snapshots"
	ActionRetryQueue    = "retry-queue"
	ActionApprovalLog   = "approval-log"
	ActionDiscovered    = "discovered"
	ActionDoctor        = "doctor"
)

// DefaultRolePolicies is the role table used when the config defines none.
func DefaultRolePolicies() map[string]RolePolicy {
	return map[string]RolePolicy{
		RoleAdmin: {
			Commands: []string{AllCommands},
		},
		RoleDeveloper: {
			Commands: []string{
				"status", "build", "test", "lint", "logs",
				"release", "deploy", "rollback", "db-backup",
				ActionWhoami, ActionMetrics, ActionLearningStats, ActionPatterns,
				ActionHistory, ActionSnapshots, ActionRetryQueue, ActionApprovalLog,
				ActionDiscovered, ActionDoctor,
			},
			Limits: map[string]int{
				"deploy":    5,
				"release":   5,
				"rollback":  3,
				"db-backup": 10,
			},
		},
		RoleViewer: {
			Commands: []string{
				"status", "logs",
				ActionWhoami, ActionMetrics, ActionLearningStats, ActionPatterns,
				ActionHistory, ActionDoctor,
			},
		},
	}
}

// DefaultCommandSpecs is the dispatch table used when the config defines none.
func DefaultCommandSpecs() map[string]CommandSpec {
	specs := map[string]CommandSpec{
		"status":     {Kind: PlanSubprocess, Program: "git", Args: []string{"status", "--short"}, Description: "Working tree status"},
		"build":      {Kind: PlanSubprocess, Program: "go", Args: []string{"build", "./..."}, TimeoutSeconds: 300, Description: "Build all packages"},
		"test":       {Kind: PlanSubprocess, Program: "go", Args: []string{"test", "./..."}, TimeoutSeconds: 600, Description: "Run the test suite"},
		"lint":       {Kind: PlanSubprocess, Program: "go", Args: []string{"vet", "./..."}, TimeoutSeconds: 300, Description: "Static checks"},
		"logs":       {Kind: PlanSubprocess, Program: "tail", Args: []string{"-n", "100"}, Description: "Tail a log file"},
		"release":    {Kind: PlanSubprocess, Program: "make", Args: []string{"release"}, TimeoutSeconds: 900, Description: "Cut a release"},
		"deploy":     {Kind: PlanSubprocess, Program: "make", Args: []string{"deploy"}, TimeoutSeconds: 900, Description: "Deploy the current build"},
		"rollback":   {Kind: PlanSubprocess, Program: "make", Args: []string{"rollback"}, TimeoutSeconds: 600, Description: "Roll back the last deploy"},
		"db-backup":  {Kind: PlanSubprocess, Program: "make", Args: []string{"db-backup"}, TimeoutSeconds: 900, Description: "Back up the database"},
		"db-restore": {Kind: PlanSubprocess, Program: "make", Args: []string{"db-restore"}, TimeoutSeconds: 900, Description: "Restore the database"},
	}
	for _, action := range []string{
		ActionWhoami, ActionMetrics, ActionLearningStats, ActionPatterns, ActionHistory,
		ActionSnapshots, ActionRetryQueue, ActionApprovalLog, ActionDiscovered, ActionDoctor,
	} {
		specs[action] = CommandSpec{Kind: PlanAction, Program: action}
	}
	return specs
}

// DefaultFallbacks maps commands to safer substitutes tried on fileNotFound.
func DefaultFallbacks() map[string]string {
	return map[string]string{
		"python3": "python",
		"pip3":    "pip",
		"gmake":   "make",
		"vim":     "vi",
		"rg":      "grep",
	}
}
