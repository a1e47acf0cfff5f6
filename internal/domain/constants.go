package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Execution constants
const (
	// DefaultMaxRetries is the hard ceiling of repaired retries per invocation
	DefaultMaxRetries = 3
	// DefaultSnapshotCapacity bounds the snapshot arena
	DefaultSnapshotCapacity = 10
	// DefaultPlanTimeout is the base timeout repairs extend or shorten
	DefaultPlanTimeout = 30 * time.Second
	// MinPlanTimeout is the floor for shortened timeouts
	MinPlanTimeout = time.Second
	// DefaultHelpFlag replaces arguments when exit code 1 suggests bad flags
	DefaultHelpFlag = "--help"
	// DefaultForceFlag is appended when a permission error is seen
	DefaultForceFlag = "--force"
	// DefaultDiscoveryTimeout bounds the help-text lookup
	DefaultDiscoveryTimeout = 5 * time.Second
)

// Retention constants
const (
	// DefaultApprovalLogRetention is the number of audit entries kept
	DefaultApprovalLogRetention = 1000
	// DefaultMetricsRetention is the size of the metrics ring
	DefaultMetricsRetention = 1000
	// DefaultLearningRetention is the size of the learning history
	DefaultLearningRetention = 1000
	// DefaultMetricsBuffer is the async dispatcher queue length
	DefaultMetricsBuffer = 256
	// DefaultQuotaWindow is how long per-role call counters live
	DefaultQuotaWindow = 24 * time.Hour
)

// Observation and learning constants
const (
	// TopCommandsLimit is the number of commands in overall metrics
	TopCommandsLimit = 5
	// RecentErrorsLimit is the number of errors in overall metrics
	RecentErrorsLimit = 10
	// RecentErrorsWindow is how far back recent errors are considered
	RecentErrorsWindow = 24 * time.Hour
	// MinLearningSamples is needed before a success rate is computed
	MinLearningSamples = 10
	// PromotionThreshold promotes a command once its success rate reaches it
	PromotionThreshold = 0.9
	// ProblematicFailureRate flags commands failing at least this often
	ProblematicFailureRate = 0.3
	// ProblematicMinSamples is the sample floor for problematic commands
	ProblematicMinSamples = 3
	// OutputExcerptLimit caps stored output payloads
	OutputExcerptLimit = 2048
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
)

// Roles
const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	RoleViewer    = "viewer"
	// AllCommands in a role's command list allows everything
	AllCommands = "*"
)

// Control commands intercepted by the planner.
const (
	CmdSetRole          = "set-role"
	CmdApprove          = "approve"
	CmdReject           = "reject"
	CmdPendingApprovals = "pending-approvals"
)

// Store keys, one per subsystem.
const (
	KeySession    = "session"
	KeyGovernance = "governance"
	KeyMetrics    = "metrics"
	KeyLearning   = "learning"
	KeyQuota      = "quota"
	KeyDiscovered = "discovered"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
