package domain

import "time"

// AgentMetrics is emitted once per executor attempt.
type AgentMetrics struct {
	Command       string            `json:"command"`
	ExecutionTime time.Duration     `json:"execution_time"`
	ErrorRate     float64           `json:"error_rate"`
	RetryCount    int               `json:"retry_count"`
	Success       bool              `json:"success"`
	Timestamp     time.Time         `json:"timestamp"`
	ErrorKind     ErrorKind         `json:"error_kind,omitempty"`
	Error         string            `json:"error,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
}

// Metric context keys.
const (
	ContextArgs   = "args"
	ContextOutput = "output"
	ContextRole   = "role"
	ContextRepair = "repair"
)

// CommandMetrics aggregates the ring for one command.
type CommandMetrics struct {
	Command           string        `json:"command"`
	TotalCalls        int           `json:"total_calls"`
	Successes         int           `json:"successes"`
	Failures          int           `json:"failures"`
	AvgExecutionTime  time.Duration `json:"avg_execution_time"`
	ErrorRate         float64       `json:"error_rate"`
	TotalRetries      int           `json:"total_retries"`
	LastExecutionTime time.Time     `json:"last_execution_time"`
}

// CommandUsage is a command with its call count.
type CommandUsage struct {
	Command string `json:"command"`
	Count   int    `json:"count"`
}

// OverallMetrics aggregates the whole ring.
type OverallMetrics struct {
	TotalCalls       int            `json:"total_calls"`
	AvgExecutionTime time.Duration  `json:"avg_execution_time"`
	ErrorRate        float64        `json:"error_rate"`
	TopCommands      []CommandUsage `json:"top_commands"`
	RecentErrors     []AgentMetrics `json:"recent_errors"`
}

// LearningEntry mirrors AgentMetrics with the input and output payloads.
type LearningEntry struct {
	Command       string        `json:"command"`
	ExecutionTime time.Duration `json:"execution_time"`
	Success       bool          `json:"success"`
	RetryCount    int           `json:"retry_count"`
	Timestamp     time.Time     `json:"timestamp"`
	Input         string        `json:"input,omitempty"`
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// AdaptiveRetryEntry tracks backoff for a command that keeps failing.
type AdaptiveRetryEntry struct {
	Command       string    `json:"command"`
	RetryCount    int       `json:"retry_count"`
	NextRetryTime time.Time `json:"next_retry_time"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CommandLearning is the rolling model for one command.
type CommandLearning struct {
	Command     string  `json:"command"`
	Samples     int     `json:"samples"`
	SuccessRate float64 `json:"success_rate"`
	Promoted    bool    `json:"promoted"`
}

// LearningStats summarises the learning layer.
type LearningStats struct {
	TotalEntries int                        `json:"total_entries"`
	Commands     map[string]CommandLearning `json:"commands"`
	Promoted     []string                   `json:"promoted"`
	RetryQueue   []AdaptiveRetryEntry       `json:"retry_queue"`
}

// HourlyBucket is the success rate for one hour of day.
type HourlyBucket struct {
	Hour        int     `json:"hour"`
	Samples     int     `json:"samples"`
	SuccessRate float64 `json:"success_rate"`
}

// ProblematicCommand is a command whose failure rate crossed the threshold.
type ProblematicCommand struct {
	Command     string  `json:"command"`
	Samples     int     `json:"samples"`
	FailureRate float64 `json:"failure_rate"`
}

// PatternAnalysis is returned by the learning layer's pattern analysis.
type PatternAnalysis struct {
	HourlySuccess       []HourlyBucket       `json:"hourly_success"`
	CommandSuccess      map[string]float64   `json:"command_success"`
	ProblematicCommands []ProblematicCommand `json:"problematic_commands"`
}
