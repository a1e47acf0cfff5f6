package domain

// Config mirrors ~/.orca/config.yaml.
type Config struct {
	ConfigFormatVersion string                 `yaml:"config_format_version"`
	Preferences         Preferences            `yaml:"preferences"`
	Execution           ExecutionSettings      `yaml:"execution"`
	Storage             StorageSettings        `yaml:"storage"`
	Logging             LoggingSettings        `yaml:"logging"`
	Metrics             MetricsSettings        `yaml:"metrics"`
	Governance          GovernanceSettings     `yaml:"governance"`
	Roles               map[string]RolePolicy  `yaml:"roles"`
	Commands            map[string]CommandSpec `yaml:"commands"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultRole    string `yaml:"default_role"`
	User           string `yaml:"user"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// ExecutionSettings controls how plans run and get repaired.
type ExecutionSettings struct {
	Shell            string            `yaml:"shell"`
	MaxRetries       int               `yaml:"max_retries"`
	SnapshotCapacity int               `yaml:"snapshot_capacity"`
	HelpFlag         string            `yaml:"help_flag"`
	ForceFlag        string            `yaml:"force_flag"`
	Fallbacks        map[string]string `yaml:"fallbacks"`
	Discovery        bool              `yaml:"discovery"`
}

// StorageSettings selects the durable record store.
type StorageSettings struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// LoggingSettings configures the zap logger.
type LoggingSettings struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsSettings sizes the observation pipeline.
type MetricsSettings struct {
	BufferSize int `yaml:"buffer_size"`
	Retention  int `yaml:"retention"`
}

// GovernanceSettings sizes the audit log. The restricted set itself is fixed.
type GovernanceSettings struct {
	LogRetention       int `yaml:"log_retention"`
	QuotaWindowMinutes int `yaml:"quota_window_minutes"`
}

// RolePolicy lists what a role may run and how often.
type RolePolicy struct {
	Commands []string       `yaml:"commands"`
	Limits   map[string]int `yaml:"limits"`
}

// CommandSpec is one row of the dispatch table.
type CommandSpec struct {
	Kind           PlanKind `yaml:"kind"`
	Program        string   `yaml:"program"`
	Args           []string `yaml:"args"`
	Script         string   `yaml:"script"`
	TimeoutSeconds int      `yaml:"timeout"`
	Description    string   `yaml:"description"`
}
