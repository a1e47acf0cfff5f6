package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/pkg/filesystem"
	"github.com/doeshing/orca-go/internal/ports"
)

// envOverrides are applied on top of the file.
type envOverrides struct {
	Role        string `env:"ORCA_ROLE"`
	User        string `env:"ORCA_USER"`
	LogLevel    string `env:"ORCA_LOG_LEVEL"`
	StoreDriver string `env:"ORCA_STORE_DRIVER"`
	StorePath   string `env:"ORCA_STORE_PATH"`
	MaxRetries  int    `env:"ORCA_MAX_RETRIES"`
}

// FileLoader loads YAML configuration from ~/.orca/config.yaml (overridable via ORCA_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	var cfg domain.Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = defaultConfig()
		if err := writeDefault(path, cfg); err != nil {
			return domain.Config{}, err
		}
	case err != nil:
		return domain.Config{}, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg = hydrateDefaults(cfg)
	if err := applyEnv(&cfg); err != nil {
		return domain.Config{}, err
	}
	cfg.Storage.Path = filesystem.ExpandPath(cfg.Storage.Path)
	cfg.Logging.File = filesystem.ExpandPath(cfg.Logging.File)
	return cfg, nil
}

// Path returns the config file location.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv("ORCA_CONFIG"); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filesystem.StatePath("config.yaml")
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

func defaultConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Preferences: domain.Preferences{
			DefaultRole:    domain.RoleDeveloper,
			TimeoutSeconds: int(domain.DefaultPlanTimeout.Seconds()),
		},
		Execution: domain.ExecutionSettings{
			Shell:            "auto",
			MaxRetries:       domain.DefaultMaxRetries,
			SnapshotCapacity: domain.DefaultSnapshotCapacity,
			HelpFlag:         domain.DefaultHelpFlag,
			ForceFlag:        domain.DefaultForceFlag,
			Fallbacks:        domain.DefaultFallbacks(),
			Discovery:        true,
		},
		Storage: domain.StorageSettings{
			Driver: "sqlite",
		},
		Logging: domain.LoggingSettings{
			Level:      "warn",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: domain.MetricsSettings{
			BufferSize: domain.DefaultMetricsBuffer,
			Retention:  domain.DefaultMetricsRetention,
		},
		Governance: domain.GovernanceSettings{
			LogRetention:       domain.DefaultApprovalLogRetention,
			QuotaWindowMinutes: int(domain.DefaultQuotaWindow.Minutes()),
		},
		Roles:    domain.DefaultRolePolicies(),
		Commands: domain.DefaultCommandSpecs(),
	}
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Preferences.TimeoutSeconds == 0 {
		cfg.Preferences.TimeoutSeconds = int(domain.DefaultPlanTimeout.Seconds())
	}
	if cfg.Preferences.DefaultRole == "" {
		cfg.Preferences.DefaultRole = domain.RoleDeveloper
	}
	if cfg.Preferences.User == "" {
		cfg.Preferences.User = currentUser()
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = domain.DefaultRolePolicies()
	}
	if len(cfg.Commands) == 0 {
		cfg.Commands = domain.DefaultCommandSpecs()
	}
	for name, spec := range domain.DefaultCommandSpecs() {
		if _, ok := cfg.Commands[name]; !ok && spec.Kind == domain.PlanAction {
			cfg.Commands[name] = spec
		}
	}
	return cfg
}

func applyEnv(cfg *domain.Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if o.Role != "" {
		cfg.Preferences.DefaultRole = o.Role
	}
	if o.User != "" {
		cfg.Preferences.User = o.User
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(o.LogLevel)
	}
	if o.StoreDriver != "" {
		cfg.Storage.Driver = strings.ToLower(o.StoreDriver)
	}
	if o.StorePath != "" {
		cfg.Storage.Path = filesystem.ExpandPath(o.StorePath)
	}
	if o.MaxRetries > 0 {
		cfg.Execution.MaxRetries = o.MaxRetries
	}
	return nil
}

func currentUser() string {
	for _, key := range []string{"USER", "USERNAME", "LOGNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
