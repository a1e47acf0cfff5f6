package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/doeshing/orca-go/internal/domain"
)

// Validate ensures config structure is consistent. Zero values are accepted
// wherever a getter supplies a default.
func Validate(cfg domain.Config) error {
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	if err := validateExecution(cfg.Execution); err != nil {
		return err
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return err
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	if cfg.Metrics.BufferSize < 0 || cfg.Metrics.Retention < 0 {
		return fmt.Errorf("metrics.buffer_size and metrics.retention must be >= 0")
	}
	if cfg.Preferences.TimeoutSeconds < 0 {
		return fmt.Errorf("preferences.timeout must be >= 0")
	}
	return nil
}

func validateExecution(exec domain.ExecutionSettings) error {
	if exec.MaxRetries < 0 {
		return fmt.Errorf("execution.max_retries must be >= 0")
	}
	if exec.SnapshotCapacity < 0 {
		return fmt.Errorf("execution.snapshot_capacity must be >= 0")
	}
	for from, to := range exec.Fallbacks {
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("execution.fallbacks[%s] must name a program", from)
		}
	}
	return nil
}

func validateStorage(storage domain.StorageSettings) error {
	switch strings.ToLower(storage.Driver) {
	case "", "sqlite", "file", "memory":
		return nil
	default:
		return fmt.Errorf("storage.driver must be sqlite|file|memory, got %s", storage.Driver)
	}
}

func validateLogging(logging domain.LoggingSettings) error {
	if logging.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logging.Level)); err != nil {
			return fmt.Errorf("logging.level invalid: %w", err)
		}
	}
	switch strings.ToLower(logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console|json, got %s", logging.Format)
	}
	if logging.MaxSizeMB < 0 || logging.MaxBackups < 0 || logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation settings must be >= 0")
	}
	return nil
}
