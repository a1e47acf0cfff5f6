// Package doctor runs environment diagnostics.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	configvalidator "github.com/doeshing/orca-go/internal/application/config"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// Pinger is implemented by stores that can check their backing medium.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Store          Pinger
	// StoreDegraded reports that the durable store fell back to plain files.
	StoreDegraded func() bool
	// LookPath defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded %s", cfg.ConfigFormatVersion)))

	if err := configvalidator.Validate(cfg); err != nil {
		checks = append(checks, fail("Role table", err.Error()))
	} else {
		checks = append(checks, ok("Role table", fmt.Sprintf("%d roles", len(cfg.GetRoles()))))
	}

	checks = append(checks, s.storeCheck(ctx))
	checks = append(checks, s.programCheck(cfg))

	shell := cfg.GetExecutionShell()
	if _, err := s.lookPath(shell); err != nil {
		checks = append(checks, warn("Script shell", fmt.Sprintf("%s not on PATH", shell)))
	} else {
		checks = append(checks, ok("Script shell", shell))
	}

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) storeCheck(ctx context.Context) domain.HealthCheck {
	if s.Store == nil {
		return warn("Store", "not configured")
	}
	if err := s.Store.Ping(ctx); err != nil {
		return fail("Store", err.Error())
	}
	if s.StoreDegraded != nil && s.StoreDegraded() {
		return warn("Store", "sqlite unavailable, using file store")
	}
	return ok("Store", "reachable")
}

func (s *Service) programCheck(cfg domain.Config) domain.HealthCheck {
	seen := make(map[string]bool)
	var missing []string
	for _, spec := range cfg.GetCommands() {
		if spec.Kind != "" && spec.Kind != domain.PlanSubprocess {
			continue
		}
		if spec.Program == "" || seen[spec.Program] {
			continue
		}
		seen[spec.Program] = true
		if _, err := s.lookPath(spec.Program); err != nil {
			missing = append(missing, spec.Program)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return warn("Programs", "missing on PATH: "+strings.Join(missing, ", "))
	}
	return ok("Programs", fmt.Sprintf("%d programs on PATH", len(seen)))
}

func (s *Service) lookPath(file string) (string, error) {
	if s.LookPath != nil {
		return s.LookPath(file)
	}
	return exec.LookPath(file)
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
