package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
)

// TestConfig_Defaults tests that zero values fall back to the documented defaults
func TestConfig_Defaults(t *testing.T) {
	var cfg domain.Config

	if got := cfg.GetMaxRetries(); got != domain.DefaultMaxRetries {
		t.Errorf("GetMaxRetries() = %d, want %d", got, domain.DefaultMaxRetries)
	}
	if got := cfg.GetSnapshotCapacity(); got != 10 {
		t.Errorf("GetSnapshotCapacity() = %d, want 10", got)
	}
	if got := cfg.GetHelpFlag(); got != "--help" {
		t.Errorf("GetHelpFlag() = %q, want --help", got)
	}
	if got := cfg.GetExecutionShell(); got != "sh" {
		t.Errorf("GetExecutionShell() = %q, want sh", got)
	}
	if got := cfg.GetDefaultTimeout(); got != 30*time.Second {
		t.Errorf("GetDefaultTimeout() = %s, want 30s", got)
	}
	if got := cfg.GetDefaultRole(); got != domain.RoleDeveloper {
		t.Errorf("GetDefaultRole() = %q, want developer", got)
	}
	if got := cfg.GetMetricsRetention(); got != 1000 {
		t.Errorf("GetMetricsRetention() = %d, want 1000", got)
	}
	if len(cfg.GetRoles()) != 3 {
		t.Errorf("expected 3 default roles, got %d", len(cfg.GetRoles()))
	}
	if _, ok := cfg.GetCommands()["deploy"]; !ok {
		t.Error("default dispatch table is missing deploy")
	}
}

// TestConfig_ValidateConsistency tests config validation
func TestConfig_ValidateConsistency(t *testing.T) {
	tests := []struct {
		name      string
		config    domain.Config
		wantError bool
	}{
		{
			name:      "defaults are consistent",
			config:    domain.Config{},
			wantError: false,
		},
		{
			name: "missing admin role",
			config: domain.Config{
				Roles: map[string]domain.RolePolicy{
					"developer": {Commands: []string{"status"}},
				},
			},
			wantError: true,
		},
		{
			name: "default role not defined",
			config: domain.Config{
				Preferences: domain.Preferences{DefaultRole: "ops"},
			},
			wantError: true,
		},
		{
			name: "negative limit",
			config: domain.Config{
				Roles: map[string]domain.RolePolicy{
					"admin":     {Commands: []string{"*"}},
					"developer": {Commands: []string{"deploy"}, Limits: map[string]int{"deploy": -1}},
				},
			},
			wantError: true,
		},
		{
			name: "subprocess without program",
			config: domain.Config{
				Commands: map[string]domain.CommandSpec{
					"broken": {Kind: domain.PlanSubprocess},
				},
			},
			wantError: true,
		},
		{
			name: "unknown kind",
			config: domain.Config{
				Commands: map[string]domain.CommandSpec{
					"odd": {Kind: "lambda", Program: "x"},
				},
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateConsistency()
			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPlanCloneDoesNotAliasArgs(t *testing.T) {
	original := domain.Plan{Command: "git", Args: []string{"status"}}
	clone := original.Clone()
	clone.Args[0] = "log"

	if original.Args[0] != "status" {
		t.Fatalf("clone mutated original args: %v", original.Args)
	}
	if got := original.WithArgs("--help").String(); got != "git --help" {
		t.Fatalf("WithArgs().String() = %q", got)
	}
}

func TestPlanningErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want domain.ErrorKind
	}{
		{&domain.AuthorizationError{Role: "viewer", Command: "deploy"}, domain.KindAuthorization},
		{fmt.Errorf("plan: %w", &domain.LimitExceededError{Role: "developer", Command: "deploy", Limit: 5}), domain.KindLimitExceeded},
		{&domain.GovernanceBlockedError{Command: "release", RequestID: "abc"}, domain.KindGovernance},
		{&domain.UnknownCommandError{Command: "nope"}, domain.KindUnknownCmd},
		{errors.New("exit 1"), ""},
	}

	for _, tt := range tests {
		if got := domain.PlanningErrorKind(tt.err); got != tt.want {
			t.Errorf("PlanningErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
		if got := domain.IsPlanningError(tt.err); got != (tt.want != "") {
			t.Errorf("IsPlanningError(%v) = %v", tt.err, got)
		}
	}
}

func TestRepairFailedErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &domain.RepairFailedError{Command: "deploy", Attempts: 2, Repair: "retry", Err: cause}

	if !errors.Is(err, cause) {
		t.Fatal("RepairFailedError must unwrap to the retry failure")
	}
}

func TestIsRestricted(t *testing.T) {
	for _, command := range []string{"release", "deploy", "db-backup", "db-restore", "rollback"} {
		if !domain.IsRestricted(command) {
			t.Errorf("%s should be restricted", command)
		}
	}
	if domain.IsRestricted("status") {
		t.Error("status should not be restricted")
	}
}
