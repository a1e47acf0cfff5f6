package repair

import (
	"errors"
	"testing"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
)

func TestClassifyOrderedPatterns(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantKind domain.ErrorKind
		wantCode int
	}{
		{"timeout", "command git timeout after 30s", domain.KindTimeout, 0},
		{"etimedout", "connect ETIMEDOUT 10.0.0.1:443", domain.KindTimeout, 0},
		{"exit before not found", "Exit 127: command not found", domain.KindExitCode, 127},
		{"exit 1 bad flag", "Exit 1: bad flag", domain.KindExitCode, 1},
		{"os/exec exit status", "make: exit status 2", domain.KindExitCode, 2},
		{"enoent", "spawn python3 ENOENT", domain.KindFileNotFound, 0},
		{"not found", "executable file not found in $PATH", domain.KindFileNotFound, 0},
		{"permission", "open /var/lib/db: permission denied", domain.KindPermission, 0},
		{"eacces", "EACCES: cannot write", domain.KindPermission, 0},
		{"network", "dial tcp: connection refused", domain.KindNetwork, 0},
		{"unknown", "segmentation fault", domain.KindUnknown, 0},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(errors.New(tt.message))
			if got.Kind != tt.wantKind {
				t.Fatalf("Classify(%q).Kind = %s, want %s", tt.message, got.Kind, tt.wantKind)
			}
			if got.Code != tt.wantCode {
				t.Fatalf("Classify(%q).Code = %d, want %d", tt.message, got.Code, tt.wantCode)
			}
		})
	}

	if got := c.Classify(nil); got.Kind != domain.KindUnknown {
		t.Fatalf("Classify(nil) = %s", got.Kind)
	}
}

func TestProposeStrategies(t *testing.T) {
	engine := NewEngine(Options{BaseTimeout: 30 * time.Second})
	plan := domain.Plan{Kind: domain.PlanSubprocess, Command: "python3", Args: []string{"run.py"}, RetryCount: 2}

	t.Run("timeout extends", func(t *testing.T) {
		rp, ok := engine.Propose(Classification{Kind: domain.KindTimeout}, plan)
		if !ok || rp.Type != domain.RepairRetry || rp.Plan.Timeout != 60*time.Second {
			t.Fatalf("unexpected repair %+v (ok=%v)", rp, ok)
		}
	})

	t.Run("exit code 1 uses help flag", func(t *testing.T) {
		rp, ok := engine.Propose(Classification{Kind: domain.KindExitCode, Code: 1, HasCode: true}, plan)
		if !ok || rp.Type != domain.RepairAlternative {
			t.Fatalf("unexpected repair %+v (ok=%v)", rp, ok)
		}
		if len(rp.Plan.Args) != 1 || rp.Plan.Args[0] != "--help" {
			t.Fatalf("args = %v, want [--help]", rp.Plan.Args)
		}
		if _, ok := engine.Propose(Classification{Kind: domain.KindExitCode, Code: 1, HasCode: true}, rp.Plan); ok {
			t.Fatal("help plan must not be repaired again with the help flag")
		}
	})

	t.Run("other exit codes are fatal", func(t *testing.T) {
		if _, ok := engine.Propose(Classification{Kind: domain.KindExitCode, Code: 2, HasCode: true}, plan); ok {
			t.Fatal("exit code 2 should have no repair")
		}
	})

	t.Run("file not found falls back", func(t *testing.T) {
		rp, ok := engine.Propose(Classification{Kind: domain.KindFileNotFound}, plan)
		if !ok || rp.Type != domain.RepairFallback || rp.Plan.Command != "python" {
			t.Fatalf("unexpected repair %+v (ok=%v)", rp, ok)
		}
		if _, ok := engine.Propose(Classification{Kind: domain.KindFileNotFound}, domain.Plan{Command: "git"}); ok {
			t.Fatal("git has no fallback")
		}
	})

	t.Run("permission appends force once", func(t *testing.T) {
		rp, ok := engine.Propose(Classification{Kind: domain.KindPermission}, plan)
		if !ok || !rp.Plan.HasArg("--force") {
			t.Fatalf("unexpected repair %+v (ok=%v)", rp, ok)
		}
		again, _ := engine.Propose(Classification{Kind: domain.KindPermission}, rp.Plan)
		if len(again.Plan.Args) != len(rp.Plan.Args) {
			t.Fatalf("force flag duplicated: %v", again.Plan.Args)
		}
		if plan.HasArg("--force") {
			t.Fatal("original plan was mutated")
		}
	})

	t.Run("network shortens timeout", func(t *testing.T) {
		rp, ok := engine.Propose(Classification{Kind: domain.KindNetwork}, plan)
		if !ok || rp.Plan.Timeout != 15*time.Second {
			t.Fatalf("unexpected repair %+v (ok=%v)", rp, ok)
		}
		short := plan.WithTimeout(time.Second)
		rp, _ = engine.Propose(Classification{Kind: domain.KindNetwork}, short)
		if rp.Plan.Timeout != time.Second {
			t.Fatalf("timeout went below floor: %s", rp.Plan.Timeout)
		}
	})

	t.Run("unknown has no repair", func(t *testing.T) {
		if _, ok := engine.Propose(Classification{Kind: domain.KindUnknown}, plan); ok {
			t.Fatal("unknown must be fatal")
		}
	})

	t.Run("engine leaves retry count alone", func(t *testing.T) {
		rp, _ := engine.Propose(Classification{Kind: domain.KindTimeout}, plan)
		if rp.Plan.RetryCount != plan.RetryCount {
			t.Fatalf("RetryCount changed to %d", rp.Plan.RetryCount)
		}
	})
}
