package governance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/infrastructure/store"
	"github.com/doeshing/orca-go/internal/pkg/logger"
	"github.com/doeshing/orca-go/internal/ports"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, s ports.RecordStore) *Service {
	t.Helper()
	svc := NewService(s, logger.NewNop(), 0)
	svc.clock = &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("req-%d", seq)
	}
	return svc
}

func TestCanProceedAllowsUnrestrictedForAnyRole(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	svc := NewService(nil, logger.NewNop(), 0)
	properties.Property("unrestricted commands never create requests", prop.ForAll(
		func(command, role string) bool {
			if domain.IsRestricted(command) {
				return true
			}
			decision := svc.CanProceed(context.Background(), command, nil, "someone", role)
			return decision.Allowed && decision.RequestID == ""
		},
		gen.AlphaString(),
		gen.OneConstOf(domain.RoleAdmin, domain.RoleDeveloper, domain.RoleViewer, "intern"),
	))
	properties.TestingRun(t)
	assert.Empty(t, svc.Pending())
}

func TestRestrictedCommandNeedsApproval(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore())

	decision := svc.CanProceed(ctx, "release", []string{"v1.2.0"}, "sam", domain.RoleDeveloper)
	require.False(t, decision.Allowed)
	require.Equal(t, "req-1", decision.RequestID)

	req, ok := svc.Get(decision.RequestID)
	require.True(t, ok)
	assert.Equal(t, domain.ApprovalPending, req.Status)
	assert.Equal(t, []string{"v1.2.0"}, req.Args)

	require.True(t, svc.ApproveCommand(ctx, decision.RequestID, "root", domain.RoleAdmin))
	req, _ = svc.Get(decision.RequestID)
	assert.Equal(t, domain.ApprovalApproved, req.Status)
	assert.Equal(t, "root", req.ApprovedBy)
	require.NotNil(t, req.ApprovedAt)
	approvedAt := *req.ApprovedAt

	assert.False(t, svc.ApproveCommand(ctx, decision.RequestID, "root", domain.RoleAdmin), "second approval must fail")
	req, _ = svc.Get(decision.RequestID)
	assert.True(t, req.ApprovedAt.Equal(approvedAt), "approvedAt changed on repeated approval")

	assert.False(t, svc.RejectCommand(ctx, decision.RequestID, "root", domain.RoleAdmin, "too late"))
}

func TestAdminBypassesApproval(t *testing.T) {
	svc := newTestService(t, nil)
	decision := svc.CanProceed(context.Background(), "deploy", nil, "root", domain.RoleAdmin)
	assert.True(t, decision.Allowed)
	assert.Empty(t, svc.Pending())
}

func TestApprovalGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	id := svc.RequestApproval(ctx, "rollback", nil, "sam", domain.RoleDeveloper)

	tests := []struct {
		name string
		call func() bool
	}{
		{"unknown id", func() bool { return svc.ApproveCommand(ctx, "missing", "root", domain.RoleAdmin) }},
		{"non-admin approver", func() bool { return svc.ApproveCommand(ctx, id, "sam", domain.RoleDeveloper) }},
		{"reject without reason", func() bool { return svc.RejectCommand(ctx, id, "root", domain.RoleAdmin, "  ") }},
		{"non-admin reject", func() bool { return svc.RejectCommand(ctx, id, "sam", domain.RoleViewer, "no") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.call())
			req, _ := svc.Get(id)
			assert.Equal(t, domain.ApprovalPending, req.Status)
		})
	}

	require.True(t, svc.RejectCommand(ctx, id, "root", domain.RoleAdmin, "freeze week"))
	req, _ := svc.Get(id)
	assert.Equal(t, domain.ApprovalRejected, req.Status)
	assert.Equal(t, "freeze week", req.Reason)
	assert.False(t, svc.ApproveCommand(ctx, id, "root", domain.RoleAdmin), "rejected is terminal")
}

func TestConsumeApprovalOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	id := svc.RequestApproval(ctx, "deploy", []string{"prod"}, "sam", domain.RoleDeveloper)

	_, ok := svc.ConsumeApproval(ctx, "deploy", []string{"prod"}, "sam")
	assert.False(t, ok, "pending requests cannot be consumed")

	require.True(t, svc.ApproveCommand(ctx, id, "root", domain.RoleAdmin))
	assert.True(t, svc.HasApproval("deploy", []string{"prod"}, "sam"))
	assert.True(t, svc.HasApproval("deploy", []string{"prod"}, "sam"), "looking does not spend the approval")
	assert.False(t, svc.HasApproval("deploy", []string{"prod"}, "alex"))

	_, ok = svc.ConsumeApproval(ctx, "deploy", []string{"staging"}, "sam")
	assert.False(t, ok, "args must match")
	_, ok = svc.ConsumeApproval(ctx, "deploy", []string{"prod"}, "alex")
	assert.False(t, ok, "requester must match")

	got, ok := svc.ConsumeApproval(ctx, "deploy", []string{"prod"}, "sam")
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	assert.NotNil(t, got.ConsumedAt)

	_, ok = svc.ConsumeApproval(ctx, "deploy", []string{"prod"}, "sam")
	assert.False(t, ok, "approval is single use")
	assert.False(t, svc.HasApproval("deploy", []string{"prod"}, "sam"))

	actions := []domain.ApprovalAction{}
	for _, entry := range svc.Log(0) {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []domain.ApprovalAction{domain.AuditRequest, domain.AuditApprove, domain.AuditConsume}, actions)
}

func TestStatePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	first := newTestService(t, mem)
	pendingID := first.RequestApproval(ctx, "db-backup", nil, "sam", domain.RoleDeveloper)
	approvedID := first.RequestApproval(ctx, "deploy", nil, "sam", domain.RoleDeveloper)
	require.True(t, first.ApproveCommand(ctx, approvedID, "root", domain.RoleAdmin))

	second := NewService(mem, logger.NewNop(), 0)
	second.Load(ctx)

	pending := second.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, pendingID, pending[0].ID)

	req, ok := second.Get(approvedID)
	require.True(t, ok)
	assert.Equal(t, domain.ApprovalApproved, req.Status)
	assert.Len(t, second.Log(0), 3)
}

func TestLoadToleratesCorruptState(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Put(domain.KeyGovernance, []byte("{broken"))

	svc := NewService(mem, logger.NewNop(), 0)
	svc.Load(context.Background())
	assert.Empty(t, svc.Pending())
	assert.Empty(t, svc.Log(0))

	id := svc.RequestApproval(context.Background(), "release", nil, "sam", domain.RoleDeveloper)
	assert.NotEmpty(t, id)
}

func TestAuditLogRetention(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, logger.NewNop(), 5)
	for i := 0; i < 8; i++ {
		svc.RequestApproval(ctx, "deploy", []string{fmt.Sprint(i)}, "sam", domain.RoleDeveloper)
	}
	log := svc.Log(0)
	require.Len(t, log, 5)
	assert.Equal(t, "3", log[0].Details)
	assert.Equal(t, "7", log[4].Details)
	assert.Len(t, svc.Log(2), 2)
}
