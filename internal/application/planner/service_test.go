package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/orca-go/internal/application/governance"
	"github.com/doeshing/orca-go/internal/application/policy"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/infrastructure/store"
	"github.com/doeshing/orca-go/internal/pkg/logger"
)

type stubResolver struct {
	plans map[string]domain.Plan
	err   error
}

func (r stubResolver) Resolve(_ context.Context, command string, args []string) (domain.Plan, bool, error) {
	if r.err != nil {
		return domain.Plan{}, false, r.err
	}
	plan, ok := r.plans[command]
	if !ok {
		return domain.Plan{}, false, nil
	}
	return plan.WithArgs(args...), true, nil
}

func newPlanner(mem *store.MemoryStore) (*Service, *governance.Service) {
	gov := governance.NewService(mem, logger.NewNop(), 0)
	return &Service{
		Table:      policy.NewTable(nil),
		Governance: gov,
		Quota:      NewQuotaTracker(mem, logger.NewNop(), time.Hour),
		Resolver: ChainResolver{
			NewStaticResolver(domain.DefaultCommandSpecs(), 30*time.Second),
		},
		Logger: logger.NewNop(),
	}, gov
}

var (
	admin     = domain.Actor{User: "root", Role: domain.RoleAdmin}
	developer = domain.Actor{User: "sam", Role: domain.RoleDeveloper}
	viewer    = domain.Actor{User: "vic", Role: domain.RoleViewer}
)

func TestBuildPlanResolvesDispatchTable(t *testing.T) {
	p, _ := newPlanner(store.NewMemoryStore())

	plan, err := p.BuildPlan(context.Background(), "build", []string{"-v"}, developer)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanSubprocess, plan.Kind)
	assert.Equal(t, "go", plan.Command)
	assert.Equal(t, []string{"build", "./...", "-v"}, plan.Args)
	assert.Equal(t, 300*time.Second, plan.Timeout)
	assert.Equal(t, developer, plan.Actor)
	assert.Zero(t, plan.RetryCount)

	plan, err = p.BuildPlan(context.Background(), domain.ActionWhoami, nil, viewer)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanAction, plan.Kind)
	assert.Zero(t, plan.Timeout)
}

func TestBuildPlanErrors(t *testing.T) {
	p, _ := newPlanner(store.NewMemoryStore())
	ctx := context.Background()

	_, err := p.BuildPlan(ctx, "deploy", nil, viewer)
	var authErr *domain.AuthorizationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, domain.RoleViewer, authErr.Role)

	_, err = p.BuildPlan(ctx, "frobnicate", nil, admin)
	var unknownErr *domain.UnknownCommandError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "frobnicate", unknownErr.Command)

	_, err = p.BuildPlan(ctx, "", nil, admin)
	require.Error(t, err)
}

func TestBuildPlanGovernanceFlow(t *testing.T) {
	ctx := context.Background()
	p, gov := newPlanner(store.NewMemoryStore())

	_, err := p.BuildPlan(ctx, "release", []string{"v2"}, developer)
	var blocked *domain.GovernanceBlockedError
	require.True(t, errors.As(err, &blocked))
	require.NotEmpty(t, blocked.RequestID)
	assert.Zero(t, p.Quota.Used(domain.RoleDeveloper, "release"), "blocked calls are not charged")

	require.True(t, gov.ApproveCommand(ctx, blocked.RequestID, "root", domain.RoleAdmin))

	plan, err := p.BuildPlan(ctx, "release", []string{"v2"}, developer)
	require.NoError(t, err)
	assert.Equal(t, []string{"release", "v2"}, plan.Args)
	assert.Equal(t, 1, p.Quota.Used(domain.RoleDeveloper, "release"))

	_, err = p.BuildPlan(ctx, "release", []string{"v2"}, developer)
	require.True(t, errors.As(err, &blocked), "approval is consumed by the first run")

	plan, err = p.BuildPlan(ctx, "release", nil, admin)
	require.NoError(t, err)
	assert.Equal(t, "make", plan.Command)
}

func TestBuildPlanKeepsApprovalWhenResolveFails(t *testing.T) {
	ctx := context.Background()
	p, gov := newPlanner(store.NewMemoryStore())
	id := gov.RequestApproval(ctx, "release", []string{"v3"}, developer.User, developer.Role)
	require.True(t, gov.ApproveCommand(ctx, id, "root", domain.RoleAdmin))

	working := p.Resolver
	p.Resolver = stubResolver{err: errors.New("dispatch table unreadable")}
	_, err := p.BuildPlan(ctx, "release", []string{"v3"}, developer)
	require.EqualError(t, err, "resolve release: dispatch table unreadable")
	assert.True(t, gov.HasApproval("release", []string{"v3"}, developer.User))

	p.Resolver = stubResolver{}
	_, err = p.BuildPlan(ctx, "release", []string{"v3"}, developer)
	var unknownErr *domain.UnknownCommandError
	require.True(t, errors.As(err, &unknownErr))
	assert.True(t, gov.HasApproval("release", []string{"v3"}, developer.User))

	p.Resolver = working
	_, err = p.BuildPlan(ctx, "release", []string{"v3"}, developer)
	require.NoError(t, err)
	assert.False(t, gov.HasApproval("release", []string{"v3"}, developer.User))
	req, _ := gov.Get(id)
	assert.NotNil(t, req.ConsumedAt)
}

func TestBuildPlanQuota(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	p, _ := newPlanner(mem)
	p.Table = policy.NewTable(map[string]domain.RolePolicy{
		domain.RoleAdmin: {Commands: []string{domain.AllCommands}},
		"ci":             {Commands: []string{"test"}, Limits: map[string]int{"test": 2}},
	})
	ci := domain.Actor{User: "bot", Role: "ci"}

	for i := 0; i < 2; i++ {
		_, err := p.BuildPlan(ctx, "test", nil, ci)
		require.NoError(t, err)
	}
	_, err := p.BuildPlan(ctx, "test", nil, ci)
	var limitErr *domain.LimitExceededError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 2, limitErr.Limit)

	restored := NewQuotaTracker(mem, logger.NewNop(), time.Hour)
	restored.Load(ctx)
	assert.Equal(t, 2, restored.Used("ci", "test"))
}

func TestQuotaWindowExpires(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	q := NewQuotaTracker(nil, logger.NewNop(), time.Hour)
	q.clock = clock

	require.NoError(t, q.Reserve(ctx, "developer", "deploy", 1))
	require.Error(t, q.Check("developer", "deploy", 1))
	require.Error(t, q.Reserve(ctx, "developer", "deploy", 1))

	clock.now = clock.now.Add(time.Hour)
	assert.NoError(t, q.Check("developer", "deploy", 1))
	assert.Zero(t, q.Used("developer", "deploy"))
}

func TestControlCommandsBypassRoleTable(t *testing.T) {
	p, _ := newPlanner(store.NewMemoryStore())
	plan, err := p.BuildPlan(context.Background(), domain.CmdApprove, []string{"abc"}, viewer)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanAction, plan.Kind)
	assert.Equal(t, domain.CmdApprove, plan.Command)
	assert.Equal(t, viewer, plan.Actor)
}

func TestChainResolverOrderAndErrors(t *testing.T) {
	ctx := context.Background()
	first := stubResolver{plans: map[string]domain.Plan{"x": {Command: "first"}}}
	second := stubResolver{plans: map[string]domain.Plan{"x": {Command: "second"}, "y": {Command: "y"}}}

	chain := ChainResolver{first, nil, second}
	plan, ok, err := chain.Resolve(ctx, "x", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", plan.Command)

	plan, ok, _ = chain.Resolve(ctx, "y", nil)
	require.True(t, ok)
	assert.Equal(t, "y", plan.Command)

	_, _, err = ChainResolver{stubResolver{err: errors.New("lookup failed")}}.Resolve(ctx, "z", nil)
	assert.EqualError(t, err, "lookup failed")
}

func TestQuotaReserveIsAtomic(t *testing.T) {
	ctx := context.Background()
	q := NewQuotaTracker(store.NewMemoryStore(), logger.NewNop(), time.Hour)

	const limit = 5
	var (
		wg      sync.WaitGroup
		granted int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Reserve(ctx, "ci", "test", limit) == nil {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, granted)
	assert.Equal(t, limit, q.Used("ci", "test"))

	q.Release(ctx, "ci", "test")
	assert.Equal(t, limit-1, q.Used("ci", "test"))
	assert.NoError(t, q.Reserve(ctx, "ci", "test", limit))
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }
