package app

import (
	"context"
	"fmt"

	configvalidator "github.com/doeshing/orca-go/internal/application/config"
	"github.com/doeshing/orca-go/internal/application/doctor"
	"github.com/doeshing/orca-go/internal/application/executor"
	"github.com/doeshing/orca-go/internal/application/governance"
	"github.com/doeshing/orca-go/internal/application/learning"
	"github.com/doeshing/orca-go/internal/application/observation"
	"github.com/doeshing/orca-go/internal/application/orchestrator"
	"github.com/doeshing/orca-go/internal/application/planner"
	"github.com/doeshing/orca-go/internal/application/policy"
	"github.com/doeshing/orca-go/internal/application/repair"
	"github.com/doeshing/orca-go/internal/application/snapshot"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/infrastructure/actions"
	"github.com/doeshing/orca-go/internal/infrastructure/backend"
	"github.com/doeshing/orca-go/internal/infrastructure/config"
	"github.com/doeshing/orca-go/internal/infrastructure/discovery"
	"github.com/doeshing/orca-go/internal/infrastructure/output"
	"github.com/doeshing/orca-go/internal/infrastructure/store"
	"github.com/doeshing/orca-go/internal/pkg/logger"
	"github.com/doeshing/orca-go/internal/ports"
)

// Options tune container construction.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Store is everything the orchestrator persists through.
type Store interface {
	ports.RecordStore
	ports.HistoryRepository
	Ping(ctx context.Context) error
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Orchestrator *orchestrator.Service
	Session      *policy.Session
	ConfigLoader *config.FileLoader
	Config       domain.Config
	Doctor       *doctor.Service
	Store        Store
	Logger       *logger.ZapLogger

	dispatcher *observation.Dispatcher
	closers    []func() error
}

// BuildContainer constructs the dependency graph and loads persisted state.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := configvalidator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgLoader.Path(), err)
	}

	log := logger.New(cfg.Logging, opts.Verbose)
	c := &Container{ConfigLoader: cfgLoader, Config: cfg, Logger: log}

	st, degraded, closeStore := openStore(cfg.Storage)
	c.Store = st
	if closeStore != nil {
		c.closers = append(c.closers, closeStore)
	}
	if degraded() {
		log.Warn("sqlite store unavailable, using file store", map[string]interface{}{"path": cfg.Storage.Path})
	}

	table := policy.NewTable(cfg.GetRoles())
	session := policy.NewSession(table, st, log, domain.Actor{
		User: cfg.Preferences.User,
		Role: cfg.GetDefaultRole(),
	})
	session.Load(ctx)
	c.Session = session

	gov := governance.NewService(st, log, cfg.GetApprovalLogRetention())
	gov.Load(ctx)

	quota := planner.NewQuotaTracker(st, log, cfg.GetQuotaWindow())
	quota.Load(ctx)

	runner := backend.NewLocalBackend("", nil)

	static := planner.NewStaticResolver(cfg.GetCommands(), cfg.GetDefaultTimeout())
	chain := planner.ChainResolver{static}
	var discovered *discovery.Resolver
	if cfg.Execution.Discovery {
		discovered = discovery.NewResolver(runner, st, log, cfg.GetHelpFlag())
		discovered.Load(ctx)
		chain = append(chain, discovered)
	}

	obs := observation.NewService(st, log, cfg.GetMetricsRetention())
	obs.Load(ctx)
	learn := learning.NewService(st, log, domain.DefaultLearningRetention)
	learn.Load(ctx)
	c.dispatcher = observation.NewDispatcher(cfg.GetMetricsBuffer(), log, obs, learn)

	snapshots := snapshot.NewManager[domain.Plan](cfg.GetSnapshotCapacity())

	c.Doctor = &doctor.Service{
		ConfigProvider: cfgLoader,
		Store:          st,
		StoreDegraded:  degraded,
	}

	registry := actions.NewRegistry()
	deps := actions.Deps{
		Session:     session,
		Table:       table,
		Governance:  gov,
		Observation: obs,
		Learning:    learn,
		History:     st,
		Snapshots:   snapshots,
		Doctor:      c.Doctor,
	}
	if discovered != nil {
		deps.Discovery = discovered
	}
	actions.RegisterBuiltins(registry, deps)

	classifier := repair.NewClassifier()
	exec := &executor.Service{
		Backend:    runner,
		Actions:    registry,
		Snapshots:  snapshots,
		Classifier: classifier,
		Repairs:    repair.NewEngineFromConfig(cfg),
		Parser:     output.NewValidator(),
		Metrics:    c.dispatcher,
		Logger:     log,
		Shell:      cfg.GetExecutionShell(),
		MaxRetries: cfg.GetMaxRetries(),
	}

	c.Orchestrator = &orchestrator.Service{
		Planner: &planner.Service{
			Table:      table,
			Governance: gov,
			Quota:      quota,
			Resolver:   chain,
			Logger:     log,
		},
		Executor:   exec,
		History:    st,
		Classifier: classifier,
		Logger:     log,
		Clock:      ports.SystemClock{},
	}
	return c, nil
}

// Close drains pending metrics and releases the store.
func (c *Container) Close() error {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	var firstErr error
	for _, closer := range c.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = c.Logger.Sync()
	return firstErr
}

func openStore(settings domain.StorageSettings) (Store, func() bool, func() error) {
	never := func() bool { return false }
	switch settings.Driver {
	case "file":
		return store.NewFileStore(settings.Path), never, nil
	case "memory":
		return store.NewMemoryStore(), never, nil
	default:
		sqlite := store.NewSQLiteStore(settings.Path)
		return sqlite, sqlite.Degraded, sqlite.Close
	}
}
