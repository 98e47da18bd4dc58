// Package app wires the monitor, shutdown manager, hook executor, notifier
// dispatcher, event bus, and persistence stores into one process-wide
// Context: every collaborator is an explicit field, constructed once and
// passed down, not reached for through a global.
package app

import (
	"context"
	"fmt"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/database"
	"github.com/upsguard/upsguard/internal/eventbus"
	"github.com/upsguard/upsguard/internal/hooks"
	"github.com/upsguard/upsguard/internal/monitor"
	"github.com/upsguard/upsguard/internal/notify"
	"github.com/upsguard/upsguard/internal/shutdown"
	"github.com/upsguard/upsguard/internal/store"
	"github.com/upsguard/upsguard/internal/ups"
	"github.com/upsguard/upsguard/internal/wol"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

// Context holds every long-lived collaborator the daemon and the upsguardctl
// companion both need, built once in New and never replaced for the life of
// the process (the dynamic bits — hook specs, channel list — are rebound in
// place via SetHookSpecs/Reconfigure when the config store reports a change).
type Context struct {
	Config *config.Config

	Bus *eventbus.Bus

	Events  store.EventStore
	Metrics store.MetricStore
	Daily   store.DailyStatsStore
	Configs store.ConfigStore

	NUTClient *ups.Client
	Monitor   *monitor.Monitor

	HookRegistry *hooks.Registry
	Shutdown     *shutdown.Manager

	NotifyRegistry *notify.Registry
	Dispatcher     *notify.Dispatcher

	Waker *wol.Waker

	Host shutdown.HostShutdown
}

// New constructs a Context from cfg: connects the database, builds the
// persistence collaborators, wires the components together, and subscribes
// the notifier dispatcher to the event bus. It does not start the monitor
// loop or any background goroutine — call Run for that.
func New(cfg *config.Config) (*Context, error) {
	if err := database.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("app: database init failed: %w", err)
	}
	db := database.GetDB()

	events := store.NewGormEventStore(db)
	metrics := store.NewGormMetricStore(db)
	daily := store.NewGormDailyStatsStore(db)
	configs := store.NewGormConfigStore(db)

	bus := eventbus.New()

	dyn, err := configs.Get()
	if err != nil {
		logger.Warn("failed to load dynamic config, starting with file defaults", zap.Error(err))
	}
	hookSpecs := hooks.SpecsFromConfig(cfg.Hooks.PreShutdownHooks)
	if len(dyn.Hooks) > 0 {
		hookSpecs = hooks.SpecsFromConfig(dyn.Hooks)
	}
	notifyCfg := cfg.Notify
	if len(dyn.Notify.Channels) > 0 || len(dyn.Notify.EnabledEvents) > 0 {
		notifyCfg = dyn.Notify
	}

	hookRegistry := hooks.NewRegistry()

	var host shutdown.HostShutdown
	switch cfg.Shutdown.TestMode {
	case config.TestModeDryRun, config.TestModeMock:
		host = shutdown.NewMockHostShutdown()
	default:
		host = shutdown.NewShellHostShutdown(cfg.Shutdown.ShutdownCommand, cfg.Shutdown.RebootCommand)
	}

	shutdownMgr := shutdown.NewManager(cfg.Shutdown, hookSpecs, hookRegistry, host, bus, events)

	nutClient := ups.NewClient(cfg.NUT)
	mon := monitor.NewMonitor(nutClient, cfg.Monitor, cfg.NUT, bus, events, metrics, daily, shutdownMgr, string(cfg.Shutdown.TestMode))

	notifyRegistry := notify.NewRegistry()
	dispatcher := notify.NewDispatcher(notifyRegistry, notifyCfg, events, bus)
	dispatcher.SubscribeToBus()

	waker := wol.NewWaker(cfg.WOL)
	bus.OnDomainEvent(func(e eventbus.DomainEvent) {
		if e.Kind == "PowerRestored" {
			go waker.WakeAll()
		}
	})

	appCtx := &Context{
		Config:         cfg,
		Bus:            bus,
		Events:         events,
		Metrics:        metrics,
		Daily:          daily,
		Configs:        configs,
		NUTClient:      nutClient,
		Monitor:        mon,
		HookRegistry:   hookRegistry,
		Shutdown:       shutdownMgr,
		NotifyRegistry: notifyRegistry,
		Dispatcher:     dispatcher,
		Waker:          waker,
		Host:           host,
	}

	go appCtx.watchDynamicConfig(configs.Subscribe())

	return appCtx, nil
}

// watchDynamicConfig rebinds the hook list and notifier channel list in
// place whenever the config store reports a Put, so an operator's config
// change takes effect without a daemon restart.
func (a *Context) watchDynamicConfig(changes <-chan store.DynamicConfig) {
	for dyn := range changes {
		if len(dyn.Hooks) > 0 {
			a.Shutdown.SetHookSpecs(hooks.SpecsFromConfig(dyn.Hooks))
		}
		if len(dyn.Notify.Channels) > 0 || len(dyn.Notify.EnabledEvents) > 0 {
			a.Dispatcher.Reconfigure(dyn.Notify)
		}
	}
}

// Run starts the monitor's steady-state loop and blocks until ctx is
// cancelled. The daemon entrypoint starts this in its own goroutine and then
// waits for a termination signal.
func (a *Context) Run(ctx context.Context) {
	logger.Info("guardian monitor starting",
		zap.String("mode", string(a.Config.Monitor.MonitoringMode)),
		zap.String("testMode", string(a.Config.Shutdown.TestMode)))
	a.Monitor.Run(ctx)
}

// Close releases the database connection. Safe to call once at shutdown.
func (a *Context) Close() error {
	return database.Close()
}

// Cleanup purges events and metric samples older than the configured
// retention window, the one recurring job the daemon owns.
func (a *Context) Cleanup() {
	deletedEvents, deletedMetrics, err := a.Events.Cleanup(a.Config.App.RetentionDays)
	if err != nil {
		logger.Warn("retention cleanup failed", zap.Error(err))
		return
	}
	logger.Info("retention cleanup completed",
		zap.Int64("eventsDeleted", deletedEvents),
		zap.Int64("metricsDeleted", deletedMetrics),
		zap.Int("retentionDays", a.Config.App.RetentionDays))
}
