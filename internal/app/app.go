// Package app wires the daemon: config, logging, storage, the
// priority engine, managers, and the ingestion core.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hyperisle/internal/callsession"
	"hyperisle/internal/clock"
	"hyperisle/internal/config"
	"hyperisle/internal/cooldown"
	"hyperisle/internal/core"
	"hyperisle/internal/diag"
	"hyperisle/internal/eventbus"
	"hyperisle/internal/maintenance"
	"hyperisle/internal/priority"
	"hyperisle/internal/route"
	"hyperisle/internal/store"
	logx "hyperisle/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	bus   eventbus.Bus
	store store.Store
	clk   clock.Clock

	engine *priority.Engine
	calls  *callsession.Manager
	cools  *cooldown.Manager
	core   *core.Core
	maint  *maintenance.Service

	filter *configFilter
	perms  *configPerms

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgMgr := config.NewManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	bus := eventbus.New()
	logSvc, log := logx.New(loggingConfig(cfg), busLogPublisher{bus: bus})
	cfgMgr.SetLogger(log)
	cfgMgr.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	clk := clock.NewSystem()

	st, err := openStore(cfg, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine := priority.New(priorityConfig(cfg), st, clk, log)

	lockFor, _ := config.ParseDurationOrDefault("call.session_lock", cfg.Call.SessionLock, 3*time.Second)
	// The daemon has no telephony; the state query reports IDLE until a
	// platform integration replaces it.
	calls := callsession.NewManager(func() callsession.State {
		return callsession.StateIdle
	}, clk, lockFor, log)

	cools := cooldown.NewManager(clk)

	filter := newConfigFilter(cfg.Sources)
	perms := newConfigPerms(overlayPermission(cfg))
	sink := diag.NewBusSink(bus, 20)
	overlay := &logOverlay{log: log.With(logx.String("comp", "island")), bus: bus}

	c := core.New(coreConfig(cfg), engine, cools, route.NewStyleResolver(log), filter, perms,
		overlay, noLauncher{}, sink, bus, log)

	maint := maintenance.New(maintenanceConfig(cfg), engine, log)

	return &App{
		cfgMgr: cfgMgr,
		logSvc: logSvc,
		log:    log,
		bus:    bus,
		store:  st,
		clk:    clk,
		engine: engine,
		calls:  calls,
		cools:  cools,
		core:   c,
		maint:  maint,
		filter: filter,
		perms:  perms,
	}, nil
}

func (a *App) Core() *core.Core                  { return a.core }
func (a *App) Calls() *callsession.Manager       { return a.calls }
func (a *App) Bus() eventbus.Bus                 { return a.bus }
func (a *App) Logger() logx.Logger               { return a.log }
func (a *App) Maintenance() *maintenance.Service { return a.maint }

// Start launches the config watcher and maintenance scheduler.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.maint.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start maintenance: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(runCtx)
	}()

	updates := a.cfgMgr.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(runCtx, cfg)
			}
		}
	}()

	a.log.Info("hyperisle core started")
	return nil
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logSvc.Apply(loggingConfig(cfg))
	a.engine.Apply(priorityConfig(cfg))
	a.core.Apply(coreConfig(cfg))
	a.filter.Apply(cfg.Sources)
	a.perms.Apply(overlayPermission(cfg))
	if err := a.maint.Apply(ctx, maintenanceConfig(cfg)); err != nil {
		a.log.Warn("maintenance reconfigure failed", logx.Err(err))
	}
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.maint.Stop()
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logSvc.Close()
	return nil
}

// ---- config mapping ----

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Bus: logx.BusConfig{
			Enabled:    cfg.Logging.Bus.Enabled,
			MinLevel:   cfg.Logging.Bus.MinLevel,
			RatePerSec: cfg.Logging.Bus.RatePerSec,
		},
	}
}

func openStore(cfg *config.Config, log logx.Logger) (store.Store, error) {
	sc := store.Config{}
	if cfg.Storage != nil {
		sc.Driver = cfg.Storage.Driver
		sc.Path = cfg.Storage.Path
		if d, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err == nil {
			sc.BusyTimeout = d
		}
	}
	return store.Open(sc, log)
}

func priorityConfig(cfg *config.Config) priority.Config {
	pc := priority.DefaultConfig()
	p := cfg.Priority
	if p.Enabled != nil {
		pc.Enabled = *p.Enabled
	}
	pc.Aggressiveness = priority.ParseAggressiveness(p.Aggressiveness)
	pc.PresetBias = p.PresetBias
	if p.QuietStartHour != nil {
		pc.QuietStartHour = *p.QuietStartHour
	}
	if p.QuietEndHour != nil {
		pc.QuietEndHour = *p.QuietEndHour
	}
	if d, err := config.ParseDurationField("priority.burst_window", p.BurstWindow); err == nil && d > 0 {
		pc.BurstWindow = d
	}
	if p.BurstThreshold > 0 {
		pc.BurstThreshold = p.BurstThreshold
	}
	if d, err := config.ParseDurationField("priority.fast_dismiss_window", p.FastDismissWindow); err == nil && d > 0 {
		pc.FastDismissWindow = d
	}
	if len(cfg.Sources) > 0 {
		pc.Profiles = make(map[string]priority.Profile, len(cfg.Sources))
		for name, src := range cfg.Sources {
			if strings.TrimSpace(src.Profile) != "" {
				pc.Profiles[name] = priority.ParseProfile(src.Profile)
			}
		}
	}
	return pc
}

func coreConfig(cfg *config.Config) core.Config {
	return core.Config{CooldownSeconds: cfg.Cooldown.Seconds}
}

func maintenanceConfig(cfg *config.Config) maintenance.Config {
	mc := maintenance.Config{Enabled: true}
	if cfg.Maintenance != nil {
		mc.Enabled = cfg.Maintenance.Enabled
		mc.EvictSpec = cfg.Maintenance.EvictSpec
		mc.GCSpec = cfg.Maintenance.GCSpec
	}
	return mc
}

func overlayPermission(cfg *config.Config) bool {
	if cfg.Render.OverlayPermission != nil {
		return *cfg.Render.OverlayPermission
	}
	return true
}
