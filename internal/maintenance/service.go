// Package maintenance runs the engine's periodic upkeep on a cron
// schedule: burst-tracker eviction and persisted-record GC.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hyperisle/internal/priority"
	logx "hyperisle/pkg/logx"
)

type Config struct {
	Enabled   bool
	EvictSpec string // default "@hourly"
	GCSpec    string // default "17 3 * * *"
}

// RunResult is the snapshot of the last completed job, kept for
// operational visibility.
type RunResult struct {
	Job     string
	At      time.Time
	Removed int
}

type Service struct {
	log    logx.Logger
	engine *priority.Engine

	mu   sync.Mutex
	cfg  Config
	c    *cron.Cron
	last map[string]RunResult
}

func New(cfg Config, engine *priority.Engine, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log.With(logx.String("comp", "maint")),
		engine: engine,
		cfg:    withDefaults(cfg),
		last:   map[string]RunResult{},
	}
}

func withDefaults(cfg Config) Config {
	if cfg.EvictSpec == "" {
		cfg.EvictSpec = "@hourly"
	}
	if cfg.GCSpec == "" {
		cfg.GCSpec = "17 3 * * *"
	}
	return cfg
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled || s.c != nil {
		return nil
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	if _, err := c.AddFunc(s.cfg.EvictSpec, func() { s.runEvict() }); err != nil {
		return err
	}
	if _, err := c.AddFunc(s.cfg.GCSpec, func() { s.runGC(ctx) }); err != nil {
		return err
	}

	c.Start()
	s.c = c
	s.log.Info("maintenance started",
		logx.String("evict", s.cfg.EvictSpec), logx.String("gc", s.cfg.GCSpec))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Apply restarts the cron with new specs if they changed.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	same := cfg == s.cfg
	s.mu.Unlock()
	if same {
		return nil
	}
	s.Stop()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return s.Start(ctx)
}

func (s *Service) runEvict() {
	n := s.engine.EvictStale()
	s.record("evict", n)
	if n > 0 {
		s.log.Debug("evicted stale burst sources", logx.Int("removed", n))
	}
}

func (s *Service) runGC(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n := s.engine.GCExpired(cctx)
	s.record("gc", n)
	if n > 0 {
		s.log.Debug("collected expired records", logx.Int("removed", n))
	}
}

func (s *Service) record(job string, removed int) {
	s.mu.Lock()
	s.last[job] = RunResult{Job: job, At: time.Now(), Removed: removed}
	s.mu.Unlock()
}

// LastRun returns the snapshot of the named job's last completion.
func (s *Service) LastRun(job string) (RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[job]
	return r, ok
}
