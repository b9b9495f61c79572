package priority

import (
	"context"
	"sync"
	"time"

	"hyperisle/internal/clock"
	"hyperisle/internal/event"
	"hyperisle/internal/store"
	logx "hyperisle/pkg/logx"
)

// Engine is the suppression decision function. It owns the in-memory
// burst tracker; throttle records and learning signals live in the
// injected store.
//
// All persistence is fail-soft: a store error degrades to the most
// permissive reading (not throttled / zero count) and is logged, never
// returned to the caller.
type Engine struct {
	log   logx.Logger
	store store.Store
	clock clock.Clock

	mu  sync.Mutex
	cfg Config

	bursts *burstTracker
}

func New(cfg Config, st store.Store, clk clock.Clock, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		log:    log,
		store:  st,
		clock:  clk,
		cfg:    cfg.withDefaults(),
		bursts: newBurstTracker(),
	}
}

// Apply swaps the engine configuration. Burst state is retained so a
// config reload does not reopen an in-flight burst.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.withDefaults()
	e.mu.Unlock()
}

func (e *Engine) config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Evaluate runs the gate chain for one event, cheapest gate first,
// short-circuiting on the first decisive one. At most one persisted
// read happens on this path (the throttle record).
func (e *Engine) Evaluate(ctx context.Context, source string, cat event.Category) Decision {
	cfg := e.config()

	// Gate 1: feature disabled.
	if !cfg.Enabled {
		return allow(ReasonDisabled)
	}

	// Gate 2: time-critical categories bypass every suppression gate.
	if cat.IsPriority() {
		return allow(ReasonPriorityType)
	}

	// Computed once; never itself a gate. Annotates later reasons and
	// adjusts thresholds.
	quiet := inQuietHours(e.clock.Now(), cfg.QuietStartHour, cfg.QuietEndHour)

	nowMono := e.clock.MonoMs()

	// Gate 4: burst (STANDARD only). The event is recorded first, so
	// the first threshold-1 events within the window pass and the rest
	// are denied until the window ages out.
	if cat == event.CategoryStandard {
		count := e.bursts.record(source, nowMono, cfg.BurstWindow)
		if count >= cfg.BurstThreshold {
			d := denyBurst(ReasonBurst, "src:"+source)
			if quiet {
				d.Reasons = append(d.Reasons, ReasonQuietHours)
			}
			e.log.Debug("burst denied", logx.String("comp", "notif"),
				logx.String("source", source), logx.Int("count", count))
			return d
		}
	}

	// Gate 5: persisted throttle record. Placed after the in-memory
	// gates because it costs a store round trip.
	if until := e.throttledUntil(ctx, source, cat); until > e.clock.WallMs() {
		d := denyThrottle(ReasonThrottled)
		if cfg.PresetBias > 0 {
			d.Reasons = append(d.Reasons, ReasonPresetBias)
		}
		if quiet {
			d.Reasons = append(d.Reasons, ReasonQuietHours)
		}
		return d
	}

	if cat == event.CategoryStandard {
		// Gate 6: context preset strictness.
		if cfg.PresetBias > 0 {
			eff := cfg.BurstThreshold - cfg.PresetBias
			if eff < minBurstThreshold {
				eff = minBurstThreshold
			}
			if e.bursts.countWithinWindow(source, nowMono, cfg.BurstWindow) >= eff {
				d := denyBurst(ReasonBurst, ReasonPresetBias)
				if quiet {
					d.Reasons = append(d.Reasons, ReasonQuietHours)
				}
				return d
			}
		}

		// Gate 7: per-source profile bias, bounded to one threshold step.
		switch cfg.profile(source) {
		case ProfileStrict:
			eff := cfg.BurstThreshold - 1
			if eff < minBurstThreshold {
				eff = minBurstThreshold
			}
			if e.bursts.countWithinWindow(source, nowMono, cfg.BurstWindow) >= eff {
				d := denyBurst(ReasonBurst, ReasonProfileStrict)
				if quiet {
					d.Reasons = append(d.Reasons, ReasonQuietHours)
				}
				return d
			}
		case ProfileLenient:
			// Gate 4 already decided; lenient only annotates. See the
			// locked-in behavior in the tests.
			d := allow(ReasonAllowed, ReasonProfileLenient)
			if quiet {
				d.Reasons = append(d.Reasons, ReasonQuietHours)
			}
			return d
		}
	}

	d := allow(ReasonAllowed)
	if quiet {
		d.Reasons = append(d.Reasons, ReasonQuietHours)
	}
	return d
}

func (e *Engine) throttledUntil(ctx context.Context, source string, cat event.Category) int64 {
	until, err := e.store.GetInt64(ctx, throttleKey(source, cat), 0)
	if err != nil {
		e.log.Warn("throttle read failed; treating as not throttled",
			logx.String("comp", "notif"), logx.String("source", source), logx.Err(err))
		return 0
	}
	return until
}

// ClearThrottle removes the persisted throttle for (source, category).
func (e *Engine) ClearThrottle(ctx context.Context, source string, cat event.Category) {
	if err := e.store.Delete(ctx, throttleKey(source, cat)); err != nil {
		e.log.Warn("throttle clear failed", logx.String("source", source), logx.Err(err))
	}
}

// ManualThrottle sets a throttle explicitly (user mute action).
func (e *Engine) ManualThrottle(ctx context.Context, source string, cat event.Category, d time.Duration) {
	until := e.clock.WallMs() + d.Milliseconds()
	if err := e.store.SetInt64(ctx, throttleKey(source, cat), until); err != nil {
		e.log.Warn("manual throttle write failed", logx.String("source", source), logx.Err(err))
		return
	}
	e.log.Info("manual throttle set", logx.String("comp", "notif"),
		logx.String("source", source), logx.String("category", string(cat)),
		logx.Duration("for", d))
}

// ClearBurstTracking drops in-memory burst state. With an empty source,
// everything is cleared.
func (e *Engine) ClearBurstTracking(source string) {
	if source == "" {
		e.bursts.clearAll()
		return
	}
	e.bursts.clear(source)
}

// EvictStale drops burst state for sources idle over an hour.
// Called by the maintenance scheduler.
func (e *Engine) EvictStale() int {
	return e.bursts.evictStale(e.clock.MonoMs())
}

// TrackedSources reports the burst tracker population (diagnostics).
func (e *Engine) TrackedSources() int {
	return e.bursts.trackedSources()
}

// inQuietHours checks the fixed daily quiet range in local time.
// The range may wrap midnight (22 -> 7).
func inQuietHours(now time.Time, startHour, endHour int) bool {
	h := now.Hour()
	if startHour == endHour {
		return false
	}
	if startHour < endHour {
		return h >= startHour && h < endHour
	}
	return h >= startHour || h < endHour
}
