package priority

import (
	"context"
	"strconv"
	"strings"

	"hyperisle/internal/event"
	logx "hyperisle/pkg/logx"
)

// Persisted key layout. Values are plain scalars; the store owns the
// schema, the engine owns only this key-construction convention.
//
//	pri:throttle:<source>:<category>        -> throttledUntil wall ms
//	pri:ctr:<kind>:<source>:<category>:<day> -> counter
const (
	keyThrottlePrefix = "pri:throttle:"
	keyCounterPrefix  = "pri:ctr:"

	counterDismiss     = "dismiss"
	counterFastDismiss = "fastdismiss"
	counterTapOpen     = "tapopen"
	counterMuteBlock   = "muteblock"
)

const dayMs = int64(24 * 60 * 60 * 1000)

// Learning-signal weights for the 3-day decay score.
const (
	weightToday       = 1.0
	weightYesterday   = 0.6
	weightTwoDaysAgo  = 0.3
	weightFastDismiss = 2.0
	weightTapOpen     = -0.5
	weightMuteBlock   = 3.0
	tapOpenFloor      = -3.0
	muteBlockCeiling  = 10.0
)

func throttleKey(source string, cat event.Category) string {
	return keyThrottlePrefix + source + ":" + string(cat)
}

func counterKey(kind, source string, cat event.Category, day int64) string {
	return keyCounterPrefix + kind + ":" + source + ":" + string(cat) + ":" + strconv.FormatInt(day, 10)
}

func (e *Engine) today() int64 { return e.clock.WallMs() / dayMs }

// RecordIslandShown marks the source as just rendered, arming the
// fast-dismiss detector.
func (e *Engine) RecordIslandShown(source string) {
	e.bursts.markShown(source, e.clock.MonoMs())
}

// RecordDismiss registers a user dismissal and recomputes the weighted
// dismiss score; crossing the aggressiveness threshold sets a throttle.
func (e *Engine) RecordDismiss(ctx context.Context, source string, cat event.Category) {
	cfg := e.config()
	day := e.today()

	e.bumpCounter(ctx, counterDismiss, source, cat, day)

	// Fast dismiss: the island was up for under the window when the
	// user swiped it away. Strong negative signal.
	if shownAt := e.bursts.takeShown(source); shownAt > 0 {
		if e.clock.MonoMs()-shownAt <= cfg.FastDismissWindow.Milliseconds() {
			e.bumpCounter(ctx, counterFastDismiss, source, cat, day)
		}
	}

	score := e.dismissScore(ctx, source, cat, day)

	quiet := inQuietHours(e.clock.Now(), cfg.QuietStartHour, cfg.QuietEndHour)
	threshold := cfg.Aggressiveness.scoreThreshold()
	if quiet {
		threshold *= 0.7
		if threshold < quietThresholdFloor {
			threshold = quietThresholdFloor
		}
	}

	if score < threshold {
		return
	}

	dur := cfg.Aggressiveness.throttleDuration()
	if quiet {
		dur /= 2
	}
	until := e.clock.WallMs() + dur.Milliseconds()
	if err := e.store.SetInt64(ctx, throttleKey(source, cat), until); err != nil {
		e.log.Warn("throttle write failed", logx.String("source", source), logx.Err(err))
		return
	}
	e.log.Info("dismiss score crossed threshold; throttling",
		logx.String("comp", "notif"), logx.String("source", source),
		logx.String("category", string(cat)),
		logx.Float64("score", score), logx.Float64("threshold", threshold),
		logx.Duration("for", dur), logx.Bool("quiet", quiet))
}

// RecordTapOpen registers the user opening the source app from an
// island. Positive signal; lowers the score.
func (e *Engine) RecordTapOpen(ctx context.Context, source string, cat event.Category) {
	e.bumpCounter(ctx, counterTapOpen, source, cat, e.today())
}

// RecordMuteBlock registers an explicit mute/block. Strongest signal.
func (e *Engine) RecordMuteBlock(ctx context.Context, source string, cat event.Category) {
	e.bumpCounter(ctx, counterMuteBlock, source, cat, e.today())
}

func (e *Engine) bumpCounter(ctx context.Context, kind, source string, cat event.Category, day int64) {
	key := counterKey(kind, source, cat, day)
	v, err := e.store.GetInt64(ctx, key, 0)
	if err != nil {
		e.log.Warn("counter read failed; starting from zero",
			logx.String("key", key), logx.Err(err))
		v = 0
	}
	if err := e.store.SetInt64(ctx, key, v+1); err != nil {
		e.log.Warn("counter write failed", logx.String("key", key), logx.Err(err))
	}
}

func (e *Engine) counter(ctx context.Context, kind, source string, cat event.Category, day int64) int64 {
	v, err := e.store.GetInt64(ctx, counterKey(kind, source, cat, day), 0)
	if err != nil {
		return 0
	}
	return v
}

// dismissScore computes the 3-day weighted decay score, adjusted by
// learning signals, floored at 0:
//
//	base  = today*1.0 + yesterday*0.6 + twoDaysAgo*0.3
//	adj   = fast*2.0 + max(-3, tap*-0.5) + min(10, mute*3.0)
//	score = max(0, base+adj)
func (e *Engine) dismissScore(ctx context.Context, source string, cat event.Category, day int64) float64 {
	base := weightToday*float64(e.counter(ctx, counterDismiss, source, cat, day)) +
		weightYesterday*float64(e.counter(ctx, counterDismiss, source, cat, day-1)) +
		weightTwoDaysAgo*float64(e.counter(ctx, counterDismiss, source, cat, day-2))

	var fast, tap, mute int64
	for d := day - 2; d <= day; d++ {
		fast += e.counter(ctx, counterFastDismiss, source, cat, d)
		tap += e.counter(ctx, counterTapOpen, source, cat, d)
		mute += e.counter(ctx, counterMuteBlock, source, cat, d)
	}

	fastAdj := weightFastDismiss * float64(fast)
	tapAdj := weightTapOpen * float64(tap)
	if tapAdj < tapOpenFloor {
		tapAdj = tapOpenFloor
	}
	muteAdj := weightMuteBlock * float64(mute)
	if muteAdj > muteBlockCeiling {
		muteAdj = muteBlockCeiling
	}

	score := base + fastAdj + tapAdj + muteAdj
	if score < 0 {
		score = 0
	}
	return score
}

// GCExpired removes logically dead persisted records: throttle records
// whose window elapsed, and counters for days older than the scoring
// horizon. Lazily correct without it; this just keeps the store small.
func (e *Engine) GCExpired(ctx context.Context) (removed int) {
	nowWall := e.clock.WallMs()
	if keys, err := e.store.Keys(ctx, keyThrottlePrefix); err == nil {
		for _, k := range keys {
			until, gerr := e.store.GetInt64(ctx, k, 0)
			if gerr != nil {
				continue
			}
			if until <= nowWall {
				if e.store.Delete(ctx, k) == nil {
					removed++
				}
			}
		}
	} else {
		e.log.Warn("throttle gc scan failed", logx.Err(err))
	}

	horizon := e.today() - 2
	if keys, err := e.store.Keys(ctx, keyCounterPrefix); err == nil {
		for _, k := range keys {
			i := strings.LastIndexByte(k, ':')
			if i < 0 {
				continue
			}
			day, perr := strconv.ParseInt(k[i+1:], 10, 64)
			if perr != nil {
				continue
			}
			if day < horizon {
				if e.store.Delete(ctx, k) == nil {
					removed++
				}
			}
		}
	} else {
		e.log.Warn("counter gc scan failed", logx.Err(err))
	}
	return removed
}
