package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"hyperisle/internal/event"
	logx "hyperisle/pkg/logx"
)

// Replay feeds a JSONL file of notification events through the
// pipeline. It is the debug harness standing in for the platform
// notification listener: every line is one event.Notification, forced
// to SYNTHETIC origin.
func (a *App) Replay(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	ingested := 0
	for sc.Scan() {
		line++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var ev event.Notification
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			a.log.Warn("replay: bad event line", logx.Int("line", line), logx.Err(err))
			continue
		}
		ev.Origin = event.OriginSynthetic
		ev.Category = event.ParseCategory(string(ev.Category))
		ev.Hint = event.ParseHint(string(ev.Hint))
		if ev.MessageID == "" {
			ev.MessageID = fmt.Sprintf("replay-%d", line)
		}
		if ev.PostedAtMs == 0 {
			ev.PostedAtMs = a.clk.WallMs()
		}

		res := a.core.Ingest(ctx, ev)
		ingested++
		a.log.Debug("replay ingested",
			logx.Int("line", line),
			logx.String("source", ev.Source),
			logx.String("destination", string(res.Destination)),
			logx.String("reason", res.Reason),
			logx.Bool("render", res.ShouldRender))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read replay file: %w", err)
	}
	a.log.Info("replay finished", logx.Int("lines", line), logx.Int("ingested", ingested))
	return nil
}
