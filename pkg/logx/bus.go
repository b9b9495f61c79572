package logx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// busWriter is a zerolog sink that forwards records to the Publisher.
//
// It is best-effort: records below the configured min level, records
// arriving faster than the rate limit, and records that fail to decode
// are all dropped silently. The bus is purely observational.
type busWriter struct{ svc *Service }

func (w *busWriter) Write(p []byte) (int, error) {
	// Default to info when WriteLevel isn't used.
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *busWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	if s == nil {
		return len(p), nil
	}

	s.mu.Lock()
	pub := s.pub
	lim := s.limiter
	min := s.minLevel
	s.mu.Unlock()

	if pub == nil || lim == nil {
		return len(p), nil
	}
	if level < min {
		return len(p), nil
	}
	if !lim.Allow() {
		return len(p), nil
	}

	lvl, msg, fields := decodeRecord(p)
	if msg == "" && len(fields) == 0 {
		return len(p), nil
	}
	if lvl == "" {
		lvl = level.String()
	}
	pub.PublishLog(lvl, msg, fields)
	return len(p), nil
}

// decodeRecord best-effort decodes a zerolog JSON line into flat strings.
func decodeRecord(p []byte) (level, msg string, fields map[string]string) {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return "", strings.TrimSpace(string(p)), nil
	}

	level, _ = m["level"].(string)
	msg, _ = m["message"].(string)
	if msg == "" {
		msg, _ = m["msg"].(string)
	}

	fields = make(map[string]string, len(m))
	for k, v := range m {
		if k == "time" || k == "level" || k == "message" || k == "msg" {
			continue
		}
		fields[k] = truncate(fmt.Sprint(v), 600)
	}
	return level, msg, fields
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
