package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage backs throttle records and learning-signal counters.
	// If omitted, the in-memory driver is used (state resets on restart).
	Storage *StorageConfig `json:"storage,omitempty"`

	Priority    PriorityConfig     `json:"priority"`
	Cooldown    CooldownConfig     `json:"cooldown,omitempty"`
	Call        CallConfig         `json:"call,omitempty"`
	Render      RenderConfig       `json:"render,omitempty"`
	Maintenance *MaintenanceConfig `json:"maintenance,omitempty"`

	// Sources is the selection filter plus per-source suppression
	// profile. A source absent from the map is not selected.
	Sources map[string]SourceConfig `json:"sources"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file,omitempty"`
	Bus     BusLogConfig  `json:"bus,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// BusLogConfig forwards warn+ records onto the diagnostics bus.
type BusLogConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./hyperisle_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// PriorityConfig controls the suppression engine.
//
// All durations are Go duration strings (e.g. "500ms", "30s", "1m").
//
// Enabled is a pointer so we can distinguish "omitted" (default true)
// from an explicit false.
type PriorityConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	// Aggressiveness: "low", "medium" (default) or "high".
	Aggressiveness string `json:"aggressiveness,omitempty"`

	// PresetBias adds context strictness (meeting/driving mode).
	// Each unit lowers the effective burst threshold by one, floor 2.
	PresetBias int `json:"preset_bias,omitempty"`

	// Quiet hours, local time. Defaults: 22 and 7.
	QuietStartHour *int `json:"quiet_start_hour,omitempty"`
	QuietEndHour   *int `json:"quiet_end_hour,omitempty"`

	BurstWindow    string `json:"burst_window,omitempty"`    // default "30s"
	BurstThreshold int    `json:"burst_threshold,omitempty"` // default 3

	FastDismissWindow string `json:"fast_dismiss_window,omitempty"` // default "2s"
}

// CooldownConfig controls the short post-dismiss suppression window.
type CooldownConfig struct {
	Seconds int `json:"seconds,omitempty"` // default 30
}

// CallConfig controls call-session tracking.
type CallConfig struct {
	SessionLock    string `json:"session_lock,omitempty"`    // default "3s"
	VerifyInterval string `json:"verify_interval,omitempty"` // default "200ms"
	VerifyTimeout  string `json:"verify_timeout,omitempty"`  // default "2s"
}

// RenderConfig models the external permission state for routing.
// OverlayPermission is a pointer so omission defaults to true.
type RenderConfig struct {
	OverlayPermission *bool `json:"overlay_permission,omitempty"`
}

// MaintenanceConfig controls the cron-driven upkeep jobs.
// Specs are standard 5-field cron expressions.
type MaintenanceConfig struct {
	Enabled   bool   `json:"enabled"`
	EvictSpec string `json:"evict_spec,omitempty"` // default "@hourly"
	GCSpec    string `json:"gc_spec,omitempty"`    // default "17 3 * * *"
}

type SourceConfig struct {
	Selected bool `json:"selected"`
	// Profile: "strict", "normal" (default) or "lenient".
	Profile string `json:"profile,omitempty"`
}

// Validate rejects configs that would silently misbehave at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Priority.Aggressiveness)) {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("priority.aggressiveness: unknown tier %q", c.Priority.Aggressiveness)
	}
	if h := c.Priority.QuietStartHour; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("priority.quiet_start_hour: %d out of range", *h)
	}
	if h := c.Priority.QuietEndHour; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("priority.quiet_end_hour: %d out of range", *h)
	}
	if c.Priority.BurstThreshold < 0 {
		return fmt.Errorf("priority.burst_threshold: must be >= 0")
	}
	if _, err := ParseDurationField("priority.burst_window", c.Priority.BurstWindow); err != nil {
		return err
	}
	if _, err := ParseDurationField("priority.fast_dismiss_window", c.Priority.FastDismissWindow); err != nil {
		return err
	}
	if c.Cooldown.Seconds < 0 {
		return fmt.Errorf("cooldown.seconds: must be >= 0")
	}
	if _, err := ParseDurationField("call.session_lock", c.Call.SessionLock); err != nil {
		return err
	}
	if _, err := ParseDurationField("call.verify_interval", c.Call.VerifyInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("call.verify_timeout", c.Call.VerifyTimeout); err != nil {
		return err
	}
	for name, src := range c.Sources {
		switch strings.ToLower(strings.TrimSpace(src.Profile)) {
		case "", "strict", "normal", "lenient":
		default:
			return fmt.Errorf("sources.%s.profile: unknown profile %q", name, src.Profile)
		}
	}
	return nil
}
