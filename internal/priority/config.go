package priority

import (
	"strings"
	"time"
)

// Aggressiveness scales how quickly repeated dismissals escalate into
// a throttle, and how long the throttle lasts.
type Aggressiveness string

const (
	AggressivenessLow    Aggressiveness = "LOW"
	AggressivenessMedium Aggressiveness = "MEDIUM"
	AggressivenessHigh   Aggressiveness = "HIGH"
)

func ParseAggressiveness(s string) Aggressiveness {
	switch Aggressiveness(strings.ToUpper(strings.TrimSpace(s))) {
	case AggressivenessLow:
		return AggressivenessLow
	case AggressivenessHigh:
		return AggressivenessHigh
	default:
		return AggressivenessMedium
	}
}

// scoreThreshold is the weighted dismiss score at which a throttle is set.
func (a Aggressiveness) scoreThreshold() float64 {
	switch a {
	case AggressivenessLow:
		return 14
	case AggressivenessHigh:
		return 6
	default:
		return 10
	}
}

// throttleDuration is how long a crossed threshold suppresses the source.
func (a Aggressiveness) throttleDuration() time.Duration {
	switch a {
	case AggressivenessLow:
		return 30 * time.Minute
	case AggressivenessHigh:
		return 120 * time.Minute
	default:
		return 60 * time.Minute
	}
}

// Profile is the per-source bias tier.
type Profile string

const (
	ProfileStrict  Profile = "STRICT"
	ProfileNormal  Profile = "NORMAL"
	ProfileLenient Profile = "LENIENT"
)

func ParseProfile(s string) Profile {
	switch Profile(strings.ToUpper(strings.TrimSpace(s))) {
	case ProfileStrict:
		return ProfileStrict
	case ProfileLenient:
		return ProfileLenient
	default:
		return ProfileNormal
	}
}

const (
	defaultBurstWindow       = 30 * time.Second
	defaultBurstThreshold    = 3
	defaultFastDismissWindow = 2 * time.Second
	defaultQuietStartHour    = 22
	defaultQuietEndHour      = 7

	// minBurstThreshold bounds every bias so no combination can push
	// the effective threshold below "second event denied".
	minBurstThreshold = 2

	// quietThresholdFloor keeps quiet-hours reduction from making a
	// couple of dismissals throttle a source outright.
	quietThresholdFloor = 3.0
)

type Config struct {
	Enabled        bool
	Aggressiveness Aggressiveness

	// PresetBias is the extra strictness requested by an external
	// context preset (meeting/driving). Each unit lowers the effective
	// burst threshold by one, floor minBurstThreshold.
	PresetBias int

	QuietStartHour int
	QuietEndHour   int

	BurstWindow    time.Duration
	BurstThreshold int

	FastDismissWindow time.Duration

	// Profiles maps source -> bias tier. Missing sources are NORMAL.
	Profiles map[string]Profile
}

func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		Aggressiveness:    AggressivenessMedium,
		QuietStartHour:    defaultQuietStartHour,
		QuietEndHour:      defaultQuietEndHour,
		BurstWindow:       defaultBurstWindow,
		BurstThreshold:    defaultBurstThreshold,
		FastDismissWindow: defaultFastDismissWindow,
	}
}

func (c Config) withDefaults() Config {
	if c.Aggressiveness == "" {
		c.Aggressiveness = AggressivenessMedium
	}
	if c.BurstWindow <= 0 {
		c.BurstWindow = defaultBurstWindow
	}
	if c.BurstThreshold <= 0 {
		c.BurstThreshold = defaultBurstThreshold
	}
	if c.FastDismissWindow <= 0 {
		c.FastDismissWindow = defaultFastDismissWindow
	}
	if c.PresetBias < 0 {
		c.PresetBias = 0
	}
	return c
}

func (c Config) profile(source string) Profile {
	if p, ok := c.Profiles[source]; ok {
		return p
	}
	return ProfileNormal
}
