// Package event defines the immutable notification value consumed by
// the ingestion pipeline, plus the category/hint/origin vocabularies.
package event

import "strings"

// Category classifies a notification for routing and suppression.
type Category string

const (
	CategoryStandard   Category = "STANDARD"
	CategoryProgress   Category = "PROGRESS"
	CategoryTimer      Category = "TIMER"
	CategoryNavigation Category = "NAVIGATION"
	CategoryMedia      Category = "MEDIA"
	CategoryCall       Category = "CALL"
)

// IsPriority reports whether the category is time-critical and must
// bypass every suppression gate.
func (c Category) IsPriority() bool {
	switch c {
	case CategoryCall, CategoryTimer, CategoryNavigation:
		return true
	}
	return false
}

// ParseCategory is tolerant: unknown or empty input maps to STANDARD.
func ParseCategory(s string) Category {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategoryProgress:
		return CategoryProgress
	case CategoryTimer:
		return CategoryTimer
	case CategoryNavigation:
		return CategoryNavigation
	case CategoryMedia:
		return CategoryMedia
	case CategoryCall:
		return CategoryCall
	default:
		return CategoryStandard
	}
}

// RoutingHint lets a producer pin or veto the routing decision.
type RoutingHint string

const (
	HintAuto                RoutingHint = "AUTO"
	HintForceRender         RoutingHint = "FORCE_RENDER"
	HintForceSuppressBridge RoutingHint = "FORCE_SUPPRESS_BRIDGE"
	HintForceNone           RoutingHint = "FORCE_NONE"
)

// ParseHint is tolerant: unknown or empty input maps to AUTO.
func ParseHint(s string) RoutingHint {
	switch RoutingHint(strings.ToUpper(strings.TrimSpace(s))) {
	case HintForceRender:
		return HintForceRender
	case HintForceSuppressBridge:
		return HintForceSuppressBridge
	case HintForceNone:
		return HintForceNone
	default:
		return HintAuto
	}
}

// Origin tags where an event came from.
type Origin string

const (
	OriginListener  Origin = "LISTENER"
	OriginSynthetic Origin = "SYNTHETIC"
)

// Notification is one inbound notification. It is constructed once and
// never mutated; the pipeline consumes it and discards it (content is
// never persisted).
type Notification struct {
	Source         string      `json:"source"`
	Title          string      `json:"title,omitempty"`
	Body           string      `json:"body,omitempty"`
	PostedAtMs     int64       `json:"posted_at_ms"`
	ConversationID string      `json:"conversation_id,omitempty"`
	MessageID      string      `json:"message_id"`
	CanReply       bool        `json:"can_reply,omitempty"`
	HasActions     bool        `json:"has_actions,omitempty"`
	Importance     int         `json:"importance,omitempty"`
	Category       Category    `json:"category"`
	IsGroupSummary bool        `json:"is_group_summary,omitempty"`
	Hint           RoutingHint `json:"hint,omitempty"`
	Origin         Origin      `json:"origin,omitempty"`

	// BypassFilter skips the source selection filter. Only honored for
	// SYNTHETIC events (debug harness).
	BypassFilter bool `json:"bypass_filter,omitempty"`
}

// NotificationKey identifies one rendered instance, used to route
// later user actions (dismiss/options) back to this event.
func (n Notification) NotificationKey() string {
	return n.Source + ":" + n.ConversationID + ":" + n.MessageID
}

// GroupKey identifies the replacement slot within a source: standard
// notifications from the same source replace each other on screen.
func (n Notification) GroupKey() string {
	return n.Source + ":" + string(CategoryStandard)
}

// Action is one notification action button, reduced to what the style
// contract inspects.
type Action struct {
	Title   string `json:"title"`
	HasIcon bool   `json:"has_icon"`
	// LegacyTemplate marks actions coming from a legacy content
	// template rather than the modern action API.
	LegacyTemplate bool `json:"legacy_template,omitempty"`
}
