package route

import (
	"hyperisle/internal/event"
	logx "hyperisle/pkg/logx"
)

// Style is the visual treatment handed to the renderer.
type Style string

const (
	StylePill       Style = "pill"
	StyleCall       Style = "call"
	StyleProgress   Style = "progress"
	StyleTimer      Style = "timer"
	StyleNavigation Style = "navigation"
	StyleMedia      Style = "media"

	// styleLegacy is the blocked legacy action-row treatment. It is
	// internal on purpose: ResolveStyle may never return it.
	styleLegacy Style = "legacy"
)

const reasonLegacyBlocked = "legacy_action_row_blocked"

// Legacy-row indicators.
const (
	maxActions           = 3
	maxIconlessActions   = 1
	maxLegacyTplActions  = 2
)

// StyleResolution reports the resolved style and whether the legacy
// treatment was blocked and substituted.
type StyleResolution struct {
	Style      Style
	WasBlocked bool
	Reason     string
}

// StyleResolver applies the style contract. The zero value works; the
// logger makes blocking auditable rather than a silent swap.
type StyleResolver struct {
	log logx.Logger
}

func NewStyleResolver(log logx.Logger) *StyleResolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &StyleResolver{log: log.With(logx.String("comp", "route"))}
}

// ResolveStyle picks the style for an event. Events exhibiting legacy
// action-row indicators are forcibly restyled as the default pill; the
// raw legacy tag never escapes to callers. The final substitution is
// the contract's own safety net, not the caller's job.
func (r *StyleResolver) ResolveStyle(ev event.Notification, actions []event.Action) StyleResolution {
	if ev.Category == event.CategoryCall {
		return StyleResolution{Style: StyleCall}
	}

	if blocked, why := isLegacyRow(actions); blocked {
		r.log.Info("legacy action row blocked; substituting pill style",
			logx.String("source", ev.Source),
			logx.String("indicator", why),
			logx.Int("actions", len(actions)))
		return StyleResolution{Style: StylePill, WasBlocked: true, Reason: reasonLegacyBlocked}
	}
	return StyleResolution{Style: categoryStyle(ev.Category)}
}

func categoryStyle(cat event.Category) Style {
	switch cat {
	case event.CategoryProgress:
		return StyleProgress
	case event.CategoryTimer:
		return StyleTimer
	case event.CategoryNavigation:
		return StyleNavigation
	case event.CategoryMedia:
		return StyleMedia
	default:
		return StylePill
	}
}

// isLegacyRow checks the indicators that mark an Android legacy
// action-row template: too many actions, too many text-only actions,
// or a legacy content template carrying more than two actions.
func isLegacyRow(actions []event.Action) (bool, string) {
	if len(actions) > maxActions {
		return true, "action_count"
	}
	iconless := 0
	legacyTpl := 0
	for _, a := range actions {
		if !a.HasIcon {
			iconless++
		}
		if a.LegacyTemplate {
			legacyTpl++
		}
	}
	if iconless > maxIconlessActions {
		return true, "iconless_actions"
	}
	if legacyTpl > 0 && len(actions) > maxLegacyTplActions {
		return true, "legacy_template"
	}
	return false, ""
}
