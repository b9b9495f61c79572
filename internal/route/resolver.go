// Package route decides where an approved notification renders and
// which visual style it gets. Both decisions are pure functions of
// their inputs so they stay trivially auditable.
package route

import (
	"hyperisle/internal/event"
)

// Destination is the chosen rendering back-end.
type Destination string

const (
	DestOverlay Destination = "RENDER_OVERLAY"
	DestBridge  Destination = "RENDER_BRIDGE"
	DestNone    Destination = "NONE"
)

// Suppression reason codes surfaced in RouteResult.
const (
	ReasonForceNoneHint       = "FORCE_NONE_HINT"
	ReasonBridgeSuppressed    = "BRIDGE_SUPPRESSED"
	ReasonNoOverlayPermission = "NO_OVERLAY_PERMISSION"
	ReasonNotSelected         = "NOT_IN_SELECTED_SOURCES"
	ReasonThrottled           = "PRIORITY_DENIED"
)

// RouteResult is fully determined by (hint, permission state) plus the
// pipeline's own gating; it carries no hidden state.
type RouteResult struct {
	Destination  Destination
	Reason       string
	ShouldRender bool
}

// DetermineRoute maps the event's routing hint and the current overlay
// permission to a destination.
//
// The OEM bridge renderer is always suppressed in favor of the in-app
// overlay: FORCE_RENDER, FORCE_SUPPRESS_BRIDGE and AUTO all land on
// the overlay when permission is granted.
func DetermineRoute(hint event.RoutingHint, hasOverlayPermission bool) RouteResult {
	if hint == event.HintForceNone {
		return RouteResult{Destination: DestNone, Reason: ReasonForceNoneHint}
	}
	if !hasOverlayPermission {
		return RouteResult{Destination: DestNone, Reason: ReasonNoOverlayPermission}
	}
	return RouteResult{Destination: DestOverlay, Reason: ReasonBridgeSuppressed, ShouldRender: true}
}
