// Package core is the top-level ingestion pipeline: it validates an
// inbound notification, applies the source selection filter, resolves
// the route and style, consults the priority engine, and emits a
// render request to the external renderer.
package core

import (
	"context"
	"sync"

	"hyperisle/internal/cooldown"
	"hyperisle/internal/diag"
	"hyperisle/internal/event"
	"hyperisle/internal/eventbus"
	"hyperisle/internal/priority"
	"hyperisle/internal/route"
	logx "hyperisle/pkg/logx"
)

// SelectionFilter is the external source allow-list.
type SelectionFilter interface {
	IsSourceSelected(source string) bool
}

// PermissionQuery reports the external overlay permission state.
type PermissionQuery interface {
	HasOverlayPermission() bool
}

// OverlayRequester is the external overlay renderer. The core never
// inspects what rendering means; it only observes success.
type OverlayRequester interface {
	EnsureOverlayStarted() bool
	EmitRenderRequest(model RenderModel) bool
	EmitDismiss(instanceKey string)
	EmitDismissAll()
}

// AppLauncher launches the source app. Launch is the primary
// mechanism; LaunchFallback is the secondary intent-based path.
type AppLauncher interface {
	Launch(ctx context.Context, source string) error
	LaunchFallback(ctx context.Context, source string) error
}

// RenderModel is the render request handed to the overlay.
type RenderModel struct {
	InstanceKey string         `json:"instance_key"`
	GroupKey    string         `json:"group_key"`
	Source      string         `json:"source"`
	Title       string         `json:"title,omitempty"`
	Body        string         `json:"body,omitempty"`
	Category    event.Category `json:"category"`
	Style       route.Style    `json:"style"`
	CanReply    bool           `json:"can_reply,omitempty"`
	HasActions  bool           `json:"has_actions,omitempty"`
}

type Config struct {
	CooldownSeconds int
}

type Core struct {
	log    logx.Logger
	bus    eventbus.Bus
	sink   diag.Sink
	engine *priority.Engine
	cools  *cooldown.Manager
	styles *route.StyleResolver

	filter   SelectionFilter
	perms    PermissionQuery
	overlay  OverlayRequester
	launcher AppLauncher

	mu  sync.Mutex
	cfg Config
}

func New(cfg Config, engine *priority.Engine, cools *cooldown.Manager,
	styles *route.StyleResolver, filter SelectionFilter, perms PermissionQuery,
	overlay OverlayRequester, launcher AppLauncher,
	sink diag.Sink, bus eventbus.Bus, log logx.Logger) *Core {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sink == nil {
		sink = diag.Nop()
	}
	if cfg.CooldownSeconds <= 0 {
		cfg.CooldownSeconds = cooldown.DefaultSeconds
	}
	return &Core{
		log:      log.With(logx.String("comp", "island")),
		bus:      bus,
		sink:     sink,
		engine:   engine,
		cools:    cools,
		styles:   styles,
		filter:   filter,
		perms:    perms,
		overlay:  overlay,
		launcher: launcher,
		cfg:      cfg,
	}
}

func (c *Core) Apply(cfg Config) {
	if cfg.CooldownSeconds <= 0 {
		cfg.CooldownSeconds = cooldown.DefaultSeconds
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Core) cooldownSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.CooldownSeconds
}

// Ingest runs the pipeline for one event and returns the route
// decision. The routing decision and the render outcome are
// independent: a successfully routed event can still fail to render,
// which is logged as its own condition without changing the result.
func (c *Core) Ingest(ctx context.Context, ev event.Notification) route.RouteResult {
	return c.ingest(ctx, ev, nil)
}

// IngestWithActions is Ingest for producers that carry action lists;
// the style contract inspects them for legacy-row indicators.
func (c *Core) IngestWithActions(ctx context.Context, ev event.Notification, actions []event.Action) route.RouteResult {
	return c.ingest(ctx, ev, actions)
}

func (c *Core) ingest(ctx context.Context, ev event.Notification, actions []event.Action) route.RouteResult {
	key := ev.NotificationKey()
	keyHash := diag.HashKey(key)

	// Selection filter first: unselected sources cost nothing further.
	// Synthetic debug events may carry an explicit bypass.
	bypass := ev.BypassFilter && ev.Origin == event.OriginSynthetic
	if !bypass && (c.filter == nil || !c.filter.IsSourceSelected(ev.Source)) {
		res := route.RouteResult{Destination: route.DestNone, Reason: route.ReasonNotSelected}
		c.sink.Record(ev.Source, keyHash, string(res.Destination), []string{res.Reason})
		return res
	}

	res := route.DetermineRoute(ev.Hint, c.perms != nil && c.perms.HasOverlayPermission())
	if !res.ShouldRender {
		c.sink.Record(ev.Source, keyHash, string(res.Destination), []string{res.Reason})
		c.publishSuppressed(ev, res.Reason)
		return res
	}

	// Cooldown: a just-dismissed (source, category) stays quiet for a
	// few seconds regardless of priority.
	if c.cools.IsInCooldown(ev.Source, ev.Category, c.cooldownSeconds()) {
		res = route.RouteResult{Destination: route.DestNone, Reason: route.ReasonThrottled}
		c.sink.Record(ev.Source, keyHash, string(res.Destination), []string{"COOLDOWN"})
		c.publishSuppressed(ev, "COOLDOWN")
		return res
	}

	decision := c.engine.Evaluate(ctx, ev.Source, ev.Category)
	c.sink.Record(ev.Source, keyHash, string(decision.Verdict), decision.Reasons)
	if !decision.Allowed() {
		res = route.RouteResult{Destination: route.DestNone, Reason: route.ReasonThrottled}
		c.publishSuppressed(ev, decision.Reasons[0])
		return res
	}

	// Route approved; attempt the render. Failure here is surfaced as
	// a distinct condition, not folded into the route decision.
	if c.overlay == nil || !c.overlay.EnsureOverlayStarted() {
		c.log.Warn("overlay service unavailable; route approved but not rendered",
			logx.String("source", ev.Source), logx.String("key_hash", keyHash))
		return res
	}

	model := c.buildModel(ev, actions)
	if !c.overlay.EmitRenderRequest(model) {
		c.log.Warn("render request rejected by overlay",
			logx.String("source", ev.Source), logx.String("key_hash", keyHash))
		return res
	}

	c.cools.SetInstanceMeta(key, ev.Source, ev.Category)
	c.engine.RecordIslandShown(ev.Source)
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Topic: eventbus.TopicIslandRendered, Data: model})
	}
	return res
}

func (c *Core) buildModel(ev event.Notification, actions []event.Action) RenderModel {
	st := c.styles.ResolveStyle(ev, actions)
	return RenderModel{
		InstanceKey: ev.NotificationKey(),
		GroupKey:    ev.GroupKey(),
		Source:      ev.Source,
		Title:       ev.Title,
		Body:        ev.Body,
		Category:    ev.Category,
		Style:       st.Style,
		CanReply:    ev.CanReply,
		HasActions:  ev.HasActions,
	}
}

// DismissIsland dismisses one instance, or every instance when the key
// is empty. The dismissal feeds cooldown and the learning signals.
func (c *Core) DismissIsland(ctx context.Context, instanceKey string) {
	if instanceKey == "" {
		if c.overlay != nil {
			c.overlay.EmitDismissAll()
		}
		if c.bus != nil {
			c.bus.Publish(eventbus.Event{Topic: eventbus.TopicIslandDismissed, Data: ""})
		}
		return
	}

	meta, ok := c.cools.GetInstanceMeta(instanceKey)
	if !ok {
		// Best-effort: an action arrived for an instance we no longer
		// track. Fall back to the last active island.
		var lastKey string
		lastKey, meta, ok = c.cools.LastActiveInstance()
		if ok {
			instanceKey = lastKey
		}
	}

	if c.overlay != nil {
		c.overlay.EmitDismiss(instanceKey)
	}
	if ok {
		c.cools.RecordDismissal(meta.Source, meta.Category)
		c.engine.RecordDismiss(ctx, meta.Source, meta.Category)
		c.cools.ClearInstanceMeta(instanceKey)
	}
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Topic: eventbus.TopicIslandDismissed, Data: instanceKey})
	}
}

// OpenSourceApp launches the source app, recording the tap as a
// positive learning signal. Best-effort: primary mechanism, then the
// fallback intent path, then false. Never throws past this boundary.
func (c *Core) OpenSourceApp(ctx context.Context, source string, cat event.Category) bool {
	if c.launcher == nil {
		return false
	}
	method := "primary"
	err := c.launcher.Launch(ctx, source)
	if err != nil {
		method = "fallback"
		err = c.launcher.LaunchFallback(ctx, source)
	}
	if err != nil {
		c.log.Warn("open app failed", logx.String("source", source), logx.Err(err))
		return false
	}
	c.engine.RecordTapOpen(ctx, source, cat)
	c.log.Debug("opened source app", logx.String("source", source), logx.String("method", method))
	return true
}

func (c *Core) publishSuppressed(ev event.Notification, reason string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{
		Topic: eventbus.TopicIslandSuppressed,
		Data: map[string]string{
			"source":   ev.Source,
			"category": string(ev.Category),
			"reason":   reason,
		},
	})
}
