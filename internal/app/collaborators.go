package app

import (
	"context"
	"errors"
	"sync"

	"hyperisle/internal/config"
	"hyperisle/internal/core"
	"hyperisle/internal/eventbus"
	logx "hyperisle/pkg/logx"
)

// configFilter is the SelectionFilter backed by the sources block of
// the config file, swappable on hot reload.
type configFilter struct {
	mu      sync.RWMutex
	sources map[string]config.SourceConfig
}

func newConfigFilter(sources map[string]config.SourceConfig) *configFilter {
	return &configFilter{sources: sources}
}

func (f *configFilter) Apply(sources map[string]config.SourceConfig) {
	f.mu.Lock()
	f.sources = sources
	f.mu.Unlock()
}

func (f *configFilter) IsSourceSelected(source string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sources[source]
	return ok && s.Selected
}

// configPerms reports the overlay permission modeled in config.
type configPerms struct {
	mu      sync.RWMutex
	granted bool
}

func newConfigPerms(granted bool) *configPerms { return &configPerms{granted: granted} }

func (p *configPerms) Apply(granted bool) {
	p.mu.Lock()
	p.granted = granted
	p.mu.Unlock()
}

func (p *configPerms) HasOverlayPermission() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.granted
}

// logOverlay is the default OverlayRequester: it logs render requests
// and mirrors them onto the bus. The real renderer replaces it where
// a display exists.
type logOverlay struct {
	log logx.Logger
	bus eventbus.Bus
}

func (o *logOverlay) EnsureOverlayStarted() bool { return true }

func (o *logOverlay) EmitRenderRequest(m core.RenderModel) bool {
	o.log.Info("render",
		logx.String("source", m.Source),
		logx.String("style", string(m.Style)),
		logx.String("category", string(m.Category)),
		logx.String("instance", m.InstanceKey))
	return true
}

func (o *logOverlay) EmitDismiss(instanceKey string) {
	o.log.Info("dismiss", logx.String("instance", instanceKey))
}

func (o *logOverlay) EmitDismissAll() {
	o.log.Info("dismiss all")
}

// noLauncher always fails: the daemon has no app launching surface.
// Both chain links error so OpenSourceApp reports false cleanly.
type noLauncher struct{}

var errNoLauncher = errors.New("app launching not available")

func (noLauncher) Launch(context.Context, string) error         { return errNoLauncher }
func (noLauncher) LaunchFallback(context.Context, string) error { return errNoLauncher }

// busLogPublisher adapts the event bus to logx.Publisher.
type busLogPublisher struct{ bus eventbus.Bus }

func (p busLogPublisher) PublishLog(level, msg string, fields map[string]string) {
	if p.bus == nil {
		return
	}
	data := map[string]any{"level": level, "msg": msg}
	for k, v := range fields {
		data[k] = v
	}
	p.bus.Publish(eventbus.Event{Topic: eventbus.TopicLog, Data: data})
}

var (
	_ core.SelectionFilter  = (*configFilter)(nil)
	_ core.PermissionQuery  = (*configPerms)(nil)
	_ core.OverlayRequester = (*logOverlay)(nil)
	_ core.AppLauncher      = noLauncher{}
)
