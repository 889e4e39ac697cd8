package views

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/metrics"
	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/scheme"
)

var (
	// ErrUnknownTab is returned for a tab id that is not registered
	ErrUnknownTab = errors.New("unknown tab")
	// ErrTabExists is returned when creating a view for a registered tab id
	ErrTabExists = errors.New("tab already exists")
)

// View is one rendering surface bound to a tab. Surface is nil when the
// engine failed to create it.
type View struct {
	TabID   string
	Surface engine.Surface
	URL     string
	Title   string
	Active  bool
}

// Registry owns the live views of one window. It is not safe for concurrent
// use; the lifecycle controller serializes access.
type Registry struct {
	host    engine.Host
	layout  models.LayoutConfig
	metrics *metrics.Metrics

	containerHeight int
	views           map[string]*View
	order           []string
}

// NewRegistry creates an empty registry for host
func NewRegistry(host engine.Host, layout models.LayoutConfig, m *metrics.Metrics) *Registry {
	return &Registry{
		host:    host,
		layout:  layout,
		metrics: m,
		views:   make(map[string]*View),
	}
}

// ComputeBounds places a surface below the titlebar and tab strip, full width
func (r *Registry) ComputeBounds(size models.Size) models.Rect {
	inset := r.layout.TopInset()
	height := size.Height - inset
	if height < 0 {
		height = 0
	}
	return models.Rect{X: 0, Y: inset, Width: size.Width, Height: height}
}

// Bounds computes the bounds for the host's current content area
func (r *Registry) Bounds() models.Rect {
	size := r.host.ContentSize()
	if r.containerHeight > 0 {
		size.Height = r.containerHeight
	}
	return r.ComputeBounds(size)
}

// Create registers a view for tabID and starts loading url. A surface
// creation failure is logged and the view is still registered. The first
// view of an empty registry becomes active.
func (r *Registry) Create(tabID, url string, handler engine.EventHandler) (*View, error) {
	if _, ok := r.views[tabID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTabExists, tabID)
	}

	normalized := scheme.Normalize(url)
	v := &View{TabID: tabID, URL: normalized}
	r.views[tabID] = v
	r.order = append(r.order, tabID)
	r.updateGauge()

	surface, err := r.host.NewSurface(tabID, handler)
	if err != nil {
		log.Error().Err(err).Str("tab", tabID).Msg("Failed to create rendering surface")
	} else {
		v.Surface = surface
		surface.SetBounds(r.Bounds())
		if err := surface.LoadURL(normalized); err != nil {
			log.Error().Err(err).Str("tab", tabID).Str("url", normalized).Msg("Failed to load URL in new view")
		}
	}

	if r.active() == nil {
		r.activate(v)
	}
	return v, nil
}

// EnsureSurface retries surface creation for a view registered without one
func (r *Registry) EnsureSurface(v *View, handler engine.EventHandler) (engine.Surface, error) {
	if v.Surface != nil {
		return v.Surface, nil
	}
	surface, err := r.host.NewSurface(v.TabID, handler)
	if err != nil {
		return nil, fmt.Errorf("create surface for %s: %w", v.TabID, err)
	}
	v.Surface = surface
	surface.SetBounds(r.Bounds())
	if v.Active {
		r.host.Attach(surface)
		surface.Focus()
	}
	return surface, nil
}

// Activate shows the view for tabID and detaches every other view
func (r *Registry) Activate(tabID string) error {
	v, ok := r.views[tabID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTab, tabID)
	}
	r.activate(v)
	return nil
}

func (r *Registry) activate(target *View) {
	bounds := r.Bounds()
	for _, id := range r.order {
		v := r.views[id]
		if v == target {
			continue
		}
		v.Active = false
		if v.Surface != nil && r.host.IsAttached(v.Surface) {
			r.host.Detach(v.Surface)
		}
	}

	target.Active = true
	if target.Surface == nil {
		return
	}
	if !r.host.IsAttached(target.Surface) {
		r.host.Attach(target.Surface)
	}
	target.Surface.SetBounds(bounds)
	target.Surface.Focus()
}

// Remove detaches and disposes the view for tabID. When the active view is
// removed the most recently created remaining view becomes active.
func (r *Registry) Remove(tabID string) error {
	v, ok := r.views[tabID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTab, tabID)
	}

	if v.Surface != nil {
		if r.host.IsAttached(v.Surface) {
			r.host.Detach(v.Surface)
		}
		if err := v.Surface.Close(); err != nil {
			log.Warn().Err(err).Str("tab", tabID).Msg("Failed to close rendering surface")
		}
	}

	delete(r.views, tabID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == tabID })
	r.updateGauge()

	if v.Active && len(r.order) > 0 {
		r.activate(r.views[r.order[len(r.order)-1]])
	}
	return nil
}

// Get returns the view for tabID
func (r *Registry) Get(tabID string) (*View, bool) {
	v, ok := r.views[tabID]
	return v, ok
}

// All returns the views in creation order
func (r *Registry) All() []*View {
	out := make([]*View, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.views[id])
	}
	return out
}

// Len returns the number of registered views
func (r *Registry) Len() int { return len(r.views) }

// Active returns the active view, if any
func (r *Registry) Active() (*View, bool) {
	v := r.active()
	return v, v != nil
}

func (r *Registry) active() *View {
	for _, id := range r.order {
		if v := r.views[id]; v.Active {
			return v
		}
	}
	return nil
}

// SetContainerHeight overrides the content height and re-applies bounds to
// every view. Zero reverts to the host's content size.
func (r *Registry) SetContainerHeight(height int) {
	r.containerHeight = height
	bounds := r.Bounds()
	for _, id := range r.order {
		if v := r.views[id]; v.Surface != nil {
			v.Surface.SetBounds(bounds)
		}
	}
}

func (r *Registry) updateGauge() {
	if r.metrics != nil {
		r.metrics.ViewsOpen.Set(float64(len(r.views)))
	}
}
