package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/connectivity"
	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/mediator"
	"github.com/bnema/vibeview/internal/metrics"
	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/ruleset"
	"github.com/bnema/vibeview/internal/scheme"
	"github.com/bnema/vibeview/internal/views"
)

const defaultZoomStep = 0.5

// RuleStore is the editable rule set the mediator reads from
type RuleStore interface {
	Reload() ruleset.LoadReport
	AddRule(raw string) error
	Stats() ruleset.Stats
}

// Deps are the collaborators of a Controller. Host, Mediator and Rules are
// required.
type Deps struct {
	Host         engine.Host
	Mediator     *mediator.Mediator
	Rules        RuleStore
	History      engine.HistorySink
	Events       engine.EventSink
	Connectivity connectivity.Checker
	Layout       models.LayoutConfig
	ZoomStep     float64
	Metrics      *metrics.Metrics
}

// fallbackPage is the last fallback document rendered into a tab
type fallbackPage struct {
	url     string
	offline bool
}

// Controller owns the views of one window, reacts to their engine events
// and applies request mediation to their sessions. Safe for concurrent use.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	mediator *mediator.Mediator
	rules    RuleStore
	history  engine.HistorySink
	events   engine.EventSink
	online   connectivity.Checker
	zoomStep float64
	metrics  *metrics.Metrics

	mu         sync.Mutex
	registry   *views.Registry
	lastFailed map[string]string
	fallbacks  map[string]fallbackPage
}

// New creates a controller from its collaborators
func New(deps Deps) (*Controller, error) {
	if deps.Host == nil || deps.Mediator == nil || deps.Rules == nil {
		return nil, errors.New("lifecycle: host, mediator and rules are required")
	}
	if deps.History == nil {
		deps.History = nopHistory{}
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	if deps.Connectivity == nil {
		deps.Connectivity = connectivity.Fixed(true)
	}
	if deps.ZoomStep <= 0 {
		deps.ZoomStep = defaultZoomStep
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ctx:        ctx,
		cancel:     cancel,
		mediator:   deps.Mediator,
		rules:      deps.Rules,
		history:    deps.History,
		events:     deps.Events,
		online:     deps.Connectivity,
		zoomStep:   deps.ZoomStep,
		metrics:    deps.Metrics,
		registry:   views.NewRegistry(deps.Host, deps.Layout, deps.Metrics),
		lastFailed: make(map[string]string),
		fallbacks:  make(map[string]fallbackPage),
	}, nil
}

// CreateView registers a view for tabID and starts loading url. The
// returned view is a snapshot.
func (c *Controller) CreateView(tabID, url string) (views.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.registry.Create(tabID, url, c.handlerFor(tabID))
	if err != nil {
		return views.View{}, err
	}
	if v.Surface != nil {
		c.mediator.Install(v.Surface.Session())
	}
	log.Debug().Str("tab", tabID).Str("url", v.URL).Msg("View created")
	return *v, nil
}

// Activate shows the view for tabID
func (c *Controller) Activate(tabID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Activate(tabID)
}

// Remove disposes the view for tabID
func (c *Controller) Remove(tabID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.Remove(tabID); err != nil {
		return err
	}
	delete(c.lastFailed, tabID)
	delete(c.fallbacks, tabID)
	return nil
}

// Navigate loads url in the view for tabID. Load failures are rendered as
// fallback pages, never returned.
func (c *Controller) Navigate(tabID, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.view(tabID)
	if err != nil {
		return err
	}

	target := scheme.Normalize(url)
	switch pseudoURL(target) {
	case scheme.RetryURL:
		c.retry(v)
	case scheme.OfflineURL:
		c.showOffline(v, c.lastFailed[tabID])
	default:
		c.load(v, target)
	}
	return nil
}

// GoBack navigates back when the surface can
func (c *Controller) GoBack(tabID string) error {
	return c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		if s.CanGoBack() {
			s.GoBack()
		}
	})
}

// GoForward navigates forward when the surface can
func (c *Controller) GoForward(tabID string) error {
	return c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		if s.CanGoForward() {
			s.GoForward()
		}
	})
}

// Reload reloads the page. A tab showing a fallback page retries the failed
// URL instead.
func (c *Controller) Reload(tabID string) error {
	return c.withSurface(tabID, func(v *views.View, s engine.Surface) {
		if _, ok := c.fallbacks[tabID]; ok {
			c.retry(v)
			return
		}
		s.Reload()
	})
}

func (c *Controller) ZoomIn(tabID string) error {
	return c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		s.SetZoomLevel(s.ZoomLevel() + c.zoomStep)
	})
}

func (c *Controller) ZoomOut(tabID string) error {
	return c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		s.SetZoomLevel(s.ZoomLevel() - c.zoomStep)
	})
}

// ZoomReset restores the engine default zoom level
func (c *Controller) ZoomReset(tabID string) error {
	return c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		s.SetZoomLevel(0)
	})
}

// ZoomLevel returns the zoom level of tabID, 0 without a surface
func (c *Controller) ZoomLevel(tabID string) (float64, error) {
	var level float64
	err := c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		level = s.ZoomLevel()
	})
	return level, err
}

// FindInPage highlights text in the page. Blank text is ignored.
func (c *Controller) FindInPage(tabID, text string, opts engine.FindOptions) error {
	return c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		if strings.TrimSpace(text) == "" {
			return
		}
		s.FindInPage(text, opts)
	})
}

func (c *Controller) StopFindInPage(tabID string) error {
	return c.withSurface(tabID, func(_ *views.View, s engine.Surface) {
		s.StopFindInPage()
	})
}

func (c *Controller) SetAdblockEnabled(enabled bool) {
	c.mediator.SetAdblockEnabled(enabled)
	log.Info().Bool("enabled", enabled).Msg("Adblock toggled")
}

func (c *Controller) SetDataSaverEnabled(enabled bool) {
	c.mediator.SetDataSaverEnabled(enabled)
	log.Info().Bool("enabled", enabled).Msg("Data saver toggled")
}

// DataSaverStats returns a copy of the mediation counters
func (c *Controller) DataSaverStats() models.DataSaverStats {
	return c.mediator.Stats()
}

// TabsForStorage lists the open tabs worth restoring, skipping internal and
// generated pages.
func (c *Controller) TabsForStorage() []models.TabSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tabs []models.TabSnapshot
	for _, v := range c.registry.All() {
		if v.URL == "" || scheme.IsInternal(v.URL) {
			continue
		}
		tabs = append(tabs, models.TabSnapshot{ID: v.TabID, URL: v.URL, Title: v.Title})
	}
	return tabs
}

// UpdateContainerHeight re-lays out every view for a new content height
func (c *Controller) UpdateContainerHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.SetContainerHeight(height)
}

// URL returns the logical URL of tabID
func (c *Controller) URL(tabID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.view(tabID)
	if err != nil {
		return "", err
	}
	return v.URL, nil
}

// Title returns the last known title of tabID
func (c *Controller) Title(tabID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.view(tabID)
	if err != nil {
		return "", err
	}
	if v.Title == "" && v.Surface != nil {
		return v.Surface.Title(), nil
	}
	return v.Title, nil
}

// ActiveTab returns the id of the active view, if any
func (c *Controller) ActiveTab() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.registry.Active()
	if !ok {
		return "", false
	}
	return v.TabID, true
}

func (c *Controller) RuleStats() ruleset.Stats { return c.rules.Stats() }

// ReloadRules rebuilds the rule set from disk
func (c *Controller) ReloadRules() ruleset.LoadReport {
	report := c.rules.Reload()
	log.Info().Int("files", len(report.Files)).Int("rules", report.Convert.Converted).Msg("Adblock rules reloaded")
	return report
}

// AddCustomRule compiles raw into the live rule set and persists it
func (c *Controller) AddCustomRule(raw string) error {
	if err := c.rules.AddRule(raw); err != nil {
		return fmt.Errorf("add custom rule: %w", err)
	}
	return nil
}

// ShouldBlockURL reports how url would be treated without counting it
func (c *Controller) ShouldBlockURL(url string) bool {
	return c.mediator.Probe(url)
}

// Close disposes every view
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.registry.All() {
		if err := c.registry.Remove(v.TabID); err != nil {
			log.Warn().Err(err).Str("tab", v.TabID).Msg("Failed to remove view")
		}
	}
	clear(c.lastFailed)
	clear(c.fallbacks)
}

func (c *Controller) handlerFor(tabID string) engine.EventHandler {
	return func(ev engine.Event) { c.Dispatch(tabID, ev) }
}

func (c *Controller) view(tabID string) (*views.View, error) {
	v, ok := c.registry.Get(tabID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", views.ErrUnknownTab, tabID)
	}
	return v, nil
}

// withSurface runs fn under the lock. Views without a surface are skipped.
func (c *Controller) withSurface(tabID string, fn func(*views.View, engine.Surface)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.view(tabID)
	if err != nil {
		return err
	}
	if v.Surface == nil {
		log.Debug().Str("tab", tabID).Msg("View has no surface, skipping")
		return nil
	}
	fn(v, v.Surface)
	return nil
}

// surfaceFor returns the view's surface, creating it when an earlier
// attempt failed.
func (c *Controller) surfaceFor(v *views.View) engine.Surface {
	if v.Surface != nil {
		return v.Surface
	}
	s, err := c.registry.EnsureSurface(v, c.handlerFor(v.TabID))
	if err != nil {
		log.Error().Err(err).Str("tab", v.TabID).Msg("Rendering surface still unavailable")
		return nil
	}
	c.mediator.Install(s.Session())
	return s
}

func (c *Controller) load(v *views.View, url string) {
	v.URL = url
	s := c.surfaceFor(v)
	if s == nil {
		return
	}
	if err := s.LoadURL(url); err != nil {
		log.Error().Err(err).Str("tab", v.TabID).Str("url", url).Msg("Failed to start navigation")
	}
}

func (c *Controller) retry(v *views.View) {
	target := c.lastFailed[v.TabID]
	if target == "" {
		target = v.URL
	}
	if target == "" || scheme.IsSynthetic(target) {
		log.Debug().Str("tab", v.TabID).Msg("Nothing to retry")
		return
	}
	log.Info().Str("tab", v.TabID).Str("url", target).Msg("Retrying navigation")
	c.load(v, target)
}

func (c *Controller) showOffline(v *views.View, failedURL string) {
	page, err := OfflinePage(failedURL)
	if err != nil {
		log.Error().Err(err).Str("tab", v.TabID).Msg("Failed to render offline page")
		return
	}
	c.fallbacks[v.TabID] = fallbackPage{url: page, offline: true}
	c.recordFallback("offline")

	c.load(v, page)
	v.URL = scheme.OfflineURL
	log.Info().Str("tab", v.TabID).Str("failed_url", failedURL).Msg("Offline page shown")
}

func (c *Controller) showError(v *views.View, failedURL, description string) {
	page, err := ErrorPage(failedURL, description)
	if err != nil {
		log.Error().Err(err).Str("tab", v.TabID).Msg("Failed to render error page")
		return
	}
	c.fallbacks[v.TabID] = fallbackPage{url: page}
	c.recordFallback("error")

	// the engine reports the page's own URL once it has loaded
	c.load(v, page)
	v.URL = failedURL
}

func (c *Controller) recordFallback(kind string) {
	if c.metrics != nil {
		c.metrics.LoadFailures.WithLabelValues(kind).Inc()
	}
}

// logicalURL maps an engine URL onto the URL shown to the user
func (c *Controller) logicalURL(tabID, engineURL string) string {
	if fb, ok := c.fallbacks[tabID]; ok && fb.offline && fb.url == engineURL {
		return scheme.OfflineURL
	}
	return engineURL
}

func (c *Controller) isFallback(tabID, engineURL string) bool {
	fb, ok := c.fallbacks[tabID]
	return ok && fb.url == engineURL
}

// pseudoURL lowercases u and drops trailing slashes so app-scheme URLs can
// be compared with the scheme constants.
func pseudoURL(u string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(u)), "/")
}

type nopHistory struct{}

func (nopHistory) AddHistoryItem(models.HistoryItem) error { return nil }

type nopEvents struct{}

func (nopEvents) LoadingChanged(string, bool)   {}
func (nopEvents) TitleChanged(string, string)   {}
func (nopEvents) URLChanged(string, string)     {}
func (nopEvents) FaviconChanged(string, string) {}
