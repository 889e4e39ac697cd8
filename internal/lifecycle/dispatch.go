package lifecycle

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/scheme"
	"github.com/bnema/vibeview/internal/views"
)

// effect runs after the controller lock is released
type effect func()

// Dispatch applies one engine event of tabID. Sink and history calls run
// after the controller lock is released.
func (c *Controller) Dispatch(tabID string, ev engine.Event) {
	offline := false
	if fail, ok := ev.(engine.FailLoad); ok && isFallbackFailure(fail) && !scheme.IsInternal(fail.URL) {
		offline = !c.online.Online(c.ctx)
	}

	c.mu.Lock()
	effects := c.handle(tabID, ev, offline)
	c.mu.Unlock()

	for _, fn := range effects {
		fn()
	}
}

func (c *Controller) handle(tabID string, ev engine.Event, offline bool) []effect {
	// popups are denied even for tabs that are already gone
	if e, ok := ev.(engine.NewWindowRequest); ok {
		e.Cancel()
		log.Info().Str("tab", tabID).Str("url", e.URL).Msg("Popup blocked")
		return nil
	}

	v, ok := c.registry.Get(tabID)
	if !ok {
		log.Debug().Str("tab", tabID).Msgf("Dropping %T for unknown tab", ev)
		return nil
	}

	switch e := ev.(type) {
	case engine.StartLoading:
		return []effect{func() { c.events.LoadingChanged(tabID, true) }}

	case engine.StopLoading:
		return []effect{func() { c.events.LoadingChanged(tabID, false) }}

	case engine.FinishLoad:
		return c.onFinishLoad(v, e)

	case engine.FailLoad:
		c.onFailLoad(v, e, offline)
		return nil

	case engine.Navigate:
		return c.onNavigate(v, e.URL)

	case engine.NavigateInPage:
		return c.onNavigate(v, e.URL)

	case engine.WillNavigate:
		c.onWillNavigate(v, e)
		return nil

	case engine.TitleUpdated:
		v.Title = e.Title
		return []effect{func() { c.events.TitleChanged(tabID, e.Title) }}

	case engine.FaviconUpdated:
		if len(e.Favicons) == 0 {
			return nil
		}
		favicon := e.Favicons[0]
		return []effect{func() { c.events.FaviconChanged(tabID, favicon) }}
	}
	return nil
}

func (c *Controller) onFinishLoad(v *views.View, e engine.FinishLoad) []effect {
	tabID := v.TabID
	if !c.isFallback(tabID, e.URL) {
		delete(c.lastFailed, tabID)
		delete(c.fallbacks, tabID)
	}

	url := c.logicalURL(tabID, e.URL)
	v.URL = url
	title := e.Title
	if title == "" && v.Surface != nil {
		title = v.Surface.Title()
	}
	v.Title = title

	effects := make([]effect, 0, 3)
	if !scheme.IsInternal(url) {
		item := models.HistoryItem{URL: url, Title: title, Timestamp: time.Now()}
		effects = append(effects, func() {
			if err := c.history.AddHistoryItem(item); err != nil {
				log.Warn().Err(err).Str("url", item.URL).Msg("Failed to record history")
			}
		})
	}
	effects = append(effects,
		func() { c.events.TitleChanged(tabID, title) },
		func() { c.events.URLChanged(tabID, url) },
	)
	return effects
}

func (c *Controller) onFailLoad(v *views.View, e engine.FailLoad, offline bool) {
	if !isFallbackFailure(e) {
		return
	}
	if c.isFallback(v.TabID, e.URL) {
		log.Error().Str("tab", v.TabID).Int("code", e.Code).Msg("Fallback page failed to load")
		return
	}

	failed := e.URL
	if failed == "" {
		failed = v.URL
	}
	c.lastFailed[v.TabID] = failed

	log.Warn().
		Str("tab", v.TabID).
		Str("url", failed).
		Int("code", e.Code).
		Str("description", e.Description).
		Bool("offline", offline).
		Msg("Page failed to load")

	if offline && !scheme.IsInternal(failed) {
		c.showOffline(v, failed)
		return
	}
	c.showError(v, failed, e.Description)
}

func (c *Controller) onNavigate(v *views.View, engineURL string) []effect {
	url := c.logicalURL(v.TabID, engineURL)
	v.URL = url
	tabID := v.TabID
	return []effect{func() { c.events.URLChanged(tabID, url) }}
}

func (c *Controller) onWillNavigate(v *views.View, e engine.WillNavigate) {
	switch pseudoURL(e.URL) {
	case scheme.RetryURL:
		e.Cancel()
		c.retry(v)
	case scheme.OfflineURL:
		e.Cancel()
		c.showOffline(v, c.lastFailed[v.TabID])
	}
}

// isFallbackFailure reports whether a load failure replaces the page. Only
// main-frame failures count and superseded navigations are not failures.
func isFallbackFailure(e engine.FailLoad) bool {
	return e.MainFrame && e.Code != engine.ErrorCodeAborted
}
