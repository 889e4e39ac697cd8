package lifecycle

import (
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vibeview/internal/connectivity"
	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/engine/enginetest"
	"github.com/bnema/vibeview/internal/mediator"
	"github.com/bnema/vibeview/internal/metrics"
	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/ruleset"
	"github.com/bnema/vibeview/internal/scheme"
	"github.com/bnema/vibeview/internal/views"
)

type historyRecorder struct {
	mu    sync.Mutex
	items []models.HistoryItem
}

func (h *historyRecorder) AddHistoryItem(item models.HistoryItem) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, item)
	return nil
}

func (h *historyRecorder) URLs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, it := range h.items {
		out = append(out, it.URL)
	}
	return out
}

type harness struct {
	c       *Controller
	host    *enginetest.Host
	sink    *enginetest.Sink
	history *historyRecorder
	rules   *ruleset.Store
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/rules/default.txt", []byte("||tracker.io^\n@@||ok.tracker.io^\n"), 0644))
	rules := ruleset.New(fs, models.RulesConfig{Dir: "/rules", DefaultFile: "default.txt", CustomFile: "custom.txt"})
	rules.Reload()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := &harness{
		host:    enginetest.NewHost(1200, 800),
		sink:    &enginetest.Sink{},
		history: &historyRecorder{},
		rules:   rules,
		metrics: m,
	}

	c, err := New(Deps{
		Host:         h.host,
		Mediator:     mediator.New(rules, mediator.WithMetrics(m)),
		Rules:        rules,
		History:      h.history,
		Events:       h.sink,
		Connectivity: connectivity.Fixed(online),
		Layout:       models.LayoutConfig{TitlebarHeight: 40, TabbarHeight: 45},
		ZoomStep:     0.5,
		Metrics:      m,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func decodePage(t *testing.T, dataURL string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(dataURL, dataURLPrefix), "expected a fallback page, got %q", dataURL)
	html, err := url.PathUnescape(strings.TrimPrefix(dataURL, dataURLPrefix))
	require.NoError(t, err)
	return html
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestCreateViewInstallsMediatorOncePerSession(t *testing.T) {
	h := newHarness(t, true)

	v, err := h.c.CreateView("a", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", v.URL)
	assert.True(t, v.Active)

	_, err = h.c.CreateView("b", "example.org")
	require.NoError(t, err)

	session := h.host.SharedSession()
	assert.Len(t, session.Before, 1)
	assert.Len(t, session.OnHeaders, 1)

	assert.True(t, session.Request(engine.Request{URL: "https://x.tracker.io/a.js", ResourceType: "script"}))
	assert.False(t, session.Request(engine.Request{URL: "https://ok.tracker.io/a.js", ResourceType: "script"}))
	assert.Equal(t, int64(1), h.c.DataSaverStats().BlockedRequests)

	_, err = h.c.CreateView("a", "example.net")
	assert.ErrorIs(t, err, views.ErrTabExists)
}

func TestFallbackOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		online   bool
		failURL  string
		wantPage string
		wantURL  string
	}{
		{name: "offline network failure", online: false, failURL: "https://broken.test/", wantPage: "You are offline", wantURL: scheme.OfflineURL},
		{name: "online network failure", online: true, failURL: "https://broken.test/", wantPage: "Page failed to load", wantURL: "https://broken.test/"},
		{name: "internal url while offline", online: false, failURL: "file:///missing.html", wantPage: "Page failed to load", wantURL: "file:///missing.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.online)
			_, err := h.c.CreateView("t", tt.failURL)
			require.NoError(t, err)
			s := h.host.Surface("t")

			s.Emit(engine.FailLoad{Code: -105, Description: "ERR_NAME_NOT_RESOLVED", URL: tt.failURL, MainFrame: true})

			page := s.LastLoaded()
			assert.Contains(t, decodePage(t, page), tt.wantPage)
			got, err := h.c.URL("t")
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got)

			// the fallback page finishing does not forget the failure
			s.Emit(engine.FinishLoad{URL: page, Title: "fallback"})
			ev := s.Emit(engine.NewWillNavigate(scheme.RetryURL)).(engine.WillNavigate)
			assert.True(t, ev.Canceled())
			assert.Equal(t, tt.failURL, s.LastLoaded())
			assert.Empty(t, h.history.URLs())
		})
	}
}

func TestErrorPageOffersRetryAndOffline(t *testing.T) {
	page, err := ErrorPage("https://broken.test/?q=<script>", "ERR_FAILED")
	require.NoError(t, err)
	html := decodePage(t, page)

	assert.Contains(t, html, `href="vibebrowser://retry"`)
	assert.Contains(t, html, `href="vibebrowser://offline"`)
	assert.Contains(t, html, "ERR_FAILED")
	assert.Contains(t, html, "&lt;script&gt;")

	offline, err := OfflinePage("")
	require.NoError(t, err)
	html = decodePage(t, offline)
	assert.Contains(t, html, `href="vibebrowser://retry"`)
	assert.Contains(t, html, `id="notes"`)
}

func TestIgnoredFailures(t *testing.T) {
	tests := []struct {
		name string
		ev   engine.FailLoad
	}{
		{name: "aborted", ev: engine.FailLoad{Code: engine.ErrorCodeAborted, URL: "https://example.com/", MainFrame: true}},
		{name: "subframe", ev: engine.FailLoad{Code: -105, URL: "https://ads.example.com/frame", MainFrame: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			_, err := h.c.CreateView("t", "example.com")
			require.NoError(t, err)
			s := h.host.Surface("t")

			s.Emit(tt.ev)
			assert.Equal(t, []string{"https://example.com"}, s.Loaded)
			assert.Zero(t, testutil.ToFloat64(h.metrics.LoadFailures.WithLabelValues("offline")))
		})
	}
}

func TestFinishLoad(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)
	s := h.host.Surface("t")

	s.Emit(engine.FailLoad{Code: -2, URL: "https://example.com/", MainFrame: true})
	s.Emit(engine.FinishLoad{URL: "https://example.com/", Title: "Example"})

	assert.Equal(t, []string{"https://example.com/"}, h.history.URLs())
	assert.Equal(t, []string{"Example"}, h.sink.Titles)
	assert.Equal(t, []string{"https://example.com/"}, h.sink.URLs)

	title, err := h.c.Title("t")
	require.NoError(t, err)
	assert.Equal(t, "Example", title)

	// retry after a successful load uses the current URL
	require.NoError(t, h.c.Navigate("t", scheme.RetryURL))
	assert.Equal(t, "https://example.com/", s.LastLoaded())

	s.Emit(engine.FinishLoad{URL: "about:blank"})
	assert.Len(t, h.history.URLs(), 1, "internal pages stay out of history")
}

func TestOfflinePageKeepsLogicalURL(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.c.CreateView("t", "https://broken.test/")
	require.NoError(t, err)
	s := h.host.Surface("t")

	s.Emit(engine.FailLoad{Code: -106, URL: "https://broken.test/", MainFrame: true})
	page := s.LastLoaded()
	s.Emit(engine.Navigate{URL: page})
	s.Emit(engine.FinishLoad{URL: page, Title: "You are offline"})

	got, err := h.c.URL("t")
	require.NoError(t, err)
	assert.Equal(t, scheme.OfflineURL, got)
	assert.Equal(t, []string{scheme.OfflineURL, scheme.OfflineURL}, h.sink.URLs)
	assert.Empty(t, h.history.URLs())
	assert.Empty(t, h.c.TabsForStorage())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.LoadFailures.WithLabelValues("offline")))

	// reload on a fallback page retries the failed URL
	require.NoError(t, h.c.Reload("t"))
	assert.Equal(t, "https://broken.test/", s.LastLoaded())
	assert.Zero(t, s.Reloads)
}

func TestManualOfflinePage(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)
	s := h.host.Surface("t")

	ev := s.Emit(engine.NewWillNavigate(scheme.OfflineURL + "/")).(engine.WillNavigate)
	assert.True(t, ev.Canceled())
	assert.Contains(t, decodePage(t, s.LastLoaded()), "You are offline")

	got, _ := h.c.URL("t")
	assert.Equal(t, scheme.OfflineURL, got)

	// typed into the address bar
	_, err = h.c.CreateView("u", "example.com")
	require.NoError(t, err)
	require.NoError(t, h.c.Navigate("u", "vibebrowser://offline"))
	assert.Contains(t, decodePage(t, h.host.Surface("u").LastLoaded()), "You are offline")

	ordinary := s.Emit(engine.NewWillNavigate("https://example.org/")).(engine.WillNavigate)
	assert.False(t, ordinary.Canceled())
}

func TestNewWindowIsDenied(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)

	ev := h.host.Surface("t").Emit(engine.NewWindow("https://popup.example.com/")).(engine.NewWindowRequest)
	assert.True(t, ev.Canceled())
	assert.Len(t, h.host.Surfaces, 1)

	orphan := engine.NewWindow("https://popup.example.com/")
	h.c.Dispatch("gone", orphan)
	assert.True(t, orphan.Canceled())
}

func TestLoadingTitleFaviconEvents(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)
	s := h.host.Surface("t")

	s.Emit(engine.StartLoading{})
	s.Emit(engine.TitleUpdated{Title: "Hello"})
	s.Emit(engine.FaviconUpdated{Favicons: []string{"https://example.com/a.ico", "https://example.com/b.ico"}})
	s.Emit(engine.FaviconUpdated{})
	s.Emit(engine.NavigateInPage{URL: "https://example.com/#top"})
	s.Emit(engine.StopLoading{})

	assert.Equal(t, []bool{true, false}, h.sink.Loading)
	assert.Equal(t, []string{"Hello"}, h.sink.Titles)
	assert.Equal(t, []string{"https://example.com/a.ico"}, h.sink.Favicons)
	assert.Equal(t, []string{"https://example.com/#top"}, h.sink.URLs)

	got, _ := h.c.URL("t")
	assert.Equal(t, "https://example.com/#top", got)
}

func TestNavigation(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)
	s := h.host.Surface("t")

	require.NoError(t, h.c.Navigate("t", "  golang.org/doc "))
	assert.Equal(t, "https://golang.org/doc", s.LastLoaded())
	got, _ := h.c.URL("t")
	assert.Equal(t, "https://golang.org/doc", got)

	require.NoError(t, h.c.GoBack("t"))
	require.NoError(t, h.c.GoForward("t"))
	assert.Zero(t, s.Backs)
	assert.Zero(t, s.Forwards)

	s.CanBack, s.CanForward = true, true
	require.NoError(t, h.c.GoBack("t"))
	require.NoError(t, h.c.GoForward("t"))
	require.NoError(t, h.c.Reload("t"))
	assert.Equal(t, 1, s.Backs)
	assert.Equal(t, 1, s.Forwards)
	assert.Equal(t, 1, s.Reloads)

	assert.ErrorIs(t, h.c.Navigate("missing", "example.com"), views.ErrUnknownTab)
	assert.ErrorIs(t, h.c.GoBack("missing"), views.ErrUnknownTab)
}

func TestZoom(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)

	require.NoError(t, h.c.ZoomIn("t"))
	require.NoError(t, h.c.ZoomIn("t"))
	level, err := h.c.ZoomLevel("t")
	require.NoError(t, err)
	assert.Equal(t, 1.0, level)

	require.NoError(t, h.c.ZoomOut("t"))
	level, _ = h.c.ZoomLevel("t")
	assert.Equal(t, 0.5, level)

	require.NoError(t, h.c.ZoomReset("t"))
	level, _ = h.c.ZoomLevel("t")
	assert.Zero(t, level)

	_, err = h.c.ZoomLevel("missing")
	assert.ErrorIs(t, err, views.ErrUnknownTab)
}

func TestFindInPage(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)
	s := h.host.Surface("t")

	require.NoError(t, h.c.FindInPage("t", "", engine.FindOptions{}))
	require.NoError(t, h.c.FindInPage("t", "   ", engine.FindOptions{}))
	require.NoError(t, h.c.FindInPage("t", "gopher", engine.FindOptions{Forward: true}))
	require.NoError(t, h.c.StopFindInPage("t"))

	assert.Equal(t, []string{"gopher"}, s.Finds)
	assert.Equal(t, 1, s.FindStops)
}

func TestTabsForStorage(t *testing.T) {
	h := newHarness(t, true)
	for id, u := range map[string]string{
		"web":   "example.com",
		"blank": "about:blank",
		"data":  "data:text/html,hi",
		"app":   "vibebrowser://settings",
	} {
		_, err := h.c.CreateView(id, u)
		require.NoError(t, err)
	}
	h.host.Surface("web").Emit(engine.FinishLoad{URL: "https://example.com/", Title: "Example"})

	assert.Equal(t, []models.TabSnapshot{{ID: "web", URL: "https://example.com/", Title: "Example"}}, h.c.TabsForStorage())
}

func TestSurfaceFailureDegrades(t *testing.T) {
	h := newHarness(t, true)
	h.host.FailTabs["t"] = true

	v, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)
	assert.Nil(t, v.Surface)

	assert.NoError(t, h.c.ZoomIn("t"))
	assert.NoError(t, h.c.Reload("t"))
	level, err := h.c.ZoomLevel("t")
	assert.NoError(t, err)
	assert.Zero(t, level)
	assert.Empty(t, h.c.TabsForStorage()[0].Title)

	// a later navigation retries surface creation
	delete(h.host.FailTabs, "t")
	require.NoError(t, h.c.Navigate("t", "example.org"))
	s := h.host.Surface("t")
	require.NotNil(t, s)
	assert.Equal(t, []string{"https://example.org"}, s.Loaded)
	assert.True(t, h.host.IsAttached(s))
	assert.Len(t, h.host.SharedSession().Before, 1)
}

func TestActivateRemoveAndLayout(t *testing.T) {
	h := newHarness(t, true)
	for _, id := range []string{"a", "b"} {
		_, err := h.c.CreateView(id, "example.com")
		require.NoError(t, err)
	}

	require.NoError(t, h.c.Activate("b"))
	active, ok := h.c.ActiveTab()
	require.True(t, ok)
	assert.Equal(t, "b", active)

	h.c.UpdateContainerHeight(500)
	assert.Equal(t, models.Rect{X: 0, Y: 85, Width: 1200, Height: 415}, h.host.Surface("a").Bounds)
	assert.Equal(t, models.Rect{X: 0, Y: 85, Width: 1200, Height: 415}, h.host.Surface("b").Bounds)

	require.NoError(t, h.c.Remove("b"))
	active, _ = h.c.ActiveTab()
	assert.Equal(t, "a", active)
	assert.ErrorIs(t, h.c.Remove("b"), views.ErrUnknownTab)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ViewsOpen))

	h.c.Close()
	_, ok = h.c.ActiveTab()
	assert.False(t, ok)
	assert.True(t, h.host.Surface("a").Closed)
}

func TestRuleOperations(t *testing.T) {
	h := newHarness(t, true)

	assert.True(t, h.c.ShouldBlockURL("https://x.tracker.io/"))
	assert.False(t, h.c.ShouldBlockURL("https://newtracker.com/"))

	require.NoError(t, h.c.AddCustomRule("||newtracker.com^"))
	assert.True(t, h.c.ShouldBlockURL("https://newtracker.com/"))
	assert.Equal(t, 2, h.c.RuleStats().BlockRules)

	h.c.SetAdblockEnabled(false)
	assert.False(t, h.c.ShouldBlockURL("https://newtracker.com/"))
	h.c.SetDataSaverEnabled(true)
	assert.True(t, h.c.ShouldBlockURL("https://newtracker.com/"))

	report := h.c.ReloadRules()
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, h.c.RuleStats().BlockRules)
	assert.Zero(t, h.c.DataSaverStats().BlockedRequests, "probing never counts")
}

func TestConcurrentEventsAndOperations(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.c.CreateView("t", "example.com")
	require.NoError(t, err)
	s := h.host.Surface("t")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Emit(engine.StartLoading{})
				s.Emit(engine.FinishLoad{URL: "https://example.com/", Title: "x"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.c.ZoomIn("t")
				_ = h.c.TabsForStorage()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, h.history.URLs(), 400)
}
