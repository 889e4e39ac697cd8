package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/models"
)

const (
	commandTimeout = 5 * time.Second
	zoomBase       = 1.2
)

var ErrSurfaceClosed = errors.New("surface closed")

const faviconJS = `Array.from(document.querySelectorAll('link[rel~="icon"]')).map(l => l.href)`

// Surface is one page target inside the shared browser
type Surface struct {
	tabID    string
	targetID target.ID
	ctx      context.Context
	cancel   context.CancelFunc
	session  *Session
	host     *Host
	tracker  *tracker
	handler  engine.EventHandler

	queue  []queued
	qmu    sync.Mutex
	signal chan struct{}

	commands []command
	cmu      sync.Mutex
	csignal  chan struct{}

	mu         sync.RWMutex
	url        string
	title      string
	zoom       float64
	historyIdx int64
	historyLen int
	closed     bool
}

type queued struct {
	ev    engine.Event
	after func()
}

// command is a navigation-affecting protocol call
type command struct {
	op  string
	run func()
}

func newSurface(h *Host, tabID string, handler engine.EventHandler) (*Surface, error) {
	ctx, cancel := chromedp.NewContext(h.browserCtx)

	s := &Surface{
		tabID:   tabID,
		ctx:     ctx,
		cancel:  cancel,
		session: h.session,
		host:    h,
		handler: handler,
		signal:  make(chan struct{}, 1),
		csignal: make(chan struct{}, 1),
	}

	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open target for %s: %w", tabID, err)
	}
	s.targetID = chromedp.FromContext(ctx).Target.TargetID
	s.tracker = newTracker(cdproto.FrameID(s.targetID))

	chromedp.ListenTarget(ctx, s.onTargetEvent)

	err := chromedp.Run(ctx,
		network.Enable(),
		page.Enable(),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("enable domains for %s: %w", tabID, err)
	}

	go s.pump()
	go s.commandLoop()
	return s, nil
}

// onTargetEvent runs on the chromedp listener goroutine and must not block
// on protocol calls.
func (s *Surface) onTargetEvent(ev any) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		go s.resolveRequest(e)
		return
	case *network.EventResponseReceived:
		s.session.observe(e.Response)
		return
	}

	events, loaded := s.tracker.translate(ev)
	for _, out := range events {
		switch e := out.(type) {
		case engine.Navigate:
			s.setURL(e.URL)
			go s.refreshHistory()
		case engine.NavigateInPage:
			s.setURL(e.URL)
			go s.refreshHistory()
		case engine.WillNavigate:
			// stop is queued before anything the handler loads next
			e.OnCancel(func() { s.stopLoading() })
		}
		s.enqueue(out, nil)
	}
	if loaded {
		go s.finishLoad()
	}
}

func (s *Surface) resolveRequest(e *fetch.EventRequestPaused) {
	url := ""
	if e.Request != nil {
		url = e.Request.URL + e.Request.URLFragment
	}
	var err error
	if s.session.shouldCancel(url, e.ResourceType) {
		err = chromedp.Run(s.ctx, fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient))
	} else {
		err = chromedp.Run(s.ctx, fetch.ContinueRequest(e.RequestID))
	}
	if err != nil && s.ctx.Err() == nil {
		log.Debug().Err(err).Str("tab", s.tabID).Str("url", url).Msg("Failed to resolve paused request")
	}
}

// finishLoad reads the committed title, url and icons, then reports the load
func (s *Surface) finishLoad() {
	var title, url string
	var icons []string
	err := chromedp.Run(s.ctx,
		chromedp.Title(&title),
		chromedp.Location(&url),
		chromedp.Evaluate(faviconJS, &icons),
	)
	if err != nil {
		if s.ctx.Err() == nil {
			log.Debug().Err(err).Str("tab", s.tabID).Msg("Failed to read page state")
		}
		return
	}
	s.applyZoom()

	s.mu.Lock()
	s.title = title
	s.url = url
	s.mu.Unlock()

	s.enqueue(engine.TitleUpdated{Title: title}, nil)
	if len(icons) > 0 {
		s.enqueue(engine.FaviconUpdated{Favicons: icons}, nil)
	}
	s.enqueue(engine.FinishLoad{URL: url, Title: title}, nil)
}

func (s *Surface) refreshHistory() {
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()

	var idx int64
	var entries []*page.NavigationEntry
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		idx, entries, err = page.GetNavigationHistory().Do(ctx)
		return err
	}))
	if err != nil {
		return
	}
	s.mu.Lock()
	s.historyIdx = idx
	s.historyLen = len(entries)
	s.mu.Unlock()
}

func (s *Surface) enqueue(ev engine.Event, after func()) {
	s.qmu.Lock()
	s.queue = append(s.queue, queued{ev: ev, after: after})
	s.qmu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// pump delivers queued events in order on the surface's own goroutine
func (s *Surface) pump() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.signal:
		}

		for {
			s.qmu.Lock()
			if len(s.queue) == 0 {
				s.qmu.Unlock()
				break
			}
			item := s.queue[0]
			s.queue = s.queue[1:]
			s.qmu.Unlock()

			s.deliver(item)
		}
	}
}

func (s *Surface) deliver(item queued) {
	if s.handler != nil {
		s.handler(item.ev)
	}
	if item.after != nil {
		item.after()
	}
}

func (s *Surface) schedule(op string, run func()) {
	s.cmu.Lock()
	s.commands = append(s.commands, command{op: op, run: run})
	s.cmu.Unlock()

	select {
	case s.csignal <- struct{}{}:
	default:
	}
}

// commandLoop runs navigation commands one at a time in the order they
// were scheduled. A navigation starts only after every earlier command has
// completed.
func (s *Surface) commandLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.csignal:
		}

		for {
			s.cmu.Lock()
			if len(s.commands) == 0 {
				s.cmu.Unlock()
				break
			}
			cmd := s.commands[0]
			s.commands = s.commands[1:]
			s.cmu.Unlock()

			cmd.run()
		}
	}
}

func (s *Surface) stopLoading() {
	s.schedule("stop", func() { s.runLogged("stop", page.StopLoading()) })
}

// run executes a command with a bounded timeout
func (s *Surface) run(actions ...chromedp.Action) error {
	if s.isClosed() {
		return ErrSurfaceClosed
	}
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (s *Surface) runLogged(op string, actions ...chromedp.Action) {
	if err := s.run(actions...); err != nil && !errors.Is(err, ErrSurfaceClosed) {
		log.Warn().Err(err).Str("tab", s.tabID).Str("op", op).Msg("Surface command failed")
	}
}

// LoadURL starts a navigation without waiting for it to commit
func (s *Surface) LoadURL(url string) error {
	if s.isClosed() {
		return ErrSurfaceClosed
	}
	s.setURL(url)
	// the response wait can be long, so the loop does not block on it
	s.schedule("navigate", func() { go s.navigate(url) })
	return nil
}

func (s *Surface) navigate(url string) {
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText == "net::ERR_ABORTED" {
			log.Debug().Str("tab", s.tabID).Str("url", url).Msg("Navigation superseded")
		}
		return nil
	}))
	if err != nil && s.ctx.Err() == nil {
		s.enqueue(engine.FailLoad{
			Code:        netErrorCode(errFailed),
			Description: err.Error(),
			URL:         url,
			MainFrame:   true,
		}, nil)
	}
}

func (s *Surface) GoBack()    { s.goHistory(-1) }
func (s *Surface) GoForward() { s.goHistory(1) }

func (s *Surface) goHistory(delta int64) {
	s.schedule("history", func() { s.runLogged("history", s.historyStep(delta)) })
}

func (s *Surface) historyStep(delta int64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		idx, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		next := idx + delta
		if next < 0 || next >= int64(len(entries)) {
			return nil
		}
		return page.NavigateToHistoryEntry(entries[next].ID).Do(ctx)
	})
}

func (s *Surface) CanGoBack() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyIdx > 0
}

func (s *Surface) CanGoForward() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyIdx+1 < int64(s.historyLen)
}

func (s *Surface) Reload() {
	s.schedule("reload", func() { s.runLogged("reload", page.Reload()) })
}

func (s *Surface) ZoomLevel() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// SetZoomLevel scales the page by 1.2^level
func (s *Surface) SetZoomLevel(level float64) {
	s.mu.Lock()
	s.zoom = level
	s.mu.Unlock()
	go s.applyZoom()
}

func (s *Surface) applyZoom() {
	factor := math.Pow(zoomBase, s.ZoomLevel())
	js := fmt.Sprintf("document.documentElement && (document.documentElement.style.zoom = '%.4f')", factor)
	s.runLogged("zoom", chromedp.Evaluate(js, nil))
}

func (s *Surface) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

func (s *Surface) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

func (s *Surface) setURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

// FindInPage highlights the next match using the page's own find
func (s *Surface) FindInPage(text string, opts engine.FindOptions) {
	quoted, err := json.Marshal(text)
	if err != nil {
		return
	}
	js := fmt.Sprintf("window.find(%s, %t, %t, true)", quoted, opts.MatchCase, !opts.Forward)
	go s.runLogged("find", chromedp.Evaluate(js, nil))
}

func (s *Surface) StopFindInPage() {
	go s.runLogged("stop-find", chromedp.Evaluate("window.getSelection().removeAllRanges()", nil))
}

func (s *Surface) Focus() {
	go s.runLogged("focus", page.BringToFront())
}

// SetBounds resizes the page viewport; the offset is owned by the window
func (s *Surface) SetBounds(r models.Rect) {
	if r.Width <= 0 || r.Height <= 0 {
		return
	}
	go s.runLogged("bounds", emulation.SetDeviceMetricsOverride(int64(r.Width), int64(r.Height), 0, false))
}

func (s *Surface) Session() engine.Session { return s.session }

// Close closes the page target and stops event delivery
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.host.forget(s)
	err := s.host.closeTarget(s.targetID)
	s.cancel()
	return err
}

func (s *Surface) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
