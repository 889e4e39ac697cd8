// Package cdp drives a Chromium instance over the DevTools protocol and
// exposes each page target as an engine surface.
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/models"
)

const (
	startTimeout   = 30 * time.Second
	targetTypePage = "page"
)

// Host owns the browser process and its page targets
type Host struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	session       *Session

	mu       sync.RWMutex
	size     models.Size
	surfaces map[target.ID]*Surface
	attached map[*Surface]bool
}

func allocatorOptions(cfg models.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(cfg.Width, cfg.Height),
		chromedp.Flag("disable-popup-blocking", false),
		chromedp.Flag("disable-session-crashed-bubble", true),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// New launches the browser and waits until it accepts commands
func New(ctx context.Context, cfg models.BrowserConfig) (*Host, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	h := &Host{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		session:       newSession(DefaultSessionID),
		size:          models.Size{Width: cfg.Width, Height: cfg.Height},
		surfaces:      make(map[target.ID]*Surface),
		attached:      make(map[*Surface]bool),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return target.SetDiscoverTargets(true).Do(cdproto.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
		}))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			h.shutdown()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-time.After(startTimeout):
		h.shutdown()
		return nil, fmt.Errorf("start browser: timed out after %s", startTimeout)
	}

	chromedp.ListenBrowser(browserCtx, h.onBrowserEvent)
	log.Info().Bool("headless", cfg.Headless).Str("exec", cfg.ExecPath).Msg("Browser started")
	return h, nil
}

// onBrowserEvent routes popup targets to the surface that opened them
func (h *Host) onBrowserEvent(ev any) {
	e, ok := ev.(*target.EventTargetCreated)
	if !ok || e.TargetInfo == nil {
		return
	}
	info := e.TargetInfo
	if info.Type != targetTypePage || info.OpenerID == "" {
		return
	}

	h.mu.RLock()
	opener := h.surfaces[info.OpenerID]
	h.mu.RUnlock()

	if opener == nil {
		log.Warn().Str("url", info.URL).Msg("Closing popup with unknown opener")
		go h.closeTarget(info.TargetID)
		return
	}

	req := engine.NewWindow(info.URL)
	opener.enqueue(req, func() {
		if req.Canceled() {
			if err := h.closeTarget(info.TargetID); err != nil {
				log.Debug().Err(err).Str("tab", opener.tabID).Msg("Failed to close popup")
			}
		}
	})
}

func (h *Host) ContentSize() models.Size {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// NewSurface opens a new page target
func (h *Host) NewSurface(tabID string, handler engine.EventHandler) (engine.Surface, error) {
	s, err := newSurface(h, tabID, handler)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.surfaces[s.targetID] = s
	h.mu.Unlock()
	return s, nil
}

func (h *Host) Attach(es engine.Surface) {
	s, ok := es.(*Surface)
	if !ok {
		return
	}
	h.mu.Lock()
	h.attached[s] = true
	h.mu.Unlock()
	s.Focus()
}

func (h *Host) Detach(es engine.Surface) {
	s, ok := es.(*Surface)
	if !ok {
		return
	}
	h.mu.Lock()
	delete(h.attached, s)
	h.mu.Unlock()
}

func (h *Host) IsAttached(es engine.Surface) bool {
	s, ok := es.(*Surface)
	if !ok {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.attached[s]
}

func (h *Host) forget(s *Surface) {
	h.mu.Lock()
	delete(h.surfaces, s.targetID)
	delete(h.attached, s)
	h.mu.Unlock()
}

func (h *Host) closeTarget(id target.ID) error {
	ctx, cancel := context.WithTimeout(h.browserCtx, commandTimeout)
	defer cancel()
	return target.CloseTarget(id).Do(cdproto.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
}

// Close shuts the browser down
func (h *Host) Close() error {
	err := chromedp.Cancel(h.browserCtx)
	h.shutdown()
	return err
}

func (h *Host) shutdown() {
	h.cancelBrowser()
	h.cancelAlloc()
}
