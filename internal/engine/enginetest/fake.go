// Package enginetest provides in-memory Host and Surface fakes.
package enginetest

import (
	"errors"
	"sync"

	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/models"
)

// ErrSurfaceFailed is returned by Host.NewSurface for tab ids in FailTabs
var ErrSurfaceFailed = errors.New("surface creation failed")

// Host is an in-memory engine.Host. Events are delivered synchronously via
// Surface.Emit so tests control ordering.
type Host struct {
	mu       sync.Mutex
	Size     models.Size
	Surfaces map[string]*Surface
	FailTabs map[string]bool
	attached map[*Surface]bool
	session  *Session
}

// NewHost returns a host with the given content size
func NewHost(width, height int) *Host {
	return &Host{
		Size:     models.Size{Width: width, Height: height},
		Surfaces: make(map[string]*Surface),
		FailTabs: make(map[string]bool),
		attached: make(map[*Surface]bool),
		session:  &Session{id: "persist:default"},
	}
}

func (h *Host) ContentSize() models.Size {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Size
}

func (h *Host) NewSurface(tabID string, handler engine.EventHandler) (engine.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailTabs[tabID] {
		return nil, ErrSurfaceFailed
	}
	s := &Surface{TabID: tabID, handler: handler, session: h.session}
	h.Surfaces[tabID] = s
	return s, nil
}

func (h *Host) Attach(s engine.Surface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached[s.(*Surface)] = true
}

func (h *Host) Detach(s engine.Surface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.attached, s.(*Surface))
}

func (h *Host) IsAttached(s engine.Surface) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached[s.(*Surface)]
}

// AttachedCount returns how many surfaces are attached
func (h *Host) AttachedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attached)
}

// Surface returns the surface created for tabID
func (h *Host) Surface(tabID string) *Surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Surfaces[tabID]
}

// SharedSession returns the session every surface of this host shares
func (h *Host) SharedSession() *Session { return h.session }

// Surface records the calls made on it
type Surface struct {
	mu      sync.Mutex
	TabID   string
	handler engine.EventHandler
	session *Session

	Loaded       []string
	Bounds       models.Rect
	Zoom         float64
	CurrentTitle string
	CurrentURL   string
	CanBack      bool
	CanForward   bool
	Backs        int
	Forwards     int
	Reloads      int
	Finds        []string
	FindStops    int
	Focused      int
	Closed       bool
	LoadErr      error
}

// Emit delivers ev to the registered handler and returns it so tests can
// inspect cancellation.
func (s *Surface) Emit(ev engine.Event) engine.Event {
	s.handler(ev)
	return ev
}

func (s *Surface) LoadURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Loaded = append(s.Loaded, url)
	s.CurrentURL = url
	return s.LoadErr
}

// LastLoaded returns the most recent LoadURL argument
func (s *Surface) LastLoaded() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Loaded) == 0 {
		return ""
	}
	return s.Loaded[len(s.Loaded)-1]
}

func (s *Surface) GoBack()            { s.mu.Lock(); s.Backs++; s.mu.Unlock() }
func (s *Surface) CanGoBack() bool    { s.mu.Lock(); defer s.mu.Unlock(); return s.CanBack }
func (s *Surface) GoForward()         { s.mu.Lock(); s.Forwards++; s.mu.Unlock() }
func (s *Surface) CanGoForward() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.CanForward }
func (s *Surface) Reload()            { s.mu.Lock(); s.Reloads++; s.mu.Unlock() }
func (s *Surface) ZoomLevel() float64 { s.mu.Lock(); defer s.mu.Unlock(); return s.Zoom }
func (s *Surface) SetZoomLevel(l float64) {
	s.mu.Lock()
	s.Zoom = l
	s.mu.Unlock()
}
func (s *Surface) Title() string { s.mu.Lock(); defer s.mu.Unlock(); return s.CurrentTitle }
func (s *Surface) URL() string   { s.mu.Lock(); defer s.mu.Unlock(); return s.CurrentURL }
func (s *Surface) FindInPage(text string, _ engine.FindOptions) {
	s.mu.Lock()
	s.Finds = append(s.Finds, text)
	s.mu.Unlock()
}
func (s *Surface) StopFindInPage() { s.mu.Lock(); s.FindStops++; s.mu.Unlock() }
func (s *Surface) Focus()          { s.mu.Lock(); s.Focused++; s.mu.Unlock() }
func (s *Surface) SetBounds(r models.Rect) {
	s.mu.Lock()
	s.Bounds = r
	s.mu.Unlock()
}
func (s *Surface) Session() engine.Session { return s.session }
func (s *Surface) Close() error {
	s.mu.Lock()
	s.Closed = true
	s.mu.Unlock()
	return nil
}

// Session stores installed hooks
type Session struct {
	id        string
	mu        sync.Mutex
	Before    []func(engine.Request) bool
	OnHeaders []func(engine.Response)
}

func (s *Session) ID() string { return s.id }

func (s *Session) OnBeforeRequest(fn func(engine.Request) bool) {
	s.mu.Lock()
	s.Before = append(s.Before, fn)
	s.mu.Unlock()
}

func (s *Session) OnHeadersReceived(fn func(engine.Response)) {
	s.mu.Lock()
	s.OnHeaders = append(s.OnHeaders, fn)
	s.mu.Unlock()
}

// Request runs every installed filter and reports whether any cancelled req
func (s *Session) Request(req engine.Request) bool {
	s.mu.Lock()
	hooks := append([]func(engine.Request) bool(nil), s.Before...)
	s.mu.Unlock()
	for _, fn := range hooks {
		if fn(req) {
			return true
		}
	}
	return false
}

// Sink records EventSink calls
type Sink struct {
	mu       sync.Mutex
	Loading  []bool
	Titles   []string
	URLs     []string
	Favicons []string
}

func (s *Sink) LoadingChanged(_ string, loading bool) {
	s.mu.Lock()
	s.Loading = append(s.Loading, loading)
	s.mu.Unlock()
}

func (s *Sink) TitleChanged(_, title string) {
	s.mu.Lock()
	s.Titles = append(s.Titles, title)
	s.mu.Unlock()
}

func (s *Sink) URLChanged(_, url string) {
	s.mu.Lock()
	s.URLs = append(s.URLs, url)
	s.mu.Unlock()
}

func (s *Sink) FaviconChanged(_, favicon string) {
	s.mu.Lock()
	s.Favicons = append(s.Favicons, favicon)
	s.mu.Unlock()
}
