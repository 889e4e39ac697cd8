// Package engine declares the contracts between the view lifecycle layer and
// the rendering engine, the UI process, and history storage.
package engine

import (
	"github.com/bnema/vibeview/internal/models"
)

// ErrorCodeAborted is reported when a navigation is superseded by another one
const ErrorCodeAborted = -3

// Host is the window that owns rendering surfaces
type Host interface {
	// ContentSize returns the current content area of the window
	ContentSize() models.Size
	// NewSurface creates an isolated surface whose events are delivered to handler
	NewSurface(tabID string, handler EventHandler) (Surface, error)
	Attach(s Surface)
	Detach(s Surface)
	IsAttached(s Surface) bool
}

// Surface is one rendering surface.
//
// Implementations deliver events from their own goroutines, never from
// inside a Surface method call.
type Surface interface {
	// LoadURL starts a navigation. Load failures arrive as FailLoad events.
	LoadURL(url string) error
	GoBack()
	CanGoBack() bool
	GoForward()
	CanGoForward() bool
	Reload()
	ZoomLevel() float64
	SetZoomLevel(level float64)
	Title() string
	URL() string
	FindInPage(text string, opts FindOptions)
	StopFindInPage()
	Focus()
	SetBounds(r models.Rect)
	Session() Session
	Close() error
}

// FindOptions controls find-in-page
type FindOptions struct {
	Forward   bool
	FindNext  bool
	MatchCase bool
}

// Session is the network session shared by one or more surfaces
type Session interface {
	// ID identifies the session; surfaces sharing a session return the same ID
	ID() string
	// OnBeforeRequest installs the request filter; returning true cancels the request
	OnBeforeRequest(fn func(Request) bool)
	// OnHeadersReceived installs a passive response observer
	OnHeadersReceived(fn func(Response))
}

// Request is an outgoing network request
type Request struct {
	URL          string
	ResourceType string
}

// Response is a received response head. Header names are lowercase.
type Response struct {
	URL        string
	StatusCode int
	Headers    map[string]string
}

// EventSink receives tab-scoped events for the UI
type EventSink interface {
	LoadingChanged(tabID string, loading bool)
	TitleChanged(tabID, title string)
	URLChanged(tabID, url string)
	FaviconChanged(tabID, favicon string)
}

// HistorySink records visited pages
type HistorySink interface {
	AddHistoryItem(item models.HistoryItem) error
}
