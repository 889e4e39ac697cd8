package cdp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"

	"github.com/bnema/vibeview/internal/engine"
)

// DefaultSessionID names the browser context every surface shares
const DefaultSessionID = "persist:default"

// Session holds the request hooks of one browser context
type Session struct {
	id string

	mu        sync.RWMutex
	before    func(engine.Request) bool
	onHeaders func(engine.Response)
}

func newSession(id string) *Session {
	return &Session{id: id}
}

func (s *Session) ID() string { return s.id }

// OnBeforeRequest replaces the request filter
func (s *Session) OnBeforeRequest(fn func(engine.Request) bool) {
	s.mu.Lock()
	s.before = fn
	s.mu.Unlock()
}

// OnHeadersReceived replaces the response observer
func (s *Session) OnHeadersReceived(fn func(engine.Response)) {
	s.mu.Lock()
	s.onHeaders = fn
	s.mu.Unlock()
}

// shouldCancel runs the filter; without one every request proceeds
func (s *Session) shouldCancel(url string, rt network.ResourceType) bool {
	s.mu.RLock()
	fn := s.before
	s.mu.RUnlock()
	if fn == nil {
		return false
	}
	return fn(engine.Request{URL: url, ResourceType: strings.ToLower(string(rt))})
}

func (s *Session) observe(resp *network.Response) {
	if resp == nil {
		return
	}
	s.mu.RLock()
	fn := s.onHeaders
	s.mu.RUnlock()
	if fn == nil {
		return
	}
	fn(engine.Response{
		URL:        resp.URL,
		StatusCode: int(resp.Status),
		Headers:    lowerHeaders(resp.Headers),
	})
}

func lowerHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return out
}
