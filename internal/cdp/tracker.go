package cdp

import (
	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"

	"github.com/bnema/vibeview/internal/engine"
)

// tracker turns raw protocol events of one page target into engine events.
// It is driven from the target's listener and is not safe for concurrent use.
type tracker struct {
	mainFrame cdproto.FrameID

	docErr      string
	onErrorPage bool
	url         string
}

func newTracker(mainFrame cdproto.FrameID) *tracker {
	return &tracker{mainFrame: mainFrame}
}

// translate returns the engine events for ev. loaded is set when the main
// document finished loading a real page.
func (t *tracker) translate(ev any) (out []engine.Event, loaded bool) {
	switch e := ev.(type) {
	case *page.EventFrameStartedLoading:
		if e.FrameID == t.mainFrame {
			t.docErr = ""
			out = append(out, engine.StartLoading{})
		}

	case *page.EventFrameStoppedLoading:
		if e.FrameID == t.mainFrame {
			out = append(out, engine.StopLoading{})
		}

	case *network.EventLoadingFailed:
		if e.Type == network.ResourceTypeDocument {
			t.docErr = e.ErrorText
			if e.Canceled && e.ErrorText == "" {
				t.docErr = "net::ERR_ABORTED"
			}
		}

	case *page.EventFrameNavigated:
		if e.Frame == nil {
			return nil, false
		}
		main := e.Frame.ParentID == "" || e.Frame.ID == t.mainFrame
		if e.Frame.UnreachableURL != "" {
			out = append(out, engine.FailLoad{
				Code:        netErrorCode(t.docErr),
				Description: describe(t.docErr),
				URL:         e.Frame.UnreachableURL,
				MainFrame:   main,
			})
			if main {
				t.onErrorPage = true
			}
			return out, false
		}
		if !main {
			return nil, false
		}
		t.mainFrame = e.Frame.ID
		t.onErrorPage = false
		t.url = e.Frame.URL + e.Frame.URLFragment
		out = append(out, engine.Navigate{URL: t.url})

	case *page.EventNavigatedWithinDocument:
		if e.FrameID == t.mainFrame {
			t.url = e.URL
			out = append(out, engine.NavigateInPage{URL: e.URL})
		}

	case *page.EventFrameRequestedNavigation:
		if e.FrameID == t.mainFrame {
			out = append(out, engine.NewWillNavigate(e.URL))
		}

	case *page.EventLoadEventFired:
		return nil, !t.onErrorPage
	}
	return out, false
}
