package engine

// EventHandler receives surface events
type EventHandler func(Event)

// Event is one of the surface event variants below
type Event interface {
	isEvent()
}

// Cancelable is embedded by events whose default action can be prevented
type Cancelable struct {
	canceled bool
	onCancel func()
}

// Cancel prevents the default action and runs the OnCancel hook once.
// Safe on a nil receiver.
func (c *Cancelable) Cancel() {
	if c == nil || c.canceled {
		return
	}
	c.canceled = true
	if c.onCancel != nil {
		c.onCancel()
	}
}

// OnCancel registers fn to run synchronously inside Cancel. The engine
// adapter uses it to order its own commands ahead of the handler's.
func (c *Cancelable) OnCancel(fn func()) {
	if c != nil {
		c.onCancel = fn
	}
}

// Canceled reports whether Cancel was called
func (c *Cancelable) Canceled() bool { return c != nil && c.canceled }

type (
	StartLoading struct{}
	StopLoading  struct{}

	FinishLoad struct {
		URL   string
		Title string
	}

	FailLoad struct {
		Code        int
		Description string
		URL         string
		MainFrame   bool
	}

	Navigate       struct{ URL string }
	NavigateInPage struct{ URL string }

	WillNavigate struct {
		URL string
		*Cancelable
	}

	TitleUpdated   struct{ Title string }
	FaviconUpdated struct{ Favicons []string }

	NewWindowRequest struct {
		URL string
		*Cancelable
	}
)

func (StartLoading) isEvent()     {}
func (StopLoading) isEvent()      {}
func (FinishLoad) isEvent()       {}
func (FailLoad) isEvent()         {}
func (Navigate) isEvent()         {}
func (NavigateInPage) isEvent()   {}
func (WillNavigate) isEvent()     {}
func (TitleUpdated) isEvent()     {}
func (FaviconUpdated) isEvent()   {}
func (NewWindowRequest) isEvent() {}

// NewWillNavigate builds a cancelable will-navigate event
func NewWillNavigate(url string) WillNavigate {
	return WillNavigate{URL: url, Cancelable: &Cancelable{}}
}

// NewWindow builds a cancelable new-window event
func NewWindow(url string) NewWindowRequest {
	return NewWindowRequest{URL: url, Cancelable: &Cancelable{}}
}
