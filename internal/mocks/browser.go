// File: internal/mocks/browser.go

// Package mocks provides hand-written fakes of the browser capability
// interfaces so the tagging, observation, environment and harness layers can
// be tested without a live Chrome process.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/browser"
)

// FakeFrame implements browser.Frame. Its Evaluate recognizes the scripts
// the core injects (mark, unmark, focus probe, element operations) and
// answers them from the fake's fields, recording every call on the owning
// page's log.
type FakeFrame struct {
	ID        string
	DocURL    string
	Detached  bool
	Sandboxed bool
	// Bid is the owner element's bid, normally assigned by OnMark when the
	// parent frame is marked.
	Bid      string
	OwnerErr error
	// EvalErr fails every Evaluate, for detach-race and fatal-unmark tests.
	EvalErr error
	// EvalFunc overrides the default script recognition entirely.
	EvalFunc func(expression string, out any) error

	// ElementCount is what the mark script reports.
	ElementCount int
	FocusedBid   string
	// KnownBids lists the bids element operations find in this frame.
	KnownBids map[string]bool

	// OnMark runs when the mark script executes in this frame; tests use it
	// to assign child frame bids the way a real marking pass would.
	OnMark func(f *FakeFrame)

	Children []*FakeFrame
	page     *FakePage
}

var _ browser.Frame = (*FakeFrame)(nil)

func (f *FakeFrame) FrameID() string { return f.ID }
func (f *FakeFrame) URL() string     { return f.DocURL }

func (f *FakeFrame) Attached(ctx context.Context) bool { return !f.Detached }

func (f *FakeFrame) ScriptDisabled(ctx context.Context) (bool, error) {
	if f.OwnerErr != nil {
		return false, f.OwnerErr
	}
	return f.Sandboxed, nil
}

func (f *FakeFrame) OwnerBid(ctx context.Context) (string, error) {
	if f.OwnerErr != nil {
		return "", f.OwnerErr
	}
	return f.Bid, nil
}

func (f *FakeFrame) ChildFrames(ctx context.Context) ([]browser.Frame, error) {
	out := make([]browser.Frame, 0, len(f.Children))
	for _, c := range f.Children {
		out = append(out, c)
	}
	return out, nil
}

func (f *FakeFrame) Evaluate(ctx context.Context, expression string, out any) error {
	if f.EvalFunc != nil {
		return f.EvalFunc(expression, out)
	}
	if f.EvalErr != nil {
		return f.EvalErr
	}

	switch {
	case strings.Contains(expression, "const prefix ="):
		f.record("mark:" + f.ID)
		if f.OnMark != nil {
			f.OnMark(f)
		}
		return assign(out, f.ElementCount)
	case strings.Contains(expression, "unmarkRoot"):
		f.record("unmark:" + f.ID)
		return assign(out, true)
	case strings.Contains(expression, "document.activeElement"):
		return assign(out, map[string]any{"bid": f.FocusedBid, "frame": false})
	case strings.Contains(expression, "[bid="):
		// Element operation wrapper: claim the bid if this frame knows it.
		bid := extractQuoted(expression)
		if f.KnownBids[bid] {
			f.record("op:" + f.ID + ":" + bid)
			return assign(out, "ok")
		}
		return assign(out, "notfound")
	default:
		return assign(out, nil)
	}
}

func (f *FakeFrame) record(event string) {
	if f.page != nil {
		f.page.Record(event)
	}
}

// assign writes a value into out through a JSON round trip, matching the
// by-value semantics of the real driver.
func assign(out, value any) error {
	if out == nil || value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// extractQuoted pulls the first double-quoted literal out of an expression.
func extractQuoted(expr string) string {
	start := strings.IndexByte(expr, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(expr[start+1:], '"')
	if end < 0 {
		return ""
	}
	return expr[start+1 : start+1+end]
}

// FakePage implements browser.Page over a fake frame tree, recording every
// call in order.
type FakePage struct {
	ID         string
	CurrentURL string
	Main       *FakeFrame

	HTMLValue      string
	AXNodesByFrame map[string][]schemas.AXNode
	ShotValue      []byte

	NavigateErr error
	OpErr       error

	mu        sync.Mutex
	closed    bool
	calls     []string
	history   []string
	navigated []string
}

var _ browser.Page = (*FakePage)(nil)

// NewFakePage builds a page around the given main frame (a default one is
// created when nil), wiring every frame's call log to the page.
func NewFakePage(targetID string, main *FakeFrame) *FakePage {
	if main == nil {
		main = &FakeFrame{ID: targetID + "-main", ElementCount: 1}
	}
	p := &FakePage{ID: targetID, CurrentURL: "about:blank", Main: main}
	var wire func(f *FakeFrame)
	wire = func(f *FakeFrame) {
		f.page = p
		for _, c := range f.Children {
			wire(c)
		}
	}
	wire(main)
	return p
}

func (p *FakePage) Record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, event)
}

// Calls returns the recorded call log.
func (p *FakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *FakePage) TargetID() string { return p.ID }

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.Record("navigate:" + url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	p.CurrentURL = url
	return nil
}

func (p *FakePage) GoBack(ctx context.Context) error    { p.Record("go_back"); return p.OpErr }
func (p *FakePage) GoForward(ctx context.Context) error { p.Record("go_forward"); return p.OpErr }

func (p *FakePage) Evaluate(ctx context.Context, expression string, out any) error {
	return p.Main.Evaluate(ctx, expression, out)
}

func (p *FakePage) MainFrame(ctx context.Context) (browser.Frame, error) {
	return p.Main, nil
}

func (p *FakePage) Frames(ctx context.Context) ([]browser.Frame, error) {
	var out []browser.Frame
	var walk func(f *FakeFrame)
	walk = func(f *FakeFrame) {
		out = append(out, f)
		for _, c := range f.Children {
			walk(c)
		}
	}
	walk(p.Main)
	return out, nil
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.Record("screenshot")
	return p.ShotValue, nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.Record("html")
	return p.HTMLValue, nil
}

func (p *FakePage) AXNodes(ctx context.Context, frameID string) ([]schemas.AXNode, error) {
	p.Record("ax:" + frameID)
	nodes, ok := p.AXNodesByFrame[frameID]
	if !ok {
		return nil, fmt.Errorf("no accessibility tree for frame %s", frameID)
	}
	return nodes, nil
}

// bidOp routes an element operation through the fake frame tree so element
// lookup behaves like the production scan.
func (p *FakePage) bidOp(ctx context.Context, op, bid string) error {
	if p.OpErr != nil {
		return p.OpErr
	}
	frames, _ := p.Frames(ctx)
	for _, f := range frames {
		if ff, ok := f.(*FakeFrame); ok && ff.KnownBids[bid] {
			p.Record(op + ":" + bid)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", browser.ErrElementNotFound, bid)
}

func (p *FakePage) Click(ctx context.Context, bid string, clickCount int) error {
	op := "click"
	if clickCount >= 2 {
		op = "dblclick"
	}
	return p.bidOp(ctx, op, bid)
}

func (p *FakePage) Fill(ctx context.Context, bid, text string) error {
	return p.bidOp(ctx, "fill", bid)
}

func (p *FakePage) Press(ctx context.Context, bid, key string) error {
	return p.bidOp(ctx, "press", bid)
}

func (p *FakePage) Hover(ctx context.Context, bid string) error {
	return p.bidOp(ctx, "hover", bid)
}

func (p *FakePage) SelectOption(ctx context.Context, bid, value string) error {
	return p.bidOp(ctx, "select_option", bid)
}

func (p *FakePage) Scroll(ctx context.Context, bid, direction string) error {
	if bid == "" {
		p.Record("scroll_window:" + direction)
		return p.OpErr
	}
	return p.bidOp(ctx, "scroll", bid)
}

func (p *FakePage) WaitForSettle(ctx context.Context, timeout time.Duration) error {
	p.Record("settle")
	return nil
}

func (p *FakePage) BringToFront(ctx context.Context) error { return nil }

func (p *FakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Navigated returns the URLs passed to Navigate, in order.
func (p *FakePage) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.navigated))
	copy(out, p.navigated)
	return out
}

// FakeSession implements browser.Session over fake pages with the same
// most-recently-active-first history the production arena keeps.
type FakeSession struct {
	IDValue string
	// NewPageErr fails tab creation, for recovery failure tests.
	NewPageErr error

	mu       sync.Mutex
	pages    []*FakePage
	history  []string
	closed   bool
	nextPage int
}

var _ browser.Session = (*FakeSession)(nil)

func NewFakeSession(id string) *FakeSession {
	s := &FakeSession{IDValue: id}
	s.AddPage(NewFakePage(id+"-tab0", nil))
	return s
}

func (s *FakeSession) ID() string { return s.IDValue }

// AddPage registers a page and makes it the active one.
func (s *FakeSession) AddPage(p *FakePage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, p)
	s.history = append([]string{p.ID}, s.history...)
}

func (s *FakeSession) NewPage(ctx context.Context) (browser.Page, error) {
	if s.NewPageErr != nil {
		return nil, s.NewPageErr
	}
	s.mu.Lock()
	id := fmt.Sprintf("%s-new%d", s.IDValue, s.nextPage)
	s.nextPage++
	s.mu.Unlock()

	p := NewFakePage(id, nil)
	s.AddPage(p)
	return p, nil
}

func (s *FakeSession) Pages() []browser.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]browser.Page, 0, len(s.pages))
	for _, p := range s.pages {
		if !p.Closed() {
			out = append(out, p)
		}
	}
	return out
}

func (s *FakeSession) ActivePage() browser.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.history {
		for _, p := range s.pages {
			if p.ID == id && !p.Closed() {
				return p
			}
		}
	}
	return nil
}

func (s *FakeSession) Activate(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.history {
		if id == targetID {
			s.history = append(s.history[:i], s.history[i+1:]...)
			break
		}
	}
	s.history = append([]string{targetID}, s.history...)
}

func (s *FakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, p := range s.pages {
		p.Close(ctx)
	}
	return nil
}

// IsClosed reports whether Close was called.
func (s *FakeSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FakeFactory implements browser.SessionFactory, producing one fresh fake
// session per call and remembering them for inspection.
type FakeFactory struct {
	// NewSessionErr fails session creation.
	NewSessionErr error

	mu       sync.Mutex
	Sessions []*FakeSession
}

var _ browser.SessionFactory = (*FakeFactory)(nil)

func (f *FakeFactory) NewSession(ctx context.Context) (browser.Session, error) {
	if f.NewSessionErr != nil {
		return nil, f.NewSessionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := NewFakeSession(fmt.Sprintf("session-%d", len(f.Sessions)))
	f.Sessions = append(f.Sessions, s)
	return s, nil
}

// Last returns the most recently created session, or nil.
func (f *FakeFactory) Last() *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sessions) == 0 {
		return nil
	}
	return f.Sessions[len(f.Sessions)-1]
}
