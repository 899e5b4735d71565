// internal/browser/interface.go
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/vexaline/browsebench/api/schemas"
)

// The core depends on these capability interfaces rather than the concrete
// CDP driver, so the environment, marking and observation layers stay
// testable against fakes.

var (
	// ErrElementNotFound reports that no attached frame contains an element
	// with the requested bid.
	ErrElementNotFound = errors.New("element not found for bid")
	// ErrPageClosed reports an operation on a closed page.
	ErrPageClosed = errors.New("page is closed")
	// ErrSessionClosed reports an operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")
)

// Frame is one browsing context in a page's frame tree.
type Frame interface {
	// FrameID is the driver-assigned frame identifier.
	FrameID() string
	// URL is the frame's document URL as of the last frame-tree snapshot.
	URL() string
	// Attached reports whether the frame is still part of the frame tree.
	Attached(ctx context.Context) bool
	// ScriptDisabled reports whether the frame is sandboxed without
	// allow-scripts, i.e. script execution inside it would be rejected.
	ScriptDisabled(ctx context.Context) (bool, error)
	// OwnerBid returns the bid attribute of the frame's hosting element in
	// the parent document, or "" when the element is unmarked. The main
	// frame has no owner and always returns "".
	OwnerBid(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression in the frame and unmarshals the
	// by-value result into out (out may be nil).
	Evaluate(ctx context.Context, expression string, out any) error
	// ChildFrames lists the frame's direct children.
	ChildFrames(ctx context.Context) ([]Frame, error)
}

// Page is one open tab. It also satisfies schemas.PageHandle so task
// collaborators can drive it during setup and validation.
type Page interface {
	TargetID() string
	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	// Evaluate runs an expression in the main frame.
	Evaluate(ctx context.Context, expression string, out any) error
	MainFrame(ctx context.Context) (Frame, error)
	// Frames returns the flattened list of currently attached frames,
	// main frame first.
	Frames(ctx context.Context) ([]Frame, error)

	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	// AXNodes captures the accessibility node list of one frame. Nodes that
	// host a child frame's document carry a HostedFrameID.
	AXNodes(ctx context.Context, frameID string) ([]schemas.AXNode, error)

	// Element operations addressed by bid. A bid that matches no element in
	// any attached frame fails with ErrElementNotFound.
	Click(ctx context.Context, bid string, clickCount int) error
	Fill(ctx context.Context, bid, text string) error
	Press(ctx context.Context, bid, key string) error
	Hover(ctx context.Context, bid string) error
	SelectOption(ctx context.Context, bid, value string) error
	// Scroll scrolls the element, or the window when bid is empty.
	Scroll(ctx context.Context, bid, direction string) error

	// WaitForSettle waits for document readiness up to the given bound and
	// returns nil on timeout; settling is best effort.
	WaitForSettle(ctx context.Context, timeout time.Duration) error
	BringToFront(ctx context.Context) error
	Close(ctx context.Context) error
	Closed() bool
}

// Session is one isolated browsing session. It belongs to exactly one
// episode at a time.
type Session interface {
	ID() string
	// NewPage opens a blank tab and makes it the active one.
	NewPage(ctx context.Context) (Page, error)
	// Pages lists open tabs in creation order.
	Pages() []Page
	// ActivePage returns the most recently active tab that is still open,
	// falling back through the activation history, or nil when no tab
	// remains.
	ActivePage() Page
	// Activate marks the tab as the most recently active one.
	Activate(targetID string)
	Close(ctx context.Context) error
}

// SessionFactory opens sessions; the Manager is the production
// implementation.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// combineContext derives a context from primary that is additionally
// canceled when secondary is done. Operations must respect both the owning
// lifecycle and the caller's deadline.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
