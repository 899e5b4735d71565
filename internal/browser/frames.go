// internal/browser/frames.go
package browser

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// cdpFrame is a snapshot handle onto one frame of a page. Identity is the
// CDP frame id; liveness is re-checked against the current frame tree.
type cdpFrame struct {
	page     *cdpPage
	id       cdp.FrameID
	parentID cdp.FrameID
	url      string
}

var _ Frame = (*cdpFrame)(nil)

func (f *cdpFrame) FrameID() string { return string(f.id) }
func (f *cdpFrame) URL() string     { return f.url }

func (f *cdpFrame) isMain() bool { return f.parentID == "" }

func (f *cdpFrame) Attached(ctx context.Context) bool {
	tree, err := f.page.frameTree(ctx)
	if err != nil {
		return false
	}
	return frameInTree(tree, f.id)
}

func frameInTree(tree *page.FrameTree, id cdp.FrameID) bool {
	if tree == nil {
		return false
	}
	if tree.Frame.ID == id {
		return true
	}
	for _, child := range tree.ChildFrames {
		if frameInTree(child, id) {
			return true
		}
	}
	return false
}

// ScriptDisabled inspects the hosting element's sandbox attribute: a sandbox
// without allow-scripts rejects script execution inside the frame.
func (f *cdpFrame) ScriptDisabled(ctx context.Context) (bool, error) {
	if f.isMain() {
		return false, nil
	}
	var disabled bool
	err := f.page.callOnFrameOwner(ctx, f.id, `function() {
		if (!this.hasAttribute || !this.hasAttribute('sandbox')) { return false; }
		const tokens = (this.getAttribute('sandbox') || '').split(/\s+/);
		return tokens.indexOf('allow-scripts') === -1;
	}`, &disabled)
	if err != nil {
		return false, err
	}
	return disabled, nil
}

// OwnerBid reads the bid assigned to the frame's hosting element by the
// parent frame's marking pass.
func (f *cdpFrame) OwnerBid(ctx context.Context) (string, error) {
	if f.isMain() {
		return "", nil
	}
	var bid string
	err := f.page.callOnFrameOwner(ctx, f.id, `function() {
		return this.getAttribute('bid') || '';
	}`, &bid)
	if err != nil {
		return "", err
	}
	return bid, nil
}

func (f *cdpFrame) Evaluate(ctx context.Context, expression string, out any) error {
	return f.page.evaluateInFrame(ctx, f.id, expression, out)
}

func (f *cdpFrame) ChildFrames(ctx context.Context) ([]Frame, error) {
	tree, err := f.page.frameTree(ctx)
	if err != nil {
		return nil, err
	}
	sub := findSubtree(tree, f.id)
	if sub == nil {
		return nil, nil
	}
	out := make([]Frame, 0, len(sub.ChildFrames))
	for _, child := range sub.ChildFrames {
		out = append(out, &cdpFrame{page: f.page, id: child.Frame.ID, parentID: f.id, url: child.Frame.URL})
	}
	return out, nil
}

func findSubtree(tree *page.FrameTree, id cdp.FrameID) *page.FrameTree {
	if tree == nil {
		return nil
	}
	if tree.Frame.ID == id {
		return tree
	}
	for _, child := range tree.ChildFrames {
		if found := findSubtree(child, id); found != nil {
			return found
		}
	}
	return nil
}
