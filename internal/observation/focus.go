// internal/observation/focus.go
package observation

import (
	"context"

	"go.uber.org/zap"

	"github.com/vexaline/browsebench/internal/browser"
)

// focusScript resolves the deepest focused element within one frame,
// descending through open shadow roots, and reports whether that element
// hosts a nested frame.
const focusScript = `(() => {
	let el = document.activeElement;
	while (el && el.shadowRoot && el.shadowRoot.activeElement) {
		el = el.shadowRoot.activeElement;
	}
	if (!el) { return { bid: '', frame: false }; }
	const frame = el.tagName === 'IFRAME' || el.tagName === 'FRAME';
	return { bid: el.getAttribute('bid') || '', frame: frame };
})()`

const maxFocusDepth = 32

// focusedBid walks shadow DOM and nested frames from the document root
// until a non-frame focused element is found. Focus reporting is best
// effort and never fails an extraction.
func (e *Extractor) focusedBid(ctx context.Context, pg browser.Page) string {
	f, err := pg.MainFrame(ctx)
	if err != nil {
		return ""
	}

	for depth := 0; depth < maxFocusDepth; depth++ {
		var res struct {
			Bid   string `json:"bid"`
			Frame bool   `json:"frame"`
		}
		if err := f.Evaluate(ctx, focusScript, &res); err != nil {
			e.logger.Debug("Focus probe failed.", zap.String("frame_id", f.FrameID()), zap.Error(err))
			return ""
		}
		if !res.Frame {
			return res.Bid
		}

		// Focus sits on a frame-hosting element; descend into the frame
		// whose owner carries that bid.
		children, err := f.ChildFrames(ctx)
		if err != nil {
			return res.Bid
		}
		var next browser.Frame
		for _, child := range children {
			bid, err := child.OwnerBid(ctx)
			if err == nil && bid != "" && bid == res.Bid {
				next = child
				break
			}
		}
		if next == nil {
			return res.Bid
		}
		f = next
	}
	return ""
}
