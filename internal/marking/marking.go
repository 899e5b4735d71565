// internal/marking/marking.go

// Package marking implements the element tagging protocol: before each
// observation every element across the page's frame tree receives a unique
// bid attribute, and after the captures complete all marker attributes are
// removed so the live DOM returns to its original state.
package marking

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vexaline/browsebench/internal/browser"
)

// ErrUnmarkedChildFrame reports a protocol violation: a child frame whose
// hosting element carries no bid even though its parent frame was marked.
var ErrUnmarkedChildFrame = errors.New("child frame owner element is unmarked")

// Protocol marks and unmarks a page's frame tree.
type Protocol struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Protocol {
	return &Protocol{logger: logger.Named("marking")}
}

// Mark tags every element of every reachable frame, depth first. The top
// page is marked with an empty prefix; each child frame's prefix is the bid
// its hosting element received from the parent's marking pass, followed by
// the frame separator.
func (p *Protocol) Mark(ctx context.Context, pg browser.Page) error {
	mainFrame, err := pg.MainFrame(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve main frame: %w", err)
	}
	return p.markFrame(ctx, mainFrame, "")
}

func (p *Protocol) markFrame(ctx context.Context, f browser.Frame, prefix string) error {
	var marked int
	if err := f.Evaluate(ctx, markScript(prefix), &marked); err != nil {
		return fmt.Errorf("marking frame %s failed: %w", f.FrameID(), err)
	}
	p.logger.Debug("Frame marked.",
		zap.String("frame_id", f.FrameID()),
		zap.String("prefix", prefix),
		zap.Int("elements", marked))

	children, err := f.ChildFrames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list child frames of %s: %w", f.FrameID(), err)
	}

	for _, child := range children {
		if !child.Attached(ctx) {
			continue
		}
		disabled, err := child.ScriptDisabled(ctx)
		if err != nil {
			// Owner lookup failing usually means the frame detached between
			// the tree snapshot and now.
			p.logger.Debug("Skipping frame with unreadable owner.",
				zap.String("frame_id", child.FrameID()), zap.Error(err))
			continue
		}
		if disabled {
			p.logger.Debug("Skipping script-sandboxed frame.", zap.String("frame_id", child.FrameID()))
			continue
		}

		bid, err := child.OwnerBid(ctx)
		if err != nil {
			return fmt.Errorf("failed to read owner bid of frame %s: %w", child.FrameID(), err)
		}
		if bid == "" {
			// The parent was just marked, so a bare owner element breaks the
			// tagging invariant. Never skip this silently.
			return fmt.Errorf("frame %s: %w", child.FrameID(), ErrUnmarkedChildFrame)
		}

		if err := p.markFrame(ctx, child, bid+frameSeparator); err != nil {
			return err
		}
	}
	return nil
}

// Unmark removes marker attributes from every currently attached frame. A
// frame disappearing mid-walk is tolerated; any other failure is fatal.
func (p *Protocol) Unmark(ctx context.Context, pg browser.Page) error {
	frames, err := pg.Frames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list frames for unmark: %w", err)
	}

	for _, f := range frames {
		var ok bool
		if err := f.Evaluate(ctx, unmarkScript, &ok); err != nil {
			if !f.Attached(ctx) {
				p.logger.Debug("Frame detached during unmark; skipping.",
					zap.String("frame_id", f.FrameID()))
				continue
			}
			return fmt.Errorf("unmarking frame %s failed: %w", f.FrameID(), err)
		}
	}
	return nil
}
