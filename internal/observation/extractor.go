// internal/observation/extractor.go

// Package observation captures structural, accessibility and visual page
// state and merges frame-local accessibility trees into one logical view.
package observation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/browser"
	"github.com/vexaline/browsebench/internal/config"
	"github.com/vexaline/browsebench/internal/marking"
)

// Capture is the raw result of one extraction pass over a page.
type Capture struct {
	HTML       string
	AXTree     *schemas.AXTree
	Screenshot []byte
	FocusedBid string
}

// Extractor drives the mark / capture / unmark cycle. Each capture is
// individually toggleable; a disabled capture keeps its neutral zero value
// and is never attempted.
type Extractor struct {
	cfg    config.EnvConfig
	marks  *marking.Protocol
	logger *zap.Logger
}

func NewExtractor(cfg config.EnvConfig, logger *zap.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		marks:  marking.New(logger),
		logger: logger.Named("extractor"),
	}
}

// Extract marks the frame tree, runs the enabled captures concurrently
// (they touch disjoint browser state), joins them, and only then removes
// the marks, so unmarking can never race a capture.
func (e *Extractor) Extract(ctx context.Context, pg browser.Page) (*Capture, error) {
	if err := e.marks.Mark(ctx, pg); err != nil {
		return nil, fmt.Errorf("element tagging failed: %w", err)
	}

	cap := &Capture{}
	g, gctx := errgroup.WithContext(ctx)

	if e.cfg.CaptureHTML {
		g.Go(func() error {
			raw, err := pg.HTML(gctx)
			if err != nil {
				return fmt.Errorf("structural capture failed: %w", err)
			}
			cap.HTML = pruneHTML(raw)
			return nil
		})
	}
	if e.cfg.CaptureAXTree {
		g.Go(func() error {
			tree, err := e.captureAXTree(gctx, pg)
			if err != nil {
				return fmt.Errorf("accessibility capture failed: %w", err)
			}
			cap.AXTree = tree
			return nil
		})
	}
	if e.cfg.CaptureScreenshot {
		g.Go(func() error {
			shot, err := pg.Screenshot(gctx)
			if err != nil {
				return fmt.Errorf("visual capture failed: %w", err)
			}
			cap.Screenshot = shot
			return nil
		})
	}

	captureErr := g.Wait()

	if captureErr == nil {
		cap.FocusedBid = e.focusedBid(ctx, pg)
	}

	// Marks come off regardless of how the captures went.
	if err := e.marks.Unmark(ctx, pg); err != nil {
		if captureErr == nil {
			return nil, fmt.Errorf("element untagging failed: %w", err)
		}
		e.logger.Warn("Unmark failed after capture error.", zap.Error(err))
	}
	if captureErr != nil {
		return nil, captureErr
	}
	return cap, nil
}
