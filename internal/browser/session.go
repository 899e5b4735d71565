// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/internal/config"
)

// cdpSession is one isolated browser context. It owns a tab arena fed by
// target discovery events, so tabs opened by the page itself (popups,
// window.open) are tracked alongside explicitly created ones.
type cdpSession struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	browserCtx       context.Context
	browserContextID cdp.BrowserContextID

	arena *tabArena

	// adopt attaches a chromedp context to a discovered target. It is a
	// field so the asynchronous adoption path can be exercised in tests.
	adopt        func(targetID target.ID, openerID string) (Page, error)
	listenCancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	onClose   func()
}

var _ Session = (*cdpSession)(nil)

func newCDPSession(ctx context.Context, browserCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*cdpSession, error) {
	sessionID := uuid.New().String()

	s := &cdpSession{
		id:         sessionID,
		cfg:        cfg,
		logger:     logger.With(zap.String("session_id", sessionID)),
		browserCtx: browserCtx,
		arena:      newTabArena(),
	}
	s.adopt = s.adoptTarget

	// 1. Create an isolated browser context for this episode.
	runCtx, cancel := combineContext(browserCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		id, err := target.CreateBrowserContext().WithDisposeOnDetach(true).Do(c)
		if err != nil {
			return err
		}
		s.browserContextID = id
		return nil
	})); err != nil {
		return nil, fmt.Errorf("failed to create isolated browser context: %w", err)
	}

	// 2. Track target churn for this browser context. The listener is
	// registered on a child context so Close can detach it; the browser's
	// listener list would otherwise grow with every session in a batch.
	listenCtx, listenCancel := context.WithCancel(browserCtx)
	s.listenCancel = listenCancel
	chromedp.ListenBrowser(listenCtx, s.onTargetEvent)

	// 3. Open the initial blank tab.
	if _, err := s.NewPage(ctx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to open initial tab: %w", err)
	}

	return s, nil
}

func (s *cdpSession) ID() string { return s.id }

// onTargetEvent keeps the tab arena in sync with the live browser. Popups
// and page-opened tabs become active on creation; destroyed targets drop
// out of both the arena and the activation history.
func (s *cdpSession) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		info := e.TargetInfo
		if info.Type != "page" || info.BrowserContextID != s.browserContextID {
			return
		}
		if s.isClosed() || s.arena.has(string(info.TargetID)) {
			return
		}
		// Browser listeners run synchronously on the websocket read
		// goroutine. Attaching to the target sends CDP commands whose
		// responses arrive on that same goroutine, so the adoption must
		// happen elsewhere or the connection deadlocks.
		go s.adoptCreatedTarget(info.TargetID, string(info.OpenerID))

	case *target.EventTargetDestroyed:
		if s.arena.has(string(e.TargetID)) {
			s.arena.remove(string(e.TargetID))
			s.logger.Debug("Tab closed.", zap.String("target_id", string(e.TargetID)))
		}
	}
}

// adoptCreatedTarget adopts a target announced by a discovery event and
// makes it the active tab. Duplicate adoptions (a NewPage call racing the
// event) are resolved by the arena, which keeps the first record.
func (s *cdpSession) adoptCreatedTarget(targetID target.ID, openerID string) {
	if s.isClosed() || s.arena.has(string(targetID)) {
		return
	}
	page, err := s.adopt(targetID, openerID)
	if err != nil {
		s.logger.Warn("Failed to adopt new target.",
			zap.String("target_id", string(targetID)), zap.Error(err))
		return
	}
	s.arena.activate(page.TargetID())
	s.logger.Debug("Tab opened by page.",
		zap.String("target_id", string(targetID)),
		zap.String("opener_id", openerID))
}

// adoptTarget attaches a chromedp context to the target and registers it.
func (s *cdpSession) adoptTarget(targetID target.ID, openerID string) (Page, error) {
	pageCtx, pageCancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(targetID))
	if err := chromedp.Run(pageCtx); err != nil {
		pageCancel()
		return nil, fmt.Errorf("failed to attach to target %s: %w", targetID, err)
	}

	p := newCDPPage(pageCtx, pageCancel, string(targetID), s.cfg, s.logger)

	rec, added := s.arena.add(string(targetID), openerID, p)
	if !added {
		// Lost the race against the event listener; discard ours.
		pageCancel()
		return rec.page, nil
	}
	return p, nil
}

// NewPage opens a blank tab in this session's browser context and makes it
// the active one.
func (s *cdpSession) NewPage(ctx context.Context) (Page, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	var tid target.ID
	runCtx, cancel := combineContext(s.browserCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		tid, err = target.CreateTarget("about:blank").
			WithBrowserContextID(s.browserContextID).
			Do(c)
		return err
	})); err != nil {
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	p, err := s.adoptTarget(tid, "")
	if err != nil {
		return nil, err
	}
	s.arena.activate(p.TargetID())
	return p, nil
}

func (s *cdpSession) Pages() []Page { return s.arena.pages() }

func (s *cdpSession) ActivePage() Page { return s.arena.activePage() }

func (s *cdpSession) Activate(targetID string) { s.arena.activate(targetID) }

func (s *cdpSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the session down: every open tab, then the browser context.
// Each stage is attempted independently and Close is safe to call twice.
func (s *cdpSession) Close(ctx context.Context) error {
	var firstErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.logger.Info("Closing browsing session.")

		if s.listenCancel != nil {
			s.listenCancel()
		}

		for _, p := range s.arena.pages() {
			if err := p.Close(ctx); err != nil {
				s.logger.Warn("Error closing tab.", zap.String("target_id", p.TargetID()), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		if s.browserContextID != "" {
			runCtx, cancel := combineContext(s.browserCtx, ctx)
			defer cancel()
			if err := chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
				return target.DisposeBrowserContext(s.browserContextID).Do(c)
			})); err != nil {
				s.logger.Warn("Error disposing browser context.", zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		if s.onClose != nil {
			s.onClose()
		}
	})
	return firstErr
}
