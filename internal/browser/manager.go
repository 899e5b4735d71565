// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/internal/config"
)

// Manager owns the Chrome process and hands out isolated sessions.
// Initialization is deferred until the first session is requested.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	sessions map[string]*cdpSession
}

var _ SessionFactory = (*Manager)(nil)

// NewManager creates a browser manager. The Chrome process is launched
// lazily by the first NewSession call.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.Named("browser_manager"),
		sessions: make(map[string]*cdpSession),
	}
}

func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser process.")

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", m.cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight),
		)
		for _, arg := range m.cfg.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx,
			chromedp.WithLogf(func(format string, args ...interface{}) {
				m.logger.Sugar().Debugf(format, args...)
			}))

		launchCtx, cancel := context.WithTimeout(ctx, m.cfg.LaunchTimeout)
		defer cancel()
		runCtx, runCancel := combineContext(m.browserCtx, launchCtx)
		defer runCancel()

		// Start the browser and enable target discovery so popups and
		// page-opened tabs are observed as they appear.
		if err := chromedp.Run(runCtx, target.SetDiscoverTargets(true)); err != nil {
			m.initErr = fmt.Errorf("failed to launch browser: %w", err)
			m.browserCancel()
			m.allocCancel()
			return
		}

		m.logger.Info("Browser process launched.")
	})
	return m.initErr
}

// NewSession opens a fresh isolated browser context with one blank tab.
func (m *Manager) NewSession(ctx context.Context) (Session, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	s, err := newCDPSession(ctx, m.browserCtx, m.cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create browsing session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
	}

	m.logger.Info("New browsing session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown closes any remaining sessions and tears down the browser process.
// Each stage is attempted independently.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.Lock()
	sessions := make([]*cdpSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Error closing session during shutdown.",
				zap.String("session_id", s.ID()), zap.Error(err))
		}
	}

	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
