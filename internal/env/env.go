// internal/env/env.go

// Package env implements the environment state machine that ties element
// tagging, observation extraction and action execution into the
// reset/step/close episode lifecycle.
package env

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/actions"
	"github.com/vexaline/browsebench/internal/browser"
	"github.com/vexaline/browsebench/internal/config"
	"github.com/vexaline/browsebench/internal/observation"
)

// State is the lifecycle phase of an environment.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

var (
	// ErrNotReady reports Step called before a successful Reset.
	ErrNotReady = errors.New("environment is not ready: Reset must complete before Step")
	// ErrClosed reports use of an environment after Close.
	ErrClosed = errors.New("environment is closed")
)

// StepResult is the outcome of one step: the next observation plus the
// task's verdict for this turn.
type StepResult struct {
	Obs    *schemas.Observation
	Reward float64
	Done   bool
	Info   map[string]any
}

// Env drives one episode. It owns exactly one browsing session between
// Reset and Close. Calls are serialized by the harness; Env is not safe for
// concurrent use.
type Env struct {
	cfg       config.EnvConfig
	factory   browser.SessionFactory
	registry  *actions.Registry
	extractor *observation.Extractor
	logger    *zap.Logger

	state   State
	session browser.Session
	task    schemas.Task

	goalText  string
	goalParts []schemas.GoalPart
	chat      []schemas.ChatMessage

	started         time.Time
	lastAction      string
	lastActionError string
	infeasible      bool
}

func New(cfg config.EnvConfig, factory browser.SessionFactory, logger *zap.Logger) *Env {
	return &Env{
		cfg:       cfg,
		factory:   factory,
		registry:  actions.NewRegistry(logger),
		extractor: observation.NewExtractor(cfg, logger),
		logger:    logger.Named("env"),
	}
}

// State returns the current lifecycle phase.
func (e *Env) State() State { return e.state }

// Chat returns the transcript to date.
func (e *Env) Chat() []schemas.ChatMessage {
	out := make([]schemas.ChatMessage, len(e.chat))
	copy(out, e.chat)
	return out
}

// Reset starts a new episode against the given task: a fresh isolated
// browsing session, the task's page setup, a seeded transcript, and the
// first observation.
func (e *Env) Reset(ctx context.Context, task schemas.Task) (*schemas.Observation, error) {
	if e.state == StateClosed {
		return nil, ErrClosed
	}
	if e.session != nil {
		// A repeated Reset abandons the previous episode's session.
		if err := e.session.Close(ctx); err != nil {
			e.logger.Warn("Error closing previous session on reset.", zap.Error(err))
		}
		e.session = nil
	}

	session, err := e.factory.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browsing session: %w", err)
	}
	e.session = session
	e.task = task
	e.started = time.Now()
	e.lastAction = ""
	e.lastActionError = ""
	e.infeasible = false

	page, err := e.resolveActivePage(ctx)
	if err != nil {
		return nil, err
	}

	goal, _, err := task.Setup(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("task setup failed: %w", err)
	}

	e.goalText, e.goalParts = normalizeGoal(goal)
	e.chat = seedTranscript(e.goalParts)

	if err := page.WaitForSettle(ctx, e.cfg.SettleTimeout); err != nil {
		return nil, err
	}

	obs, err := e.observe(ctx)
	if err != nil {
		return nil, err
	}
	e.state = StateReady
	e.logger.Info("Episode started.", zap.String("session_id", session.ID()), zap.String("goal", e.goalText))
	return obs, nil
}

// Step executes one agent action, settles the UI, re-resolves the active
// tab, validates the episode and returns the next observation. Action parse
// and execution failures are recorded on the observation, never raised.
func (e *Env) Step(ctx context.Context, action string) (*StepResult, error) {
	switch e.state {
	case StateClosed:
		return nil, ErrClosed
	case StateUninitialized:
		return nil, ErrNotReady
	}

	e.lastAction = action
	e.lastActionError = ""

	if err := e.registry.Execute(ctx, e, action); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.lastActionError = err.Error()
		e.logger.Debug("Action failed.", zap.String("action", action), zap.Error(err))
	}

	e.settle(ctx)

	page, err := e.resolveActivePage(ctx)
	if err != nil {
		return nil, err
	}

	verdict, info := e.validate(ctx, page)
	if verdict.Message != "" {
		e.chat = append(e.chat, schemas.ChatMessage{Role: schemas.RoleUser, Text: verdict.Message})
	}

	obs, err := e.observe(ctx)
	if err != nil {
		return nil, err
	}

	return &StepResult{
		Obs:    obs,
		Reward: verdict.Reward,
		Done:   verdict.Done || e.infeasible,
		Info:   info,
	}, nil
}

// settle gives the page a short grace period after an action and then waits,
// bounded per tab, for navigation and network quiescence. Both waits degrade
// to "proceed anyway".
func (e *Env) settle(ctx context.Context) {
	if e.cfg.SettleWait > 0 {
		select {
		case <-time.After(e.cfg.SettleWait):
		case <-ctx.Done():
			return
		}
	}
	for _, pg := range e.session.Pages() {
		if err := pg.WaitForSettle(ctx, e.cfg.SettleTimeout); err != nil {
			e.logger.Debug("Tab settle wait aborted.", zap.String("target_id", pg.TargetID()), zap.Error(err))
		}
	}
}

// validate invokes the task's validation hook, shielding the episode from a
// panicking or failing check: the step proceeds with a zero, not-done
// verdict and the failure recorded in the step info.
func (e *Env) validate(ctx context.Context, page browser.Page) (verdict schemas.Verdict, info map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Task validation panicked.", zap.Any("panic", r))
			verdict = schemas.Verdict{}
			info = map[string]any{"validation_error": fmt.Sprint(r)}
		}
	}()

	v, err := e.task.Validate(ctx, page, e.Chat())
	if err != nil {
		e.logger.Warn("Task validation failed.", zap.Error(err))
		return schemas.Verdict{}, map[string]any{"validation_error": err.Error()}
	}
	return v, v.Info
}

// resolveActivePage returns the tab the episode currently acts on. If the
// previously active tab closed, the activation history is walked most
// recently active first; if no tab remains at all, a fresh blank tab is
// opened so an observation never exposes zero open tabs.
func (e *Env) resolveActivePage(ctx context.Context) (browser.Page, error) {
	if e.session == nil {
		return nil, ErrNotReady
	}
	if pg := e.session.ActivePage(); pg != nil {
		return pg, nil
	}
	e.logger.Info("No open tab remains; opening a fresh one.")
	pg, err := e.session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover with a fresh tab: %w", err)
	}
	return pg, nil
}

// observe extracts the next observation from the active tab.
func (e *Env) observe(ctx context.Context) (*schemas.Observation, error) {
	page, err := e.resolveActivePage(ctx)
	if err != nil {
		return nil, err
	}

	capture, err := e.extractor.Extract(ctx, page)
	if err != nil {
		return nil, err
	}

	url, err := page.URL(ctx)
	if err != nil {
		e.logger.Debug("Failed to read active tab URL.", zap.Error(err))
	}

	pages := e.session.Pages()
	openURLs := make([]string, 0, len(pages))
	active := 0
	for i, pg := range pages {
		u, err := pg.URL(ctx)
		if err != nil {
			e.logger.Debug("Failed to read tab URL.", zap.String("target_id", pg.TargetID()), zap.Error(err))
		}
		openURLs = append(openURLs, u)
		if pg.TargetID() == page.TargetID() {
			active = i
		}
	}

	return &schemas.Observation{
		GoalText:        e.goalText,
		GoalParts:       e.goalParts,
		Chat:            e.Chat(),
		URL:             url,
		OpenPageURLs:    openURLs,
		ActivePage:      active,
		HTML:            capture.HTML,
		AXTree:          capture.AXTree,
		Screenshot:      capture.Screenshot,
		FocusedBid:      capture.FocusedBid,
		LastAction:      e.lastAction,
		LastActionError: e.lastActionError,
		Elapsed:         time.Since(e.started),
		Session:         e.session,
	}, nil
}

// -- actions.Context --

// ActivePage satisfies actions.Context.
func (e *Env) ActivePage(ctx context.Context) (browser.Page, error) {
	return e.resolveActivePage(ctx)
}

// SendMessage appends an agent-issued message to the transcript.
func (e *Env) SendMessage(role, text string) {
	e.chat = append(e.chat, schemas.ChatMessage{Role: schemas.ChatRole(role), Text: text})
}

// ReportInfeasible records the agent's judgement that the task cannot be
// completed; the episode terminates at the end of the current step.
func (e *Env) ReportInfeasible(reason string) {
	e.infeasible = true
	e.chat = append(e.chat, schemas.ChatMessage{Role: schemas.RoleInfeasible, Text: reason})
}

// Close tears the episode down. Each stage is attempted independently so
// one failure does not prevent the others; Close is idempotent and safe to
// call before a successful Reset.
func (e *Env) Close(ctx context.Context) error {
	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosed

	var firstErr error

	if e.task != nil {
		if err := e.task.Teardown(ctx); err != nil {
			e.logger.Warn("Task teardown failed.", zap.Error(err))
			firstErr = err
		}
		e.task = nil
	}

	if e.session != nil {
		if err := e.session.Close(ctx); err != nil {
			e.logger.Warn("Session close failed.", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		e.session = nil
	}

	e.logger.Info("Environment closed.")
	return firstErr
}
