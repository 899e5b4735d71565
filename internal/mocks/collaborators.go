// File: internal/mocks/collaborators.go
package mocks

import (
	"context"
	"sync"

	"github.com/vexaline/browsebench/api/schemas"
)

// FakeTask implements schemas.Task with overridable hooks. The zero value
// sets up nothing, never validates done, and tears down cleanly.
type FakeTask struct {
	GoalValue    schemas.Goal
	SetupErr     error
	StartURL     string
	ValidateFunc func(chat []schemas.ChatMessage) (schemas.Verdict, error)
	TeardownErr  error
	TeardownFunc func(ctx context.Context) error

	mu            sync.Mutex
	SetupCalls    int
	ValidateCalls int
	TeardownCalls int
}

var _ schemas.Task = (*FakeTask)(nil)

func (t *FakeTask) Setup(ctx context.Context, page schemas.PageHandle) (schemas.Goal, map[string]any, error) {
	t.mu.Lock()
	t.SetupCalls++
	t.mu.Unlock()
	if t.SetupErr != nil {
		return schemas.Goal{}, nil, t.SetupErr
	}
	if t.StartURL != "" {
		if err := page.Navigate(ctx, t.StartURL); err != nil {
			return schemas.Goal{}, nil, err
		}
	}
	return t.GoalValue, nil, nil
}

func (t *FakeTask) Validate(ctx context.Context, page schemas.PageHandle, chat []schemas.ChatMessage) (schemas.Verdict, error) {
	t.mu.Lock()
	t.ValidateCalls++
	t.mu.Unlock()
	if t.ValidateFunc != nil {
		return t.ValidateFunc(chat)
	}
	return schemas.Verdict{}, nil
}

func (t *FakeTask) Teardown(ctx context.Context) error {
	t.mu.Lock()
	t.TeardownCalls++
	t.mu.Unlock()
	if t.TeardownFunc != nil {
		return t.TeardownFunc(ctx)
	}
	return t.TeardownErr
}

// ScriptedAgent replays a fixed action sequence and then repeats its last
// action. It satisfies schemas.Agent.
type ScriptedAgent struct {
	Actions []string
	Err     error

	mu   sync.Mutex
	next int
	Seen []*schemas.Observation
}

var _ schemas.Agent = (*ScriptedAgent)(nil)

func (a *ScriptedAgent) GetAction(ctx context.Context, obs *schemas.Observation) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Seen = append(a.Seen, obs)
	if a.Err != nil {
		return "", a.Err
	}
	if len(a.Actions) == 0 {
		return "noop(0)", nil
	}
	if a.next >= len(a.Actions) {
		return a.Actions[len(a.Actions)-1], nil
	}
	action := a.Actions[a.next]
	a.next++
	return action, nil
}
