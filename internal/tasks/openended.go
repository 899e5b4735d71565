// internal/tasks/openended.go
package tasks

import (
	"context"

	"github.com/vexaline/browsebench/api/schemas"
)

// Openended is a minimal built-in task: navigate to a start URL, hand the
// agent a free-form goal, and consider the episode done once the agent
// sends a message to the user (or declares the task infeasible). Benchmark
// task suites with real evaluation rubrics register their own Task
// implementations alongside it.
type Openended struct {
	StartURL string
	Goal     string
}

var _ schemas.Task = (*Openended)(nil)

func (t *Openended) Setup(ctx context.Context, page schemas.PageHandle) (schemas.Goal, map[string]any, error) {
	if t.StartURL != "" {
		if err := page.Navigate(ctx, t.StartURL); err != nil {
			return schemas.Goal{}, nil, err
		}
	}
	return schemas.Goal{Text: t.Goal}, map[string]any{"start_url": t.StartURL}, nil
}

func (t *Openended) Validate(ctx context.Context, page schemas.PageHandle, chat []schemas.ChatMessage) (schemas.Verdict, error) {
	// The seed transcript opens with an assistant greeting; any later
	// assistant message is an actual answer from the agent.
	for i, msg := range chat {
		if i == 0 {
			continue
		}
		switch msg.Role {
		case schemas.RoleAssistant:
			return schemas.Verdict{Reward: 1, Done: true}, nil
		case schemas.RoleInfeasible:
			return schemas.Verdict{Done: true, Message: "Understood, stopping here."}, nil
		}
	}
	return schemas.Verdict{}, nil
}

func (t *Openended) Teardown(ctx context.Context) error { return nil }
