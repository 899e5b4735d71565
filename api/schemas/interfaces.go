// api/schemas/interfaces.go
package schemas

import "context"

// Goal is what a task hands back from Setup. Either Text or Parts may be
// set; the environment normalizes a bare Text into a single text part.
type Goal struct {
	Text  string
	Parts []GoalPart
}

// Verdict is the outcome of one validation pass.
type Verdict struct {
	Reward  float64
	Done    bool
	Message string
	Info    map[string]any
}

// Task is the benchmark task collaborator. Task content (start URL, goal
// text, evaluation rubric) lives entirely behind this contract.
type Task interface {
	// Setup prepares the page for the episode and returns the goal.
	Setup(ctx context.Context, page PageHandle) (Goal, map[string]any, error)
	// Validate inspects the page and transcript and scores the episode.
	Validate(ctx context.Context, page PageHandle, chat []ChatMessage) (Verdict, error)
	// Teardown releases any task-held resources.
	Teardown(ctx context.Context) error
}

// Agent produces the next action string for an observation. Implementations
// are external collaborators (typically LLM-backed).
type Agent interface {
	GetAction(ctx context.Context, obs *Observation) (string, error)
}

// ObservationPreprocessor is optionally implemented by agents that want to
// reshape observations before acting on them.
type ObservationPreprocessor interface {
	PreprocessObservation(obs *Observation) *Observation
}

// AgentCloser is optionally implemented by agents holding resources.
type AgentCloser interface {
	Close() error
}

// TaskEntry describes one catalog entry.
type TaskEntry struct {
	Name      string
	Version   string
	Type      string
	NumericID int
	New       func() Task
}

// TaskCatalog resolves benchmark tasks. The harness treats it as immutable.
type TaskCatalog interface {
	Lookup(canonicalID string) (TaskEntry, bool)
	All() []TaskEntry
}
