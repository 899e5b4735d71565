// internal/harness/harness_test.go
package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/config"
	"github.com/vexaline/browsebench/internal/mocks"
	"github.com/vexaline/browsebench/internal/tasks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// answerValidated passes once the agent has sent a message to the user.
func answerValidated(chat []schemas.ChatMessage) (schemas.Verdict, error) {
	for i, msg := range chat {
		if i > 0 && msg.Role == schemas.RoleAssistant {
			return schemas.Verdict{Reward: 1, Done: true}, nil
		}
	}
	return schemas.Verdict{}, nil
}

type fixture struct {
	harness *Harness
	factory *mocks.FakeFactory
	// episodes counts how many times a real (non-cached) episode ran.
	episodes *atomic.Int64
	dir      string
}

func newFixture(t *testing.T, mutate func(*config.HarnessConfig)) *fixture {
	t.Helper()

	cfg := config.HarnessConfig{
		ResultsDir:     t.TempDir(),
		UseCache:       true,
		MaxSteps:       5,
		DefaultVersion: "v1",
		Workers:        1,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	var episodes atomic.Int64
	catalog := tasks.NewCatalog()
	require.NoError(t, catalog.Register(schemas.TaskEntry{
		Name: "demo", Version: "v1", Type: "demo", NumericID: 1,
		New: func() schemas.Task {
			episodes.Add(1)
			return &mocks.FakeTask{
				GoalValue:    schemas.Goal{Text: "answer the question"},
				ValidateFunc: answerValidated,
			}
		},
	}))
	require.NoError(t, catalog.Register(schemas.TaskEntry{
		Name: "extra", Version: "v1", Type: "extra", NumericID: 2,
		New: func() schemas.Task {
			episodes.Add(1)
			return &mocks.FakeTask{
				GoalValue:    schemas.Goal{Text: "another one"},
				ValidateFunc: answerValidated,
			}
		},
	}))

	factory := &mocks.FakeFactory{}
	return &fixture{
		harness:  New(cfg, config.EnvConfig{}, factory, catalog, zap.NewNop()),
		factory:  factory,
		episodes: &episodes,
		dir:      cfg.ResultsDir,
	}
}

func TestRunSuccessfulEpisode(t *testing.T) {
	f := newFixture(t, nil)
	agent := &mocks.ScriptedAgent{Actions: []string{`send_msg_to_user("42")`}}

	results, summary, err := f.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "v1.demo", res.TaskID)
	assert.True(t, res.Success)
	assert.Equal(t, 1.0, res.CumReward)
	assert.Equal(t, 1, res.Steps)
	assert.Empty(t, res.Err)

	assert.Equal(t, 1, summary.Successes)
	assert.Equal(t, 1.0, summary.SuccessRate)

	// One JSON document per canonical task id.
	_, statErr := os.Stat(filepath.Join(f.dir, "v1.demo.json"))
	assert.NoError(t, statErr)

	// The episode's session was released.
	require.NotNil(t, f.factory.Last())
	assert.True(t, f.factory.Last().IsClosed())
}

func TestRunStepBudgetExhaustion(t *testing.T) {
	f := newFixture(t, func(cfg *config.HarnessConfig) { cfg.MaxSteps = 3 })
	agent := &mocks.ScriptedAgent{Actions: []string{"noop(0)"}}

	results, _, err := f.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, 3, results[0].Steps)
}

func TestRunCacheHitSkipsEpisode(t *testing.T) {
	f := newFixture(t, nil)
	agent := &mocks.ScriptedAgent{Actions: []string{`send_msg_to_user("42")`}}

	first, _, err := f.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.NoError(t, err)
	require.EqualValues(t, 1, f.episodes.Load())

	second, _, err := f.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.EqualValues(t, 1, f.episodes.Load(), "cached rerun must not execute an episode")

	// FinishedAt is normalized because JSON decoding drops the monotonic
	// clock reading; everything else must come back byte-identical.
	want, got := first[0], second[0]
	assert.True(t, want.FinishedAt.Equal(got.FinishedAt))
	want.FinishedAt, got.FinishedAt = time.Time{}, time.Time{}
	assert.Equal(t, want, got, "cached result must come back unchanged")
}

func TestRunForceRefreshOverwritesCache(t *testing.T) {
	f := newFixture(t, nil)
	agent := &mocks.ScriptedAgent{Actions: []string{`send_msg_to_user("42")`}}

	_, _, err := f.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.NoError(t, err)
	require.EqualValues(t, 1, f.episodes.Load())

	refreshing := newFixture(t, func(cfg *config.HarnessConfig) {
		cfg.ForceRefresh = true
	})
	refreshing.harness.cfg.ResultsDir = f.dir
	refreshing.harness.cache = NewCache(f.dir, zap.NewNop())

	_, _, err = refreshing.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, refreshing.episodes.Load(), "forced refresh must re-execute")
}

func TestRunCacheOnlyMissFailsFast(t *testing.T) {
	f := newFixture(t, func(cfg *config.HarnessConfig) { cfg.CacheOnly = true })
	agent := &mocks.ScriptedAgent{Actions: []string{`send_msg_to_user("42")`}}

	_, _, err := f.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache-only")
	assert.EqualValues(t, 0, f.episodes.Load())
}

func TestRunCacheOnlyCorruptEntryReportsCorruption(t *testing.T) {
	f := newFixture(t, func(cfg *config.HarnessConfig) { cfg.CacheOnly = true })
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "v1.demo.json"), []byte("{nope"), 0o644))
	agent := &mocks.ScriptedAgent{Actions: []string{`send_msg_to_user("42")`}}

	_, _, err := f.harness.Run(context.Background(), agent, []string{"v1.demo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt", "an unreadable entry is not a cache miss")
	assert.EqualValues(t, 0, f.episodes.Load())
}

// cancelingAgent cancels the batch context and then fails, simulating an
// interrupt arriving mid-episode.
type cancelingAgent struct{ cancel context.CancelFunc }

func (a *cancelingAgent) GetAction(ctx context.Context, obs *schemas.Observation) (string, error) {
	a.cancel()
	return "", errors.New("interrupted")
}

func TestRunTeardownSurvivesBatchCancellation(t *testing.T) {
	cfg := config.HarnessConfig{ResultsDir: t.TempDir(), MaxSteps: 5, DefaultVersion: "v1"}

	var teardownCtxErr error
	teardownRan := false
	catalog := tasks.NewCatalog()
	require.NoError(t, catalog.Register(schemas.TaskEntry{
		Name: "demo", Version: "v1", Type: "demo", NumericID: 1,
		New: func() schemas.Task {
			return &mocks.FakeTask{
				GoalValue: schemas.Goal{Text: "answer the question"},
				TeardownFunc: func(ctx context.Context) error {
					teardownRan = true
					teardownCtxErr = ctx.Err()
					return ctx.Err()
				},
			}
		},
	}))

	factory := &mocks.FakeFactory{}
	h := New(cfg, config.EnvConfig{}, factory, catalog, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, _, err := h.Run(ctx, &cancelingAgent{cancel: cancel}, []string{"v1.demo"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Err, "interrupted")

	assert.True(t, teardownRan)
	assert.NoError(t, teardownCtxErr, "teardown must not run on the cancelled batch context")
	require.NotNil(t, factory.Last())
	assert.True(t, factory.Last().IsClosed())
}

// A failing agent produces a failed result for its task only; the batch
// continues with the remaining tasks.
func TestRunAgentErrorIsolatedPerTask(t *testing.T) {
	f := newFixture(t, func(cfg *config.HarnessConfig) { cfg.UseCache = false })
	agent := &mocks.ScriptedAgent{Err: errors.New("model unavailable")}

	results, summary, err := f.harness.Run(context.Background(), agent, []string{"v1.demo", "v1.extra"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "model unavailable")
	}
	assert.Equal(t, 0, summary.Successes)

	// Sessions were released even though both episodes failed.
	for _, session := range f.factory.Sessions {
		assert.True(t, session.IsClosed())
	}
}

func TestRunUnknownTaskYieldsFailedResult(t *testing.T) {
	f := newFixture(t, func(cfg *config.HarnessConfig) { cfg.UseCache = false })
	agent := &mocks.ScriptedAgent{}

	results, _, err := f.harness.Run(context.Background(), agent, []string{"v1.ghost", "v1.demo"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Err, "not found")
	assert.Empty(t, results[1].Err, "batch must continue past the unknown task")
}

func TestResolveTasksPrecedence(t *testing.T) {
	f := newFixture(t, func(cfg *config.HarnessConfig) {
		cfg.TaskName = "extra"
	})

	// Explicit references win over the configured name.
	ids, err := f.harness.ResolveTasks([]string{"demo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.demo"}, ids)

	// Configured single name comes next.
	ids, err = f.harness.ResolveTasks(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.extra"}, ids)
}

func TestResolveTasksFilters(t *testing.T) {
	f := newFixture(t, func(cfg *config.HarnessConfig) {
		cfg.TaskType = "demo"
	})
	ids, err := f.harness.ResolveTasks(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.demo"}, ids)

	byID := newFixture(t, func(cfg *config.HarnessConfig) {
		cfg.TaskIDs = []int{2}
	})
	ids, err = byID.harness.ResolveTasks(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.extra"}, ids)

	all := newFixture(t, nil)
	ids, err = all.harness.ResolveTasks(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.demo", "v1.extra"}, ids)

	none := newFixture(t, func(cfg *config.HarnessConfig) {
		cfg.TaskType = "nonexistent"
	})
	_, err = none.harness.ResolveTasks(nil)
	assert.Error(t, err)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(t.TempDir(), zap.NewNop())

	_, ok, err := cache.Load("v1.demo")
	require.NoError(t, err)
	assert.False(t, ok)

	stored := &schemas.TaskResult{TaskID: "v1.demo", CumReward: 1, Steps: 4, Success: true}
	require.NoError(t, cache.Store(stored))

	loaded, ok, err := cache.Load("v1.demo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored, loaded)
}

func TestCacheCorruptEntryIsAnError(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, zap.NewNop())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v1.demo.json"), []byte("{nope"), 0o644))

	_, _, err := cache.Load("v1.demo")
	assert.Error(t, err)
}
