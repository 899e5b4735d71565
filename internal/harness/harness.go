// internal/harness/harness.go

// Package harness runs agent episodes against benchmark tasks: it
// canonicalizes task references, drives the agent/environment loop, caches
// results and aggregates batch statistics.
package harness

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/browser"
	"github.com/vexaline/browsebench/internal/config"
	"github.com/vexaline/browsebench/internal/env"
	"github.com/vexaline/browsebench/internal/tasks"
)

// envCloseTimeout bounds the environment teardown of a single episode.
const envCloseTimeout = 30 * time.Second

// Harness executes one or many episodes. Episodes in a batch run strictly
// one after another; the workers setting is accepted but parallel execution
// is a documented extension point, not a current capability.
type Harness struct {
	cfg     config.HarnessConfig
	envCfg  config.EnvConfig
	factory browser.SessionFactory
	catalog schemas.TaskCatalog
	cache   *Cache
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg config.HarnessConfig, envCfg config.EnvConfig, factory browser.SessionFactory, catalog schemas.TaskCatalog, logger *zap.Logger) *Harness {
	var limiter *rate.Limiter
	if cfg.AgentRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.AgentRPS), 1)
	}
	return &Harness{
		cfg:     cfg,
		envCfg:  envCfg,
		factory: factory,
		catalog: catalog,
		cache:   NewCache(cfg.ResultsDir, logger),
		limiter: limiter,
		logger:  logger.Named("harness"),
	}
}

// ResolveTasks determines the canonical ids of the tasks to run: an explicit
// reference list wins, then the single configured task name, then the
// type/id filters applied to the full catalog.
func (h *Harness) ResolveTasks(explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		out := make([]string, 0, len(explicit))
		for _, ref := range explicit {
			id, err := CanonicalTaskID(ref, h.cfg.DefaultVersion)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
		return out, nil
	}

	if h.cfg.TaskName != "" {
		id, err := CanonicalTaskID(h.cfg.TaskName, h.cfg.DefaultVersion)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}

	wantIDs := make(map[int]bool, len(h.cfg.TaskIDs))
	for _, id := range h.cfg.TaskIDs {
		wantIDs[id] = true
	}

	var out []string
	for _, entry := range h.catalog.All() {
		if h.cfg.TaskType != "" && entry.Type != h.cfg.TaskType {
			continue
		}
		if len(wantIDs) > 0 && !wantIDs[entry.NumericID] {
			continue
		}
		out = append(out, tasks.CanonicalID(entry))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no tasks matched the configured selection")
	}
	return out, nil
}

// Run executes every referenced task and returns the per-task results plus
// the batch summary. An error inside one task's episode yields a failed
// result for that task only; the batch continues.
func (h *Harness) Run(ctx context.Context, agent schemas.Agent, refs []string) ([]schemas.TaskResult, Summary, error) {
	taskIDs, err := h.ResolveTasks(refs)
	if err != nil {
		return nil, Summary{}, err
	}

	if h.cfg.Workers > 1 {
		h.logger.Warn("Parallel episode execution is not implemented; running sequentially.",
			zap.Int("workers", h.cfg.Workers))
	}

	defer func() {
		if closer, ok := agent.(schemas.AgentCloser); ok {
			if err := closer.Close(); err != nil {
				h.logger.Warn("Agent close failed.", zap.Error(err))
			}
		}
	}()

	results := make([]schemas.TaskResult, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		if ctx.Err() != nil {
			return results, Aggregate(results), ctx.Err()
		}

		if h.cfg.UseCache && !h.cfg.ForceRefresh {
			cached, ok, err := h.cache.Load(taskID)
			switch {
			case err != nil && h.cfg.CacheOnly:
				// An unreadable entry is a different failure than a missing
				// one; surface it as such instead of re-running.
				return results, Aggregate(results), fmt.Errorf("cache-only mode: %w", err)
			case err != nil:
				h.logger.Warn("Failed to load cached result; re-running.", zap.String("task_id", taskID), zap.Error(err))
			case ok:
				h.logger.Info("Using cached result.", zap.String("task_id", taskID))
				results = append(results, *cached)
				continue
			}
		}
		if h.cfg.CacheOnly {
			return results, Aggregate(results), fmt.Errorf("cache-only mode: no cached result for %s", taskID)
		}

		res := h.runTask(ctx, agent, taskID)
		results = append(results, res)

		if err := h.cache.Store(&res); err != nil {
			h.logger.Warn("Failed to persist result.", zap.String("task_id", taskID), zap.Error(err))
		}
	}

	summary := Aggregate(results)
	h.logger.Info("Batch complete.",
		zap.Int("total", summary.Total),
		zap.Int("successes", summary.Successes),
		zap.Float64("success_rate", summary.SuccessRate),
		zap.Duration("mean_elapsed", summary.MeanElapsed))
	return results, summary, nil
}

// runTask runs one episode and always produces a TaskResult, converting any
// uncaught error or panic into a failed result for this task alone.
func (h *Harness) runTask(ctx context.Context, agent schemas.Agent, taskID string) (res schemas.TaskResult) {
	logger := h.logger.With(zap.String("task_id", taskID))
	started := time.Now()

	res = schemas.TaskResult{TaskID: taskID}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Sprintf("episode panicked: %v", r)
			res.Stack = string(debug.Stack())
			res.Success = false
			logger.Error("Episode panicked.", zap.Any("panic", r))
		}
		res.Elapsed = time.Since(started)
		res.FinishedAt = time.Now()
	}()

	entry, ok := h.catalog.Lookup(taskID)
	if !ok {
		res.Err = fmt.Sprintf("task %s not found in catalog", taskID)
		return res
	}

	environment := env.New(h.envCfg, h.factory, logger)
	defer func() {
		// Teardown runs on its own context so a cancelled or expired batch
		// context still releases the browser session.
		closeCtx, cancel := context.WithTimeout(context.Background(), envCloseTimeout)
		defer cancel()
		if err := environment.Close(closeCtx); err != nil {
			logger.Warn("Environment close failed.", zap.Error(err))
		}
	}()

	logger.Info("Episode starting.")
	obs, err := environment.Reset(ctx, entry.New())
	if err != nil {
		res.Err = fmt.Sprintf("reset failed: %v", err)
		return res
	}

	for res.Steps < h.cfg.MaxSteps {
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				res.Err = err.Error()
				return res
			}
		}

		if pre, ok := agent.(schemas.ObservationPreprocessor); ok {
			obs = pre.PreprocessObservation(obs)
		}

		action, err := agent.GetAction(ctx, obs)
		if err != nil {
			res.Err = fmt.Sprintf("agent failed at step %d: %v", res.Steps, err)
			return res
		}

		step, err := environment.Step(ctx, action)
		if err != nil {
			res.Err = fmt.Sprintf("step %d failed: %v", res.Steps, err)
			return res
		}

		res.Steps++
		res.CumReward += step.Reward
		obs = step.Obs

		if step.Done {
			break
		}
	}

	res.Success = res.CumReward > 0
	logger.Info("Episode finished.",
		zap.Int("steps", res.Steps),
		zap.Float64("cum_reward", res.CumReward),
		zap.Bool("success", res.Success))
	return res
}
