// cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/browser"
	"github.com/vexaline/browsebench/internal/harness"
	"github.com/vexaline/browsebench/internal/tasks"
)

var (
	runTasks       []string
	runStartURL    string
	runGoal        string
	runActionsFile string
	runNoCache     bool
	runRefresh     bool
	runCacheOnly   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run benchmark episodes against an agent.",
	Long: `Run resolves the selected tasks, drives one episode per task with the
configured agent, persists results under the results directory and prints the
batch summary. With --actions-file the built-in replay agent executes a
scripted action list, which exercises the full loop without an LLM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runNoCache {
			cfg.Harness.UseCache = false
		}
		if runRefresh {
			cfg.Harness.ForceRefresh = true
		}
		if runCacheOnly {
			cfg.Harness.CacheOnly = true
		}

		catalog := tasks.NewCatalog()
		if err := catalog.Register(schemas.TaskEntry{
			Name:    "openended",
			Version: cfg.Harness.DefaultVersion,
			Type:    "openended",
			New: func() schemas.Task {
				return &tasks.Openended{StartURL: runStartURL, Goal: runGoal}
			},
		}); err != nil {
			return err
		}

		agent, err := buildAgent()
		if err != nil {
			return err
		}

		manager := browser.NewManager(cfg.Browser, logger)
		defer func() {
			if err := manager.Shutdown(context.Background()); err != nil {
				logger.Warn("Browser shutdown failed.", zap.Error(err))
			}
		}()

		h := harness.New(cfg.Harness, cfg.Env, manager, catalog, logger)
		results, summary, err := h.Run(cmd.Context(), agent, runTasks)
		if err != nil {
			return err
		}

		for _, res := range results {
			status := "FAIL"
			if res.Success {
				status = "PASS"
			}
			fmt.Printf("%-40s %s  reward=%.2f  steps=%d  elapsed=%s\n",
				res.TaskID, status, res.CumReward, res.Steps, res.Elapsed.Round(10*time.Millisecond))
			if res.Err != "" {
				fmt.Printf("  error: %s\n", res.Err)
			}
		}
		fmt.Printf("\n%d/%d tasks succeeded (%.0f%%), mean elapsed %s\n",
			summary.Successes, summary.Total, summary.SuccessRate*100, summary.MeanElapsed.Round(10*time.Millisecond))
		return nil
	},
}

func buildAgent() (schemas.Agent, error) {
	if runActionsFile == "" {
		return nil, fmt.Errorf("an agent is required: pass --actions-file to use the replay agent")
	}
	return newReplayAgent(runActionsFile)
}

// replayAgent plays back a scripted action list, one action per line. Once
// the script is exhausted it reports the task infeasible so the episode
// terminates instead of burning the step budget.
type replayAgent struct {
	mu      sync.Mutex
	actions []string
	next    int
}

var _ schemas.Agent = (*replayAgent)(nil)

func newReplayAgent(path string) (*replayAgent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open actions file: %w", err)
	}
	defer f.Close()

	var actions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		actions = append(actions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read actions file: %w", err)
	}
	return &replayAgent{actions: actions}, nil
}

func (a *replayAgent) GetAction(ctx context.Context, obs *schemas.Observation) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next >= len(a.actions) {
		return `report_infeasible("replay script exhausted")`, nil
	}
	action := a.actions[a.next]
	a.next++
	return action, nil
}

func init() {
	runCmd.Flags().StringSliceVarP(&runTasks, "task", "t", nil, "task reference to run (repeatable); overrides configured selection")
	runCmd.Flags().StringVar(&runStartURL, "start-url", "about:blank", "start URL for the built-in openended task")
	runCmd.Flags().StringVar(&runGoal, "goal", "", "goal text for the built-in openended task")
	runCmd.Flags().StringVar(&runActionsFile, "actions-file", "", "file with one action per line for the replay agent")
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "ignore and do not consult cached results")
	runCmd.Flags().BoolVar(&runRefresh, "refresh", false, "re-run tasks even when a cached result exists")
	runCmd.Flags().BoolVar(&runCacheOnly, "cache-only", false, "fail instead of running when a result is not cached")
	rootCmd.AddCommand(runCmd)
}
