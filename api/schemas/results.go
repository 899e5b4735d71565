// api/schemas/results.go
package schemas

import "time"

// TaskResult is the persisted outcome of one episode. One JSON document is
// written per canonical task id under the results directory.
type TaskResult struct {
	TaskID     string        `json:"task_id"`
	CumReward  float64       `json:"cum_reward"`
	Elapsed    time.Duration `json:"elapsed_time"`
	Steps      int           `json:"n_steps"`
	Success    bool          `json:"success"`
	Err        string        `json:"error,omitempty"`
	Stack      string        `json:"stack,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}
