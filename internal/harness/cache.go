// internal/harness/cache.go
package harness

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache persists one JSON result document per canonical task id under the
// results directory.
type Cache struct {
	dir    string
	logger *zap.Logger
}

func NewCache(dir string, logger *zap.Logger) *Cache {
	return &Cache{dir: dir, logger: logger.Named("cache")}
}

func (c *Cache) path(taskID string) string {
	return filepath.Join(c.dir, taskID+".json")
}

// Load returns the cached result for the task, or ok=false when none exists.
// A corrupt cache file is reported as an error, not silently re-run.
func (c *Cache) Load(taskID string) (*schemas.TaskResult, bool, error) {
	data, err := os.ReadFile(c.path(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached result for %s: %w", taskID, err)
	}

	var res schemas.TaskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("corrupt cached result for %s: %w", taskID, err)
	}
	return &res, true, nil
}

// Store writes the result document, overwriting any previous entry.
func (c *Cache) Store(res *schemas.TaskResult) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result for %s: %w", res.TaskID, err)
	}
	if err := os.WriteFile(c.path(res.TaskID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write result for %s: %w", res.TaskID, err)
	}
	c.logger.Debug("Result persisted.", zap.String("task_id", res.TaskID))
	return nil
}
