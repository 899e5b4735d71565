// internal/tasks/catalog.go

// Package tasks provides the process-local benchmark task catalog the
// harness resolves task references against.
package tasks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vexaline/browsebench/api/schemas"
)

// Catalog is an in-memory task registry keyed by canonical task id. It is
// populated at startup and treated as immutable afterwards.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]schemas.TaskEntry
}

var _ schemas.TaskCatalog = (*Catalog)(nil)

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]schemas.TaskEntry)}
}

// CanonicalID is the `<version>.<name>` id of an entry.
func CanonicalID(e schemas.TaskEntry) string {
	return e.Version + "." + e.Name
}

// Register adds an entry. A duplicate canonical id or a nil constructor is
// rejected.
func (c *Catalog) Register(e schemas.TaskEntry) error {
	if e.Name == "" || e.Version == "" {
		return fmt.Errorf("task entry needs both name and version, got %q / %q", e.Name, e.Version)
	}
	if e.New == nil {
		return fmt.Errorf("task entry %s has no constructor", CanonicalID(e))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := CanonicalID(e)
	if _, dup := c.entries[id]; dup {
		return fmt.Errorf("task %s is already registered", id)
	}
	c.entries[id] = e
	return nil
}

func (c *Catalog) Lookup(canonicalID string) (schemas.TaskEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[canonicalID]
	return e, ok
}

// All returns every entry sorted by canonical id.
func (c *Catalog) All() []schemas.TaskEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]schemas.TaskEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return CanonicalID(out[i]) < CanonicalID(out[j])
	})
	return out
}
