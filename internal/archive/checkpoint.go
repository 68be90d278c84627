// internal/archive/checkpoint.go
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// CheckpointFile is the resume checkpoint written next to the archives.
const CheckpointFile = "done.json"

// Checkpoint records which demonstrations have finished archives so an
// interrupted run can resume. The file maps demo id to archive name and is
// rewritten after every completed demonstration.
type Checkpoint struct {
	path string

	mu   sync.Mutex
	done map[string]string
}

// LoadCheckpoint reads a checkpoint file, returning an empty checkpoint when
// the file does not exist yet.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	c := &Checkpoint{path: path, done: map[string]string{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := jsoniter.Unmarshal(data, &c.done); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return c, nil
}

// Done reports whether the demonstration is already archived.
func (c *Checkpoint) Done(demoID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.done[demoID]
	return ok
}

// Len returns the number of finished demonstrations.
func (c *Checkpoint) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.done)
}

// Mark records a finished demonstration and persists the checkpoint.
func (c *Checkpoint) Mark(demoID, zipName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done[demoID] = zipName

	data, err := jsoniter.Marshal(c.done)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Clear forgets one demonstration without touching the file; the next Mark
// persists the change.
func (c *Checkpoint) Clear(demoID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.done, demoID)
}
