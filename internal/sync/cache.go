package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mviana/labtrack/internal/models"
)

// Mutation kinds stored in the offline cache.
const (
	mutationTask    = "task"
	mutationSubtask = "subtask"
	mutationNote    = "note"
)

// PendingMutation is a durably queued write that could not reach the
// store. Only the latest desired value per key is kept, so replaying the
// cache never issues stale intermediates.
type PendingMutation struct {
	Kind      string            `json:"kind"`
	TaskID    string            `json:"task_id"`
	StepID    string            `json:"step_id,omitempty"`
	Completed bool              `json:"completed,omitempty"`
	Content   string            `json:"content,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Format    models.NoteFormat `json:"format,omitempty"`
	QueuedAt  time.Time         `json:"queued_at"`
}

func (m PendingMutation) key() string {
	if m.Kind == mutationSubtask {
		return m.Kind + "/" + m.TaskID + "/" + m.StepID
	}
	return m.Kind + "/" + m.TaskID
}

// Cache is a small JSON file holding mutations queued while the store is
// unreachable. Every change is flushed with a temp-file rename so a crash
// mid-write never corrupts the file.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]PendingMutation
}

// OpenCache loads the cache file at path, treating a missing or corrupt
// file as empty.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]PendingMutation)}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync cache: %w", err)
	}
	if err := json.Unmarshal(raw, &c.entries); err != nil {
		// A corrupt cache loses queued writes but must not break startup.
		c.entries = make(map[string]PendingMutation)
	}
	return c, nil
}

// Put queues a mutation, replacing any previous entry for the same key.
func (c *Cache) Put(m PendingMutation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[m.key()] = m
	return c.flushLocked()
}

// Remove drops the entry for the mutation's key, if present.
func (c *Cache) Remove(m PendingMutation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[m.key()]; !ok {
		return nil
	}
	delete(c.entries, m.key())
	return c.flushLocked()
}

// Pending returns queued mutations ordered by the time they were queued.
func (c *Cache) Pending() []PendingMutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingMutation, 0, len(c.entries))
	for _, m := range c.entries {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuedAt.Before(out[j].QueuedAt) })
	return out
}

// Len reports the number of queued mutations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) flushLocked() error {
	raw, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".labtrack-cache-*")
	if err != nil {
		return fmt.Errorf("writing sync cache: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing sync cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing sync cache: %w", err)
	}
	return nil
}
