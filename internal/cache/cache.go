// Package cache persists the last-known state of every synchronized task.
// It is the system's only durable memory across runs: the engine compares
// fresh scans against it to detect out-of-band edits and deletions without
// consulting the remote side.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/marcus/vsync/internal/models"
)

// ErrNoID is returned when a task without a remote id is handed to the
// cache. Entries are keyed by remote id only; an id-less entry could never
// be looked up again, so this is a programmer error, not a recoverable one.
var ErrNoID = errors.New("cache: task has no remote id")

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects the time source used to stamp Updated on changed tasks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithFlushInterval debounces disk writes: mutations mark the cache dirty
// and a flush happens at most once per interval. Zero (the default) flushes
// immediately after every mutation.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Cache) { c.flushEvery = d }
}

// Cache is a persisted map from remote task id to the last-known VaultTask.
type Cache struct {
	mu         sync.Mutex
	path       string
	entries    map[int64]models.VaultTask
	dirty      bool
	now        func() time.Time
	flushEvery time.Duration
	flushTimer *time.Timer
}

// New creates a cache persisted at path. Call Load to read existing state.
func New(path string, opts ...Option) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[int64]models.VaultTask),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the persisted cache from disk. A missing file is an empty
// cache. A corrupt entry is dropped with a warning, never fatal: losing one
// entry costs a spurious re-sync, aborting the load would cost all of them.
func (c *Cache) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: read %s: %w", c.path, err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cache: parse %s: %w", c.path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]models.VaultTask, len(raw))
	for i, entry := range raw {
		var vt models.VaultTask
		if err := json.Unmarshal(entry, &vt); err != nil {
			slog.Warn("cache: dropping corrupt entry", "index", i, "err", err)
			continue
		}
		if vt.Task.ID == 0 {
			slog.Warn("cache: dropping entry without id", "index", i, "filepath", vt.Filepath)
			continue
		}
		c.entries[vt.Task.ID] = vt
	}
	return nil
}

// Get returns the cached state for a remote id.
func (c *Cache) Get(id int64) (models.VaultTask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vt, ok := c.entries[id]
	return vt, ok
}

// Update stores the given task, stamping task.Updated with the current time
// when its content differs from the cached copy. The comparison excludes
// Updated itself, so calling Update twice with an unchanged task stamps at
// most once. Fails with ErrNoID for tasks that were never created remotely.
func (c *Cache) Update(vt *models.VaultTask) error {
	if vt.Task.ID == 0 {
		return ErrNoID
	}

	c.mu.Lock()
	if cached, ok := c.entries[vt.Task.ID]; ok && !models.TasksEqual(cached.Task, vt.Task) {
		vt.Task.Updated = c.now()
	}
	c.entries[vt.Task.ID] = *vt
	c.markDirtyLocked()
	c.mu.Unlock()

	return c.maybeFlush()
}

// UpdateLocation rewrites only the file position of a cached entry.
func (c *Cache) UpdateLocation(id int64, filepath string, lineno int) error {
	c.mu.Lock()
	vt, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("cache: no entry for id %d", id)
	}
	vt.Filepath = filepath
	vt.Lineno = lineno
	c.entries[id] = vt
	c.markDirtyLocked()
	c.mu.Unlock()

	return c.maybeFlush()
}

// Delete removes the entry for a remote id.
func (c *Cache) Delete(id int64) error {
	c.mu.Lock()
	delete(c.entries, id)
	c.markDirtyLocked()
	c.mu.Unlock()

	return c.maybeFlush()
}

// Tasks returns all cached entries ordered by id.
func (c *Cache) Tasks() []models.VaultTask {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.VaultTask, 0, len(c.entries))
	for _, vt := range c.entries {
		out = append(out, vt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task.ID < out[j].Task.ID })
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reindex replaces the cache wholesale with the given scan result. Every
// discovered task must carry a remote id; reindex only tracks remote-backed
// tasks, so an id-less task means the scan was fed unsynced lines.
func (c *Cache) Reindex(tasks []models.VaultTask) error {
	fresh := make(map[int64]models.VaultTask, len(tasks))
	for _, vt := range tasks {
		if vt.Task.ID == 0 {
			return fmt.Errorf("%w: %q at %s:%d", ErrNoID, vt.Task.Title, vt.Filepath, vt.Lineno)
		}
		fresh[vt.Task.ID] = vt
	}

	c.mu.Lock()
	c.entries = fresh
	c.markDirtyLocked()
	c.mu.Unlock()

	return c.maybeFlush()
}

// Flush writes the cache to disk if it is dirty. The write is atomic:
// temp file in the same directory, then rename.
func (c *Cache) Flush() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	entries := make([]models.VaultTask, 0, len(c.entries))
	for _, vt := range c.entries {
		entries = append(entries, vt)
	}
	c.dirty = false
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Task.ID < entries[j].Task.ID })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vsync-cache-*")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename: %w", err)
	}
	return nil
}

func (c *Cache) markDirtyLocked() {
	c.dirty = true
}

// maybeFlush flushes immediately or schedules a debounced flush depending
// on configuration.
func (c *Cache) maybeFlush() error {
	if c.flushEvery <= 0 {
		return c.Flush()
	}

	c.mu.Lock()
	if c.flushTimer == nil {
		c.flushTimer = time.AfterFunc(c.flushEvery, func() {
			c.mu.Lock()
			c.flushTimer = nil
			c.mu.Unlock()
			if err := c.Flush(); err != nil {
				slog.Warn("cache: debounced flush failed", "err", err)
			}
		})
	}
	c.mu.Unlock()
	return nil
}
