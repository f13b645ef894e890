package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marcus/vsync/internal/vault"
)

// Watcher keeps the index in step with filesystem changes under the vault.
type Watcher struct {
	db     *DB
	vault  *vault.Vault
	logger *slog.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher builds a watcher over every directory of the vault.
func NewWatcher(db *DB, v *vault.Vault, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("index: create watcher: %w", err)
	}
	w := &Watcher{db: db, vault: v, logger: logger, fsw: fsw}
	if err := w.addDirs(v.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if name := entry.Name(); strings.HasPrefix(name, ".") && p != root {
			return fs.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("index: watch %s: %w", p, err)
		}
		return nil
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("index watcher error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.vault.Root(), ev.Name)
	if err != nil {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirs(ev.Name); err != nil {
				w.logger.Warn("index: watch new directory", "path", rel, "err", err)
			}
			return
		}
		w.reindex(rel)
	case ev.Op.Has(fsnotify.Write):
		w.reindex(rel)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if !strings.HasSuffix(rel, ".md") {
			return
		}
		if err := w.db.DeleteFile(rel); err != nil {
			w.logger.Warn("index: drop file", "path", rel, "err", err)
		}
		w.db.Touch(time.Now())
	}
}

func (w *Watcher) reindex(rel string) {
	if !strings.HasSuffix(rel, ".md") {
		return
	}
	lines, err := w.vault.ReadLines(rel)
	if err != nil {
		// The file may have vanished between the event and the read.
		w.logger.Debug("index: read changed file", "path", rel, "err", err)
		return
	}
	if err := w.db.IndexFile(rel, lines); err != nil {
		w.logger.Warn("index: reindex file", "path", rel, "err", err)
	}
	w.db.Touch(time.Now())
}
