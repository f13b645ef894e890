// Package index maintains a SQLite table of task lines so that repeated
// scans do not reread the whole vault. An fsnotify watcher keeps the table
// fresh; readers wait for the index to settle before trusting it.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marcus/vsync/internal/vault"
)

// taskLineRe is a cheap prefilter: only lines that start with a checkbox
// marker are worth storing. Full parsing happens at scan time.
var taskLineRe = regexp.MustCompile(`^[ \t]*[-*]\s+\[(x|X| )\]\s`)

// DB is the task line index.
type DB struct {
	db *sql.DB
	// lastEvent is the unix-nano time of the last watcher-driven mutation.
	// Zero means no event since the last rebuild.
	lastEvent atomic.Int64
}

// Open opens (or creates) the index database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS task_lines (
			filepath TEXT NOT NULL,
			lineno   INTEGER NOT NULL,
			line     TEXT NOT NULL,
			PRIMARY KEY (filepath, lineno)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: init schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Rebuild re-indexes every .md file in the vault from scratch.
func (d *DB) Rebuild(v *vault.Vault) error {
	if _, err := d.db.Exec(`DELETE FROM task_lines`); err != nil {
		return fmt.Errorf("index: clear: %w", err)
	}

	root := v.Root()
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		lines, err := v.ReadLines(rel)
		if err != nil {
			return err
		}
		return d.IndexFile(rel, lines)
	})
	if err != nil {
		return fmt.Errorf("index: rebuild: %w", err)
	}
	d.lastEvent.Store(0)
	return nil
}

// IndexFile replaces the stored task lines of one file.
func (d *DB) IndexFile(rel string, lines []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("index: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_lines WHERE filepath = ?`, rel); err != nil {
		return fmt.Errorf("index: delete %s: %w", rel, err)
	}
	for i, line := range lines {
		if !taskLineRe.MatchString(line) {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO task_lines (filepath, lineno, line) VALUES (?, ?, ?)`,
			rel, i, line,
		); err != nil {
			return fmt.Errorf("index: insert %s:%d: %w", rel, i, err)
		}
	}
	return tx.Commit()
}

// DeleteFile removes all stored lines of one file.
func (d *DB) DeleteFile(rel string) error {
	if _, err := d.db.Exec(`DELETE FROM task_lines WHERE filepath = ?`, rel); err != nil {
		return fmt.Errorf("index: delete %s: %w", rel, err)
	}
	return nil
}

// Line is one stored task line with its address.
type Line struct {
	Filepath string
	Lineno   int
	Text     string
}

// Lines returns every stored task line ordered by file and line number.
func (d *DB) Lines(ctx context.Context) ([]Line, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT filepath, lineno, line FROM task_lines ORDER BY filepath, lineno`)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.Filepath, &l.Lineno, &l.Text); err != nil {
			return nil, fmt.Errorf("index: scan row: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: rows: %w", err)
	}
	return out, nil
}

// Touch records watcher activity for the settle logic.
func (d *DB) Touch(now time.Time) {
	d.lastEvent.Store(now.UnixNano())
}

// IdleSince reports how long the index has been quiet. The second return
// value is false when no event was recorded since the last rebuild.
func (d *DB) IdleSince(now time.Time) (time.Duration, bool) {
	last := d.lastEvent.Load()
	if last == 0 {
		return 0, false
	}
	return now.Sub(time.Unix(0, last)), true
}
