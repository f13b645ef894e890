// Package vault provides line-addressed access to a directory of Markdown
// files. All writes are atomic: temp file, fsync, rename.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Vault is rooted at a directory; all paths are relative to it.
type Vault struct {
	root string
}

// New creates a Vault rooted at the given directory, which must exist.
func New(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", abs)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string {
	return v.root
}

// safePath resolves a relative path against the root and rejects any result
// that escapes it.
func (v *Vault) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("vault: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(v.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("vault: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, v.root+string(os.PathSeparator)) && abs != v.root {
		return "", fmt.Errorf("vault: path escapes root: %s", rel)
	}
	return abs, nil
}

// ReadLines returns the lines of a vault file.
func (v *Vault) ReadLines(path string) ([]string, error) {
	abs, err := v.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}
	return splitLines(string(data)), nil
}

// ReadLine returns one line by zero-based line number.
func (v *Vault) ReadLine(path string, lineno int) (string, error) {
	lines, err := v.ReadLines(path)
	if err != nil {
		return "", err
	}
	if lineno < 0 || lineno >= len(lines) {
		return "", fmt.Errorf("vault: %s has no line %d", path, lineno)
	}
	return lines[lineno], nil
}

// ReplaceLine overwrites one line by zero-based line number.
func (v *Vault) ReplaceLine(path string, lineno int, text string) error {
	lines, err := v.ReadLines(path)
	if err != nil {
		return err
	}
	if lineno < 0 || lineno >= len(lines) {
		return fmt.Errorf("vault: %s has no line %d", path, lineno)
	}
	lines[lineno] = text
	return v.writeLines(path, lines)
}

// RemoveLine deletes one line by zero-based line number.
func (v *Vault) RemoveLine(path string, lineno int) error {
	lines, err := v.ReadLines(path)
	if err != nil {
		return err
	}
	if lineno < 0 || lineno >= len(lines) {
		return fmt.Errorf("vault: %s has no line %d", path, lineno)
	}
	lines = append(lines[:lineno], lines[lineno+1:]...)
	return v.writeLines(path, lines)
}

// AppendLine adds a line at the end of the file, creating it when missing.
// Returns the zero-based line number of the new line.
func (v *Vault) AppendLine(path, text string) (int, error) {
	lines, err := v.ReadLines(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		lines = nil
	}
	// Drop a single trailing blank line so appends don't accumulate gaps.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	lines = append(lines, text)
	if err := v.writeLines(path, lines); err != nil {
		return 0, err
	}
	return len(lines) - 1, nil
}

// InsertAfterMarker inserts a line directly after the first line containing
// marker. When the marker is not found the line is appended instead.
// Returns the zero-based line number of the inserted line.
func (v *Vault) InsertAfterMarker(path, marker, text string) (int, error) {
	lines, err := v.ReadLines(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v.AppendLine(path, text)
		}
		return 0, err
	}
	for i, line := range lines {
		if strings.Contains(line, marker) {
			lines = append(lines[:i+1], append([]string{text}, lines[i+1:]...)...)
			return i + 1, v.writeLines(path, lines)
		}
	}
	return v.AppendLine(path, text)
}

// ModTime returns the file's last modification time.
func (v *Vault) ModTime(path string) (time.Time, error) {
	abs, err := v.safePath(path)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return time.Time{}, fmt.Errorf("vault: stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}

// writeLines atomically replaces the file content.
func (v *Vault) writeLines(path string, lines []string) error {
	abs, err := v.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vault: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vsync-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}

// splitLines splits file content into lines, dropping the final empty
// element produced by a trailing newline.
func splitLines(data string) []string {
	lines := strings.Split(data, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
