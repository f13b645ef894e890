package vault

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/marcus/vsync/internal/codec"
	"github.com/marcus/vsync/internal/models"
)

// Parser turns one line of text into a task. Satisfied by *codec.Codec.
type Parser interface {
	Parse(line string) (models.Task, error)
}

// Scanner walks the vault and parses every task line it finds. It is the
// plain filesystem strategy; the index package provides the watcher-backed
// alternative.
type Scanner struct {
	vault  *Vault
	parser Parser
}

// NewScanner creates a walking scanner over the given vault.
func NewScanner(v *Vault, parser Parser) *Scanner {
	return &Scanner{vault: v, parser: parser}
}

// Scan enumerates task lines across every .md file in the vault. Lines that
// look like tasks but fail structured extraction are skipped for this run,
// never fatal.
func (s *Scanner) Scan(ctx context.Context) ([]models.VaultTask, error) {
	var out []models.VaultTask
	root := s.vault.Root()

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		tasks, err := s.ScanFile(ctx, rel)
		if err != nil {
			return err
		}
		out = append(out, tasks...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanFile parses the task lines of a single vault file.
func (s *Scanner) ScanFile(ctx context.Context, rel string) ([]models.VaultTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines, err := s.vault.ReadLines(rel)
	if err != nil {
		return nil, err
	}

	var out []models.VaultTask
	for i, line := range lines {
		task, err := s.parser.Parse(line)
		if err != nil {
			if !errors.Is(err, codec.ErrNotTask) {
				slog.Debug("scanner: skipping malformed task line", "file", rel, "line", i, "err", err)
			}
			continue
		}
		out = append(out, models.VaultTask{Filepath: rel, Lineno: i, Task: task})
	}
	return out, nil
}
