package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marcus/vsync/internal/codec"
	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vault"
)

const (
	defaultQuiet    = 200 * time.Millisecond
	defaultAttempts = 10
)

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithQuietPeriod sets how long the index must be idle before a scan reads it.
func WithQuietPeriod(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.quiet = d }
}

// WithMaxWaits bounds how many quiet periods a scan will wait before
// proceeding with whatever the index holds.
func WithMaxWaits(n int) ScannerOption {
	return func(s *Scanner) { s.attempts = n }
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) ScannerOption {
	return func(s *Scanner) {
		s.now = now
		s.after = after
	}
}

// Scanner reads vault tasks from the index instead of walking the tree.
// It satisfies the same contract as vault.Scanner.
type Scanner struct {
	db     *DB
	parser vault.Parser

	quiet    time.Duration
	attempts int
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

// NewScanner builds an index-backed scanner.
func NewScanner(db *DB, parser vault.Parser, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		db:       db,
		parser:   parser,
		quiet:    defaultQuiet,
		attempts: defaultAttempts,
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan waits for the index to settle, then parses every stored task line.
// Lines that no longer parse as tasks are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]models.VaultTask, error) {
	if err := s.waitSettled(ctx); err != nil {
		return nil, err
	}

	lines, err := s.db.Lines(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.VaultTask
	for _, l := range lines {
		task, err := s.parser.Parse(l.Text)
		if err != nil {
			if !errors.Is(err, codec.ErrNotTask) {
				slog.Debug("index: skipping unparseable line",
					"file", l.Filepath, "line", l.Lineno, "err", err)
			}
			continue
		}
		out = append(out, models.VaultTask{
			Filepath: l.Filepath,
			Lineno:   l.Lineno,
			Task:     task,
		})
	}
	return out, nil
}

// waitSettled blocks until the index has been quiet for the configured
// period. The wait is bounded: after the attempt budget is spent the scan
// proceeds anyway rather than stalling a sync run forever.
func (s *Scanner) waitSettled(ctx context.Context) error {
	for i := 0; i < s.attempts; i++ {
		idle, active := s.db.IdleSince(s.now())
		if !active || idle >= s.quiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(s.quiet - idle):
		}
	}
	slog.Debug("index: settle wait budget spent, scanning anyway")
	return nil
}
