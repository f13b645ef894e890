package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/marcus/vsync/internal/cache"
	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vikunja"
)

// fetchStep pulls the vault and Vikunja task sets in parallel.
type fetchStep struct {
	scanner Scanner
	tasks   vikunja.TaskStore
	cache   *cache.Cache
	opts    Options
	logger  *slog.Logger
}

func (s *fetchStep) name() string { return "fetch" }

func (s *fetchStep) run(ctx context.Context, st *state) error {
	var (
		local  []models.VaultTask
		remote []models.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		local, err = s.scanner.Scan(gctx)
		if err != nil {
			return fmt.Errorf("scan vault: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		remote, err = s.tasks.GetAllTasks(gctx)
		if err != nil {
			return fmt.Errorf("fetch remote tasks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if s.opts.FilterProject {
		remote = s.filterRemote(remote)
		local = s.filterLocal(local)
	}

	s.logger.Debug("fetched task sets", "local", len(local), "remote", len(remote))
	st.local, st.remote = local, remote
	return nil
}

func (s *fetchStep) filterRemote(tasks []models.Task) []models.Task {
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ProjectID == s.opts.DefaultProjectID {
			kept = append(kept, t)
		}
	}
	return kept
}

// filterLocal drops vault tasks known to live in another project. The vault
// line itself carries no project, so the cache entry decides; tasks without
// one stay in, as they default to the sync project on creation.
func (s *fetchStep) filterLocal(tasks []models.VaultTask) []models.VaultTask {
	kept := tasks[:0]
	for _, vt := range tasks {
		if vt.Task.ID != 0 {
			if cached, ok := s.cache.Get(vt.Task.ID); ok &&
				cached.Task.ProjectID != 0 &&
				cached.Task.ProjectID != s.opts.DefaultProjectID {
				continue
			}
		}
		kept = append(kept, vt)
	}
	return kept
}
