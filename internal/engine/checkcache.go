package engine

import (
	"context"
	"log/slog"

	"github.com/marcus/vsync/internal/cache"
	"github.com/marcus/vsync/internal/models"
)

// cacheCheckStep flags vault tasks that drifted from their cache entry.
// Drift means the line was edited outside the normal write path. Nothing is
// fixed here; the update stage resolves the winner by timestamp.
type cacheCheckStep struct {
	cache  *cache.Cache
	logger *slog.Logger
}

func (s *cacheCheckStep) name() string { return "cache-check" }

func (s *cacheCheckStep) run(ctx context.Context, st *state) error {
	for _, vt := range st.local {
		if vt.Task.ID == 0 {
			continue
		}
		cached, ok := s.cache.Get(vt.Task.ID)
		if !ok {
			s.logger.Debug("task has an id but no cache entry",
				"id", vt.Task.ID, "file", vt.Filepath, "line", vt.Lineno)
			continue
		}
		if !models.TasksEqual(cached.Task, localView(vt.Task, cached.Task)) {
			s.logger.Info("out-of-band edit detected",
				"id", vt.Task.ID, "file", vt.Filepath, "line", vt.Lineno)
		} else if cached.Filepath != vt.Filepath || cached.Lineno != vt.Lineno {
			if err := s.cache.UpdateLocation(vt.Task.ID, vt.Filepath, vt.Lineno); err != nil {
				return err
			}
		}
	}
	return nil
}
