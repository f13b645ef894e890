package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcus/vsync/internal/cache"
	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vikunja"
)

// removeStep deletes remote tasks whose vault line was removed. A remote
// task qualifies only when the cache knows its id: that proves it once had a
// vault line. Remote tasks the vault never saw flow to the create stage for
// pulling instead. Deleted tasks leave the working remote set so later
// stages cannot recreate them.
type removeStep struct {
	tasks  vikunja.TaskStore
	cache  *cache.Cache
	opts   Options
	logger *slog.Logger
}

func (s *removeStep) name() string { return "remove" }

func (s *removeStep) run(ctx context.Context, st *state) error {
	if !s.opts.RemoveMissingTasks {
		return nil
	}

	localIDs := make(map[int64]bool, len(st.local))
	for _, vt := range st.local {
		localIDs[vt.Task.ID] = true
	}

	var kept []models.Task
	for _, rt := range st.remote {
		if localIDs[rt.ID] {
			kept = append(kept, rt)
			continue
		}
		if s.opts.FilterProject && rt.ProjectID != s.opts.DefaultProjectID {
			kept = append(kept, rt)
			continue
		}
		if _, ok := s.cache.Get(rt.ID); !ok {
			kept = append(kept, rt)
			continue
		}

		s.logger.Info("removing remote task with no vault line", "id", rt.ID, "title", rt.Title)
		if err := s.tasks.DeleteTask(ctx, rt.ID); err != nil {
			return fmt.Errorf("delete task %d: %w", rt.ID, err)
		}
		if err := s.cache.Delete(rt.ID); err != nil {
			return err
		}
	}
	st.remote = kept
	return nil
}
