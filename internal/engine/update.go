package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/vsync/internal/cache"
	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vikunja"
)

// updateStep resolves pairs matched by id. Field-equal pairs are no-ops;
// otherwise the side with the newer updated timestamp wins and its fields
// overwrite the other side.
type updateStep struct {
	tasks   vikunja.TaskStore
	cache   *cache.Cache
	vault   VaultIO
	codec   Codec
	buckets *doneBuckets
	opts    Options
	logger  *slog.Logger
}

func (s *updateStep) name() string { return "update" }

func (s *updateStep) run(ctx context.Context, st *state) error {
	remoteByID := make(map[int64]models.Task, len(st.remote))
	for _, rt := range st.remote {
		remoteByID[rt.ID] = rt
	}

	for i := range st.local {
		vt := &st.local[i]
		if vt.Task.ID == 0 {
			continue
		}
		rt, ok := remoteByID[vt.Task.ID]
		if !ok {
			continue
		}
		if models.TasksEqual(localView(vt.Task, rt), rt) {
			continue
		}

		localUpdated, err := s.localUpdated(vt)
		if err != nil {
			return err
		}
		if rt.Updated.IsZero() {
			return fmt.Errorf("task %d: remote copy has no updated timestamp", rt.ID)
		}

		if rt.Updated.After(localUpdated) {
			if err := s.applyRemote(vt, rt); err != nil {
				return err
			}
		} else {
			if err := s.pushLocal(ctx, vt, rt); err != nil {
				return err
			}
		}
	}
	return nil
}

// localView returns the vault task's content with the fields a task line
// cannot encode carried over from the remote copy. A description only the
// remote side holds must neither count as a local edit nor be blanked when
// the local side wins.
func localView(local, remote models.Task) models.Task {
	local.Description = remote.Description
	return local
}

// localUpdated resolves the trustworthy last-modification time of a vault
// task. The cache entry's timestamp holds unless the line was edited out of
// band, in which case the file's modification time is the best signal left.
func (s *updateStep) localUpdated(vt *models.VaultTask) (time.Time, error) {
	if cached, ok := s.cache.Get(vt.Task.ID); ok && models.TasksEqual(cached.Task, localView(vt.Task, cached.Task)) {
		return cached.Task.Updated, nil
	}
	mtime, err := s.vault.ModTime(vt.Filepath)
	if err != nil {
		return time.Time{}, fmt.Errorf("task %d: resolve local updated time: %w", vt.Task.ID, err)
	}
	return mtime, nil
}

// applyRemote overwrites the vault line with the remote task's fields.
func (s *updateStep) applyRemote(vt *models.VaultTask, rt models.Task) error {
	line, err := s.codec.Format(rt)
	if err != nil {
		return err
	}
	if err := s.vault.ReplaceLine(vt.Filepath, vt.Lineno, line); err != nil {
		return fmt.Errorf("rewrite %s:%d from remote task %d: %w",
			vt.Filepath, vt.Lineno, rt.ID, err)
	}
	s.logger.Info("remote task won, vault line rewritten", "id", rt.ID, "title", rt.Title)
	vt.Task = rt
	return s.cache.Update(vt)
}

// pushLocal overwrites the remote task with the vault task's fields.
func (s *updateStep) pushLocal(ctx context.Context, vt *models.VaultTask, rt models.Task) error {
	task := localView(vt.Task, rt)
	task.ProjectID = rt.ProjectID
	if task.ProjectID == 0 {
		task.ProjectID = s.opts.DefaultProjectID
	}
	if task.Done && s.opts.MoveDoneToBucket {
		bucketID, err := s.buckets.resolve(ctx, task.ProjectID)
		if err != nil {
			return err
		}
		task.BucketID = bucketID
	}
	updated, err := s.tasks.UpdateTask(ctx, task)
	if err != nil {
		return fmt.Errorf("push task %d: %w", task.ID, err)
	}
	s.logger.Info("vault task won, remote copy updated", "id", updated.ID, "title", updated.Title)
	vt.Task = updated
	return s.cache.Update(vt)
}
