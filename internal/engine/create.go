package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/marcus/vsync/internal/cache"
	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vikunja"
)

const defaultDailyFormat = "2006-01-02"

// createStep closes the membership gap in both directions: vault tasks
// without an id are created on Vikunja and their line rewritten with the
// assigned id, remote tasks without a vault line are written into the vault.
type createStep struct {
	tasks   vikunja.TaskStore
	labels  vikunja.LabelStore
	cache   *cache.Cache
	vault   VaultIO
	codec   Codec
	buckets *doneBuckets
	opts    Options
	now     func() time.Time
	logger  *slog.Logger
	// pullOnly skips the vault-to-remote direction.
	pullOnly bool
}

func (s *createStep) name() string { return "create" }

func (s *createStep) run(ctx context.Context, st *state) error {
	if !s.pullOnly {
		if err := s.push(ctx, st); err != nil {
			return err
		}
	}
	return s.pull(ctx, st)
}

// push creates vault-only tasks remotely. The vault line is rewritten with
// the assigned id immediately after each create; when that write fails the
// fresh remote task is deleted again so no remote task is left without a
// vault anchor.
func (s *createStep) push(ctx context.Context, st *state) error {
	for i := range st.local {
		vt := &st.local[i]
		if vt.Task.ID != 0 {
			continue
		}

		task := vt.Task
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
		created, err := s.tasks.CreateTask(ctx, task)
		if err != nil {
			return fmt.Errorf("create task %q: %w", task.Title, err)
		}
		// The create body does not persist labels; they are attached one by
		// one below and carried into the line and the cache here.
		created.Labels = task.Labels

		line, err := s.codec.Format(created)
		if err != nil {
			return err
		}
		if err := s.vault.ReplaceLine(vt.Filepath, vt.Lineno, line); err != nil {
			if derr := s.tasks.DeleteTask(ctx, created.ID); derr != nil {
				s.logger.Warn("compensating delete failed, remote task is orphaned",
					"id", created.ID, "err", derr)
			}
			return fmt.Errorf("write back created task %q: %w", created.Title, err)
		}

		if err := s.attachLabels(ctx, created); err != nil {
			return err
		}

		s.logger.Info("created remote task", "id", created.ID, "title", created.Title)
		vt.Task = created
		if err := s.cache.Update(vt); err != nil {
			return err
		}
		st.remote = append(st.remote, created)
	}
	return nil
}

// attachLabels attaches the task's resolved labels to the fresh remote copy.
// A failure here is not reverted; the next run's label-sync stage attaches
// whatever is still missing.
func (s *createStep) attachLabels(ctx context.Context, task models.Task) error {
	for _, label := range task.Labels {
		err := s.labels.AttachLabel(ctx, task.ID, label.ID)
		if errors.Is(err, vikunja.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("attach label %q to created task %d: %w", label.Title, task.ID, err)
		}
	}
	return nil
}

// pull writes remote tasks without a vault line into the configured output
// target and caches them.
func (s *createStep) pull(ctx context.Context, st *state) error {
	localIDs := make(map[int64]bool, len(st.local))
	for _, vt := range st.local {
		localIDs[vt.Task.ID] = true
	}

	for _, rt := range st.remote {
		if rt.ID == 0 || localIDs[rt.ID] {
			continue
		}

		line, err := s.codec.Format(rt)
		if err != nil {
			return err
		}
		target := s.outputPath(rt)

		var lineno int
		if s.opts.Output.AppendMarker != "" {
			lineno, err = s.vault.InsertAfterMarker(target, s.opts.Output.AppendMarker, line)
		} else {
			lineno, err = s.vault.AppendLine(target, line)
		}
		if err != nil {
			return fmt.Errorf("write pulled task %d: %w", rt.ID, err)
		}

		// Inserting above existing lines shifts everything below them;
		// tracked linenos in the working set and the cache move along.
		for i := range st.local {
			o := &st.local[i]
			if o.Filepath != target || o.Lineno < lineno {
				continue
			}
			o.Lineno++
			if _, ok := s.cache.Get(o.Task.ID); ok {
				if err := s.cache.UpdateLocation(o.Task.ID, o.Filepath, o.Lineno); err != nil {
					return err
				}
			}
		}

		s.logger.Info("pulled remote task into vault",
			"id", rt.ID, "title", rt.Title, "file", target, "line", lineno)
		vt := models.VaultTask{Filepath: target, Lineno: lineno, Task: rt}
		if err := s.cache.Update(&vt); err != nil {
			return err
		}
		st.local = append(st.local, vt)
	}
	return nil
}

// outputPath picks the vault file a pulled task lands in. The daily
// strategy buckets by the task's creation date, falling back to now.
func (s *createStep) outputPath(task models.Task) string {
	if s.opts.Output.Strategy != "daily" {
		return s.opts.Output.File
	}
	created := task.Created
	if created.IsZero() {
		created = s.now()
	}
	format := s.opts.Output.DailyFormat
	if format == "" {
		format = defaultDailyFormat
	}
	return path.Join(s.opts.Output.DailyDir, created.Format(format)+".md")
}
