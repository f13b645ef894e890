package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vikunja"
)

// attachConcurrency bounds the label-attach fan-out per run.
const attachConcurrency = 8

// LabelReconciler resolves vault label titles against the remote label set.
// The remote set is fetched once per run and kept in memory, so resolving is
// O(tasks + labels) network calls instead of O(tasks x labels).
type LabelReconciler struct {
	store   vikunja.LabelStore
	remote  []models.Label
	fetched bool
}

// NewLabelReconciler builds a reconciler over the given store.
func NewLabelReconciler(store vikunja.LabelStore) *LabelReconciler {
	return &LabelReconciler{store: store}
}

func (r *LabelReconciler) load(ctx context.Context) error {
	if r.fetched {
		return nil
	}
	labels, err := r.store.ListLabels(ctx)
	if err != nil {
		return err
	}
	r.remote = labels
	r.fetched = true
	return nil
}

func (r *LabelReconciler) findByTitle(title string) (models.Label, bool) {
	for _, l := range r.remote {
		if l.Title == title {
			return l, true
		}
	}
	return models.Label{}, false
}

// GetOrCreateLabels resolves every input label to an id-bearing remote
// label, creating missing ones. The result holds one label per distinct id.
func (r *LabelReconciler) GetOrCreateLabels(ctx context.Context, labels []models.Label) ([]models.Label, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}

	var resolved []models.Label
	seen := make(map[int64]bool)
	for _, l := range labels {
		remote, ok := r.findByTitle(l.Title)
		if !ok {
			created, err := r.store.CreateLabel(ctx, l.Title)
			if err != nil {
				return nil, fmt.Errorf("create label %q: %w", l.Title, err)
			}
			r.remote = append(r.remote, created)
			remote = created
		}
		if seen[remote.ID] {
			continue
		}
		seen[remote.ID] = true
		resolved = append(resolved, remote)
	}
	return resolved, nil
}

// DeleteUnused removes remote labels whose title no vault task references.
// Remote duplicates of a used title are removed too, keeping the first, so
// at most one remote label exists per distinct title afterwards.
func (r *LabelReconciler) DeleteUnused(ctx context.Context, used []models.Label) error {
	if err := r.load(ctx); err != nil {
		return err
	}

	usedTitles := make(map[string]bool, len(used))
	for _, l := range used {
		usedTitles[l.Title] = true
	}

	var kept []models.Label
	seenTitle := make(map[string]bool)
	for _, l := range r.remote {
		if usedTitles[l.Title] && !seenTitle[l.Title] {
			seenTitle[l.Title] = true
			kept = append(kept, l)
			continue
		}
		if err := r.store.DeleteLabel(ctx, l.ID); err != nil {
			return fmt.Errorf("delete label %q: %w", l.Title, err)
		}
	}
	r.remote = kept
	return nil
}

// labelSyncStep resolves every local task's labels remotely and attaches
// them. It runs delete-unused first so a title about to be reused is never
// deleted after its recreation.
type labelSyncStep struct {
	labels *LabelReconciler
	opts   Options
	logger *slog.Logger
}

func (s *labelSyncStep) name() string { return "label-sync" }

func (s *labelSyncStep) run(ctx context.Context, st *state) error {
	var all []models.Label
	for _, vt := range st.local {
		all = append(all, vt.Task.Labels...)
	}

	if s.opts.RemoveUnusedLabels {
		if err := s.labels.DeleteUnused(ctx, all); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attachConcurrency)
	for i := range st.local {
		vt := &st.local[i]
		if len(vt.Task.Labels) == 0 {
			continue
		}
		resolved, err := s.labels.GetOrCreateLabels(ctx, vt.Task.Labels)
		if err != nil {
			return err
		}
		vt.Task.Labels = resolved

		if vt.Task.ID == 0 {
			// Local-only tasks get their labels attached as part of
			// remote creation later.
			continue
		}
		taskID := vt.Task.ID
		for _, label := range resolved {
			labelID := label.ID
			title := label.Title
			g.Go(func() error {
				err := s.labels.store.AttachLabel(gctx, taskID, labelID)
				if errors.Is(err, vikunja.ErrAlreadyExists) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("attach label %q to task %d: %w", title, taskID, err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}
