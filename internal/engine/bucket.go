package engine

import (
	"context"
	"fmt"

	"github.com/marcus/vsync/internal/vikunja"
)

// doneBuckets resolves the kanban bucket completed tasks are placed in,
// one lookup per project per run. Projects without a kanban view resolve
// to zero, which leaves the task's bucket untouched.
type doneBuckets struct {
	projects  vikunja.ProjectStore
	byProject map[int64]int64
}

func newDoneBuckets(projects vikunja.ProjectStore) *doneBuckets {
	return &doneBuckets{projects: projects, byProject: make(map[int64]int64)}
}

func (b *doneBuckets) resolve(ctx context.Context, projectID int64) (int64, error) {
	if id, ok := b.byProject[projectID]; ok {
		return id, nil
	}
	views, err := b.projects.ListViews(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("resolve done bucket for project %d: %w", projectID, err)
	}
	var kanbanID int64
	for _, v := range views {
		if v.ViewKind == "kanban" {
			kanbanID = v.ID
			break
		}
	}
	if kanbanID == 0 {
		b.byProject[projectID] = 0
		return 0, nil
	}
	bucket, err := b.projects.GetOrCreateDoneBucket(ctx, projectID, kanbanID)
	if err != nil {
		return 0, fmt.Errorf("resolve done bucket for project %d: %w", projectID, err)
	}
	b.byProject[projectID] = bucket.ID
	return bucket.ID, nil
}
