package vikunja

import (
	"context"

	"github.com/marcus/vsync/internal/models"
)

// TaskStore is the task surface the sync engine needs from the API.
type TaskStore interface {
	GetAllTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, task models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// LabelStore is the label surface the sync engine needs from the API.
type LabelStore interface {
	ListLabels(ctx context.Context) ([]models.Label, error)
	CreateLabel(ctx context.Context, title string) (models.Label, error)
	DeleteLabel(ctx context.Context, id int64) error
	AttachLabel(ctx context.Context, taskID, labelID int64) error
}

// ProjectStore exposes project metadata lookups and bucket placement.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListViews(ctx context.Context, projectID int64) ([]models.ProjectView, error)
	CreateBucket(ctx context.Context, projectID, viewID int64, title string) (models.Bucket, error)
	GetOrCreateDoneBucket(ctx context.Context, projectID, viewID int64) (models.Bucket, error)
}

var (
	_ TaskStore    = (*Client)(nil)
	_ LabelStore   = (*Client)(nil)
	_ ProjectStore = (*Client)(nil)
)
