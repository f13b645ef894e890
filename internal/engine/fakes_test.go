package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vikunja"
)

// fakeScanner returns a fixed task set.
type fakeScanner struct {
	tasks []models.VaultTask
	err   error
}

func (f *fakeScanner) Scan(ctx context.Context) ([]models.VaultTask, error) {
	return f.tasks, f.err
}

// blockingScanner signals when a scan starts and waits to be released, so a
// test can hold a run open.
type blockingScanner struct {
	started chan struct{}
	release chan struct{}
}

func (f *blockingScanner) Scan(ctx context.Context) ([]models.VaultTask, error) {
	close(f.started)
	<-f.release
	return nil, nil
}

// fakeTaskStore keeps tasks in memory and records every mutation.
type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[int64]models.Task
	nextID  int64
	now     time.Time
	created []int64
	updated []int64
	deleted []int64
}

func newFakeTaskStore(now time.Time, tasks ...models.Task) *fakeTaskStore {
	f := &fakeTaskStore{tasks: make(map[int64]models.Task), nextID: 1, now: now}
	for _, t := range tasks {
		f.tasks[t.ID] = t
		if t.ID >= f.nextID {
			f.nextID = t.ID + 1
		}
	}
	return f
}

func (f *fakeTaskStore) GetAllTasks(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskStore) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.Title == "" {
		return models.Task{}, errors.New("title required")
	}
	task.ID = f.nextID
	f.nextID++
	task.Created = f.now
	task.Updated = f.now
	// Labels in the create body are not persisted, mirroring the API;
	// they have to be attached per label afterwards.
	task.Labels = nil
	f.tasks[task.ID] = task
	f.created = append(f.created, task.ID)
	return task, nil
}

func (f *fakeTaskStore) UpdateTask(ctx context.Context, task models.Task) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return models.Task{}, fmt.Errorf("task %d: %w", task.ID, vikunja.ErrNotFound)
	}
	task.Updated = f.now
	f.tasks[task.ID] = task
	f.updated = append(f.updated, task.ID)
	return task, nil
}

func (f *fakeTaskStore) DeleteTask(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTaskStore) get(id int64) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

// fakeLabelStore keeps labels in memory and records attachments.
type fakeLabelStore struct {
	mu       sync.Mutex
	labels   []models.Label
	nextID   int64
	created  []string
	deleted  []int64
	attached map[int64][]int64
}

func newFakeLabelStore(labels ...models.Label) *fakeLabelStore {
	f := &fakeLabelStore{labels: labels, nextID: 100, attached: make(map[int64][]int64)}
	return f
}

func (f *fakeLabelStore) ListLabels(ctx context.Context) ([]models.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Label(nil), f.labels...), nil
}

func (f *fakeLabelStore) CreateLabel(ctx context.Context, title string) (models.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := models.Label{ID: f.nextID, Title: title}
	f.nextID++
	f.labels = append(f.labels, l)
	f.created = append(f.created, title)
	return l, nil
}

func (f *fakeLabelStore) DeleteLabel(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.labels {
		if l.ID == id {
			f.labels = append(f.labels[:i], f.labels[i+1:]...)
			break
		}
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeLabelStore) AttachLabel(ctx context.Context, taskID, labelID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.attached[taskID] {
		if id == labelID {
			return fmt.Errorf("label %d on task %d: %w", labelID, taskID, vikunja.ErrAlreadyExists)
		}
	}
	f.attached[taskID] = append(f.attached[taskID], labelID)
	return nil
}

// fakeProjectStore serves views from a fixed set and records bucket creates.
type fakeProjectStore struct {
	mu             sync.Mutex
	views          []models.ProjectView
	nextBucketID   int64
	createdBuckets []string
}

func newFakeProjectStore(views ...models.ProjectView) *fakeProjectStore {
	return &fakeProjectStore{views: views, nextBucketID: 500}
}

func (f *fakeProjectStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	return []models.Project{{ID: 1, Title: "Inbox"}}, nil
}

func (f *fakeProjectStore) ListViews(ctx context.Context, projectID int64) ([]models.ProjectView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProjectView
	for _, v := range f.views {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) CreateBucket(ctx context.Context, projectID, viewID int64, title string) (models.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := models.Bucket{ID: f.nextBucketID, Title: title, ProjectViewID: viewID}
	f.nextBucketID++
	f.createdBuckets = append(f.createdBuckets, title)
	return b, nil
}

func (f *fakeProjectStore) GetOrCreateDoneBucket(ctx context.Context, projectID, viewID int64) (models.Bucket, error) {
	f.mu.Lock()
	for _, v := range f.views {
		if v.ID == viewID && v.DoneBucketID != 0 {
			f.mu.Unlock()
			return models.Bucket{ID: v.DoneBucketID, ProjectViewID: viewID}, nil
		}
	}
	f.mu.Unlock()
	return f.CreateBucket(ctx, projectID, viewID, "Done")
}

// fakeVault is an in-memory line store with write failure injection.
type fakeVault struct {
	mu          sync.Mutex
	files       map[string][]string
	mtime       time.Time
	failReplace bool
}

func newFakeVault(mtime time.Time, files map[string][]string) *fakeVault {
	if files == nil {
		files = make(map[string][]string)
	}
	return &fakeVault{files: files, mtime: mtime}
}

func (f *fakeVault) ReadLine(rel string, lineno int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines, ok := f.files[rel]
	if !ok || lineno < 0 || lineno >= len(lines) {
		return "", fmt.Errorf("no line %d in %s", lineno, rel)
	}
	return lines[lineno], nil
}

func (f *fakeVault) ReplaceLine(rel string, lineno int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplace {
		return errors.New("disk full")
	}
	lines, ok := f.files[rel]
	if !ok || lineno < 0 || lineno >= len(lines) {
		return fmt.Errorf("no line %d in %s", lineno, rel)
	}
	lines[lineno] = text
	return nil
}

func (f *fakeVault) RemoveLine(rel string, lineno int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines, ok := f.files[rel]
	if !ok || lineno < 0 || lineno >= len(lines) {
		return fmt.Errorf("no line %d in %s", lineno, rel)
	}
	f.files[rel] = append(lines[:lineno], lines[lineno+1:]...)
	return nil
}

func (f *fakeVault) AppendLine(rel, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[rel] = append(f.files[rel], text)
	return len(f.files[rel]) - 1, nil
}

func (f *fakeVault) InsertAfterMarker(rel, marker, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := f.files[rel]
	for i, line := range lines {
		if strings.Contains(line, marker) {
			lines = append(lines[:i+1], append([]string{text}, lines[i+1:]...)...)
			f.files[rel] = lines
			return i + 1, nil
		}
	}
	f.files[rel] = append(lines, text)
	return len(f.files[rel]) - 1, nil
}

func (f *fakeVault) ModTime(rel string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[rel]; !ok {
		return time.Time{}, fmt.Errorf("no file %s", rel)
	}
	return f.mtime, nil
}

func (f *fakeVault) line(rel string, lineno int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[rel][lineno]
}
