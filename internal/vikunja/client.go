// Package vikunja is an HTTP client for the Vikunja REST API, covering the
// task, label and project endpoints the sync engine needs.
package vikunja

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcus/vsync/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// apiError is the error body Vikunja returns on failures.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("vikunja error %d: %s", e.Code, e.Message)
}

// Client talks to one Vikunja instance.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client for the given host. The host is the bare instance
// URL; the API prefix is appended here.
func New(host, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(host, "/") + "/api/v1",
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Task methods ---

// GetAllTasks pages through every task visible to the token. Vikunja keeps
// returning pages until one comes back empty.
func (c *Client) GetAllTasks(ctx context.Context) ([]models.Task, error) {
	var all []models.Task
	for page := 1; ; page++ {
		var batch []models.Task
		path := fmt.Sprintf("/tasks/all?page=%d", page)
		if err := c.do(ctx, http.MethodGet, path, nil, &batch); err != nil {
			return nil, fmt.Errorf("get tasks page %d: %w", page, err)
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
	}
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, id int64) (models.Task, error) {
	var task models.Task
	path := fmt.Sprintf("/tasks/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &task); err != nil {
		return models.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// CreateTask creates a task in its project and returns the server copy,
// which carries the assigned id and timestamps.
func (c *Client) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	var created models.Task
	path := fmt.Sprintf("/projects/%d/tasks", task.ProjectID)
	if err := c.do(ctx, http.MethodPut, path, task, &created); err != nil {
		return models.Task{}, fmt.Errorf("create task %q: %w", task.Title, err)
	}
	return created, nil
}

// UpdateTask overwrites the remote task and returns the server copy.
func (c *Client) UpdateTask(ctx context.Context, task models.Task) (models.Task, error) {
	var updated models.Task
	path := fmt.Sprintf("/tasks/%d", task.ID)
	if err := c.do(ctx, http.MethodPost, path, task, &updated); err != nil {
		return models.Task{}, fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return updated, nil
}

// DeleteTask removes one task. Deleting a task that is already gone is not
// an error for the caller; ErrNotFound is still returned so callers can log it.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/tasks/%d", id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// DeleteTasks removes several tasks, stopping at the first failure.
func (c *Client) DeleteTasks(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := c.DeleteTask(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// --- Label methods ---

// ListLabels returns every label the token can see. Vikunja answers with a
// literal null body when there are none.
func (c *Client) ListLabels(ctx context.Context) ([]models.Label, error) {
	var labels []models.Label
	if err := c.do(ctx, http.MethodGet, "/labels", nil, &labels); err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return labels, nil
}

// CreateLabel creates a label and returns the server copy.
func (c *Client) CreateLabel(ctx context.Context, title string) (models.Label, error) {
	var created models.Label
	body := models.Label{Title: title}
	if err := c.do(ctx, http.MethodPut, "/labels", body, &created); err != nil {
		return models.Label{}, fmt.Errorf("create label %q: %w", title, err)
	}
	return created, nil
}

// DeleteLabel removes one label.
func (c *Client) DeleteLabel(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/labels/%d", id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete label %d: %w", id, err)
	}
	return nil
}

// AttachLabel adds a label to a task. Attaching a label the task already
// carries yields ErrAlreadyExists.
func (c *Client) AttachLabel(ctx context.Context, taskID, labelID int64) error {
	path := fmt.Sprintf("/tasks/%d/labels", taskID)
	body := map[string]int64{"label_id": labelID}
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("attach label %d to task %d: %w", labelID, taskID, err)
	}
	return nil
}

// --- Project methods ---

// ListProjects returns every project the token can see.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListViews returns the views of one project.
func (c *Client) ListViews(ctx context.Context, projectID int64) ([]models.ProjectView, error) {
	var views []models.ProjectView
	path := fmt.Sprintf("/projects/%d/views", projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &views); err != nil {
		return nil, fmt.Errorf("list views of project %d: %w", projectID, err)
	}
	return views, nil
}

// CreateBucket adds a bucket to a kanban view and returns the server copy.
func (c *Client) CreateBucket(ctx context.Context, projectID, viewID int64, title string) (models.Bucket, error) {
	var created models.Bucket
	path := fmt.Sprintf("/projects/%d/views/%d/buckets", projectID, viewID)
	body := models.Bucket{Title: title, ProjectViewID: viewID}
	if err := c.do(ctx, http.MethodPut, path, body, &created); err != nil {
		return models.Bucket{}, fmt.Errorf("create bucket %q: %w", title, err)
	}
	return created, nil
}

// GetOrCreateDoneBucket returns the bucket done tasks land in for a kanban
// view, creating a "Done" bucket when the view has none configured.
func (c *Client) GetOrCreateDoneBucket(ctx context.Context, projectID, viewID int64) (models.Bucket, error) {
	views, err := c.ListViews(ctx, projectID)
	if err != nil {
		return models.Bucket{}, err
	}
	for _, v := range views {
		if v.ID == viewID && v.DoneBucketID != 0 {
			return models.Bucket{ID: v.DoneBucketID, ProjectViewID: viewID}, nil
		}
	}
	return c.CreateBucket(ctx, projectID, viewID, "Done")
}

// --- Request plumbing ---

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case resp.StatusCode == http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case resp.StatusCode == http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			case strings.Contains(strings.ToLower(apiErr.Message), "already exists"):
				return fmt.Errorf("%w: %s", ErrAlreadyExists, apiErr.Message)
			default:
				return &apiErr
			}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	// Vikunja list endpoints answer "null" for empty collections; leave the
	// caller's zero value in place for those.
	if result != nil && len(respBody) > 0 && string(respBody) != "null" {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
