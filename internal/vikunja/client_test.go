package vikunja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marcus/vsync/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token")
}

func TestGetAllTasksPagination(t *testing.T) {
	pages := map[string][]models.Task{
		"1": {{ID: 1, Title: "One"}, {ID: 2, Title: "Two"}},
		"2": {{ID: 3, Title: "Three"}},
		"3": {},
	}
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/all" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(pages[r.URL.Query().Get("page")])
	}))

	tasks, err := c.GetAllTasks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("got auth %q", gotAuth)
	}
}

func TestCreateTask(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/projects/7/tasks" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var task models.Task
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			t.Fatal(err)
		}
		task.ID = 42
		json.NewEncoder(w).Encode(task)
	}))

	created, err := c.CreateTask(context.Background(), models.Task{Title: "New", ProjectID: 7})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 42 || created.Title != "New" {
		t.Errorf("unexpected created task: %+v", created)
	}
}

func TestUpdateTaskUsesPost(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tasks/5" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(models.Task{ID: 5, Title: "Renamed"})
	}))

	updated, err := c.UpdateTask(context.Background(), models.Task{ID: 5, Title: "Renamed"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("unexpected task: %+v", updated)
	}
}

func TestListLabelsNullBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "null")
	}))

	labels, err := c.ListLabels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if labels != nil {
		t.Errorf("got %v, want nil", labels)
	}
}

func TestAttachLabelDuplicate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiError{Code: 8001, Message: "This label already exists on that task."})
	}))

	err := c.AttachLabel(context.Background(), 1, 2)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			json.NewEncoder(w).Encode(apiError{Code: 1, Message: "nope"})
		}))
		_, err := c.GetTask(context.Background(), 1)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestDeleteTask(t *testing.T) {
	var deleted string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		deleted = r.URL.Path
		fmt.Fprint(w, `{"message":"Successfully deleted."}`)
	}))

	if err := c.DeleteTask(context.Background(), 11); err != nil {
		t.Fatal(err)
	}
	if deleted != "/api/v1/tasks/11" {
		t.Errorf("deleted %q", deleted)
	}
}

func TestGetOrCreateDoneBucket(t *testing.T) {
	t.Run("existing", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]models.ProjectView{
				{ID: 12, ProjectID: 3, ViewKind: "kanban", DoneBucketID: 7},
			})
		}))
		b, err := c.GetOrCreateDoneBucket(context.Background(), 3, 12)
		if err != nil {
			t.Fatal(err)
		}
		if b.ID != 7 {
			t.Errorf("bucket id = %d, want 7", b.ID)
		}
	})

	t.Run("created", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				json.NewEncoder(w).Encode(models.Bucket{ID: 99, Title: "Done", ProjectViewID: 12})
				return
			}
			json.NewEncoder(w).Encode([]models.ProjectView{
				{ID: 12, ProjectID: 3, ViewKind: "kanban"},
			})
		}))
		b, err := c.GetOrCreateDoneBucket(context.Background(), 3, 12)
		if err != nil {
			t.Fatal(err)
		}
		if b.ID != 99 || b.Title != "Done" {
			t.Errorf("unexpected bucket: %+v", b)
		}
	})
}

func TestCreateBucket(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/projects/3/views/12/buckets" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(models.Bucket{ID: 99, Title: "Done", ProjectViewID: 12})
	}))

	b, err := c.CreateBucket(context.Background(), 3, 12, "Done")
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != 99 {
		t.Errorf("unexpected bucket: %+v", b)
	}
}
