// Package models defines the entities shared between the vault, the cache
// and the Vikunja API client.
package models

import (
	"time"
)

// Priority levels as used by Vikunja. Zero means unset.
const (
	PriorityUnset  = 0
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

// Task is the unit of synchronization. A Task with ID == 0 has never been
// created on the Vikunja side; once assigned, the ID is immutable.
//
// Updated carries the server-authoritative last-modification timestamp and is
// the tie-breaker when both sides changed. On the local copy it is only
// trustworthy when it was assigned through the cache or mirrors the remote
// value from the last successful sync.
type Task struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Done        bool      `json:"done"`
	DoneAt      time.Time `json:"done_at,omitzero"`
	DueDate     time.Time `json:"due_date,omitzero"`
	Priority    int       `json:"priority,omitempty"`
	Labels      []Label   `json:"labels,omitempty"`
	ProjectID   int64     `json:"project_id,omitempty"`
	BucketID    int64     `json:"bucket_id,omitempty"`
	Created     time.Time `json:"created,omitzero"`
	Updated     time.Time `json:"updated,omitzero"`
}

// Label is a tag attached to tasks. Identity across systems is by Title
// (case-sensitive), never by ID, because vault text only carries the title.
// Labels parsed from the vault have ID == 0 until round-tripped.
type Label struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title"`
}

// Project is a Vikunja project, consumed read-mostly.
type Project struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ProjectView is a view (list, kanban, ...) on a project.
type ProjectView struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ProjectID    int64  `json:"project_id"`
	ViewKind     string `json:"view_kind"`
	DoneBucketID int64  `json:"done_bucket_id"`
}

// Bucket is a kanban column.
type Bucket struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	ProjectViewID int64  `json:"project_view_id"`
}

// VaultTask binds a Task to its textual location in the vault.
type VaultTask struct {
	Filepath string `json:"filepath"`
	Lineno   int    `json:"lineno"`
	Task     Task   `json:"task"`
}

// IsValidPriority checks if a priority value is in the Vikunja range.
func IsValidPriority(p int) bool {
	return p >= PriorityUnset && p <= PriorityUrgent
}
