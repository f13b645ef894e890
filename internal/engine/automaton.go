// Package engine implements the reconciliation pipeline that converges vault
// tasks and Vikunja tasks, plus the processor that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/vsync/internal/models"
)

// Status is the lifecycle state of one pipeline run.
type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusFinished
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Scanner produces the current set of vault tasks.
type Scanner interface {
	Scan(ctx context.Context) ([]models.VaultTask, error)
}

// Codec converts between a vault line and a task record.
type Codec interface {
	Parse(line string) (models.Task, error)
	Format(task models.Task) (string, error)
}

// VaultIO is the line-level write surface the pipeline needs from the vault.
type VaultIO interface {
	ReadLine(rel string, lineno int) (string, error)
	ReplaceLine(rel string, lineno int, text string) error
	RemoveLine(rel string, lineno int) error
	AppendLine(rel, text string) (int, error)
	InsertAfterMarker(rel, marker, text string) (int, error)
	ModTime(rel string) (time.Time, error)
}

// Options are the per-run reconciliation settings.
type Options struct {
	// DefaultProjectID is the project new tasks are created in.
	DefaultProjectID int64
	// FilterProject restricts the run to tasks of the default project.
	FilterProject bool
	// RemoveMissingTasks deletes remote tasks whose vault line disappeared.
	RemoveMissingTasks bool
	// RemoveUnusedLabels deletes remote labels no vault task references.
	RemoveUnusedLabels bool
	// MoveDoneToBucket places completed tasks in the done bucket of the
	// project's kanban view when pushing them.
	MoveDoneToBucket bool
	Output OutputOptions
}

// OutputOptions decide where tasks pulled from Vikunja land in the vault.
type OutputOptions struct {
	// Strategy is "file" for a single fixed file or "daily" for one note
	// per day keyed off the task's creation date.
	Strategy string
	File     string
	// DailyDir and DailyFormat shape the daily note path:
	// <DailyDir>/<created.Format(DailyFormat)>.md
	DailyDir    string
	DailyFormat string
	// AppendMarker, when set, inserts pulled tasks after the first line
	// equal to it instead of appending at the end of the file.
	AppendMarker string
}

// state is the working set a run's stages consume and rewrite.
type state struct {
	local  []models.VaultTask
	remote []models.Task
}

type step interface {
	name() string
	run(ctx context.Context, st *state) error
}

// Automaton executes the fixed stage sequence of one reconciliation run.
// A failed run is abandoned wholesale; the next trigger builds a fresh one.
type Automaton struct {
	steps  []step
	status Status
	logger *slog.Logger
}

func newAutomaton(logger *slog.Logger, steps ...step) *Automaton {
	return &Automaton{steps: steps, status: StatusReady, logger: logger}
}

// Status reports the terminal (or current) state of the run.
func (a *Automaton) Status() Status {
	return a.status
}

// Run executes every stage in order. The first stage error aborts the run;
// side effects already applied are not rolled back.
func (a *Automaton) Run(ctx context.Context) error {
	a.status = StatusRunning
	st := &state{}
	for _, s := range a.steps {
		if err := ctx.Err(); err != nil {
			a.status = StatusError
			return err
		}
		a.logger.Debug("pipeline stage starting", "stage", s.name())
		if err := s.run(ctx, st); err != nil {
			a.status = StatusError
			return fmt.Errorf("stage %s: %w", s.name(), err)
		}
		a.logger.Debug("pipeline stage done",
			"stage", s.name(), "local", len(st.local), "remote", len(st.remote))
	}
	a.status = StatusFinished
	return nil
}
