package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marcus/vsync/internal/cache"
	"github.com/marcus/vsync/internal/codec"
	"github.com/marcus/vsync/internal/models"
	"github.com/marcus/vsync/internal/vikunja"
)

var (
	// ErrSyncInProgress is returned when a run is triggered while another
	// is still going. Overlapping runs are rejected, not queued.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNotConfigured is returned when a precondition for syncing is
	// missing. The run never starts.
	ErrNotConfigured = errors.New("sync not configured")
	// ErrUncachedTask marks a task line carrying an id the cache has
	// never seen. Such a line circumvented the normal write path.
	ErrUncachedTask = errors.New("task not present in cache")
)

// Deps are the collaborators one Processor needs.
type Deps struct {
	Scanner Scanner
	Tasks   vikunja.TaskStore
	Labels  vikunja.LabelStore
	// Projects is only consulted when done tasks are moved to a bucket.
	Projects vikunja.ProjectStore
	Cache    *cache.Cache
	Vault    VaultIO
	Codec    Codec
	Logger   *slog.Logger
	// Now is the clock, defaulting to time.Now.
	Now func() time.Time
}

// Processor drives reconciliation runs. One run at a time; each run builds
// a fresh Automaton so a failed run leaves nothing behind.
type Processor struct {
	deps    Deps
	opts    Options
	running atomic.Bool
}

// NewProcessor validates nothing; preconditions are checked per run so a
// fixed configuration can be retried without rebuilding the processor.
func NewProcessor(deps Deps, opts Options) *Processor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Processor{deps: deps, opts: opts}
}

// Exec runs one full reconciliation. The returned status is terminal:
// StatusFinished on success, StatusError on abort. A rejected overlapping
// trigger returns StatusReady with ErrSyncInProgress.
func (p *Processor) Exec(ctx context.Context) (Status, error) {
	if err := p.checkReady(); err != nil {
		return StatusError, err
	}
	if !p.running.CompareAndSwap(false, true) {
		return StatusReady, ErrSyncInProgress
	}
	defer p.running.Store(false)

	a := p.newAutomaton()
	runErr := a.Run(ctx)

	if err := p.deps.Cache.Flush(); err != nil {
		p.deps.Logger.Warn("cache flush after run failed", "err", err)
	}
	if runErr != nil {
		return a.Status(), runErr
	}
	return a.Status(), nil
}

// Pull runs the remote-to-vault direction only: fetch both sides, then
// write remote tasks without a vault line into the output target. Nothing
// is pushed, removed or updated.
func (p *Processor) Pull(ctx context.Context) (Status, error) {
	if err := p.checkReady(); err != nil {
		return StatusError, err
	}
	if !p.running.CompareAndSwap(false, true) {
		return StatusReady, ErrSyncInProgress
	}
	defer p.running.Store(false)

	logger := p.deps.Logger
	a := newAutomaton(logger,
		&fetchStep{scanner: p.deps.Scanner, tasks: p.deps.Tasks, cache: p.deps.Cache, opts: p.opts, logger: logger},
		&createStep{tasks: p.deps.Tasks, labels: p.deps.Labels, cache: p.deps.Cache, vault: p.deps.Vault, codec: p.deps.Codec, buckets: newDoneBuckets(p.deps.Projects), opts: p.opts, now: p.deps.Now, logger: logger, pullOnly: true},
	)
	runErr := a.Run(ctx)
	if err := p.deps.Cache.Flush(); err != nil {
		logger.Warn("cache flush after pull failed", "err", err)
	}
	return a.Status(), runErr
}

// Reindex rebuilds the cache wholesale from a fresh scan. Every discovered
// task must carry an id; the previous cache content is discarded.
func (p *Processor) Reindex(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer p.running.Store(false)

	tasks, err := p.deps.Scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan vault: %w", err)
	}
	if err := p.deps.Cache.Reindex(tasks); err != nil {
		return err
	}
	return p.deps.Cache.Flush()
}

// CheckLineUpdate is the cheap single-line variant of the update stage,
// meant for editor-driven triggers. The line is parsed, matched against the
// cache by id, and pushed remotely when it changed. Lines without a task or
// without an id are ignored; an id the cache does not know is an anomaly
// reported as ErrUncachedTask rather than a silent create.
func (p *Processor) CheckLineUpdate(ctx context.Context, filepath string, lineno int) error {
	line, err := p.deps.Vault.ReadLine(filepath, lineno)
	if err != nil {
		return err
	}
	task, err := p.deps.Codec.Parse(line)
	if err != nil {
		if errors.Is(err, codec.ErrNotTask) {
			return nil
		}
		return err
	}
	if task.ID == 0 {
		return nil
	}

	cached, ok := p.deps.Cache.Get(task.ID)
	if !ok {
		return fmt.Errorf("task %d at %s:%d: %w", task.ID, filepath, lineno, ErrUncachedTask)
	}
	task = localView(task, cached.Task)
	if models.TasksEqual(cached.Task, task) {
		return nil
	}

	task.ProjectID = cached.Task.ProjectID
	if task.ProjectID == 0 {
		task.ProjectID = p.opts.DefaultProjectID
	}
	if task.Done && p.opts.MoveDoneToBucket {
		bucketID, err := newDoneBuckets(p.deps.Projects).resolve(ctx, task.ProjectID)
		if err != nil {
			return err
		}
		task.BucketID = bucketID
	}
	updated, err := p.deps.Tasks.UpdateTask(ctx, task)
	if err != nil {
		return fmt.Errorf("push edited line %s:%d: %w", filepath, lineno, err)
	}

	vt := models.VaultTask{Filepath: filepath, Lineno: lineno, Task: updated}
	return p.deps.Cache.Update(&vt)
}

func (p *Processor) checkReady() error {
	switch {
	case p.deps.Scanner == nil:
		return fmt.Errorf("%w: no vault scanner", ErrNotConfigured)
	case p.deps.Tasks == nil || p.deps.Labels == nil:
		return fmt.Errorf("%w: no Vikunja client", ErrNotConfigured)
	case p.deps.Cache == nil:
		return fmt.Errorf("%w: no task cache", ErrNotConfigured)
	case p.deps.Vault == nil:
		return fmt.Errorf("%w: no vault", ErrNotConfigured)
	case p.deps.Codec == nil:
		return fmt.Errorf("%w: no task codec", ErrNotConfigured)
	case p.opts.DefaultProjectID == 0:
		return fmt.Errorf("%w: no default project selected", ErrNotConfigured)
	case p.opts.MoveDoneToBucket && p.deps.Projects == nil:
		return fmt.Errorf("%w: done bucket placement needs project access", ErrNotConfigured)
	case p.opts.Output.Strategy == "daily" && p.opts.Output.DailyDir == "":
		return fmt.Errorf("%w: daily note output needs a directory", ErrNotConfigured)
	case p.opts.Output.Strategy != "daily" && p.opts.Output.File == "":
		return fmt.Errorf("%w: no output file selected", ErrNotConfigured)
	}
	return nil
}

func (p *Processor) newAutomaton() *Automaton {
	logger := p.deps.Logger
	buckets := newDoneBuckets(p.deps.Projects)
	return newAutomaton(logger,
		&fetchStep{scanner: p.deps.Scanner, tasks: p.deps.Tasks, cache: p.deps.Cache, opts: p.opts, logger: logger},
		&cacheCheckStep{cache: p.deps.Cache, logger: logger},
		&labelSyncStep{labels: NewLabelReconciler(p.deps.Labels), opts: p.opts, logger: logger},
		&removeStep{tasks: p.deps.Tasks, cache: p.deps.Cache, opts: p.opts, logger: logger},
		&createStep{tasks: p.deps.Tasks, labels: p.deps.Labels, cache: p.deps.Cache, vault: p.deps.Vault, codec: p.deps.Codec, buckets: buckets, opts: p.opts, now: p.deps.Now, logger: logger},
		&updateStep{tasks: p.deps.Tasks, cache: p.deps.Cache, vault: p.deps.Vault, codec: p.deps.Codec, buckets: buckets, opts: p.opts, logger: logger},
	)
}
