package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/marcus/vsync/internal/cache"
	"github.com/marcus/vsync/internal/codec"
	"github.com/marcus/vsync/internal/config"
	"github.com/marcus/vsync/internal/engine"
	"github.com/marcus/vsync/internal/index"
	"github.com/marcus/vsync/internal/vault"
	"github.com/marcus/vsync/internal/vikunja"
)

// app bundles the wired components one command invocation needs.
type app struct {
	cfg       *config.Config
	vault     *vault.Vault
	codec     *codec.Codec
	cache     *cache.Cache
	client    *vikunja.Client
	processor *engine.Processor
	// indexDB is non-nil when the index scanner is configured.
	indexDB *index.DB
}

// newApp loads the configuration and builds the component graph.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	initLogger(cfg.Log)

	v, err := vault.New(cfg.Vault.Path)
	if err != nil {
		return nil, err
	}
	cdc := &codec.Codec{
		Host:              cfg.Vikunja.Host,
		DefaultProjectID:  cfg.Vikunja.ProjectID,
		KeepTags:          cfg.Codec.KeepTags,
		KeepTagExceptions: cfg.Codec.KeepTagExceptions,
	}

	var cacheOpts []cache.Option
	if d := cfg.Cache.FlushInterval.Std(); d > 0 {
		cacheOpts = append(cacheOpts, cache.WithFlushInterval(d))
	}
	taskCache := cache.New(cfg.Cache.Path, cacheOpts...)
	if err := taskCache.Load(); err != nil {
		return nil, fmt.Errorf("load task cache: %w", err)
	}

	a := &app{
		cfg:    cfg,
		vault:  v,
		codec:  cdc,
		cache:  taskCache,
		client: vikunja.New(cfg.Vikunja.Host, cfg.Vikunja.Token),
	}

	scanner, err := a.buildScanner()
	if err != nil {
		return nil, err
	}

	a.processor = engine.NewProcessor(engine.Deps{
		Scanner:  scanner,
		Tasks:    a.client,
		Labels:   a.client,
		Projects: a.client,
		Cache:    taskCache,
		Vault:    v,
		Codec:    cdc,
		Logger:   slog.Default(),
		Now:      time.Now,
	}, engine.Options{
		DefaultProjectID:   cfg.Vikunja.ProjectID,
		FilterProject:      cfg.Vikunja.FilterProject,
		RemoveMissingTasks: cfg.Sync.RemoveMissingTasks,
		RemoveUnusedLabels: cfg.Sync.RemoveUnusedLabels,
		MoveDoneToBucket:   cfg.Sync.MoveDoneToBucket,
		Output: engine.OutputOptions{
			Strategy:     cfg.Output.Strategy,
			File:         cfg.Output.File,
			DailyDir:     cfg.Output.DailyDir,
			DailyFormat:  cfg.Output.DailyFormat,
			AppendMarker: cfg.Output.AppendMarker,
		},
	})
	return a, nil
}

// buildScanner resolves the configured scanner strategy. The index scanner
// rebuilds its table on startup so one-shot runs never read a stale index;
// watch mode keeps it fresh with the filesystem watcher afterwards.
func (a *app) buildScanner() (engine.Scanner, error) {
	switch a.cfg.Vault.Scanner {
	case config.ScannerIndex:
		db, err := index.Open(a.cfg.Vault.IndexPath)
		if err != nil {
			return nil, err
		}
		if err := db.Rebuild(a.vault); err != nil {
			db.Close()
			return nil, err
		}
		a.indexDB = db
		return index.NewScanner(db, a.codec), nil
	default:
		return vault.NewScanner(a.vault, a.codec), nil
	}
}

// close releases held resources.
func (a *app) close() {
	if a.indexDB != nil {
		a.indexDB.Close()
	}
}

func initLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
