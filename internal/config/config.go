// Package config loads the application configuration from a YAML file with
// environment variable expansion.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

// MinSyncInterval is the floor for periodic syncing so a misconfigured
// interval cannot hammer the backend.
const MinSyncInterval = 30 * time.Second

// Scanner backends.
const (
	ScannerWalk  = "walk"
	ScannerIndex = "index"
)

// Output strategies for tasks pulled from Vikunja.
const (
	OutputFile  = "file"
	OutputDaily = "daily"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config is the application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Vikunja VikunjaConfig `yaml:"vikunja"`
	Vault   VaultConfig   `yaml:"vault"`
	Sync    SyncConfig    `yaml:"sync"`
	Output  OutputConfig  `yaml:"output"`
	Codec   CodecConfig   `yaml:"codec"`
	Cache   CacheConfig   `yaml:"cache"`
}

// Load reads, expands and validates the config file. $VAR references in the
// file are expanded from the environment before parsing, and the Vikunja
// token can be overridden with VSYNC_TOKEN.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", filename, err)
	}
	cfg.applyDefaults()

	if token := os.Getenv("VSYNC_TOKEN"); token != "" {
		cfg.Vikunja.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sync.Interval == 0 {
		c.Sync.Interval = Duration(5 * time.Minute)
	}
	if c.Vault.Scanner == "" {
		c.Vault.Scanner = ScannerWalk
	}
	if c.Output.Strategy == "" {
		c.Output.Strategy = OutputFile
	}
	if c.Output.DailyFormat == "" {
		c.Output.DailyFormat = "2006-01-02"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "vsync-cache.json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vikunja.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level slog.Level `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// VikunjaConfig holds the backend connection settings.
type VikunjaConfig struct {
	Host  string `yaml:"host"`
	Token string `yaml:"token"`
	// ProjectID is the default project new tasks are created in.
	ProjectID int64 `yaml:"project_id"`
	// FilterProject restricts syncing to the default project.
	FilterProject bool `yaml:"filter_project"`
}

// Validate validates the Vikunja configuration.
func (c *VikunjaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required, is.URL),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.ProjectID, validation.Required, validation.Min(1)),
	)
}

// VaultConfig holds the vault location and scanner choice.
type VaultConfig struct {
	Path string `yaml:"path"`
	// Scanner selects the backend: "walk" rereads the tree on every run,
	// "index" reads from the SQLite index kept fresh by the watcher.
	Scanner string `yaml:"scanner"`
	// IndexPath is the SQLite index file, required for the index scanner.
	IndexPath string `yaml:"index_path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Scanner, validation.In(ScannerWalk, ScannerIndex)),
	); err != nil {
		return err
	}
	if c.Scanner == ScannerIndex && c.IndexPath == "" {
		return fmt.Errorf("vault: scanner is %q but index_path is empty", ScannerIndex)
	}
	return nil
}

// SyncConfig holds reconciliation behavior settings.
type SyncConfig struct {
	// Interval is the periodic sync cadence in watch mode.
	Interval Duration `yaml:"interval"`
	// RemoveMissingTasks deletes remote tasks whose vault line disappeared.
	RemoveMissingTasks bool `yaml:"remove_missing_tasks"`
	// RemoveUnusedLabels deletes remote labels no vault task references.
	RemoveUnusedLabels bool `yaml:"remove_unused_labels"`
	// MoveDoneToBucket places completed tasks in the done bucket of the
	// project's kanban view.
	MoveDoneToBucket bool `yaml:"move_done_to_bucket"`
	// SyncOnStart runs one sync when watch mode starts.
	SyncOnStart bool `yaml:"sync_on_start"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if c.Interval.Std() < MinSyncInterval {
		return fmt.Errorf("sync: interval %s is below the %s floor", c.Interval, MinSyncInterval)
	}
	return nil
}

// OutputConfig decides where pulled tasks land in the vault.
type OutputConfig struct {
	Strategy string `yaml:"strategy"`
	File     string `yaml:"file"`
	// DailyDir and DailyFormat shape daily note paths for the "daily"
	// strategy; the format is a Go time layout.
	DailyDir    string `yaml:"daily_dir"`
	DailyFormat string `yaml:"daily_format"`
	// AppendMarker inserts pulled tasks after this line instead of at the
	// end of the file.
	AppendMarker string `yaml:"append_marker"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Strategy, validation.Required, validation.In(OutputFile, OutputDaily)),
	); err != nil {
		return err
	}
	switch c.Strategy {
	case OutputFile:
		if c.File == "" {
			return fmt.Errorf("output: strategy is %q but file is empty", OutputFile)
		}
	case OutputDaily:
		if c.DailyDir == "" {
			return fmt.Errorf("output: strategy is %q but daily_dir is empty", OutputDaily)
		}
	}
	return nil
}

// CodecConfig holds text format settings.
type CodecConfig struct {
	// KeepTags leaves hashtags inside the title text instead of stripping
	// them, except for the listed tags.
	KeepTags          bool     `yaml:"keep_tags"`
	KeepTagExceptions []string `yaml:"keep_tag_exceptions"`
}

// CacheConfig holds task cache persistence settings.
type CacheConfig struct {
	Path string `yaml:"path"`
	// FlushInterval debounces cache writes; zero flushes on every change.
	FlushInterval Duration `yaml:"flush_interval"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}
