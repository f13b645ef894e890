package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
vikunja:
  host: https://try.vikunja.io
  token: secret
  project_id: 3
vault:
  path: /home/me/vault
output:
  strategy: file
  file: inbox.md
cache:
  path: cache.json
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vikunja.ProjectID != 3 {
		t.Errorf("project id = %d", cfg.Vikunja.ProjectID)
	}
	if cfg.Sync.Interval.Std() != 5*time.Minute {
		t.Errorf("default interval = %s", cfg.Sync.Interval)
	}
	if cfg.Vault.Scanner != ScannerWalk {
		t.Errorf("default scanner = %q", cfg.Vault.Scanner)
	}
	if cfg.Output.DailyFormat != "2006-01-02" {
		t.Errorf("default daily format = %q", cfg.Output.DailyFormat)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_VAULT_DIR", "/srv/vault")
	cfg, err := Load(writeConfig(t, strings.Replace(validConfig,
		"/home/me/vault", "$TEST_VAULT_DIR", 1)))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vault.Path != "/srv/vault" {
		t.Errorf("vault path = %q", cfg.Vault.Path)
	}
}

func TestLoadTokenOverride(t *testing.T) {
	t.Setenv("VSYNC_TOKEN", "from-env")
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vikunja.Token != "from-env" {
		t.Errorf("token = %q", cfg.Vikunja.Token)
	}
}

func TestLoadRejectsLowInterval(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+`
sync:
  interval: 5s
`))
	if err == nil || !strings.Contains(err.Error(), "floor") {
		t.Fatalf("got %v, want interval floor error", err)
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	if _, err := Load(writeConfig(t, strings.Replace(validConfig,
		"  token: secret\n", "", 1))); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadIndexScannerNeedsPath(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig,
		"  path: /home/me/vault\n", "  path: /home/me/vault\n  scanner: index\n", 1)))
	if err == nil || !strings.Contains(err.Error(), "index_path") {
		t.Fatalf("got %v, want index_path error", err)
	}
}

func TestLoadDailyOutputNeedsDir(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig,
		"  strategy: file\n  file: inbox.md\n", "  strategy: daily\n", 1)))
	if err == nil || !strings.Contains(err.Error(), "daily_dir") {
		t.Fatalf("got %v, want daily_dir error", err)
	}
}
