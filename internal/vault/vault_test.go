package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcus/vsync/internal/codec"
)

func newTestVault(t *testing.T, files map[string]string) *Vault {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	v, err := New(dir)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v
}

func TestReadAndReplaceLine(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"notes.md": "first\nsecond\nthird\n",
	})

	line, err := v.ReadLine("notes.md", 1)
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	if line != "second" {
		t.Errorf("got %q, want %q", line, "second")
	}

	if err := v.ReplaceLine("notes.md", 1, "replaced"); err != nil {
		t.Fatalf("replace line: %v", err)
	}
	got, err := v.ReadLines("notes.md")
	if err != nil {
		t.Fatalf("read lines: %v", err)
	}
	want := []string{"first", "replaced", "third"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines: got %v, want %v", got, want)
	}
}

func TestReplaceLine_OutOfRange(t *testing.T) {
	v := newTestVault(t, map[string]string{"notes.md": "only\n"})
	if err := v.ReplaceLine("notes.md", 5, "nope"); err == nil {
		t.Fatal("expected error for out-of-range line")
	}
}

func TestRemoveLine(t *testing.T) {
	v := newTestVault(t, map[string]string{"notes.md": "keep\ndrop\nkeep too\n"})
	if err := v.RemoveLine("notes.md", 1); err != nil {
		t.Fatalf("remove line: %v", err)
	}
	got, _ := v.ReadLines("notes.md")
	if len(got) != 2 || got[1] != "keep too" {
		t.Errorf("lines after remove: %v", got)
	}
}

func TestAppendLine(t *testing.T) {
	v := newTestVault(t, map[string]string{"notes.md": "existing\n"})

	n, err := v.AppendLine("notes.md", "appended")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 1 {
		t.Errorf("lineno: got %d, want 1", n)
	}

	// Appending to a missing file creates it.
	n, err = v.AppendLine("new/daily.md", "task line")
	if err != nil {
		t.Fatalf("append to new file: %v", err)
	}
	if n != 0 {
		t.Errorf("lineno in new file: got %d, want 0", n)
	}
	line, err := v.ReadLine("new/daily.md", 0)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if line != "task line" {
		t.Errorf("got %q, want %q", line, "task line")
	}
}

func TestInsertAfterMarker(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"inbox.md": "# Inbox\n## Tasks\nolder task\n",
	})

	n, err := v.InsertAfterMarker("inbox.md", "## Tasks", "- [ ] fresh")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Errorf("lineno: got %d, want 2", n)
	}
	got, _ := v.ReadLines("inbox.md")
	want := []string{"# Inbox", "## Tasks", "- [ ] fresh", "older task"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines: got %v, want %v", got, want)
	}
}

func TestInsertAfterMarker_FallsBackToAppend(t *testing.T) {
	v := newTestVault(t, map[string]string{"inbox.md": "no marker here\n"})

	n, err := v.InsertAfterMarker("inbox.md", "## Tasks", "- [ ] fresh")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 1 {
		t.Errorf("lineno: got %d, want 1", n)
	}
}

func TestModTime(t *testing.T) {
	v := newTestVault(t, map[string]string{"inbox.md": "- [ ] a\n"})

	mt, err := v.ModTime("inbox.md")
	if err != nil {
		t.Fatalf("mod time: %v", err)
	}
	if mt.IsZero() {
		t.Error("mod time should not be zero")
	}
	if _, err := v.ModTime("missing.md"); err == nil {
		t.Error("missing file should error")
	}
}

func TestSafePath_RejectsEscapes(t *testing.T) {
	v := newTestVault(t, nil)

	if _, err := v.ReadLines("../outside.md"); err == nil {
		t.Error("traversal should be rejected")
	}
	if _, err := v.ReadLines("/etc/passwd"); err == nil {
		t.Error("absolute path should be rejected")
	}
}

func TestScanner(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"a.md":       "# Notes\n- [ ] First task #one\nplain text\n- [x] Done task [vikunja_id:: 5]\n",
		"sub/b.md":   "- [ ] Nested task\n",
		"ignore.txt": "- [ ] not markdown\n",
	})

	c := &codec.Codec{Host: "https://example.com", DefaultProjectID: 1}
	s := NewScanner(v, c)

	tasks, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("task count: got %d, want 3", len(tasks))
	}

	byTitle := make(map[string]int)
	for _, vt := range tasks {
		byTitle[vt.Task.Title] = vt.Lineno
	}
	if byTitle["First task"] != 1 {
		t.Errorf("First task line: got %d, want 1", byTitle["First task"])
	}
	if byTitle["Done task"] != 3 {
		t.Errorf("Done task line: got %d, want 3", byTitle["Done task"])
	}
	if _, ok := byTitle["Nested task"]; !ok {
		t.Error("nested file task missing")
	}
}

func TestScanFile(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"a.md": "- [ ] Alpha\n- [ ] Beta\n",
	})
	c := &codec.Codec{DefaultProjectID: 1}
	s := NewScanner(v, c)

	tasks, err := s.ScanFile(context.Background(), "a.md")
	if err != nil {
		t.Fatalf("scan file: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("task count: got %d, want 2", len(tasks))
	}
	if tasks[0].Filepath != "a.md" || tasks[0].Lineno != 0 {
		t.Errorf("location: got %s:%d, want a.md:0", tasks[0].Filepath, tasks[0].Lineno)
	}
}
