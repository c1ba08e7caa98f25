package fsutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "capture.m4a")
	dst := filepath.Join(dir, "store", "recording-1.m4a")

	if err := MoveFile(src, dst); err == nil {
		t.Fatalf("expected error for missing src")
	}
	if FileExists(dst) {
		t.Fatalf("dst should not exist after failed move")
	}

	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("move: %v", err)
	}
	if FileExists(src) {
		t.Fatalf("src should be gone after move")
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(b) != "audio" {
		t.Fatalf("dst=%q", string(b))
	}

	// Refuses to clobber.
	if err := os.WriteFile(src, []byte("other"), 0o644); err != nil {
		t.Fatalf("write src2: %v", err)
	}
	if err := MoveFile(src, dst); err == nil {
		t.Fatalf("expected error when dst exists")
	}
	b, _ = os.ReadFile(dst)
	if string(b) != "audio" {
		t.Fatalf("dst changed unexpectedly: %q", string(b))
	}
}

func TestWriteJSONFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "meta", "recording-1.json")
	in := map[string]any{"title": "Morning"}

	if err := WriteJSONFileAtomic(path, in, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasSuffix(string(b), "\n") {
		t.Fatalf("expected trailing newline")
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["title"] != "Morning" {
		t.Fatalf("title=%v", out["title"])
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}
