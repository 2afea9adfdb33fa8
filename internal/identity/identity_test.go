package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadGeneratesIDOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "device-id")

	id, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id == "" {
		t.Fatal("generated id is empty")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to be created: %v", err)
	}
}

func TestLoadReturnsPersistedIDOnSubsequentRuns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device-id")

	first, err := Load(path)
	if err != nil {
		t.Fatalf("Load (first): %v", err)
	}
	second, err := Load(path)
	if err != nil {
		t.Fatalf("Load (second): %v", err)
	}
	if first != second {
		t.Fatalf("id changed between runs: %q != %q", first, second)
	}
}

func TestLoadRejectsOversizedID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device-id")
	oversized := strings.Repeat("a", IDMax+1)
	if err := os.WriteFile(path, []byte(oversized+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for oversized id")
	}
}

func TestLoadRejectsNonPrintableID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device-id")
	if err := os.WriteFile(path, []byte("bad\x01id\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-printable id")
	}
}
