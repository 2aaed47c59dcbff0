package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDataDirEndsInMeshnet(t *testing.T) {
	got := DefaultDataDir()
	if filepath.Base(got) != "meshnet" {
		t.Fatalf("expected the default data dir to end in \"meshnet\", got %q", got)
	}
}

func TestEnsureDirCreatesAndCleans(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "a", "..", "b", "c")

	got, err := EnsureDir(target)
	if err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if got != filepath.Clean(target) {
		t.Fatalf("expected cleaned path %q, got %q", filepath.Clean(target), got)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected EnsureDir to create a directory")
	}
}

func TestEnsureDirIsIdempotent(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "data")

	if _, err := EnsureDir(target); err != nil {
		t.Fatalf("first ensure dir: %v", err)
	}
	if _, err := EnsureDir(target); err != nil {
		t.Fatalf("second ensure dir should be a no-op, got: %v", err)
	}
}
