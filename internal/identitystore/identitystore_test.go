package identitystore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected an error opening an empty path")
	}
}

func TestLoadOrCreateSigningKeyPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "identity.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first, err := s.LoadOrCreateSigningKey()
	if err != nil {
		t.Fatalf("load or create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	second, err := s2.LoadOrCreateSigningKey()
	if err != nil {
		t.Fatalf("load or create (reopen): %v", err)
	}

	if string(first) != string(second) {
		t.Fatal("expected the same signing key to be returned across reopen")
	}
}

func TestSaveAndLoadSeen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "identity.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	now := time.Now()
	ids := map[string]time.Time{
		"msg-1": now.Add(-time.Minute),
		"msg-2": now,
	}
	if err := s.SaveSeen(ids); err != nil {
		t.Fatalf("save seen: %v", err)
	}

	loaded, err := s.LoadSeen()
	if err != nil {
		t.Fatalf("load seen: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 loaded entries, got %d", len(loaded))
	}
	for id, want := range ids {
		got, ok := loaded[id]
		if !ok {
			t.Fatalf("expected %q to be present", id)
		}
		if !got.Equal(want.Truncate(time.Millisecond)) {
			t.Fatalf("expected %q timestamp %v, got %v", id, want, got)
		}
	}
}

func TestPruneSeenDeletesOnlyStaleEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "identity.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.SaveSeen(map[string]time.Time{
		"stale": now.Add(-time.Hour),
		"fresh": now,
	}); err != nil {
		t.Fatalf("save seen: %v", err)
	}

	if err := s.PruneSeen(now.Add(-time.Minute)); err != nil {
		t.Fatalf("prune seen: %v", err)
	}

	loaded, err := s.LoadSeen()
	if err != nil {
		t.Fatalf("load seen: %v", err)
	}
	if _, ok := loaded["stale"]; ok {
		t.Fatal("expected stale entry to have been pruned")
	}
	if _, ok := loaded["fresh"]; !ok {
		t.Fatal("expected fresh entry to survive pruning")
	}
}
