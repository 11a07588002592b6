package cache

import (
	"path/filepath"
	"testing"
)

func TestHitAfterRecord(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	hash := Hash([]byte("export const a = 1"))
	if store.Hit("legacy", "a.js", hash) {
		t.Error("unexpected hit before recording")
	}
	if err := store.Record("legacy", "a.js", hash); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !store.Hit("legacy", "a.js", hash) {
		t.Error("expected a hit after recording")
	}
}

func TestHitIsProfileScoped(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	hash := Hash([]byte("x"))
	if err := store.Record("legacy", "a.js", hash); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if store.Hit("native", "a.js", hash) {
		t.Error("a legacy entry must not satisfy a native lookup")
	}
}

func TestRecordReplacesHash(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	old := Hash([]byte("v1"))
	updated := Hash([]byte("v2"))
	if err := store.Record("legacy", "a.js", old); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record("legacy", "a.js", updated); err != nil {
		t.Fatalf("re-Record failed: %v", err)
	}
	if store.Hit("legacy", "a.js", old) {
		t.Error("stale hash still hits")
	}
	if !store.Hit("legacy", "a.js", updated) {
		t.Error("updated hash misses")
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".distbuilder", "cache.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestHashIsStable(t *testing.T) {
	a := Hash([]byte("content"))
	b := Hash([]byte("content"))
	c := Hash([]byte("content "))
	if a != b {
		t.Error("identical content produced different hashes")
	}
	if a == c {
		t.Error("different content produced identical hashes")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
