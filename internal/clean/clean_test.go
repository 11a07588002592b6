package clean

import (
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/distbuilder/internal/config"
)

func testPaths(t *testing.T) config.Paths {
	t.Helper()
	dir := t.TempDir()
	return config.Paths{
		SourceRoot:   filepath.Join(dir, "src"),
		OutRoot:      filepath.Join(dir, "dist"),
		LegacyOutDir: filepath.Join(dir, "lib"),
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestCleanRemovesOutputTrees(t *testing.T) {
	paths := testPaths(t)
	mustWrite(t, filepath.Join(paths.OutRoot, "cjs", "index.js"), "x")
	mustWrite(t, filepath.Join(paths.LegacyOutDir, "index.js"), "x")
	mustWrite(t, filepath.Join(paths.SourceRoot, "index.js"), "x")

	if err := New(paths).Clean(); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if _, err := os.Stat(paths.OutRoot); !os.IsNotExist(err) {
		t.Error("output root still exists")
	}
	if _, err := os.Stat(paths.LegacyOutDir); !os.IsNotExist(err) {
		t.Error("legacy output dir still exists")
	}
	// Hand-written sources survive.
	if _, err := os.Stat(filepath.Join(paths.SourceRoot, "index.js")); err != nil {
		t.Errorf("source file was removed: %v", err)
	}
}

func TestCleanRemovesGeneratedFragments(t *testing.T) {
	paths := testPaths(t)
	mustWrite(t, filepath.Join(paths.SourceRoot, "version"+config.GeneratedSuffix), "export const version = '1'")
	mustWrite(t, filepath.Join(paths.SourceRoot, "nested", "table"+config.GeneratedSuffix), "x")
	mustWrite(t, filepath.Join(paths.SourceRoot, "index.js"), "x")

	if err := New(paths).Clean(); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(paths.SourceRoot, "version"+config.GeneratedSuffix)); !os.IsNotExist(err) {
		t.Error("generated fragment still exists")
	}
	if _, err := os.Stat(filepath.Join(paths.SourceRoot, "nested", "table"+config.GeneratedSuffix)); !os.IsNotExist(err) {
		t.Error("nested generated fragment still exists")
	}
	if _, err := os.Stat(filepath.Join(paths.SourceRoot, "index.js")); err != nil {
		t.Errorf("source file was removed: %v", err)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	paths := testPaths(t)
	// Nothing exists at all, including the source root.
	c := New(paths)
	if err := c.Clean(); err != nil {
		t.Fatalf("Clean on empty workspace failed: %v", err)
	}
	if err := c.Clean(); err != nil {
		t.Fatalf("repeated Clean failed: %v", err)
	}
}
