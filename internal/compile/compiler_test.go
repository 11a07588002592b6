package compile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/distbuilder/internal/cache"
	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// identityTransformer passes source through unchanged and records every call.
// Files whose name contains failOn (when non-empty) fail.
type identityTransformer struct {
	calls  []string
	failOn string

	// markerDir, when set, records whether the module-type marker already
	// existed at the moment of each transform call.
	markerDir  string
	markerSeen []bool
}

func (tr *identityTransformer) Transform(name string, src []byte, profile config.Profile) ([]byte, error) {
	tr.calls = append(tr.calls, profile.Name+":"+name)
	if tr.markerDir != "" {
		_, err := os.Stat(filepath.Join(tr.markerDir, MarkerFile))
		tr.markerSeen = append(tr.markerSeen, err == nil)
	}
	if tr.failOn != "" && strings.Contains(name, tr.failOn) {
		return nil, errors.New(errors.CategoryCompile, errors.SeverityFatal, "synthetic failure")
	}
	return src, nil
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "dist")

	cfg := &config.Config{Name: "lib", Profiles: config.DefaultProfiles()}
	cfg.Resolved = config.Paths{
		SourceRoot:    filepath.Join(dir, "src"),
		EntriesSrcDir: filepath.Join(dir, "src", "entries"),
		OutRoot:       out,
		BrowserDir:    filepath.Join(out, "browser"),
		CjsDir:        filepath.Join(out, "cjs"),
		EsmDir:        filepath.Join(out, "esm"),
		EntriesOutDir: filepath.Join(out, "cjs", "entries"),
	}
	return cfg
}

func writeSource(t *testing.T, cfg *config.Config, rel, content string) {
	t.Helper()
	path := filepath.Join(cfg.Resolved.SourceRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
}

func TestCompileLegacyWritesMarkerBeforeFirstTransform(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "index.js", "export const a = 1\n")
	writeSource(t, cfg, "stats/mean.js", "export function mean(xs) { return 0 }\n")

	tr := &identityTransformer{markerDir: cfg.Resolved.CjsDir}
	c := NewModuleCompiler(cfg, WithTransformer(tr))

	stats, err := c.CompileLegacy(context.Background())
	if err != nil {
		t.Fatalf("CompileLegacy failed: %v", err)
	}
	if stats.Transformed != 2 {
		t.Errorf("expected 2 transformed files, got %d", stats.Transformed)
	}
	if len(tr.markerSeen) != 2 {
		t.Fatalf("expected 2 transform calls, got %d", len(tr.markerSeen))
	}
	for i, seen := range tr.markerSeen {
		if !seen {
			t.Errorf("transform call %d ran before the module-type marker existed", i)
		}
	}

	data, err := os.ReadFile(filepath.Join(cfg.Resolved.CjsDir, MarkerFile))
	if err != nil {
		t.Fatalf("marker file missing: %v", err)
	}
	if !strings.Contains(string(data), `"type": "commonjs"`) {
		t.Errorf("marker file does not declare commonjs: %s", data)
	}
}

func TestCompileLegacyExcludesEntryFiles(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "index.js", "export const a = 1\n")
	writeSource(t, cfg, "entries/slim.entry.js", "export { a } from '../index.js'\n")

	tr := &identityTransformer{}
	c := NewModuleCompiler(cfg, WithTransformer(tr))

	stats, err := c.CompileLegacy(context.Background())
	if err != nil {
		t.Fatalf("CompileLegacy failed: %v", err)
	}
	if stats.Transformed != 1 {
		t.Errorf("expected 1 transformed file, got %d", stats.Transformed)
	}
	if _, err := os.Stat(filepath.Join(cfg.Resolved.CjsDir, "index.js")); err != nil {
		t.Errorf("general file missing from legacy tree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Resolved.CjsDir, "entries", "slim.entry.js")); err == nil {
		t.Error("entry file must not be written by the legacy pass")
	}
}

func TestCompileEntriesNestsUnderEntriesOutput(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "index.js", "export const a = 1\n")
	writeSource(t, cfg, "entries/slim.entry.js", "export { a } from '../index.js'\n")

	tr := &identityTransformer{}
	c := NewModuleCompiler(cfg, WithTransformer(tr))

	stats, err := c.CompileEntries(context.Background())
	if err != nil {
		t.Fatalf("CompileEntries failed: %v", err)
	}
	if stats.Transformed != 1 {
		t.Errorf("expected 1 transformed file, got %d", stats.Transformed)
	}
	if _, err := os.Stat(filepath.Join(cfg.Resolved.EntriesOutDir, "slim.entry.js")); err != nil {
		t.Errorf("entry file missing from nested entries output: %v", err)
	}
	// Entries are transformed under the legacy profile.
	if len(tr.calls) != 1 || !strings.HasPrefix(tr.calls[0], config.ProfileLegacy+":") {
		t.Errorf("expected one legacy-profile call, got %v", tr.calls)
	}
}

func TestCompileNativeIncludesEntryFilesWithoutMarker(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "index.js", "export const a = 1\n")
	writeSource(t, cfg, "entries/slim.entry.js", "export { a } from '../index.js'\n")

	tr := &identityTransformer{}
	c := NewModuleCompiler(cfg, WithTransformer(tr))

	stats, err := c.CompileNative(context.Background())
	if err != nil {
		t.Fatalf("CompileNative failed: %v", err)
	}
	if stats.Transformed != 2 {
		t.Errorf("expected 2 transformed files, got %d", stats.Transformed)
	}
	if _, err := os.Stat(filepath.Join(cfg.Resolved.EsmDir, "entries", "slim.entry.js")); err != nil {
		t.Errorf("entry file missing from native tree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Resolved.EsmDir, MarkerFile)); err == nil {
		t.Error("native tree must not carry a module-type marker")
	}
}

func TestTransformErrorAbortsProfile(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "a.js", "export const a = 1\n")
	writeSource(t, cfg, "b.js", "export const b = 2\n")

	tr := &identityTransformer{failOn: "a.js"}
	c := NewModuleCompiler(cfg, WithTransformer(tr))

	_, err := c.CompileLegacy(context.Background())
	if err == nil {
		t.Fatal("expected a transformation error")
	}
	if !errors.IsCategory(err, errors.CategoryCompile) {
		t.Errorf("expected compile category, got %v", errors.GetCategory(err))
	}
	// Files are processed in deterministic order; b.js comes after the
	// failing a.js and must never be reached.
	if _, statErr := os.Stat(filepath.Join(cfg.Resolved.CjsDir, "b.js")); statErr == nil {
		t.Error("later file was written after the profile aborted")
	}
}

func TestCompileCanceledContext(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "index.js", "export const a = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewModuleCompiler(cfg, WithTransformer(&identityTransformer{}))
	if _, err := c.CompileLegacy(ctx); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestCacheSkipsUnchangedFiles(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "index.js", "export const a = 1\n")
	writeSource(t, cfg, "stats/mean.js", "export function mean(xs) { return 0 }\n")

	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer func() { _ = store.Close() }()

	tr := &identityTransformer{}
	c := NewModuleCompiler(cfg, WithTransformer(tr), WithCache(store))

	first, err := c.CompileLegacy(context.Background())
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.Transformed != 2 || first.Skipped != 0 {
		t.Errorf("first pass: expected 2 transformed / 0 skipped, got %+v", first)
	}

	second, err := c.CompileLegacy(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.Transformed != 0 || second.Skipped != 2 {
		t.Errorf("second pass: expected 0 transformed / 2 skipped, got %+v", second)
	}
	if len(tr.calls) != 2 {
		t.Errorf("transformer must not run on cache hits, got %d calls", len(tr.calls))
	}

	// A content change invalidates exactly that file.
	writeSource(t, cfg, "index.js", "export const a = 42\n")
	third, err := c.CompileLegacy(context.Background())
	if err != nil {
		t.Fatalf("third pass failed: %v", err)
	}
	if third.Transformed != 1 || third.Skipped != 1 {
		t.Errorf("third pass: expected 1 transformed / 1 skipped, got %+v", third)
	}
}

func TestCacheMissWhenOutputDeleted(t *testing.T) {
	cfg := newTestConfig(t)
	writeSource(t, cfg, "index.js", "export const a = 1\n")

	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer func() { _ = store.Close() }()

	c := NewModuleCompiler(cfg, WithTransformer(&identityTransformer{}), WithCache(store))
	if _, err := c.CompileLegacy(context.Background()); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	// Deleting the output forces a re-transform despite the cache entry.
	if err := os.Remove(filepath.Join(cfg.Resolved.CjsDir, "index.js")); err != nil {
		t.Fatalf("failed to remove output: %v", err)
	}
	stats, err := c.CompileLegacy(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if stats.Transformed != 1 {
		t.Errorf("expected the deleted output to be rebuilt, got %+v", stats)
	}
}

func TestUnknownProfileIsConfigError(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Profiles = map[string]config.Profile{}
	writeSource(t, cfg, "index.js", "export const a = 1\n")

	c := NewModuleCompiler(cfg, WithTransformer(&identityTransformer{}))
	_, err := c.CompileLegacy(context.Background())
	if !errors.IsCategory(err, errors.CategoryConfig) {
		t.Errorf("expected config category, got %v", err)
	}
}
