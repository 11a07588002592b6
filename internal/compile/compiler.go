// Package compile produces the transpiled module trees: a legacy
// (commonjs) copy and a native (ES module) copy of the source tree, plus
// the nested entry subtree under the legacy root.
package compile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/distbuilder/internal/cache"
	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// Stats summarizes one compile pass.
type Stats struct {
	Transformed int
	Skipped     int // cache hits
}

// ModuleCompiler transforms the source tree under the two module profiles.
type ModuleCompiler struct {
	cfg   *config.Config
	tr    Transformer
	cache *cache.Store // nil disables caching
	log   *slog.Logger
}

// Option configures a ModuleCompiler.
type Option func(*ModuleCompiler)

// WithTransformer overrides the default esbuild transformer.
func WithTransformer(tr Transformer) Option {
	return func(c *ModuleCompiler) { c.tr = tr }
}

// WithCache attaches a transform cache.
func WithCache(store *cache.Store) Option {
	return func(c *ModuleCompiler) { c.cache = store }
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *ModuleCompiler) { c.log = log }
}

// NewModuleCompiler creates a compiler for the configured source tree.
func NewModuleCompiler(cfg *config.Config, opts ...Option) *ModuleCompiler {
	c := &ModuleCompiler{
		cfg: cfg,
		tr:  NewTransformer(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileLegacy transforms every general source file (entry-only files are
// handled by CompileEntries) under the legacy profile into the cjs output
// root. The commonjs marker is written before any transformed file.
func (c *ModuleCompiler) CompileLegacy(ctx context.Context) (Stats, error) {
	profile, err := c.profile(config.ProfileLegacy)
	if err != nil {
		return Stats{}, err
	}
	files, err := listSources(c.cfg.Resolved.SourceRoot)
	if err != nil {
		return Stats{}, err
	}

	// Marker first: a consumer reading the tree mid-run must never see
	// transformed files without the module-type declaration.
	if err := WriteMarker(c.cfg.Resolved.CjsDir); err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, f := range files {
		if f.Entry {
			continue
		}
		if err := c.transformOne(ctx, f, profile, c.cfg.Resolved.CjsDir, f.Rel, &stats); err != nil {
			return stats, err
		}
	}
	c.log.Info("Compiled legacy tree",
		"out", c.cfg.Resolved.CjsDir,
		"transformed", stats.Transformed,
		"skipped", stats.Skipped)
	return stats, nil
}

// CompileNative transforms the full source tree, including the generated
// entry files in their final form, under the native profile into the esm
// output root. No marker is written: the absence of a commonjs marker is
// itself meaningful to consumers.
func (c *ModuleCompiler) CompileNative(ctx context.Context) (Stats, error) {
	profile, err := c.profile(config.ProfileNative)
	if err != nil {
		return Stats{}, err
	}
	files, err := listSources(c.cfg.Resolved.SourceRoot)
	if err != nil {
		return Stats{}, err
	}
	if err := os.MkdirAll(c.cfg.Resolved.EsmDir, 0o755); err != nil {
		return Stats{}, errors.WrapFilesystem(err, "failed to create esm output root")
	}

	var stats Stats
	for _, f := range files {
		if err := c.transformOne(ctx, f, profile, c.cfg.Resolved.EsmDir, f.Rel, &stats); err != nil {
			return stats, err
		}
	}
	c.log.Info("Compiled native tree",
		"out", c.cfg.Resolved.EsmDir,
		"transformed", stats.Transformed,
		"skipped", stats.Skipped)
	return stats, nil
}

// CompileEntries transforms only the generated entry-file subset under the
// legacy profile into the nested entries directory inside the cjs root.
// The entry files must already exist on disk in final form.
func (c *ModuleCompiler) CompileEntries(ctx context.Context) (Stats, error) {
	profile, err := c.profile(config.ProfileLegacy)
	if err != nil {
		return Stats{}, err
	}
	files, err := listSources(c.cfg.Resolved.SourceRoot)
	if err != nil {
		return Stats{}, err
	}
	if err := os.MkdirAll(c.cfg.Resolved.EntriesOutDir, 0o755); err != nil {
		return Stats{}, errors.WrapFilesystem(err, "failed to create entries output directory")
	}

	entriesRel, relErr := filepath.Rel(c.cfg.Resolved.SourceRoot, c.cfg.Resolved.EntriesSrcDir)
	if relErr != nil {
		entriesRel = "entries"
	}
	entriesRel = filepath.ToSlash(entriesRel) + "/"

	var stats Stats
	for _, f := range files {
		if !f.Entry {
			continue
		}
		// Entries nest directly under the entries output dir, without the
		// source-side entries/ prefix.
		outRel := strings.TrimPrefix(f.Rel, entriesRel)
		outRel = entryBase(outRel)
		if err := c.transformOne(ctx, f, profile, c.cfg.Resolved.EntriesOutDir, outRel, &stats); err != nil {
			return stats, err
		}
	}
	c.log.Info("Compiled entry files",
		"out", c.cfg.Resolved.EntriesOutDir,
		"transformed", stats.Transformed,
		"skipped", stats.Skipped)
	return stats, nil
}

// transformOne reads, transforms and writes a single file, consulting the
// transform cache. Any transformation error aborts the whole tree write
// for the active profile.
func (c *ModuleCompiler) transformOne(ctx context.Context, f sourceFile, profile config.Profile, destRoot, destRel string, stats *Stats) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	src, err := os.ReadFile(f.Abs)
	if err != nil {
		return errors.WrapFilesystem(err, "failed to read source file").WithContext("file", f.Rel)
	}

	outPath := filepath.Join(destRoot, filepath.FromSlash(destRel))
	contentHash := cache.Hash(src)

	if c.cache != nil && c.cache.Hit(profile.Name, destRel, contentHash) {
		if _, statErr := os.Stat(outPath); statErr == nil {
			stats.Skipped++
			return nil
		}
	}

	out, err := c.tr.Transform(f.Rel, src, profile)
	if err != nil {
		return errors.WrapCompile(err, fmt.Sprintf("transformation failed under %s profile", profile.Name)).
			WithContext("file", f.Rel)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.WrapFilesystem(err, "failed to create output directory").WithContext("file", destRel)
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return errors.WrapFilesystem(err, "failed to write transformed file").WithContext("file", destRel)
	}
	stats.Transformed++

	if c.cache != nil {
		if err := c.cache.Record(profile.Name, destRel, contentHash); err != nil {
			c.log.Warn("Failed to record transform cache entry", "file", destRel, "error", err)
		}
	}
	return nil
}

func (c *ModuleCompiler) profile(name string) (config.Profile, error) {
	profile, ok := c.cfg.Profiles[name]
	if !ok {
		return config.Profile{}, errors.ConfigError("unknown transformation profile").WithContext("profile", name)
	}
	return profile, nil
}

// entryBase keeps only the basename when an entry file lives outside the
// conventional entries directory.
func entryBase(rel string) string {
	if strings.Contains(rel, "/") {
		return rel[strings.LastIndex(rel, "/")+1:]
	}
	return rel
}
