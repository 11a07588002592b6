// Package bundle produces the single self-contained browser artifact. A
// long-lived packaging session is reused across repeated runs (notably in
// watch mode) to retain its incremental cache.
package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"git.home.luguber.info/inful/distbuilder/internal/banner"
	"git.home.luguber.info/inful/distbuilder/internal/compile"
	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// Bundler owns the packaging session exclusively. Run is serialized with a
// mutex so concurrent watch triggers never overlap a session rebuild.
type Bundler struct {
	mu     sync.Mutex
	cfg    *config.Config
	banner *banner.Service
	engine Engine
	log    *slog.Logger
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithEngine overrides the default esbuild engine.
func WithEngine(engine Engine) Option {
	return func(b *Bundler) { b.engine = engine }
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bundler) { b.log = log }
}

// New creates a Bundler. The packaging session is acquired lazily on the
// first Run and released by Close.
func New(cfg *config.Config, bannerSvc *banner.Service, opts ...Option) *Bundler {
	b := &Bundler{
		cfg:    cfg,
		banner: bannerSvc,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.engine == nil {
		b.engine = NewEngine(cfg)
	}
	return b
}

// Run executes one packaging pass: recompute the banner, rebuild, apply the
// diagnostics policy (warnings logged, errors fatal), and on success write
// the commonjs marker and the artifact with the banner prepended to the
// entry chunk.
func (b *Bundler) Run(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Recomputed before every invocation: a long-running watch session can
	// span a UTC day boundary or a version bump.
	bannerText, err := b.banner.Create()
	if err != nil {
		return err
	}

	result, err := b.engine.Rebuild(ctx)
	if err != nil {
		return errors.WrapCompile(err, "packaging engine failed")
	}

	for _, w := range result.Warnings {
		b.log.Warn("Bundle warning", "message", w.String())
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			b.log.Error("Bundle error", "message", e.String())
		}
		return errors.CompileError(fmt.Sprintf("packaging engine reported %d error(s)", len(result.Errors)))
	}

	// Marker before artifact, same ordering invariant as the module trees.
	if err := compile.WriteMarker(b.cfg.Resolved.BrowserDir); err != nil {
		return err
	}

	artifact := make([]byte, 0, len(bannerText)+1+len(result.Code))
	artifact = append(artifact, bannerText...)
	artifact = append(artifact, '\n')
	artifact = append(artifact, result.Code...)

	if err := os.WriteFile(b.cfg.Resolved.BundleOutfile, artifact, 0o644); err != nil {
		return errors.WrapFilesystem(err, "failed to write bundle artifact").
			WithContext("path", b.cfg.Resolved.BundleOutfile)
	}

	b.log.Info("Bundle written",
		"path", b.cfg.Resolved.BundleOutfile,
		"bytes", len(artifact),
		"warnings", len(result.Warnings))
	return nil
}

// Close releases the packaging session. Call once at process shutdown; the
// session is never torn down between watch-triggered rebuilds.
func (b *Bundler) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engine.Dispose()
}
