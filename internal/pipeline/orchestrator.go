package pipeline

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/distbuilder/internal/banner"
	"git.home.luguber.info/inful/distbuilder/internal/bundle"
	"git.home.luguber.info/inful/distbuilder/internal/cache"
	"git.home.luguber.info/inful/distbuilder/internal/clean"
	"git.home.luguber.info/inful/distbuilder/internal/compile"
	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/docgen"
	"git.home.luguber.info/inful/distbuilder/internal/entries"
	"git.home.luguber.info/inful/distbuilder/internal/metrics"
)

// Orchestrator wires the build components into the stage registry and runs
// pipelines against them. It owns the long-lived resources (transform
// cache, packaging session) for the process lifetime.
type Orchestrator struct {
	cfg      *config.Config
	registry *Registry
	pipeline *Pipeline
	recorder metrics.Recorder
	log      *slog.Logger

	bannerSvc *banner.Service
	compiler  *compile.ModuleCompiler
	bundler   *bundle.Bundler
	cleaner   *clean.Cleaner
	entries   entries.Generator
	docs      docgen.Generator
	store     *cache.Store
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithEntriesGenerator overrides the entry-file collaborator.
func WithEntriesGenerator(g entries.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.entries = g }
}

// WithDocsGenerator overrides the documentation collaborator.
func WithDocsGenerator(g docgen.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.docs = g }
}

// WithBundler overrides the bundler (tests inject fakes through it).
func WithBundler(b *bundle.Bundler) OrchestratorOption {
	return func(o *Orchestrator) { o.bundler = b }
}

// WithCompiler overrides the module compiler.
func WithCompiler(c *compile.ModuleCompiler) OrchestratorOption {
	return func(o *Orchestrator) { o.compiler = c }
}

// NewOrchestrator creates a fully wired orchestrator for cfg.
func NewOrchestrator(cfg *config.Config, opts ...OrchestratorOption) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.bannerSvc = banner.New(cfg.Resolved)
	o.cleaner = clean.New(cfg.Resolved)

	if o.compiler == nil {
		var compileOpts []compile.Option
		if !cfg.Cache.Disabled {
			store, err := cache.Open(cfg.Cache.Path)
			if err != nil {
				return nil, err
			}
			o.store = store
			compileOpts = append(compileOpts, compile.WithCache(store))
		}
		o.compiler = compile.NewModuleCompiler(cfg, compileOpts...)
	}
	if o.bundler == nil {
		o.bundler = bundle.New(cfg, o.bannerSvc)
	}
	if o.entries == nil {
		o.entries = entries.NewManifestGenerator(cfg)
	}
	if o.docs == nil {
		o.docs = docgen.NewMarkdownGenerator()
	}

	o.registry = defaultRegistry()
	o.pipeline = NewPipeline(o.registry, o.recorder)
	return o, nil
}

// newBuildState assembles the per-run state.
func (o *Orchestrator) newBuildState() *BuildState {
	report := NewReport()
	report.Commit = o.bannerSvc.Commit()
	return &BuildState{
		Config:   o.cfg,
		Banner:   o.bannerSvc,
		Compiler: o.compiler,
		Bundler:  o.bundler,
		Cleaner:  o.cleaner,
		Entries:  o.entries,
		Docs:     o.docs,
		Report:   report,
	}
}

// Build runs the full default pipeline.
func (o *Orchestrator) Build(ctx context.Context) error {
	return o.pipeline.ExecuteAll(ctx, o.newBuildState())
}

// Run executes the named stages (plus dependencies).
func (o *Orchestrator) Run(ctx context.Context, stages ...StageName) error {
	return o.pipeline.Execute(ctx, o.newBuildState(), stages...)
}

// Bundler exposes the long-lived bundler for watch mode.
func (o *Orchestrator) Bundler() *bundle.Bundler { return o.bundler }

// Compiler exposes the module compiler for watch mode.
func (o *Orchestrator) Compiler() *compile.ModuleCompiler { return o.compiler }

// Cleaner exposes the cleaner for the clean command.
func (o *Orchestrator) Cleaner() *clean.Cleaner { return o.cleaner }

// Close releases the long-lived resources at process shutdown.
func (o *Orchestrator) Close() {
	o.bundler.Close()
	if o.store != nil {
		if err := o.store.Close(); err != nil {
			o.log.Warn("Failed to close transform cache", "error", err)
		}
	}
}

// defaultRegistry declares every stage with its true predecessors. The
// registration order doubles as the plan's tie-break, so a full run
// executes: clean, write_version, generate_entries, compile_legacy,
// compile_entries, compile_native, write_header, bundle, generate_docs.
func defaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(NewStage(StageClean, nil, func(ctx context.Context, bs *BuildState) error {
		return bs.Cleaner.Clean()
	}))

	r.MustRegister(NewStage(StageWriteVersion, nil, func(ctx context.Context, bs *BuildState) error {
		return bs.Banner.WriteVersionFragment()
	}))

	r.MustRegister(NewStage(StageGenerateEntries, nil, func(ctx context.Context, bs *BuildState) error {
		return bs.Entries.Generate(ctx)
	}))

	// The version fragment is part of the general source set, so the
	// legacy tree needs it in place first.
	r.MustRegister(NewStage(StageCompileLegacy, []StageName{StageWriteVersion}, func(ctx context.Context, bs *BuildState) error {
		stats, err := bs.Compiler.CompileLegacy(ctx)
		bs.Report.Transformed += stats.Transformed
		bs.Report.Skipped += stats.Skipped
		return err
	}))

	r.MustRegister(NewStage(StageCompileEntries, []StageName{StageGenerateEntries, StageCompileLegacy}, func(ctx context.Context, bs *BuildState) error {
		stats, err := bs.Compiler.CompileEntries(ctx)
		bs.Report.Transformed += stats.Transformed
		bs.Report.Skipped += stats.Skipped
		return err
	}))

	// Native output references entry files, which must exist in final form.
	r.MustRegister(NewStage(StageCompileNative, []StageName{StageGenerateEntries, StageWriteVersion}, func(ctx context.Context, bs *BuildState) error {
		stats, err := bs.Compiler.CompileNative(ctx)
		bs.Report.Transformed += stats.Transformed
		bs.Report.Skipped += stats.Skipped
		return err
	}))

	r.MustRegister(NewStage(StageWriteHeader, nil, func(ctx context.Context, bs *BuildState) error {
		text, err := bs.Banner.Create()
		if err != nil {
			return err
		}
		return bs.Banner.WriteHeader(text)
	}))

	r.MustRegister(NewStage(StageBundle, []StageName{StageWriteVersion}, func(ctx context.Context, bs *BuildState) error {
		return bs.Bundler.Run(ctx)
	}))

	// Documentation introspects the compiled outputs; generation failures
	// are the collaborator's concern and never abort the build.
	r.MustRegister(NewStage(StageGenerateDocs, []StageName{StageCompileLegacy, StageCompileNative}, func(ctx context.Context, bs *BuildState) error {
		p := bs.Config.Resolved
		names, err := docgen.ExportedNames(p.SourceRoot)
		if err != nil {
			slog.Warn("Failed to collect exported names for documentation", "error", err)
			return nil
		}
		if err := bs.Docs.Clean(ctx, p.DocsOutDir, p.DocsRoot); err != nil {
			slog.Warn("Documentation cleanup failed", "error", err)
			return nil
		}
		if err := bs.Docs.Generate(ctx, names, p.SourceRoot, p.DocsOutDir, p.DocsRoot); err != nil {
			slog.Warn("Documentation generation failed", "error", err)
		}
		return nil
	}))

	return r
}
