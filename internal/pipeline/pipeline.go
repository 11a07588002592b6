package pipeline

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/distbuilder/internal/banner"
	"git.home.luguber.info/inful/distbuilder/internal/bundle"
	"git.home.luguber.info/inful/distbuilder/internal/clean"
	"git.home.luguber.info/inful/distbuilder/internal/compile"
	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/docgen"
	"git.home.luguber.info/inful/distbuilder/internal/entries"
	"git.home.luguber.info/inful/distbuilder/internal/metrics"
)

// BuildState carries the configured components and mutable per-run
// accounting across stages.
type BuildState struct {
	Config   *config.Config
	Banner   *banner.Service
	Compiler *compile.ModuleCompiler
	Bundler  *bundle.Bundler
	Cleaner  *clean.Cleaner
	Entries  entries.Generator
	Docs     docgen.Generator
	Report   *Report
}

// Pipeline executes stages in dependency order, fail-fast: each stage must
// fully settle before the next starts, no stage is retried, and the first
// failure halts the remaining sequence.
type Pipeline struct {
	registry *Registry
	recorder metrics.Recorder
	log      *slog.Logger
}

// NewPipeline creates a pipeline over the given registry.
func NewPipeline(registry *Registry, recorder metrics.Recorder) *Pipeline {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Pipeline{registry: registry, recorder: recorder, log: slog.Default()}
}

// Execute runs the requested stages (plus their transitive dependencies) in
// plan order against bs.
func (p *Pipeline) Execute(ctx context.Context, bs *BuildState, stages ...StageName) error {
	plan, err := BuildExecutionPlan(p.registry, stages)
	if err != nil {
		return err
	}

	p.log.Info("Executing pipeline",
		slog.String("build_id", bs.Report.BuildID),
		slog.Int("stages", len(plan.Order)),
		slog.Any("order", plan.Order))

	for _, name := range plan.Order {
		select {
		case <-ctx.Done():
			bs.Report.StageOutcomes[name] = "canceled"
			p.recorder.IncStageResult(string(name), metrics.ResultCanceled)
			p.finish(bs, "canceled")
			return ctx.Err()
		default:
		}

		stage, _ := p.registry.Get(name)
		t0 := time.Now()
		err := stage.Execute(ctx, bs)
		dur := time.Since(t0)

		bs.Report.StageDurations[name] = dur
		p.recorder.ObserveStageDuration(string(name), dur)

		if err != nil {
			bs.Report.StageOutcomes[name] = "fatal"
			p.recorder.IncStageResult(string(name), metrics.ResultFatal)
			p.log.Error("Stage failed",
				slog.String("stage", string(name)),
				slog.Duration("duration", dur),
				slog.Any("error", err))
			p.finish(bs, "failed")
			return err
		}

		bs.Report.StageOutcomes[name] = "success"
		p.recorder.IncStageResult(string(name), metrics.ResultSuccess)
		p.log.Debug("Stage completed", slog.String("stage", string(name)), slog.Duration("duration", dur))
	}

	p.finish(bs, "success")
	return nil
}

// ExecuteAll runs every registered stage in dependency order.
func (p *Pipeline) ExecuteAll(ctx context.Context, bs *BuildState) error {
	return p.Execute(ctx, bs, p.registry.List()...)
}

func (p *Pipeline) finish(bs *BuildState, outcome string) {
	total := bs.Report.Duration()
	p.recorder.ObserveBuildDuration(total)
	p.recorder.IncBuildOutcome(outcome)
	p.log.Info("Pipeline finished",
		slog.String("build_id", bs.Report.BuildID),
		slog.String("outcome", outcome),
		slog.Duration("duration", total),
		slog.Int("transformed", bs.Report.Transformed),
		slog.Int("skipped", bs.Report.Skipped))
}
