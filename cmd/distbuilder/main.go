package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/distbuilder/internal/ascii"
	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/events"
	"git.home.luguber.info/inful/distbuilder/internal/metrics"
	"git.home.luguber.info/inful/distbuilder/internal/pipeline"
	"git.home.luguber.info/inful/distbuilder/internal/version"
	"git.home.luguber.info/inful/distbuilder/internal/watch"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"distbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	NoCache bool             `help:"Disable the transform cache"`
	Version kong.VersionFlag `help:"Print version information and exit"`

	Build struct{} `cmd:"" default:"1" help:"Run the full build pipeline"`

	Clean struct{} `cmd:"" help:"Delete generated output trees and source fragments"`

	Bundle struct{} `cmd:"" aliases:"browser" help:"Produce the single-file browser bundle"`

	Docs struct{} `cmd:"" help:"Generate the reference documentation tree"`

	ValidateAscii struct{} `cmd:"" name:"validate-ascii" help:"Report non-ASCII characters in the source tree"`

	Watch struct{} `cmd:"" help:"Rebuild continuously on source or configuration changes"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("distbuilder"),
		kong.Description("Multi-target build orchestrator: browser bundle, commonjs and ES module trees, entry surfaces and reference docs from one source tree."),
		kong.Vars{"version": fmt.Sprintf("distbuilder %s (commit %s, built %s)", version.Version, version.GitCommit, version.BuildTime)})

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if CLI.NoCache {
		cfg.Cache.Disabled = true
	}

	if err := run(kctx.Command(), cfg); err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func run(command string, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "build":
		return runPipeline(ctx, cfg, nil)
	case "clean":
		orch, err := pipeline.NewOrchestrator(cfg)
		if err != nil {
			return err
		}
		defer orch.Close()
		return orch.Cleaner().Clean()
	case "bundle", "browser":
		return runPipeline(ctx, cfg, []pipeline.StageName{pipeline.StageBundle})
	case "docs":
		return runPipeline(ctx, cfg, []pipeline.StageName{pipeline.StageGenerateDocs})
	case "validate-ascii":
		return runValidateAscii(cfg)
	case "watch":
		return runWatch(ctx, cfg)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runPipeline(ctx context.Context, cfg *config.Config, stages []pipeline.StageName) error {
	orch, err := pipeline.NewOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	if stages == nil {
		return orch.Build(ctx)
	}
	return orch.Run(ctx, stages...)
}

func runValidateAscii(cfg *config.Config) error {
	findings, err := ascii.ScanRoot(cfg.Resolved.SourceRoot)
	if err != nil {
		return err
	}
	for _, f := range findings {
		fmt.Println(f.Format())
	}
	// Findings are informational only; they never fail the pipeline.
	slog.Info("ASCII validation finished", "findings", len(findings))
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Watch.MetricsAddr != "" {
		registry := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(registry))
		server := &http.Server{Addr: cfg.Watch.MetricsAddr, Handler: mux}
		go func() {
			slog.Info("Serving metrics", "addr", cfg.Watch.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer server.Close()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Watch.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.Watch.NATSURL, cfg.Watch.NATSSubject)
		if err != nil {
			// Event publishing is best effort; watch mode still works.
			slog.Warn("Failed to connect event publisher", "error", err)
		} else {
			publisher = natsPub
			defer natsPub.Close()
		}
	}

	orch, err := pipeline.NewOrchestrator(cfg, pipeline.WithRecorder(recorder))
	if err != nil {
		return err
	}
	defer orch.Close()

	return watch.New(cfg, orch, recorder, publisher).Start(ctx)
}
