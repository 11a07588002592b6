package bundle

import (
	"context"
	"fmt"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/distbuilder/internal/compile"
	"git.home.luguber.info/inful/distbuilder/internal/config"
)

// Diagnostic is one message reported by the packaging engine.
type Diagnostic struct {
	Text     string
	Location string // "file:line:column", empty when not tied to a position
}

func (d Diagnostic) String() string {
	if d.Location == "" {
		return d.Text
	}
	return d.Location + ": " + d.Text
}

// Result is the structured outcome of one packaging run. Warnings are
// non-fatal; a non-empty Errors list means the run failed even when no
// hard failure was raised.
type Result struct {
	Code     []byte
	Warnings []Diagnostic
	Errors   []Diagnostic
}

// Engine is the opaque packaging engine contract. The default
// implementation wraps esbuild's incremental build context; tests inject
// fakes.
type Engine interface {
	// Rebuild runs one packaging pass. A returned error is a hard failure;
	// engine-reported problems arrive in Result.Errors/Warnings.
	Rebuild(ctx context.Context) (Result, error)
	// Dispose releases the engine's long-lived resources.
	Dispose()
}

// esbuildEngine holds one long-lived esbuild build context, created lazily
// on first use and reused across rebuilds for its incremental cache. It is
// never torn down between watch-triggered rebuilds.
type esbuildEngine struct {
	cfg *config.Config

	once sync.Once
	bctx api.BuildContext
	err  error
}

// NewEngine returns the default esbuild-backed packaging engine.
func NewEngine(cfg *config.Config) Engine {
	return &esbuildEngine{cfg: cfg}
}

func (e *esbuildEngine) Rebuild(ctx context.Context) (Result, error) {
	e.once.Do(e.initContext)
	if e.err != nil {
		return Result{}, e.err
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	res := e.bctx.Rebuild()
	out := Result{
		Warnings: toDiagnostics(res.Warnings),
		Errors:   toDiagnostics(res.Errors),
	}
	for _, f := range res.OutputFiles {
		// Inline source maps keep this to the single entry chunk.
		out.Code = f.Contents
		break
	}
	if len(out.Errors) == 0 && out.Code == nil {
		return out, fmt.Errorf("packaging engine produced no output")
	}
	return out, nil
}

func (e *esbuildEngine) initContext() {
	profile, ok := e.cfg.Profiles[config.ProfileLegacy]
	if !ok {
		e.err = fmt.Errorf("legacy transformation profile not configured")
		return
	}

	// The banner is deliberately NOT part of the build options: it changes
	// between runs (date, version) while the context must stay alive for
	// its cache. The bundler prepends the fresh banner at write time.
	bctx, ctxErr := api.Context(api.BuildOptions{
		EntryPoints:       []string{e.cfg.Resolved.BundleEntry},
		Bundle:            true,
		Write:             false,
		Outfile:           e.cfg.Resolved.BundleOutfile,
		Format:            api.FormatIIFE,
		GlobalName:        e.cfg.GlobalName,
		Platform:          api.PlatformBrowser,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		Sourcemap:         api.SourceMapInline,
		Target:            compile.TargetFor(profile),
		Inject:            profile.Inject,
		LogLevel:          api.LogLevelSilent,
	})
	if ctxErr != nil {
		e.err = fmt.Errorf("failed to create packaging context: %s", ctxErr.Error())
		return
	}
	e.bctx = bctx
}

func (e *esbuildEngine) Dispose() {
	if e.bctx != nil {
		e.bctx.Dispose()
	}
}

func toDiagnostics(msgs []api.Message) []Diagnostic {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Diagnostic, 0, len(msgs))
	for _, m := range msgs {
		d := Diagnostic{Text: m.Text}
		if m.Location != nil {
			d.Location = fmt.Sprintf("%s:%d:%d", m.Location.File, m.Location.Line, m.Location.Column)
		}
		out = append(out, d)
	}
	return out
}
