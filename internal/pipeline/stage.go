// Package pipeline orchestrates the build stages in dependency order. Each
// stage declares its required predecessors; the execution plan is a
// deterministic topological sort, so ordering is explicit rather than
// implied by call-site sequencing.
package pipeline

import (
	"context"
)

// StageName identifies a build stage.
type StageName string

const (
	StageClean           StageName = "clean"
	StageWriteVersion    StageName = "write_version"
	StageGenerateEntries StageName = "generate_entries"
	StageCompileLegacy   StageName = "compile_legacy"
	StageCompileEntries  StageName = "compile_entries"
	StageCompileNative   StageName = "compile_native"
	StageWriteHeader     StageName = "write_header"
	StageBundle          StageName = "bundle"
	StageGenerateDocs    StageName = "generate_docs"
)

// Stage is a discrete unit of work in the build.
type Stage interface {
	Name() StageName
	// Dependencies lists the stages that must have completed before this
	// one runs.
	Dependencies() []StageName
	Execute(ctx context.Context, bs *BuildState) error
}

// stageFunc adapts a function into a Stage.
type stageFunc struct {
	name StageName
	deps []StageName
	fn   func(ctx context.Context, bs *BuildState) error
}

// NewStage creates a Stage from a function.
func NewStage(name StageName, deps []StageName, fn func(ctx context.Context, bs *BuildState) error) Stage {
	return &stageFunc{name: name, deps: deps, fn: fn}
}

func (s *stageFunc) Name() StageName { return s.name }

func (s *stageFunc) Dependencies() []StageName { return s.deps }
func (s *stageFunc) Execute(ctx context.Context, bs *BuildState) error {
	return s.fn(ctx, bs)
}
