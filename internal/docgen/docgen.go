// Package docgen defines the reference-documentation collaborator contract
// and supplies a default implementation that renders a function index. The
// pipeline only hands it the exported function names and three paths;
// generation failures are the collaborator's concern and never abort a
// build.
package docgen

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// Generator is the documentation collaborator contract: a cleanup pass over
// the destination followed by generation.
type Generator interface {
	Clean(ctx context.Context, dst, docsRoot string) error
	Generate(ctx context.Context, names []string, srcRoot, dst, docsRoot string) error
}

// MarkdownGenerator writes a markdown function index plus an HTML rendering
// of it.
type MarkdownGenerator struct {
	log *slog.Logger
}

// NewMarkdownGenerator creates the default documentation generator.
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{log: slog.Default()}
}

// Clean removes the previously generated documentation destination.
func (g *MarkdownGenerator) Clean(ctx context.Context, dst, docsRoot string) error {
	if err := os.RemoveAll(dst); err != nil {
		return errors.WrapFilesystem(err, "failed to clean documentation destination").WithContext("dst", dst)
	}
	return nil
}

// Generate writes functions.md and index.html under dst.
func (g *MarkdownGenerator) Generate(ctx context.Context, names []string, srcRoot, dst, docsRoot string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.WrapFilesystem(err, "failed to create documentation destination")
	}

	var md bytes.Buffer
	md.WriteString("# Function reference\n\n")
	fmt.Fprintf(&md, "%d exported functions.\n\n", len(names))
	for _, name := range names {
		fmt.Fprintf(&md, "- `%s`\n", name)
	}

	if err := os.WriteFile(filepath.Join(dst, "functions.md"), md.Bytes(), 0o644); err != nil {
		return errors.WrapFilesystem(err, "failed to write function index")
	}

	var html bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &html); err != nil {
		return fmt.Errorf("failed to render function index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dst, "index.html"), html.Bytes(), 0o644); err != nil {
		return errors.WrapFilesystem(err, "failed to write rendered index")
	}

	g.log.Info("Generated documentation", "dst", dst, "functions", len(names))
	return nil
}

var exportPattern = regexp.MustCompile(`(?m)^export\s+(?:function|const|class)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// ExportedNames scans the source tree for exported symbol names, sorted and
// de-duplicated. Entry-only files are excluded; they re-export existing
// symbols.
func ExportedNames(srcRoot string) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".js") || strings.HasSuffix(path, config.EntrySuffix) {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range exportPattern.FindAllSubmatch(src, -1) {
			seen[string(m[1])] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapFilesystem(err, "failed to scan for exported names").WithContext("root", srcRoot)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
