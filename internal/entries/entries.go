// Package entries generates the curated entry files: narrow re-export
// surfaces materialized into the source tree before compilation. The
// pipeline treats the generator as an external collaborator; this package
// supplies the default manifest-driven implementation.
package entries

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// Generator materializes entry-only source files on disk. Completion is
// signaled by the error return.
type Generator interface {
	Generate(ctx context.Context) error
}

// Manifest describes the entry files to generate.
type Manifest struct {
	Entries []Entry `yaml:"entries"`
}

// Entry is one curated re-export surface.
type Entry struct {
	Name    string   `yaml:"name"`
	Exports []Export `yaml:"exports"`
}

// Export re-exports one symbol from a module path relative to the source root.
type Export struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
}

// ManifestGenerator generates entry files from a YAML manifest.
type ManifestGenerator struct {
	manifestPath string
	outDir       string
	log          *slog.Logger
}

// NewManifestGenerator creates a generator writing into the source tree's
// entries directory.
func NewManifestGenerator(cfg *config.Config) *ManifestGenerator {
	return &ManifestGenerator{
		manifestPath: cfg.EntriesManifest,
		outDir:       cfg.Resolved.EntriesSrcDir,
		log:          slog.Default(),
	}
}

// Generate writes one entry file per manifest entry. A missing manifest is
// not an error: the source tree simply has no curated entry surfaces.
func (g *ManifestGenerator) Generate(ctx context.Context) error {
	data, err := os.ReadFile(g.manifestPath)
	if os.IsNotExist(err) {
		g.log.Warn("No entries manifest found, skipping entry generation", "path", g.manifestPath)
		return nil
	}
	if err != nil {
		return errors.WrapConfig(err, "failed to read entries manifest")
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return errors.WrapConfig(err, "malformed entries manifest").WithContext("path", g.manifestPath)
	}

	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return errors.WrapFilesystem(err, "failed to create entries directory")
	}

	for _, entry := range manifest.Entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if entry.Name == "" {
			return errors.ConfigError("entries manifest contains an unnamed entry")
		}
		content, err := renderEntry(entry)
		if err != nil {
			return err
		}
		outPath := filepath.Join(g.outDir, entry.Name+config.EntrySuffix)
		if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
			return errors.WrapFilesystem(err, "failed to write entry file").WithContext("entry", entry.Name)
		}
		g.log.Debug("Generated entry file", "entry", entry.Name, "exports", len(entry.Exports))
	}

	g.log.Info("Generated entry files", "count", len(manifest.Entries), "dir", g.outDir)
	return nil
}

// renderEntry groups re-exports by their source module, one export
// statement per module, deterministic order.
func renderEntry(entry Entry) (string, error) {
	byModule := make(map[string][]string)
	for _, exp := range entry.Exports {
		if exp.Name == "" || exp.From == "" {
			return "", errors.ConfigError("entry export needs both name and from").
				WithContext("entry", entry.Name)
		}
		byModule[exp.From] = append(byModule[exp.From], exp.Name)
	}

	modules := make([]string, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	var b strings.Builder
	fmt.Fprintf(&b, "// Entry surface %q. This file is automatically generated, do not edit.\n", entry.Name)
	for _, m := range modules {
		names := byModule[m]
		sort.Strings(names)
		fmt.Fprintf(&b, "export { %s } from '../%s'\n", strings.Join(names, ", "), m)
	}
	return b.String(), nil
}
