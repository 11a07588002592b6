// Package banner derives the version/date banner embedded into generated
// artifacts and maintains the generated version source fragment.
package banner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// Placeholder tokens replaced in the header template. Only the first
// occurrence of each is substituted.
const (
	datePlaceholder    = "@@date"
	versionPlaceholder = "@@version"
)

// Service computes banners and writes the generated version fragment.
type Service struct {
	paths config.Paths
	now   func() time.Time
}

// New creates a banner service using the wall clock.
func New(paths config.Paths) *Service {
	return &Service{paths: paths, now: time.Now}
}

// WithClock overrides the clock (used by tests and deterministic builds).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type packageMetadata struct {
	Version string `json:"version"`
}

// Version reads the package metadata file and returns its version field.
func (s *Service) Version() (string, error) {
	data, err := os.ReadFile(s.paths.PackageMetadata)
	if err != nil {
		return "", errors.WrapConfig(err, "failed to read package metadata").
			WithContext("path", s.paths.PackageMetadata)
	}
	var meta packageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", errors.WrapConfig(err, "malformed package metadata").
			WithContext("path", s.paths.PackageMetadata)
	}
	if meta.Version == "" {
		return "", errors.ConfigError("package metadata has no version field").
			WithContext("path", s.paths.PackageMetadata)
	}
	return meta.Version, nil
}

// Create reads the header template and substitutes the first occurrence of
// @@date with today's date (YYYY-MM-DD) and the first occurrence of
// @@version with the current version. It is a pure function of (date,
// version, template contents) and is never cached: watch sessions can span
// a day boundary or a version bump, so callers recompute it immediately
// before each bundle run.
func (s *Service) Create() (string, error) {
	version, err := s.Version()
	if err != nil {
		return "", err
	}
	tmpl, err := os.ReadFile(s.paths.HeaderTemplate)
	if err != nil {
		return "", errors.WrapConfig(err, "failed to read header template").
			WithContext("path", s.paths.HeaderTemplate)
	}

	text := string(tmpl)
	text = strings.Replace(text, datePlaceholder, s.now().UTC().Format("2006-01-02"), 1)
	text = strings.Replace(text, versionPlaceholder, version, 1)
	return text, nil
}

// WriteVersionFragment writes the generated source fragment exporting the
// current version as a named constant. It must run before any compilation
// step that embeds or re-exports the fragment.
func (s *Service) WriteVersionFragment() error {
	version, err := s.Version()
	if err != nil {
		return err
	}

	content := fmt.Sprintf("export const version = '%s'\n// Note: This file is automatically generated when building %s. Changes made in this file will be overwritten.\n",
		version, filepath.Base(s.paths.VersionFragment))

	if err := os.MkdirAll(filepath.Dir(s.paths.VersionFragment), 0o755); err != nil {
		return errors.WrapFilesystem(err, "failed to create source directory")
	}
	if err := os.WriteFile(s.paths.VersionFragment, []byte(content), 0o644); err != nil {
		return errors.WrapFilesystem(err, "failed to write version fragment").
			WithContext("path", s.paths.VersionFragment)
	}
	slog.Debug("Wrote version fragment", "path", s.paths.VersionFragment, "version", version)
	return nil
}

// WriteHeader writes the standalone banner copy into the output root.
func (s *Service) WriteHeader(banner string) error {
	if err := os.MkdirAll(filepath.Dir(s.paths.HeaderOutfile), 0o755); err != nil {
		return errors.WrapFilesystem(err, "failed to create output root")
	}
	if err := os.WriteFile(s.paths.HeaderOutfile, []byte(banner), 0o644); err != nil {
		return errors.WrapFilesystem(err, "failed to write header file").
			WithContext("path", s.paths.HeaderOutfile)
	}
	return nil
}

// Commit returns the short commit hash of the repository containing the
// source root, or empty when the tree is not a git checkout. Best effort:
// the banner does not depend on it, it only enriches build reports.
func (s *Service) Commit() string {
	repo, err := git.PlainOpenWithOptions(s.paths.SourceRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()[:8]
}
