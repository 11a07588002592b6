// Package clean removes previously generated output trees and
// generated-in-place source fragments. All operations are idempotent:
// absent targets are not errors.
package clean

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// Cleaner deletes build outputs.
type Cleaner struct {
	paths config.Paths
	log   *slog.Logger
}

// New creates a Cleaner for the resolved path set.
func New(paths config.Paths) *Cleaner {
	return &Cleaner{paths: paths, log: slog.Default()}
}

// Clean removes the legacy pre-rename output directory, the entire output
// root, and every generated source fragment inside the source tree.
func (c *Cleaner) Clean() error {
	for _, dir := range []string{c.paths.LegacyOutDir, c.paths.OutRoot} {
		if err := os.RemoveAll(dir); err != nil {
			return errors.WrapFilesystem(err, "failed to remove output tree").WithContext("dir", dir)
		}
		c.log.Debug("Removed output tree", "dir", dir)
	}
	return c.removeGeneratedFragments()
}

func (c *Cleaner) removeGeneratedFragments() error {
	err := filepath.WalkDir(c.paths.SourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, config.GeneratedSuffix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		c.log.Debug("Removed generated fragment", "path", path)
		return nil
	})
	if os.IsNotExist(err) {
		// No source tree yet; nothing to clean.
		return nil
	}
	if err != nil {
		return errors.WrapFilesystem(err, "failed to remove generated fragments")
	}
	return nil
}
