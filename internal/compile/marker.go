package compile

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// MarkerFile is the name of the module-type marker written at output roots
// so downstream package resolution can tell commonjs trees apart without
// inspecting file contents. Native-module trees carry no marker; the
// absence is itself meaningful.
const MarkerFile = "package.json"

var markerContent = []byte("{\n  \"type\": \"commonjs\"\n}\n")

// WriteMarker writes the commonjs marker file into dir, creating dir if
// needed. Callers must invoke it before writing any transformed file so a
// consumer reading the tree mid-run never observes output without the
// marker.
func WriteMarker(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapFilesystem(err, "failed to create output directory").WithContext("dir", dir)
	}
	if err := os.WriteFile(filepath.Join(dir, MarkerFile), markerContent, 0o644); err != nil {
		return errors.WrapFilesystem(err, "failed to write module-type marker").WithContext("dir", dir)
	}
	return nil
}
