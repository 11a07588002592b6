package compile

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// sourceFile is one file of the source tree.
type sourceFile struct {
	Abs   string
	Rel   string // relative to the source root, slash-separated
	Entry bool   // entry-only file (generated re-export surface)
}

// listSources walks the source root and returns every source file in
// deterministic order, classified as general or entry-only.
func listSources(root string) ([]sourceFile, error) {
	var files []sourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".js") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{
			Abs:   path,
			Rel:   filepath.ToSlash(rel),
			Entry: strings.HasSuffix(path, config.EntrySuffix),
		})
		return nil
	})
	if err != nil {
		return nil, errors.WrapFilesystem(err, "failed to walk source tree").WithContext("root", root)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}
