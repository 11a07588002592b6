// Package ascii scans the source tree for non-ASCII characters. Findings
// are reported for review only; they never fail the pipeline.
package ascii

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"git.home.luguber.info/inful/distbuilder/internal/errors"
)

// Finding is one non-ASCII character occurrence.
type Finding struct {
	File      string
	Line      int // 1-based
	Column    int // 1-based, in runes
	Rune      rune
	InComment bool
}

// Format renders a finding for terminal output.
func (f Finding) Format() string {
	where := "code"
	if f.InComment {
		where = "comment"
	}
	return fmt.Sprintf("%s:%d:%d: non-ascii character U+%04X %q (%s)", f.File, f.Line, f.Column, f.Rune, string(f.Rune), where)
}

// ScanRoot scans every source file under root and returns all findings.
func ScanRoot(root string) ([]Finding, error) {
	var findings []Finding
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".js") {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		findings = append(findings, Scan(filepath.ToSlash(rel), src)...)
		return nil
	})
	if err != nil {
		return nil, errors.WrapFilesystem(err, "failed to scan source tree").WithContext("root", root)
	}
	return findings, nil
}

// Scan reports every non-ASCII rune in src with its position and whether it
// sits inside a line or block comment.
func Scan(name string, src []byte) []Finding {
	var findings []Finding

	line, col := 1, 1
	inLineComment := false
	inBlockComment := false
	var prev rune

	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		i += size

		switch {
		case r == '\n':
			inLineComment = false
			line++
			col = 1
			prev = 0
			continue
		case inLineComment:
			// stay until end of line
		case inBlockComment:
			if prev == '*' && r == '/' {
				inBlockComment = false
				// the closing '/' itself is still comment text
				if r > 127 {
					findings = append(findings, Finding{File: name, Line: line, Column: col, Rune: r, InComment: true})
				}
				prev = 0
				col++
				continue
			}
		case prev == '/' && r == '/':
			inLineComment = true
		case prev == '/' && r == '*':
			inBlockComment = true
		}

		if r > 127 {
			findings = append(findings, Finding{
				File:      name,
				Line:      line,
				Column:    col,
				Rune:      r,
				InComment: inLineComment || inBlockComment,
			})
		}

		prev = r
		col++
	}
	return findings
}
