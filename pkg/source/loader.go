// Package source loads a single source file for the fix engine: its raw
// text, its line slices, and — on demand — a parsed syntax tree for
// structural rules.
package source

import (
	"context"
	"os"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
)

// Source is a single loaded source file. It is created for the duration of
// one file's fix pass and is not retained afterwards.
type Source struct {
	path  string
	text  string
	lines []string

	parseOnce sync.Once
	tree      *sitter.Tree
	parseErr  error
}

// Load reads path and splits it into 0-indexed line slices. It fails with
// *coverage.SourceFileNotFoundError if path does not refer to a regular
// file.
func Load(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, &coverage.SourceFileNotFoundError{Path: path}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &coverage.SourceFileNotFoundError{Path: path}
	}

	text := string(content)
	return &Source{
		path:  path,
		text:  text,
		lines: splitLines(text),
	}, nil
}

// splitLines splits on "\n" without synthesizing a trailing empty line for
// a final newline, matching the Source Loader contract in spec.md §4.1.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// FromText builds a Source directly from already-split lines, bypassing
// the filesystem. It exists for rule and engine tests that construct
// small fixtures inline rather than writing a temp file.
func FromText(path string, lines []string) *Source {
	return &Source{
		path:  path,
		text:  strings.Join(lines, "\n"),
		lines: lines,
	}
}

// Path returns the loaded file's path.
func (s *Source) Path() string { return s.path }

// Text returns the full textual content of the file.
func (s *Source) Text() string { return s.text }

// Lines returns the 0-indexed line slices of the file. The returned slice
// must not be mutated by the caller.
func (s *Source) Lines() []string { return s.lines }

// Line returns the text of the 0-indexed line n, or "" if n is out of
// range.
func (s *Source) Line(n int) string {
	if n < 0 || n >= len(s.lines) {
		return ""
	}
	return s.lines[n]
}

// AST lazily parses the source with the Rust tree-sitter grammar and
// returns the resulting tree. Structural rules use this when they want
// AST-preferred matching; textual rules never call it. A failed parse is
// cached and returned on every subsequent call as a
// *coverage.SourceParseError.
func (s *Source) AST(ctx context.Context) (*sitter.Tree, error) {
	s.parseOnce.Do(func() {
		parser := sitter.NewParser()
		parser.SetLanguage(rust.GetLanguage())

		tree, err := parser.ParseCtx(ctx, nil, []byte(s.text))
		if err != nil {
			s.parseErr = &coverage.SourceParseError{Path: s.path, Detail: err.Error()}
			return
		}
		if tree == nil || tree.RootNode() == nil {
			s.parseErr = &coverage.SourceParseError{Path: s.path, Detail: "parser returned no tree"}
			return
		}
		s.tree = tree
	})

	return s.tree, s.parseErr
}
