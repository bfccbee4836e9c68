package rules

import (
	"context"
	"regexp"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/join"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// closeBlockPattern recognizes lines that are nothing but closing
// structural tokens: one or more "}" (each optionally followed by ")"),
// an optional trailing ";", an "else"/"} else {" shape, or an empty or
// comment-only line. Ported from rust-covfix's CloseBlockRule regex.
var closeBlockPattern = regexp.MustCompile(
	`^(?:(?:\s*\}(?:\s*\))*)+(?:\s*;)?|\s*(?:\}\s*)?else(?:\s*\{)?)?\s*(?://.*)?$`,
)

// CloseBlockRule ignores stand-alone block delimiters: instrumentation
// often reports them as uncovered even when the enclosing block ran, but
// they are not semantically executable on their own.
type CloseBlockRule struct{}

// NewCloseBlockRule returns the close-block rule.
func NewCloseBlockRule() *CloseBlockRule { return &CloseBlockRule{} }

func (r *CloseBlockRule) Name() string { return "close-block" }

func (r *CloseBlockRule) Apply(_ context.Context, src *source.Source, file *coverage.FileCoverage) {
	it := join.New(src.Lines(), file)
	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		if !entry.HasLine() && !entry.HasBranches() {
			continue
		}
		if !closeBlockPattern.MatchString(entry.Line) {
			continue
		}

		if entry.HasLine() {
			ignoreLine(it.Line(entry))
		}
		ignoreBranches(it.Branches(entry))
	}
}
