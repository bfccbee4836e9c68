package rules

import (
	"context"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/join"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// loopHeaderPattern matches a definite for-loop header: indentation, "for",
// anything, an opening brace, and an optional trailing comment.
var loopHeaderPattern = regexp.MustCompile(`^\s*for\s*.*\{\s*(?://.*)?$`)

// LoopRule ignores the always-not-taken back-edge branch of a definite
// loop: the final iteration never re-enters the loop body, so
// instrumentation reports that branch as missed even when the loop ran to
// completion.
type LoopRule struct{}

// NewLoopRule returns the loop rule.
func NewLoopRule() *LoopRule { return &LoopRule{} }

func (r *LoopRule) Name() string { return "loop" }

func (r *LoopRule) Apply(ctx context.Context, src *source.Source, file *coverage.FileCoverage) {
	var headerLines map[int]bool
	if tree, err := src.AST(ctx); err == nil && tree != nil {
		if lines := loopASTHeaderLines(tree.RootNode()); len(lines) > 0 {
			headerLines = lines
		}
	}

	it := join.New(src.Lines(), file)

	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		if !entry.HasBranches() {
			continue
		}

		var isHeader bool
		if headerLines != nil {
			isHeader = headerLines[entry.SourceLine]
		} else {
			isHeader = loopHeaderPattern.MatchString(entry.Line)
		}
		if !isHeader {
			continue
		}
		if !entry.HasLine() || !it.Line(entry).Hit() {
			continue
		}

		branches := it.Branches(entry)
		for i := range branches {
			if branches[i].Ignored() || branches[i].Hit() {
				continue
			}
			branches[i].Ignore()
			break
		}
	}
}

// loopASTHeaderLines returns the set of 0-indexed source lines on which a
// for-loop's body opens, i.e. the line instrumentation attaches the loop's
// back-edge branch to. Preferred over loopHeaderPattern when a parse tree is
// available, since it cannot be confused by a for-expression split across
// lines or one embedded in a string/comment.
func loopASTHeaderLines(root *sitter.Node) map[int]bool {
	lines := make(map[int]bool)
	walkNodes(root, func(n *sitter.Node) {
		if n.Type() != "for_expression" {
			return
		}
		body := lastChildOfType(n, "block")
		if body == nil {
			return
		}
		lines[int(body.StartPoint().Row)] = true
	})
	return lines
}
