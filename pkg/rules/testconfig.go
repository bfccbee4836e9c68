package rules

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/join"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// cfgTestPattern matches a #[cfg(test)] or #[cfg(..., test, ...)] attribute
// line, optionally followed by a line comment.
var cfgTestPattern = regexp.MustCompile(
	`^\s*#\s*\[\s*cfg\((?:test|.*[ \t(]test[,)].*)\)\s*\]\s*(?://.*)?$`,
)

// testModPattern matches a `mod tests? {` declaration, optionally `pub`.
var testModPattern = regexp.MustCompile(`^\s*(?:pub\s+)?mod\s+tests?\s*\{`)

// testAttrNodePattern and cfgTestNodePattern match an attribute_item's full
// node text, which (unlike a single source line) may itself span several
// lines.
var testAttrNodePattern = regexp.MustCompile(`(?s)^\s*#\s*\[\s*test\s*\]\s*$`)
var cfgTestNodePattern = regexp.MustCompile(`(?s)^\s*#\s*\[\s*cfg\((?:test|.*[ \t(]test[,)].*)\)\s*\]\s*$`)

// TestConfigRule ignores code compiled only under a test configuration:
// modules gated behind #[cfg(test)] (or an attribute whose first
// group-identifier is "test") should not count against production
// coverage.
//
// The textual fallback tracks a cfg_found flag set when a cfg(test)
// attribute line is seen. Once set, attribute/comment/blank lines are
// skipped over (and ignored, since they belong to the gated item); the
// first line that declares a test module enters "inside test" mode,
// ignoring every record up to and including the nearest closing brace.
// Any other intervening line resets cfg_found without entering test
// mode — the attribute applied to something this rule doesn't track.
type TestConfigRule struct{}

// NewTestConfigRule returns the test-config rule.
func NewTestConfigRule() *TestConfigRule { return &TestConfigRule{} }

func (r *TestConfigRule) Name() string { return "test-config" }

func (r *TestConfigRule) Apply(ctx context.Context, src *source.Source, file *coverage.FileCoverage) {
	if tree, err := src.AST(ctx); err == nil && tree != nil {
		if ranges := testConfigASTRanges(tree.RootNode(), []byte(src.Text())); len(ranges) > 0 {
			ignoreRecordsInRanges(file, ranges)
			return
		}
	}

	it := join.New(src.Lines(), file)

	cfgFound := false
	insideTest := false

	for {
		entry, ok := it.Next()
		if !ok {
			break
		}

		if insideTest {
			if entry.HasLine() {
				ignoreLine(it.Line(entry))
			}
			ignoreBranches(it.Branches(entry))

			trimmed := strings.TrimLeft(entry.Line, " \t")
			if strings.HasPrefix(trimmed, "}") {
				insideTest = false
			}
			continue
		}

		if !cfgFound {
			if cfgTestPattern.MatchString(entry.Line) {
				cfgFound = true
				if entry.HasLine() {
					ignoreLine(it.Line(entry))
				}
				ignoreBranches(it.Branches(entry))
			}
			continue
		}

		if testModPattern.MatchString(entry.Line) {
			insideTest = true
			cfgFound = false
			if entry.HasLine() {
				ignoreLine(it.Line(entry))
			}
			ignoreBranches(it.Branches(entry))
			continue
		}

		trimmed := strings.TrimLeft(entry.Line, " \t")
		if trimmed == "" {
			continue
		}

		b := trimmed[0]
		if b == '#' || b == '/' {
			if entry.HasLine() {
				ignoreLine(it.Line(entry))
			}
			ignoreBranches(it.Branches(entry))
			continue
		}

		cfgFound = false
	}
}

// testConfigASTRanges walks root for the two structural shapes spec.md §4.5
// describes: a #[test]-attributed function (range [attribute-start,
// function-end]) and a cfg(test)-attributed module (range
// [attribute-start, module-body-close]).
func testConfigASTRanges(root *sitter.Node, text []byte) []lineRange {
	var ranges []lineRange

	walkNodes(root, func(n *sitter.Node) {
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			attr := n.Child(i)
			if attr.Type() != "attribute_item" {
				continue
			}
			attrText := nodeText(attr, text)

			if testAttrNodePattern.MatchString(attrText) {
				if fn := nextSiblingItem(n, i, "function_item"); fn != nil {
					ranges = append(ranges, lineRange{
						start: int(attr.StartPoint().Row),
						end:   int(fn.EndPoint().Row),
					})
				}
				continue
			}

			if cfgTestNodePattern.MatchString(attrText) {
				if mod := nextSiblingItem(n, i, "mod_item"); mod != nil {
					if body := firstChildOfType(mod, "declaration_list"); body != nil {
						ranges = append(ranges, lineRange{
							start: int(attr.StartPoint().Row),
							end:   int(body.EndPoint().Row),
						})
					}
				}
			}
		}
	})

	return ranges
}
