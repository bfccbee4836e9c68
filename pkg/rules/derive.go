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

// deriveTypeKinds are the node types a #[derive(...)] attribute can precede.
var deriveTypeKinds = []string{"struct_item", "enum_item", "union_item"}

// derivePattern matches a #[derive(...)] attribute line.
var derivePattern = regexp.MustCompile(`^\s*#\s*\[\s*derive\(.*\)\s*\]\s*(?://.*)?$`)

// deriveAttrNodePattern matches a #[derive(...)] attribute's full node text,
// which (unlike a single source line) may itself span several lines.
var deriveAttrNodePattern = regexp.MustCompile(`(?s)^\s*#\s*\[\s*derive\(.*\)\s*\]\s*$`)

// typeDeclPattern matches a struct/enum/union declaration, with or without
// a leading "pub".
var typeDeclPattern = regexp.MustCompile(`^\s*(?:pub\s+)?(?:struct|enum|union)\s+\w+`)

// deriveState is the textual fallback's scan position relative to a
// derive-attributed type declaration.
type deriveState int

const (
	deriveSearching deriveState = iota
	deriveScanningDecl
	deriveInsideDecl
)

// DeriveRule ignores the synthesized body of a #[derive(...)]-attributed
// struct, enum, or union: instrumentation sometimes attributes lines
// inside the declaration to macro-expanded code no user test can reach.
type DeriveRule struct{}

// NewDeriveRule returns the derive rule.
func NewDeriveRule() *DeriveRule { return &DeriveRule{} }

func (r *DeriveRule) Name() string { return "derive" }

func (r *DeriveRule) Apply(ctx context.Context, src *source.Source, file *coverage.FileCoverage) {
	if tree, err := src.AST(ctx); err == nil && tree != nil {
		if ranges := deriveASTRanges(tree.RootNode(), []byte(src.Text())); len(ranges) > 0 {
			ignoreRecordsInRanges(file, ranges)
			return
		}
	}

	deriveTextual(src, file)
}

// deriveTextual is the textual-fallback three-state scanner: used directly
// when no parse tree is available, and as the AST path's fallback when the
// tree carries no derive-attributed type declaration at all.
func deriveTextual(src *source.Source, file *coverage.FileCoverage) {
	it := join.New(src.Lines(), file)

	state := deriveSearching
	depth := 0

	for {
		entry, ok := it.Next()
		if !ok {
			break
		}

		switch state {
		case deriveSearching:
			if derivePattern.MatchString(entry.Line) {
				if entry.HasLine() {
					ignoreLine(it.Line(entry))
				}
				ignoreBranches(it.Branches(entry))
				state = deriveScanningDecl
			}

		case deriveScanningDecl:
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

			if typeDeclPattern.MatchString(entry.Line) {
				if entry.HasLine() {
					ignoreLine(it.Line(entry))
				}
				ignoreBranches(it.Branches(entry))

				stripped := stripLineComment(entry.Line)
				if strings.ContainsAny(stripped, ";}") {
					state = deriveSearching
				} else {
					state = deriveInsideDecl
					depth = strings.Count(stripped, "{") - strings.Count(stripped, "}")
				}
				continue
			}

			state = deriveSearching

		case deriveInsideDecl:
			if entry.HasLine() {
				ignoreLine(it.Line(entry))
			}
			ignoreBranches(it.Branches(entry))

			stripped := stripLineComment(entry.Line)
			depth += strings.Count(stripped, "{") - strings.Count(stripped, "}")
			if depth <= 0 {
				state = deriveSearching
			}
		}
	}
}

// stripLineComment truncates line at the first "//" that begins outside a
// double-quoted string literal, so brace/semicolon counting is not thrown
// off by a comment or a string literal that happens to contain one of
// those characters. inside_quote toggles on an unescaped '"'.
func stripLineComment(line string) string {
	insideQuote := false
	escaped := false

	for i := 0; i < len(line); i++ {
		c := line[i]

		if insideQuote {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				insideQuote = false
			}
			continue
		}

		if c == '"' {
			insideQuote = true
			continue
		}
		if c == '/' && i+1 < len(line) && line[i+1] == '/' {
			return line[:i]
		}
	}

	return line
}

// deriveASTRanges walks root for #[derive(...)]-attributed struct, enum, or
// union items and returns the closed line range [attribute-start,
// type-body-close] for each, per spec.md §4.7's AST-preferred algorithm.
func deriveASTRanges(root *sitter.Node, text []byte) []lineRange {
	var ranges []lineRange

	walkNodes(root, func(n *sitter.Node) {
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			attr := n.Child(i)
			if attr.Type() != "attribute_item" {
				continue
			}
			if !deriveAttrNodePattern.MatchString(nodeText(attr, text)) {
				continue
			}

			for _, kind := range deriveTypeKinds {
				if item := nextSiblingItem(n, i, kind); item != nil {
					ranges = append(ranges, lineRange{
						start: int(attr.StartPoint().Row),
						end:   int(item.EndPoint().Row),
					})
					break
				}
			}
		}
	})

	return ranges
}
