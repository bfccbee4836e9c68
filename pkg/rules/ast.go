package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
)

// lineRange is a closed, 0-indexed [start, end] span of source lines.
type lineRange struct {
	start, end int
}

// contains reports whether line falls within r, inclusive.
func (r lineRange) contains(line int) bool { return line >= r.start && line <= r.end }

// inAnyRange reports whether line falls within any of ranges.
func inAnyRange(line int, ranges []lineRange) bool {
	for _, r := range ranges {
		if r.contains(line) {
			return true
		}
	}
	return false
}

// ignoreRecordsInRanges marks every LineCoverage and BranchCoverage in
// file whose line falls within ranges as ignored. Used by the AST-preferred
// path of structural rules, which identify whole line ranges up front
// rather than walking source text line by line.
func ignoreRecordsInRanges(file *coverage.FileCoverage, ranges []lineRange) {
	if len(ranges) == 0 {
		return
	}
	for i := range file.Lines {
		if inAnyRange(file.Lines[i].LineNumber, ranges) {
			file.Lines[i].Ignore()
		}
	}
	for i := range file.Branches {
		if inAnyRange(file.Branches[i].LineNumber, ranges) {
			file.Branches[i].Ignore()
		}
	}
}

// walkNodes visits n and every descendant, preorder, left to right.
func walkNodes(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walkNodes(n.Child(i), visit)
	}
}

// nodeText returns the source text spanned by n.
func nodeText(n *sitter.Node, text []byte) string {
	return string(text[n.StartByte():n.EndByte()])
}

// nextSiblingItem scans parent's children after index fromIndex, skipping
// further attribute_item/comment nodes, and returns the first node of
// kind typ it finds — or nil if a node of a different kind is reached
// first. This matches "the item this attribute decorates": attributes are
// siblings that precede the item they annotate in the Rust grammar, not
// its children.
func nextSiblingItem(parent *sitter.Node, fromIndex int, typ string) *sitter.Node {
	count := int(parent.ChildCount())
	for i := fromIndex + 1; i < count; i++ {
		child := parent.Child(i)
		switch child.Type() {
		case "attribute_item", "line_comment", "block_comment":
			continue
		case typ:
			return child
		default:
			return nil
		}
	}
	return nil
}

// firstChildOfType returns parent's first direct child of kind typ, or
// nil.
func firstChildOfType(parent *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(parent.ChildCount()); i++ {
		if child := parent.Child(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

// lastChildOfType returns parent's last direct child of kind typ, or nil.
func lastChildOfType(parent *sitter.Node, typ string) *sitter.Node {
	var found *sitter.Node
	for i := 0; i < int(parent.ChildCount()); i++ {
		if child := parent.Child(i); child.Type() == typ {
			found = child
		}
	}
	return found
}
