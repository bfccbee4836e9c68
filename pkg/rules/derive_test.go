package rules

import (
	"context"
	"testing"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// TestDeriveRuleDropsStructBody reproduces Scenario C: a #[derive(Clone)]
// struct has every line across its declaration dropped; a later impl block
// is untouched.
func TestDeriveRuleDropsStructBody(t *testing.T) {
	lines := []string{
		"#[derive(Clone)]",    // 0
		"pub struct Point {",  // 1
		"    x: f64,",         // 2
		"    y: f64",          // 3
		"}",                   // 4
		"",                    // 5
		"impl Point {",        // 6
		"    pub fn new() -> Self {", // 7
		"        Point { x: 0.0, y: 0.0 }", // 8
		"    }",               // 9
		"}",                   // 10
	}
	file := &coverage.FileCoverage{
		Lines: []coverage.LineCoverage{
			lc(0, 0), lc(1, 0), lc(2, 0), lc(3, 0), lc(4, 0), lc(8, 1),
		},
	}
	src := source.FromText("point.rs", lines)

	NewDeriveRule().Apply(context.Background(), src, file)

	dropped := map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}
	for _, l := range file.Lines {
		want := dropped[l.LineNumber]
		if l.Ignored() != want {
			t.Errorf("line %d: ignored=%v, want %v", l.LineNumber, l.Ignored(), want)
		}
	}
}

// TestDeriveRuleHandlesSemicolonTerminatedDecl covers a tuple struct
// declared and terminated on a single line (no body to enter).
func TestDeriveRuleHandlesSemicolonTerminatedDecl(t *testing.T) {
	lines := []string{
		"#[derive(PartialEq)]",
		"pub struct Color(u8, u8, u8);",
		"",
		"fn unrelated() -> i32 { 1 }",
	}
	file := &coverage.FileCoverage{
		Lines: []coverage.LineCoverage{lc(1, 0), lc(3, 1)},
	}
	src := source.FromText("color.rs", lines)

	NewDeriveRule().Apply(context.Background(), src, file)

	for _, l := range file.Lines {
		switch l.LineNumber {
		case 1:
			if !l.Ignored() {
				t.Error("the tuple struct declaration must be ignored")
			}
		case 3:
			if l.Ignored() {
				t.Error("a later unrelated function must not be ignored")
			}
		}
	}
}

// TestDeriveRuleHandlesUnitStruct covers "struct Name;" with no body.
func TestDeriveRuleHandlesUnitStruct(t *testing.T) {
	lines := []string{"#[derive(Clone, Copy)]", "struct UnitType;", "fn after() {}"}
	file := &coverage.FileCoverage{
		Lines: []coverage.LineCoverage{lc(1, 0), lc(2, 1)},
	}
	src := source.FromText("unit.rs", lines)

	NewDeriveRule().Apply(context.Background(), src, file)

	if !file.Lines[0].Ignored() {
		t.Error("the unit struct declaration must be ignored")
	}
	if file.Lines[1].Ignored() {
		t.Error("code following the unit struct must not be ignored")
	}
}

// TestDeriveRuleSkipsInterveningAttributes covers an enum with a second
// attribute line between #[derive(...)] and the declaration.
func TestDeriveRuleSkipsInterveningAttributes(t *testing.T) {
	lines := []string{
		"#[derive(Serialize)]",    // 0
		"#[serde(rename = \"e\")]", // 1
		"enum E {",                 // 2
		"    A(String),",           // 3
		"}",                        // 4
		"fn after() {}",            // 5
	}
	file := &coverage.FileCoverage{
		Lines: []coverage.LineCoverage{lc(1, 0), lc(2, 0), lc(3, 0), lc(4, 0), lc(5, 1)},
	}
	src := source.FromText("e.rs", lines)

	NewDeriveRule().Apply(context.Background(), src, file)

	for _, l := range file.Lines {
		if l.LineNumber == 5 {
			if l.Ignored() {
				t.Error("code after the enum body must not be ignored")
			}
			continue
		}
		if !l.Ignored() {
			t.Errorf("line %d: expected the enum declaration range to be ignored", l.LineNumber)
		}
	}
}

// TestDeriveRuleDoesNotMatchUnrelatedBraces verifies a struct literal that
// is textually similar to a derived declaration, but not preceded by a
// derive attribute, is left untouched.
func TestDeriveRuleDoesNotMatchUnrelatedBraces(t *testing.T) {
	lines := []string{"Point { x: 1, y: 2 }"}
	file := &coverage.FileCoverage{Lines: []coverage.LineCoverage{lc(0, 1)}}
	src := source.FromText("literal.rs", lines)

	NewDeriveRule().Apply(context.Background(), src, file)

	if file.Lines[0].Ignored() {
		t.Error("a struct literal with no preceding derive attribute must not be ignored")
	}
}

// TestDeriveRuleHonorsCommentsAndStringLiteralsWhenCountingBraces covers two
// cases where naive brace counting on raw line text would miscompute depth:
// a trailing line comment containing a stray "}", and a string literal
// containing "//" that must not be mistaken for a comment start.
func TestDeriveRuleHonorsCommentsAndStringLiteralsWhenCountingBraces(t *testing.T) {
	commentLines := []string{
		"#[derive(Clone)]",                             // 0
		"pub struct Point { // unmatched } in comment",  // 1
		"    x: f64,",                                   // 2
		"    y: f64,",                                   // 3
		"}",                                             // 4
		"fn after() {}",                                 // 5
	}
	commentFile := &coverage.FileCoverage{
		Lines: []coverage.LineCoverage{lc(1, 0), lc(2, 0), lc(3, 0), lc(4, 0), lc(5, 1)},
	}
	commentSrc := source.FromText("comment.rs", commentLines)
	deriveTextual(commentSrc, commentFile)
	for _, l := range commentFile.Lines {
		if l.LineNumber == 5 {
			if l.Ignored() {
				t.Error("code after the struct body must not be ignored")
			}
			continue
		}
		if !l.Ignored() {
			t.Errorf("line %d: expected it ignored as part of the struct body; a brace inside a trailing comment must not be counted", l.LineNumber)
		}
	}

	stringLiteralLines := []string{
		"#[derive(Debug)]",                                       // 0
		`pub struct Url { path: &'static str = "http://x.com" }`, // 1
		"fn after() {}",                                          // 2
	}
	stringLiteralFile := &coverage.FileCoverage{
		Lines: []coverage.LineCoverage{lc(1, 0), lc(2, 1)},
	}
	stringLiteralSrc := source.FromText("url.rs", stringLiteralLines)
	deriveTextual(stringLiteralSrc, stringLiteralFile)
	for _, l := range stringLiteralFile.Lines {
		switch l.LineNumber {
		case 1:
			if !l.Ignored() {
				t.Error("the single-line struct declaration must be ignored")
			}
		case 2:
			if l.Ignored() {
				t.Error("the \"//\" inside the string literal must not be treated as a comment, so the real closing brace on line 1 must be seen and the scan must not continue past it")
			}
		}
	}
}

// TestDeriveRuleUsesASTForMultiLineAttribute covers a #[derive(...)]
// attribute whose argument list spans several lines: derivePattern cannot
// match any single fragment of it (the pattern is anchored start-to-end on
// one line), but the parse tree still associates the attribute with the
// struct that follows it.
func TestDeriveRuleUsesASTForMultiLineAttribute(t *testing.T) {
	lines := []string{
		"#[derive(",         // 0
		"    Clone,",         // 1
		"    Debug,",         // 2
		")]",                  // 3
		"struct Big {",        // 4
		"    x: i32,",          // 5
		"}",                     // 6
		"fn after() {}",          // 7
	}
	file := &coverage.FileCoverage{
		Lines: []coverage.LineCoverage{lc(4, 0), lc(5, 0), lc(6, 0), lc(7, 1)},
	}
	src := source.FromText("multiline_derive.rs", lines)

	NewDeriveRule().Apply(context.Background(), src, file)

	for _, l := range file.Lines {
		switch l.LineNumber {
		case 7:
			if l.Ignored() {
				t.Error("code after the struct body must not be ignored")
			}
		default:
			if !l.Ignored() {
				t.Errorf("line %d: expected it ignored as part of the multi-line derive's struct body", l.LineNumber)
			}
		}
	}
}

func TestDeriveRuleName(t *testing.T) {
	if got := NewDeriveRule().Name(); got != "derive" {
		t.Errorf("Name() = %q, want %q", got, "derive")
	}
}
