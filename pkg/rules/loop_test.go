package rules

import (
	"context"
	"testing"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// TestLoopRuleDropsSingleFalseBranchOnExecutedHeader reproduces Scenario D:
// a for-loop header line executed 11 times, with branches
// (true, true, false); only the single false branch is dropped.
func TestLoopRuleDropsSingleFalseBranchOnExecutedHeader(t *testing.T) {
	lines := []string{
		"fn f() {",
		"    for i in 0..10 {",
		"        sum += i;",
		"    }",
		"}",
	}
	file := &coverage.FileCoverage{
		Lines:    []coverage.LineCoverage{lc(1, 11)},
		Branches: []coverage.BranchCoverage{bc(1, true), bc(1, true), bc(1, false)},
	}
	src := source.FromText("loop.rs", lines)

	NewLoopRule().Apply(context.Background(), src, file)

	ignored, kept := 0, 0
	for _, b := range file.Branches {
		if b.Ignored() {
			ignored++
		} else {
			kept++
		}
	}
	if ignored != 1 || kept != 2 {
		t.Fatalf("got ignored=%d kept=%d, want ignored=1 kept=2", ignored, kept)
	}
}

func TestLoopRuleLeavesUnexecutedHeaderUntouched(t *testing.T) {
	lines := []string{"    for i in 0..10 {"}
	file := &coverage.FileCoverage{
		Lines:    []coverage.LineCoverage{lc(0, 0)},
		Branches: []coverage.BranchCoverage{bc(0, true), bc(0, false)},
	}
	src := source.FromText("unexecuted.rs", lines)

	NewLoopRule().Apply(context.Background(), src, file)

	for _, b := range file.Branches {
		if b.Ignored() {
			t.Error("a loop header that was never executed must not have its branches touched")
		}
	}
}

func TestLoopRuleIgnoresNonLoopLines(t *testing.T) {
	lines := []string{"    if cond {"}
	file := &coverage.FileCoverage{
		Lines:    []coverage.LineCoverage{lc(0, 1)},
		Branches: []coverage.BranchCoverage{bc(0, true), bc(0, false)},
	}
	src := source.FromText("if.rs", lines)

	NewLoopRule().Apply(context.Background(), src, file)

	for _, b := range file.Branches {
		if b.Ignored() {
			t.Error("an if-statement header must not be treated as a loop")
		}
	}
}

func TestLoopRuleStopsAtFirstFalseBranch(t *testing.T) {
	lines := []string{"for x in xs {"}
	file := &coverage.FileCoverage{
		Lines:    []coverage.LineCoverage{lc(0, 5)},
		Branches: []coverage.BranchCoverage{bc(0, false), bc(0, false)},
	}
	src := source.FromText("double.rs", lines)

	NewLoopRule().Apply(context.Background(), src, file)

	if file.Branches[0].Ignored() == file.Branches[1].Ignored() {
		t.Fatal("only the first not-taken branch should be ignored, leaving the rest untouched")
	}
	if !file.Branches[0].Ignored() {
		t.Fatal("the first not-taken branch in source order should be the one ignored")
	}
}

// TestLoopRuleUsesASTForHeaderSplitAcrossLines covers a for-loop whose
// opening brace sits on its own line: loopHeaderPattern cannot match this
// (it requires "{" on the "for" line), but the parse tree still locates the
// loop body correctly.
func TestLoopRuleUsesASTForHeaderSplitAcrossLines(t *testing.T) {
	lines := []string{
		"fn f() {",           // 0
		"    for i in 0..10", // 1
		"    {",              // 2
		"        sum += i;",  // 3
		"    }",              // 4
		"}",                  // 5
	}
	file := &coverage.FileCoverage{
		Lines:    []coverage.LineCoverage{lc(2, 11)},
		Branches: []coverage.BranchCoverage{bc(2, true), bc(2, true), bc(2, false)},
	}
	src := source.FromText("split_header.rs", lines)

	NewLoopRule().Apply(context.Background(), src, file)

	ignored, kept := 0, 0
	for _, b := range file.Branches {
		if b.Ignored() {
			ignored++
		} else {
			kept++
		}
	}
	if ignored != 1 || kept != 2 {
		t.Fatalf("got ignored=%d kept=%d, want ignored=1 kept=2", ignored, kept)
	}
}

func TestLoopRuleName(t *testing.T) {
	if got := NewLoopRule().Name(); got != "loop" {
		t.Errorf("Name() = %q, want %q", got, "loop")
	}
}
