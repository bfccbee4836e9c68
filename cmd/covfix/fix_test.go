package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		executed, total int
		want             float64
	}{
		{8, 10, 80.0},
		{0, 0, 0.0},
		{10, 10, 100.0},
	}
	for _, tt := range tests {
		if got := percent(tt.executed, tt.total); got != tt.want {
			t.Errorf("percent(%d, %d) = %.2f, want %.2f", tt.executed, tt.total, got, tt.want)
		}
	}
}

func TestBuildFixerDefaultsToAllRules(t *testing.T) {
	prev := ruleNames
	ruleNames = ""
	defer func() { ruleNames = prev }()

	fixer, err := buildFixer()
	if err != nil {
		t.Fatalf("buildFixer: %v", err)
	}
	if fixer == nil {
		t.Fatal("expected a non-nil fixer")
	}
}

func TestBuildFixerRejectsUnknownRule(t *testing.T) {
	prev := ruleNames
	ruleNames = "close-block,nonsense"
	defer func() { ruleNames = prev }()

	if _, err := buildFixer(); err == nil {
		t.Error("expected an error for an unknown rule name")
	}
}

func TestBuildFixerAcceptsRulesListedOutOfOrder(t *testing.T) {
	prev := ruleNames
	ruleNames = "comment,close-block"
	defer func() { ruleNames = prev }()

	// buildFixer must accept "comment,close-block" even though the fixed
	// pipeline order runs close-block before comment.
	if _, err := buildFixer(); err != nil {
		t.Fatalf("buildFixer: %v", err)
	}
}

func TestRunFixRequiresFile(t *testing.T) {
	prevFile := coverageFile
	coverageFile = ""
	defer func() { coverageFile = prevFile }()

	if err := runFix(rootCmd, nil); err == nil {
		t.Error("expected an error when --file is not set")
	}
}

func TestRunFixEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "lib.rs")
	content := "fn foo() {\n    bar();\n}\n"
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lcovPath := filepath.Join(dir, "coverage.lcov")
	lcovContent := "TN:\nSF:lib.rs\nDA:1,1\nDA:2,1\nDA:3,0\nLF:3\nLH:2\nend_of_record\n"
	if err := os.WriteFile(lcovPath, []byte(lcovContent), 0o644); err != nil {
		t.Fatal(err)
	}

	prevFile, prevOut, prevRoot, prevFormat, prevRules, prevWorkers :=
		coverageFile, outFile, sourceRoot, forceFormat, ruleNames, numWorkers
	defer func() {
		coverageFile, outFile, sourceRoot, forceFormat, ruleNames, numWorkers =
			prevFile, prevOut, prevRoot, prevFormat, prevRules, prevWorkers
	}()

	coverageFile = lcovPath
	outFile = filepath.Join(dir, "fixed.lcov")
	sourceRoot = dir
	forceFormat = ""
	ruleNames = ""
	numWorkers = 1

	if err := runFix(rootCmd, nil); err != nil {
		t.Fatalf("runFix: %v", err)
	}

	out, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("reading fixed report: %v", err)
	}
	if len(out) == 0 {
		t.Error("expected a non-empty fixed report")
	}
}
