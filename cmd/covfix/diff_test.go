package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"git.kernel.fun/chapati.systems/covfix/pkg/rules"
)

func TestRunDiffRejectsInvalidOutputFormat(t *testing.T) {
	prev := diffOutputFormat
	defer func() { diffOutputFormat = prev }()
	diffOutputFormat = "yaml"

	if err := runDiff(rootCmd, nil); err == nil {
		t.Error("expected an error for an unsupported --output value")
	}
}

func TestPrintIgnoredByRuleGroupsByPipelineOrder(t *testing.T) {
	ignored := []ignoredRecord{
		{File: "a.rs", Kind: "line", Line: 10, Rule: "comment"},
		{File: "a.rs", Kind: "line", Line: 3, Rule: "close-block"},
	}

	// Groups are printed in rules.DefaultOrder() order, not input order;
	// rules with zero records are left out.
	if len(rules.DefaultOrder()) == 0 {
		t.Fatal("expected a non-empty default rule order")
	}
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(os.Stdout)
	printIgnoredByRule(rootCmd, ignored)

	out := buf.String()
	closeAt := strings.Index(out, "close-block (1):")
	commentAt := strings.Index(out, "comment (1):")
	if closeAt < 0 || commentAt < 0 || closeAt > commentAt {
		t.Errorf("expected close-block group before comment group, got:\n%s", out)
	}
	if strings.Contains(out, "loop (") {
		t.Errorf("expected rules with no records to be omitted, got:\n%s", out)
	}
}

func TestPrintIgnoredByRuleHandlesEmpty(t *testing.T) {
	printIgnoredByRule(rootCmd, nil)
}
