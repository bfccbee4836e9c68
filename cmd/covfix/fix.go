package main

import (
	"context"
	"fmt"
	"strings"

	"git.kernel.fun/chapati.systems/covfix/pkg/engine"
	"git.kernel.fun/chapati.systems/covfix/pkg/rules"
	"github.com/spf13/cobra"
)

var (
	coverageFile string
	outFile      string
	sourceRoot   string
	forceFormat  string
	ruleNames    string
	numWorkers   int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&coverageFile, "file", "f", "", "Path to coverage file (required)")
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "", "Path to write the fixed report (default: overwrite --file)")
	rootCmd.PersistentFlags().StringVar(&sourceRoot, "root", "", "Source directory coverage paths are resolved against (default: --file's directory)")
	rootCmd.PersistentFlags().StringVar(&forceFormat, "format", "", "Override format detection (lcov, cobertura)")
	rootCmd.Flags().StringVar(&ruleNames, "rules", "", "Comma-separated subset of rules to run, in any order (default: all, in fixed order)")
	rootCmd.Flags().IntVar(&numWorkers, "workers", 1, "Number of files to fix concurrently")

	rootCmd.RunE = runFix
}

func runFix(cmd *cobra.Command, args []string) error {
	if coverageFile == "" {
		return fmt.Errorf("--file flag is required")
	}

	data, format, err := readReport(coverageFile, sourceRoot, forceFormat)
	if err != nil {
		return err
	}

	fixer, err := buildFixer()
	if err != nil {
		return err
	}
	fixer.SetNumWorkers(numWorkers)

	before, after, err := fixer.Fix(context.Background(), data)
	if err != nil {
		return fmt.Errorf("failed to fix coverage: %w", err)
	}

	dest := outFile
	if dest == "" {
		dest = coverageFile
	}
	if err := writeReport(dest, format, sourceRoot, data); err != nil {
		return fmt.Errorf("failed to write fixed report: %w", err)
	}

	cmd.Printf("line:   %d/%d (%.2f%%) => %d/%d (%.2f%%)\n",
		before.LineExecuted, before.LineTotal, percent(before.LineExecuted, before.LineTotal),
		after.LineExecuted, after.LineTotal, percent(after.LineExecuted, after.LineTotal))
	cmd.Printf("branch: %d/%d (%.2f%%) => %d/%d (%.2f%%)\n",
		before.BranchExecuted, before.BranchTotal, percent(before.BranchExecuted, before.BranchTotal),
		after.BranchExecuted, after.BranchTotal, percent(after.BranchExecuted, after.BranchTotal))
	cmd.Printf("wrote %s\n", dest)

	return nil
}

// buildFixer constructs an engine.Fixer honoring --rules, falling back to
// rules.DefaultOrder() when unset. Requested rules always run in the fixed
// pipeline order, regardless of how they were listed on the command line.
func buildFixer() (*engine.Fixer, error) {
	if ruleNames == "" {
		return engine.New(), nil
	}

	wanted := make(map[string]bool)
	for _, name := range strings.Split(ruleNames, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := rules.ByName(name); err != nil {
			return nil, err
		}
		wanted[name] = true
	}

	var selected []rules.Rule
	for _, rule := range rules.DefaultOrder() {
		if wanted[rule.Name()] {
			selected = append(selected, rule)
		}
	}

	return engine.WithRules(selected), nil
}

func percent(executed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(executed) / float64(total) * 100.0
}
