package main

import (
	"context"
	"fmt"
	"os"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/engine"
	"github.com/spf13/cobra"
)

var minCoverage float64

var ciCmd = &cobra.Command{
	Use:   "ci --min <percentage>",
	Short: "Fix coverage and fail if it falls below a minimum threshold",
	Long: `Automatically detect coverage files in standard locations, run the
fix pipeline over each, merge the results, and fail if the combined
post-fix line coverage is below the minimum threshold.`,
	Example: `  covfix ci --min 80`,
	RunE:    runCI,
}

func init() {
	ciCmd.Flags().Float64Var(&minCoverage, "min", 0, "Minimum post-fix coverage percentage required (0-100)")
	ciCmd.MarkFlagRequired("min")
}

func runCI(cmd *cobra.Command, args []string) error {
	if minCoverage < 0 || minCoverage > 100 {
		return fmt.Errorf("--min must be between 0 and 100, got: %.2f", minCoverage)
	}

	files := detectExistingCoverageFiles()
	if coverageFile != "" {
		files = []string{coverageFile}
	}
	if len(files) == 0 {
		return fmt.Errorf("no coverage files detected in standard locations; specify --file")
	}

	merged := &coverage.PackageCoverage{}
	fixer := engine.New()

	for _, path := range files {
		data, _, err := readReport(path, sourceRoot, forceFormat)
		if err != nil {
			cmd.PrintErrf("warning: failed to read %s: %v\n", path, err)
			continue
		}

		if _, _, err := fixer.Fix(context.Background(), data); err != nil {
			cmd.PrintErrf("warning: failed to fix %s: %v\n", path, err)
			continue
		}

		merged.Files = append(merged.Files, data.Files...)
	}

	if len(merged.Files) == 0 {
		return fmt.Errorf("no coverage files could be read")
	}

	overallPct := merged.LinePercent()
	if overallPct >= minCoverage {
		cmd.Printf("coverage check passed: %.2f%% >= %.0f%% threshold\n", overallPct, minCoverage)
		return nil
	}

	cmd.Printf("coverage check failed: %.2f%% < %.0f%% minimum required\n", overallPct, minCoverage)
	os.Exit(1)
	return nil
}
