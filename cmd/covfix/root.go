package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "covfix --file <path> [flags]",
	Short: "Remove false-negative markings from coverage reports",
	Long: `covfix is a CLI tool that post-processes LCOV and Cobertura coverage
reports, removing lines and branches that instrumentation marked
"uncovered" but that no test could ever actually exercise: closing
braces, test-only modules, compiler-inserted loop branches, derived
trait implementations, and anything under an explicit suppression
comment.`,
	Example: `  # Fix a coverage report in place
  covfix --file coverage.lcov

  # Write the fixed report elsewhere, run fewer rules
  covfix --file lcov.info --out fixed.info --rules close-block,comment

  # Gate CI on post-fix coverage
  covfix ci --min 80

  # Show which records the pipeline would drop, grouped by rule
  covfix diff --file coverage.lcov`,
	SilenceUsage: false,
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.AddCommand(ciCmd)
	rootCmd.AddCommand(badgeCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(tuiCmd)
}
