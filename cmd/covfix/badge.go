package main

import (
	"context"
	"fmt"
	"os"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/engine"
	badge "github.com/narqo/go-badge"
	"github.com/spf13/cobra"
)

var (
	badgeOutput string
	badgeLabel  string
)

var badgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Generate an SVG badge displaying post-fix code coverage",
	Long: `Detect or use the specified coverage file, run the fix pipeline,
and generate an SVG badge reflecting the corrected coverage percentage.`,
	Example: `  covfix badge --file coverage.lcov --output mybadge.svg`,
	RunE:    runBadge,
}

func init() {
	badgeCmd.Flags().StringVar(&badgeOutput, "output", "coverage-badge.svg", "Path to save the generated SVG file")
	badgeCmd.Flags().StringVar(&badgeLabel, "label", "coverage", "Custom text label for the badge")
}

func runBadge(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("no valid coverage files found")
	}

	overallPct := merged.LinePercent()

	b, err := badge.New(badgeLabel, fmt.Sprintf("%.1f%%", overallPct), colorForCoverage(overallPct))
	if err != nil {
		return fmt.Errorf("failed to render badge: %w", err)
	}

	f, err := os.Create(badgeOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", badgeOutput, err)
	}
	defer f.Close()

	if err := b.Write(f); err != nil {
		return fmt.Errorf("failed to write SVG file: %w", err)
	}

	cmd.Printf("badge generated: %s\n", badgeOutput)
	return nil
}

func colorForCoverage(pct float64) badge.Color {
	switch {
	case pct >= 90:
		return badge.ColorBrightgreen
	case pct >= 80:
		return badge.ColorGreen
	case pct >= 70:
		return badge.ColorYellowgreen
	case pct >= 60:
		return badge.ColorYellow
	case pct >= 50:
		return badge.ColorOrange
	default:
		return badge.ColorRed
	}
}
