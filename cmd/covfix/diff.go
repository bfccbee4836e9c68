package main

import (
	"encoding/json"
	"fmt"

	"git.kernel.fun/chapati.systems/covfix/pkg/rules"
	"github.com/spf13/cobra"
)

var diffOutputFormat string

var diffCmd = &cobra.Command{
	Use:   "diff --file <path> [flags]",
	Short: "Show which records the fix pipeline would drop, grouped by rule",
	Long: `Run the same rule pipeline the fix command uses, but instead of
writing the corrected report back out, report which line and branch
records each rule is responsible for dropping. Useful for auditing why
a given line disappeared from coverage.`,
	Example: `  covfix diff --file coverage/lcov.info`,
	RunE:    runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffOutputFormat, "output", "text", "Output format: text, json")
}

func runDiff(cmd *cobra.Command, args []string) error {
	if diffOutputFormat != "text" && diffOutputFormat != "json" {
		return fmt.Errorf("invalid output format: %s. Must be text or json", diffOutputFormat)
	}

	if coverageFile == "" {
		files := detectExistingCoverageFiles()
		if len(files) == 0 {
			return fmt.Errorf("no coverage files detected in standard locations; specify --file")
		}
		if len(files) > 1 {
			return fmt.Errorf("multiple coverage files detected: %v; specify --file", files)
		}
		coverageFile = files[0]
		cmd.PrintErrf("auto-detected coverage file: %s\n", coverageFile)
	}

	data, _, err := readReport(coverageFile, sourceRoot, forceFormat)
	if err != nil {
		return err
	}

	ignored, err := computeRuleDiff(data, func(msg string) { cmd.PrintErrf("warning: %s\n", msg) })
	if err != nil {
		return err
	}

	switch diffOutputFormat {
	case "json":
		out, err := json.MarshalIndent(ignored, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
	default:
		printIgnoredByRule(cmd, ignored)
	}

	return nil
}

func printIgnoredByRule(cmd *cobra.Command, ignored []ignoredRecord) {
	if len(ignored) == 0 {
		cmd.Println("no records would be dropped")
		return
	}

	byRule := make(map[string][]ignoredRecord)
	var order []string
	for _, rule := range rules.DefaultOrder() {
		byRule[rule.Name()] = nil
		order = append(order, rule.Name())
	}
	for _, r := range ignored {
		byRule[r.Rule] = append(byRule[r.Rule], r)
	}

	for _, name := range order {
		records := byRule[name]
		if len(records) == 0 {
			continue
		}
		cmd.Printf("%s (%d):\n", name, len(records))
		for _, r := range records {
			cmd.Printf("  %s:%d [%s]\n", r.File, r.Line, r.Kind)
		}
	}
}
