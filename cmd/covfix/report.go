package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.kernel.fun/chapati.systems/covfix/internal/detector"
	"git.kernel.fun/chapati.systems/covfix/pkg/cobertura"
	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/lcov"
	"git.kernel.fun/chapati.systems/covfix/pkg/rules"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// resolveFormat maps a --format override string to a detector.Format, or
// falls back to extension- then content-based detection.
func resolveFormat(path, forceFormat string, content []byte) (detector.Format, error) {
	if forceFormat != "" {
		switch strings.ToLower(forceFormat) {
		case "lcov":
			return detector.LCOV, nil
		case "cobertura":
			return detector.Cobertura, nil
		default:
			return detector.Unknown, fmt.Errorf("unknown format %q: must be 'lcov' or 'cobertura'", forceFormat)
		}
	}

	format := detector.DetectFormatByExtension(path)
	if format != detector.Unknown {
		return format, nil
	}

	format, err := detector.DetectFormat(bytes.NewReader(content))
	if err != nil {
		return detector.Unknown, err
	}
	if format == detector.Unknown {
		return detector.Unknown, fmt.Errorf("unable to detect coverage format for file: %s", path)
	}
	return format, nil
}

// readReport reads and decodes a coverage report file, resolving its
// format either from forceFormat or by inspecting path/content. root is
// the source directory SF:/filename attributes are resolved against.
func readReport(path, root, forceFormat string) (*coverage.PackageCoverage, detector.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, detector.Unknown, fmt.Errorf("failed to open coverage file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, detector.Unknown, fmt.Errorf("failed to read coverage file: %w", err)
	}

	format, err := resolveFormat(path, forceFormat, content)
	if err != nil {
		return nil, detector.Unknown, err
	}

	if root == "" {
		root = filepath.Dir(path)
	}

	var pkg *coverage.PackageCoverage
	switch format {
	case detector.LCOV:
		pkg, err = lcov.NewCodec(root).Read(bytes.NewReader(content))
	case detector.Cobertura:
		pkg, err = cobertura.NewCodec(root).Read(bytes.NewReader(content))
	default:
		return nil, format, fmt.Errorf("unsupported coverage format: %s", format)
	}
	if err != nil {
		return nil, format, err
	}

	return pkg, format, nil
}

// writeReport encodes data back to path in the given format.
func writeReport(path string, format detector.Format, root string, data *coverage.PackageCoverage) error {
	if root == "" {
		root = filepath.Dir(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case detector.LCOV:
		return lcov.NewCodec(root).Write(f, data)
	case detector.Cobertura:
		return cobertura.NewCodec(root).Write(f, data)
	default:
		return fmt.Errorf("unsupported coverage format: %s", format)
	}
}

// possibleCoverageFiles lists the standard locations covfix checks when no
// --file is given.
func possibleCoverageFiles() []string {
	return []string{
		"lcov.info",
		"coverage/lcov.info",
		"target/coverage/lcov.info",
		"coverage.lcov",
		"coverage.xml",
		"cobertura.xml",
	}
}

func detectExistingCoverageFiles() []string {
	var existing []string
	for _, f := range possibleCoverageFiles() {
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			existing = append(existing, f)
		}
	}
	return existing
}

// ignoredRecord is one line or branch a rule dropped while computeRuleDiff
// walked the pipeline.
type ignoredRecord struct {
	File string `json:"file"`
	Kind string `json:"kind"`
	Line int    `json:"line"`
	Rule string `json:"rule"`
}

// computeRuleDiff runs the default rule pipeline over data's files one
// rule at a time, in place, and reports which records each rule newly
// ignored. It never compacts, so data's line/branch counts are unchanged
// afterward, but every record's Ignored() state now reflects the full
// pipeline having run. onWarning, if non-nil, receives a message for each
// file whose source could not be loaded; that file is skipped.
func computeRuleDiff(data *coverage.PackageCoverage, onWarning func(string)) ([]ignoredRecord, error) {
	var ignored []ignoredRecord

	for i := range data.Files {
		file := &data.Files[i]
		sort.SliceStable(file.Lines, func(a, b int) bool { return file.Lines[a].LineNumber < file.Lines[b].LineNumber })
		sort.SliceStable(file.Branches, func(a, b int) bool { return file.Branches[a].LineNumber < file.Branches[b].LineNumber })

		src, err := source.Load(file.Path)
		if err != nil {
			if onWarning != nil {
				onWarning(err.Error())
			}
			continue
		}

		for _, rule := range rules.DefaultOrder() {
			lineWasIgnored := make([]bool, len(file.Lines))
			for idx, l := range file.Lines {
				lineWasIgnored[idx] = l.Ignored()
			}
			branchWasIgnored := make([]bool, len(file.Branches))
			for idx, b := range file.Branches {
				branchWasIgnored[idx] = b.Ignored()
			}

			rule.Apply(context.Background(), src, file)

			for idx, l := range file.Lines {
				if !lineWasIgnored[idx] && l.Ignored() {
					ignored = append(ignored, ignoredRecord{File: file.Path, Kind: "line", Line: l.LineNumber + 1, Rule: rule.Name()})
				}
			}
			for idx, b := range file.Branches {
				if !branchWasIgnored[idx] && b.Ignored() {
					ignored = append(ignored, ignoredRecord{File: file.Path, Kind: "branch", Line: b.LineNumber + 1, Rule: rule.Name()})
				}
			}
		}
	}

	return ignored, nil
}
