// Package lcov reads and writes the LCOV line-oriented trace format.
package lcov

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
)

// Codec reads and writes LCOV reports rooted at a single source directory:
// SF: paths are resolved against Root on read, and written relative to
// Root on write.
type Codec struct {
	Root string
}

// NewCodec returns a Codec rooted at root.
func NewCodec(root string) *Codec { return &Codec{Root: root} }

// Read parses an LCOV trace file into a PackageCoverage.
//
// Every SF: record's resolved path must exist as a regular file, or Read
// fails with *coverage.SourceFileNotFoundError. DA:/BRDA: records whose
// 1-indexed line is 0 are skipped, per spec.md's open-question resolution.
func (c *Codec) Read(r io.Reader) (*coverage.PackageCoverage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	pkg := &coverage.PackageCoverage{}
	var filename string
	var lines []coverage.LineCoverage
	var branches []coverage.BranchCoverage

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}

		if line == "end_of_record" {
			path := filepath.Join(c.Root, filename)
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				return nil, &coverage.SourceFileNotFoundError{Path: path}
			}

			pkg.Files = append(pkg.Files, coverage.FileCoverage{
				Path:     path,
				Lines:    lines,
				Branches: branches,
			})
			lines = nil
			branches = nil
			continue
		}

		prefix, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch prefix {
		case "TN":
			pkg.Name = rest
		case "SF":
			filename = rest
		case "DA":
			lc, err := parseDA(rest)
			if err != nil {
				return nil, err
			}
			if lc != nil {
				lines = append(lines, *lc)
			}
		case "BRDA":
			bc, err := parseBRDA(rest)
			if err != nil {
				return nil, err
			}
			if bc != nil {
				branches = append(branches, *bc)
			}
		default:
			// FN, FNDA, FNF, FNH, BRF, BRH, LF, LH: accepted, not used.
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &coverage.IoError{Detail: "reading lcov trace", Err: err}
	}

	return pkg, nil
}

func parseDA(rest string) (*coverage.LineCoverage, error) {
	parts := strings.Split(rest, ",")
	if len(parts) < 2 {
		return nil, &coverage.FormatError{Detail: fmt.Sprintf("malformed DA record: %q", rest)}
	}

	line, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, &coverage.FormatError{Detail: fmt.Sprintf("invalid DA line number: %q", parts[0])}
	}
	if line == 0 {
		return nil, nil
	}

	count, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &coverage.FormatError{Detail: fmt.Sprintf("invalid DA count: %q", parts[1])}
	}

	lc := coverage.NewLineCoverage(line-1, count)
	return &lc, nil
}

func parseBRDA(rest string) (*coverage.BranchCoverage, error) {
	parts := strings.SplitN(rest, ",", 4)
	if len(parts) != 4 {
		return nil, &coverage.FormatError{Detail: fmt.Sprintf("malformed BRDA record: %q", rest)}
	}

	line, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, &coverage.FormatError{Detail: fmt.Sprintf("invalid BRDA line number: %q", parts[0])}
	}
	if line == 0 {
		return nil, nil
	}

	block, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &coverage.FormatError{Detail: fmt.Sprintf("invalid BRDA block number: %q", parts[1])}
	}

	taken := parts[3] != "-"

	bc := coverage.NewBranchCoverage(line-1, &block, taken)
	return &bc, nil
}

// Write emits data as an LCOV trace file. Paths are written relative to
// Codec.Root when possible, falling back to the file's original path.
func (c *Codec) Write(w io.Writer, data *coverage.PackageCoverage) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "TN:%s\n", data.Name); err != nil {
		return &coverage.IoError{Detail: "writing TN record", Err: err}
	}

	for i := range data.Files {
		if err := c.writeFile(bw, &data.Files[i]); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return &coverage.IoError{Detail: "flushing lcov trace", Err: err}
	}
	return nil
}

func (c *Codec) writeFile(w *bufio.Writer, file *coverage.FileCoverage) error {
	relpath := file.Path
	if rel, err := filepath.Rel(c.Root, file.Path); err == nil {
		relpath = rel
	}

	if _, err := fmt.Fprintf(w, "SF:%s\n", relpath); err != nil {
		return &coverage.IoError{Detail: "writing SF record", Err: err}
	}

	branchIndex := -1
	lastLine := -1
	for _, b := range file.Branches {
		if b.LineNumber != lastLine {
			branchIndex = 0
			lastLine = b.LineNumber
		} else {
			branchIndex++
		}

		block := 0
		if b.BlockNumber != nil {
			block = *b.BlockNumber
		}
		taken := "-"
		if b.Taken != nil && *b.Taken {
			taken = "1"
		}
		if _, err := fmt.Fprintf(w, "BRDA:%d,%d,%d,%s\n", b.LineNumber+1, block, branchIndex, taken); err != nil {
			return &coverage.IoError{Detail: "writing BRDA record", Err: err}
		}
	}

	if _, err := fmt.Fprintf(w, "BRF:%d\nBRH:%d\n", file.BranchTotal(), file.BranchExecuted()); err != nil {
		return &coverage.IoError{Detail: "writing BRF/BRH records", Err: err}
	}

	for _, l := range file.Lines {
		count := 0
		if l.Count != nil {
			count = *l.Count
		}
		if _, err := fmt.Fprintf(w, "DA:%d,%d\n", l.LineNumber+1, count); err != nil {
			return &coverage.IoError{Detail: "writing DA record", Err: err}
		}
	}

	if _, err := fmt.Fprintf(w, "LF:%d\nLH:%d\n", file.LineTotal(), file.LineExecuted()); err != nil {
		return &coverage.IoError{Detail: "writing LF/LH records", Err: err}
	}

	if _, err := fmt.Fprintln(w, "end_of_record"); err != nil {
		return &coverage.IoError{Detail: "writing end_of_record", Err: err}
	}

	return nil
}
