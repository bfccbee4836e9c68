// Package join implements the per-line join iterator: a single-pass merge
// over source lines and a file's sorted line/branch coverage records that
// yields one entry per source line, with the coverage records for that
// line attached.
package join

import "git.kernel.fun/chapati.systems/covfix/pkg/coverage"

// Entry is a single source line paired with its coverage records, if any.
//
// LineIndex and BranchIndices point back into the FileCoverage slices the
// Iterator was built from, so a caller can mutate the original records
// in place (the coverage package's Ignore helpers, for instance) without
// the iterator copying anything.
type Entry struct {
	Line string
	// SourceLine is the 0-indexed position of this entry within the
	// source lines the Iterator was built from.
	SourceLine int
	LineIndex  int // -1 if this source line has no LineCoverage record
	// BranchStart/BranchCount delimit the contiguous run of BranchCoverage
	// records sharing this line's LineNumber. BranchCount is 0 when empty.
	BranchStart int
	BranchCount int
}

// HasLine reports whether this entry has an associated LineCoverage.
func (e Entry) HasLine() bool { return e.LineIndex >= 0 }

// HasBranches reports whether this entry has any associated BranchCoverage.
func (e Entry) HasBranches() bool { return e.BranchCount > 0 }

// Iterator walks source lines in ascending order, yielding one Entry per
// line. It assumes file.Lines and file.Branches are already sorted
// ascending by LineNumber; violating that precondition is a programmer
// error, not a runtime failure.
type Iterator struct {
	lines []string
	file  *coverage.FileCoverage

	lineNumber int
	lp         int // next unconsumed index into file.Lines
	bp         int // next unconsumed index into file.Branches
}

// New builds an Iterator over lines, whose records live in file.
func New(lines []string, file *coverage.FileCoverage) *Iterator {
	return &Iterator{lines: lines, file: file}
}

// Next returns the next Entry, or false once every source line has been
// visited. Each LineCoverage and BranchCoverage is visited at most once;
// records whose LineNumber exceeds the number of source lines are never
// visited.
func (it *Iterator) Next() (Entry, bool) {
	if it.lineNumber >= len(it.lines) {
		return Entry{}, false
	}

	entry := Entry{
		Line:       it.lines[it.lineNumber],
		SourceLine: it.lineNumber,
		LineIndex:  -1,
	}

	if it.lp < len(it.file.Lines) && it.file.Lines[it.lp].LineNumber == it.lineNumber {
		entry.LineIndex = it.lp
		it.lp++
	}

	if it.bp < len(it.file.Branches) && it.file.Branches[it.bp].LineNumber == it.lineNumber {
		entry.BranchStart = it.bp
		for it.bp < len(it.file.Branches) && it.file.Branches[it.bp].LineNumber == it.lineNumber {
			it.bp++
		}
		entry.BranchCount = it.bp - entry.BranchStart
	}

	it.lineNumber++
	return entry, true
}

// Line returns the LineCoverage referenced by entry, mutating the
// underlying FileCoverage in place. Callers must only call this when
// entry.HasLine() is true.
func (it *Iterator) Line(entry Entry) *coverage.LineCoverage {
	return &it.file.Lines[entry.LineIndex]
}

// Branches returns the contiguous slice of BranchCoverage referenced by
// entry. The returned slice aliases the underlying FileCoverage, so
// mutations are visible to the caller that built the Iterator.
func (it *Iterator) Branches(entry Entry) []coverage.BranchCoverage {
	if entry.BranchCount == 0 {
		return nil
	}
	return it.file.Branches[entry.BranchStart : entry.BranchStart+entry.BranchCount]
}
