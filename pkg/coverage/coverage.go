// Package coverage holds the in-memory coverage data model shared by every
// format adapter, rule, and the fix engine: line coverage, branch coverage,
// per-file coverage, and per-package coverage, plus total/ratio helpers.
package coverage

// LineCoverage is the coverage record for a single source line.
//
// LineNumber is 0-indexed internally; on-disk formats are 1-indexed and the
// format adapters translate on read and write. Count is nil when the line
// has been marked ignored (non-executable); Count == 0 means the line is
// executable but was never hit.
type LineCoverage struct {
	LineNumber int
	Count      *int
}

// Ignored reports whether this line has been marked non-executable.
func (l LineCoverage) Ignored() bool { return l.Count == nil }

// Hit reports whether this line is counted and was executed at least once.
func (l LineCoverage) Hit() bool { return l.Count != nil && *l.Count > 0 }

// NewLineCoverage builds a LineCoverage with a present count.
func NewLineCoverage(line, count int) LineCoverage {
	c := count
	return LineCoverage{LineNumber: line, Count: &c}
}

// Ignore marks the line as non-executable (absent count).
func (l *LineCoverage) Ignore() { l.Count = nil }

// BranchCoverage is the coverage record for a single branch.
//
// Multiple BranchCoverage records may share a LineNumber. Taken is nil when
// the branch has been marked ignored; BlockNumber is the instrumentation's
// own block id, when the source format carries one.
type BranchCoverage struct {
	LineNumber  int
	BlockNumber *int
	Taken       *bool
}

// Ignored reports whether this branch has been marked non-executable.
func (b BranchCoverage) Ignored() bool { return b.Taken == nil }

// Hit reports whether this branch is counted and was taken.
func (b BranchCoverage) Hit() bool { return b.Taken != nil && *b.Taken }

// NewBranchCoverage builds a BranchCoverage with a present taken value.
func NewBranchCoverage(line int, block *int, taken bool) BranchCoverage {
	t := taken
	return BranchCoverage{LineNumber: line, BlockNumber: block, Taken: &t}
}

// Ignore marks the branch as non-executable (absent taken value).
func (b *BranchCoverage) Ignore() { b.Taken = nil }

// FileCoverage holds coverage information for a single source file.
//
// Both Lines and Branches are kept sorted ascending by LineNumber (stable
// for equal keys) before any rule runs; rules must preserve that ordering
// for the records they retain.
type FileCoverage struct {
	Path     string
	Lines    []LineCoverage
	Branches []BranchCoverage
}

// PackageCoverage holds every FileCoverage produced by a single reader run.
//
// Name is the reader's test-run label (TN: in LCOV), possibly empty. File
// order is preserved from the reader.
type PackageCoverage struct {
	Name  string
	Files []FileCoverage
}

// LineExecuted returns the number of counted lines with Count > 0.
func (f *FileCoverage) LineExecuted() int {
	n := 0
	for _, l := range f.Lines {
		if l.Hit() {
			n++
		}
	}
	return n
}

// LineTotal returns the number of counted (non-ignored) lines.
func (f *FileCoverage) LineTotal() int {
	n := 0
	for _, l := range f.Lines {
		if !l.Ignored() {
			n++
		}
	}
	return n
}

// BranchExecuted returns the number of counted branches that were taken.
func (f *FileCoverage) BranchExecuted() int {
	n := 0
	for _, b := range f.Branches {
		if b.Hit() {
			n++
		}
	}
	return n
}

// BranchTotal returns the number of counted (non-ignored) branches.
func (f *FileCoverage) BranchTotal() int {
	n := 0
	for _, b := range f.Branches {
		if !b.Ignored() {
			n++
		}
	}
	return n
}

// LineExecuted sums LineExecuted across every file in the package.
func (p *PackageCoverage) LineExecuted() int {
	n := 0
	for i := range p.Files {
		n += p.Files[i].LineExecuted()
	}
	return n
}

// LineTotal sums LineTotal across every file in the package.
func (p *PackageCoverage) LineTotal() int {
	n := 0
	for i := range p.Files {
		n += p.Files[i].LineTotal()
	}
	return n
}

// BranchExecuted sums BranchExecuted across every file in the package.
func (p *PackageCoverage) BranchExecuted() int {
	n := 0
	for i := range p.Files {
		n += p.Files[i].BranchExecuted()
	}
	return n
}

// BranchTotal sums BranchTotal across every file in the package.
func (p *PackageCoverage) BranchTotal() int {
	n := 0
	for i := range p.Files {
		n += p.Files[i].BranchTotal()
	}
	return n
}

// LinePercent returns the line-coverage ratio as a percentage, or 0 when
// there are no counted lines.
func (p *PackageCoverage) LinePercent() float64 {
	total := p.LineTotal()
	if total == 0 {
		return 0
	}
	return float64(p.LineExecuted()) / float64(total) * 100.0
}

// BranchPercent returns the branch-coverage ratio as a percentage, or 0
// when there are no counted branches.
func (p *PackageCoverage) BranchPercent() float64 {
	total := p.BranchTotal()
	if total == 0 {
		return 0
	}
	return float64(p.BranchExecuted()) / float64(total) * 100.0
}
