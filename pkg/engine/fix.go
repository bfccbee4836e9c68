// Package engine implements the Fix Engine: the orchestrator that loads
// each file's source, runs the rule pipeline over its coverage records in
// order, and compacts the records the pipeline decided to ignore.
package engine

import (
	"context"
	"sort"
	"sync"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/logx"
	"git.kernel.fun/chapati.systems/covfix/pkg/rules"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// Fixer applies a rule pipeline to a PackageCoverage's files.
//
// You should always fix coverage data through a Fixer, rather than call
// rules directly: it is responsible for the sort-then-apply-then-compact
// sequence every rule is written assuming has already happened.
type Fixer struct {
	rules      []rules.Rule
	numWorkers int
}

// New returns a Fixer running rules.DefaultOrder() sequentially.
func New() *Fixer {
	return &Fixer{rules: rules.DefaultOrder(), numWorkers: 1}
}

// WithRules returns a Fixer running exactly the given rules, in the given
// order, sequentially.
func WithRules(rs []rules.Rule) *Fixer {
	return &Fixer{rules: rs, numWorkers: 1}
}

// SetNumWorkers sets how many files Fix processes concurrently. Values
// less than 1 are treated as 1.
func (f *Fixer) SetNumWorkers(n int) {
	if n < 1 {
		n = 1
	}
	f.numWorkers = n
}

// Summary is the aggregate line/branch totals of a PackageCoverage at one
// point in time, used to report what a Fix call changed.
type Summary struct {
	LineExecuted   int
	LineTotal      int
	BranchExecuted int
	BranchTotal    int
}

func newSummary(data *coverage.PackageCoverage) Summary {
	return Summary{
		LineExecuted:   data.LineExecuted(),
		LineTotal:      data.LineTotal(),
		BranchExecuted: data.BranchExecuted(),
		BranchTotal:    data.BranchTotal(),
	}
}

// Fix runs the pipeline over every file in data, in place, and returns the
// before/after totals. If the Fixer has no rules configured, it leaves
// data untouched.
func (f *Fixer) Fix(ctx context.Context, data *coverage.PackageCoverage) (before, after Summary, err error) {
	if len(f.rules) == 0 {
		logx.Debugf("skipping fix because rules are empty")
		s := newSummary(data)
		return s, s, nil
	}

	before = newSummary(data)
	logx.Debugf("fixing package coverage")

	if f.numWorkers <= 1 {
		err = f.fixSequential(ctx, data)
	} else {
		err = f.fixConcurrent(ctx, data)
	}
	if err != nil {
		return before, Summary{}, err
	}

	after = newSummary(data)
	logx.Infof("coverages fixed successfully")
	reportDiff(before, after)

	return before, after, nil
}

func (f *Fixer) fixSequential(ctx context.Context, data *coverage.PackageCoverage) error {
	for i := range data.Files {
		if err := f.fixFile(ctx, &data.Files[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fixer) fixConcurrent(ctx context.Context, data *coverage.PackageCoverage) error {
	sem := make(chan struct{}, f.numWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range data.Files {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := f.fixFile(ctx, &data.Files[i]); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return firstErr
}

func (f *Fixer) fixFile(ctx context.Context, file *coverage.FileCoverage) error {
	sortRecords(file)

	logx.Debugf("processing file %s", file.Path)

	src, err := source.Load(file.Path)
	if err != nil {
		return err
	}

	for _, rule := range f.rules {
		rule.Apply(ctx, src, file)
	}

	compact(file)
	return nil
}

// sortRecords restores the ascending-by-LineNumber ordering every rule
// assumes, stably, so records that start on equal line numbers keep the
// order the reader produced them in.
func sortRecords(file *coverage.FileCoverage) {
	sortStableLines(file.Lines)
	sortStableBranches(file.Branches)
}

func sortStableLines(lines []coverage.LineCoverage) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].LineNumber < lines[j].LineNumber })
}

func sortStableBranches(branches []coverage.BranchCoverage) {
	sort.SliceStable(branches, func(i, j int) bool { return branches[i].LineNumber < branches[j].LineNumber })
}

// compact drops every record the pipeline marked ignored. This is the
// second phase of the two-phase delete: rules only ever set a record's
// count/taken to nil, never remove it outright, so the engine is the
// single place the slice actually shrinks.
func compact(file *coverage.FileCoverage) {
	lines := file.Lines[:0]
	for _, l := range file.Lines {
		if !l.Ignored() {
			lines = append(lines, l)
		}
	}
	file.Lines = lines

	branches := file.Branches[:0]
	for _, b := range file.Branches {
		if !b.Ignored() {
			branches = append(branches, b)
		}
	}
	file.Branches = branches
}

func reportDiff(old, new Summary) {
	logx.Infof("  line:   %.2f%% (%d of %d lines)    => %.2f%% (%d of %d lines)",
		percent(old.LineExecuted, old.LineTotal), old.LineExecuted, old.LineTotal,
		percent(new.LineExecuted, new.LineTotal), new.LineExecuted, new.LineTotal)

	logx.Infof("  branch: %.2f%% (%d of %d branches) => %.2f%% (%d of %d branches)",
		percent(old.BranchExecuted, old.BranchTotal), old.BranchExecuted, old.BranchTotal,
		percent(new.BranchExecuted, new.BranchTotal), new.BranchExecuted, new.BranchTotal)
}

func percent(executed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(executed) / float64(total) * 100.0
}
