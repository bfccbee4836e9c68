// Package rules implements the Fix Engine's rule pipeline: stateless,
// source-aware transformers that mark coverage records ignored (or, for the
// loop rule, neutralize a known-false branch). Rules never add or reorder
// records.
package rules

import (
	"context"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// Rule is a single static-analysis pass over a source file that mutates
// the records of a FileCoverage in place.
type Rule interface {
	// Name identifies the rule for --rules selection and diff reporting.
	Name() string
	// Apply mutates file's records, marking some ignored. It must not add
	// or reorder records.
	Apply(ctx context.Context, src *source.Source, file *coverage.FileCoverage)
}

// DefaultOrder is the fixed order rules are applied in: close-block,
// test-config, loop, derive, comment. Later rules observe earlier ignores,
// which is why comment suppression — letting a user override anything —
// runs last.
func DefaultOrder() []Rule {
	return []Rule{
		NewCloseBlockRule(),
		NewTestConfigRule(),
		NewLoopRule(),
		NewDeriveRule(),
		NewCommentRule(),
	}
}

// ByName resolves a rule identifier to a Rule instance, or returns
// *coverage.InvalidRuleNameError if name is not recognized.
func ByName(name string) (Rule, error) {
	for _, r := range DefaultOrder() {
		if r.Name() == name {
			return r, nil
		}
	}
	return nil, &coverage.InvalidRuleNameError{Name: name}
}

// ignoreLine marks a LineCoverage (if present) as ignored. Shared by every
// rule that ignores a whole line wholesale.
func ignoreLine(line *coverage.LineCoverage) {
	if line != nil {
		line.Ignore()
	}
}

func ignoreBranches(branches []coverage.BranchCoverage) {
	for i := range branches {
		branches[i].Ignore()
	}
}
