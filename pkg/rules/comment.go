package rules

import (
	"context"
	"regexp"
	"strings"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"git.kernel.fun/chapati.systems/covfix/pkg/join"
	"git.kernel.fun/chapati.systems/covfix/pkg/logx"
	"git.kernel.fun/chapati.systems/covfix/pkg/source"
)

// markerPattern finds a cov: suppression marker: start-of-line or a
// preceding space/tab, then "cov:", then optional spaces/tabs, then a key
// of letters, underscores, or hyphens.
var markerPattern = regexp.MustCompile(`(?:^|[ \t])cov:[ \t]*([A-Za-z_-]+)`)

// CommentRule lets a user suppress specific lines or branches with a
// "cov:" magic comment, overriding whatever the earlier rules decided.
// It runs last in the default pipeline for exactly that reason.
type CommentRule struct{}

// NewCommentRule returns the comment (suppression) rule.
func NewCommentRule() *CommentRule { return &CommentRule{} }

func (r *CommentRule) Name() string { return "comment" }

// markerKind is the normalized effect of a suppression key.
type markerKind int

const (
	markerUnknown markerKind = iota
	markerIgnoreLine
	markerIgnoreBranch
	markerIgnoreBoth
	markerBeginLine
	markerBeginBranch
	markerBeginBoth
	markerEndLine
	markerEndBranch
	markerEndBoth
)

// classify normalizes a raw marker key (e.g. "begin-ignore-branch") by
// splitting on '-'/'_' into at most three segments.
func classify(key string) markerKind {
	segs := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' })
	if len(segs) > 3 {
		segs = segs[:3]
	}

	switch len(segs) {
	case 1:
		if segs[0] == "ignore" {
			return markerIgnoreBoth
		}
	case 2:
		if segs[0] == "ignore" {
			switch segs[1] {
			case "line":
				return markerIgnoreLine
			case "branch":
				return markerIgnoreBranch
			}
		}
		if segs[0] == "begin" && segs[1] == "ignore" {
			return markerBeginBoth
		}
		if segs[0] == "end" && segs[1] == "ignore" {
			return markerEndBoth
		}
	case 3:
		if segs[0] == "begin" && segs[1] == "ignore" {
			switch segs[2] {
			case "line":
				return markerBeginLine
			case "branch":
				return markerBeginBranch
			}
		}
		if segs[0] == "end" && segs[1] == "ignore" {
			switch segs[2] {
			case "line":
				return markerEndLine
			case "branch":
				return markerEndBranch
			}
		}
	}
	return markerUnknown
}

func (r *CommentRule) Apply(_ context.Context, src *source.Source, file *coverage.FileCoverage) {
	it := join.New(src.Lines(), file)

	insideLine, insideBranch, insideBoth := false, false, false

	for {
		entry, ok := it.Next()
		if !ok {
			break
		}

		ignoreLineNow := insideLine || insideBoth
		ignoreBranchNow := insideBranch || insideBoth

		if m := markerPattern.FindStringSubmatch(entry.Line); m != nil {
			switch classify(m[1]) {
			case markerIgnoreBoth:
				ignoreLineNow, ignoreBranchNow = true, true
			case markerIgnoreLine:
				ignoreLineNow = true
			case markerIgnoreBranch:
				ignoreBranchNow = true
			case markerBeginBoth:
				if !insideBoth {
					insideBoth = true
				}
				ignoreLineNow, ignoreBranchNow = true, true
			case markerBeginLine:
				if !insideLine {
					insideLine = true
				}
				ignoreLineNow = true
			case markerBeginBranch:
				if !insideBranch {
					insideBranch = true
				}
				ignoreBranchNow = true
			case markerEndBoth:
				insideBoth = false
				ignoreLineNow, ignoreBranchNow = true, true
			case markerEndLine:
				insideLine = false
				ignoreLineNow = true
			case markerEndBranch:
				insideBranch = false
				ignoreBranchNow = true
			default:
				logx.Warnf("%s:%d: unknown coverage suppression marker %q", src.Path(), entry.SourceLine+1, m[1])
			}
		}

		if ignoreLineNow && entry.HasLine() {
			ignoreLine(it.Line(entry))
		}
		if ignoreBranchNow {
			ignoreBranches(it.Branches(entry))
		}
	}
}
