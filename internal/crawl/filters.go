package crawl

import (
	"strings"

	"github.com/okabe/favcrawl/internal/catalog"
)

// Filters narrow a run. Names restrict which subjects are crawled;
// CodeContains and CodePrefixes keep every subject but restrict which of its
// works are touched. The three criteria are mutually exclusive in effect:
// exact names win over code-contains, which wins over code-prefixes. A run
// with any filter active bypasses checkpoints entirely so a partial filtered
// pass can never poison a full run's resume point.
type Filters struct {
	Names        []string
	CodeContains []string
	CodePrefixes []string
}

// Active reports whether any criterion is set.
func (f Filters) Active() bool {
	return len(f.Names) > 0 || len(f.CodeContains) > 0 || len(f.CodePrefixes) > 0
}

// MatchName reports whether a subject name passes the name criterion. Only
// the Names tier looks at subjects; code tiers pass every subject through.
// Comparison is case-insensitive.
func (f Filters) MatchName(name string) bool {
	if len(f.Names) == 0 {
		return true
	}
	for _, want := range f.Names {
		if strings.EqualFold(strings.TrimSpace(want), name) {
			return true
		}
	}
	return false
}

// MatchCode reports whether a work code passes the highest-precedence code
// criterion that is set. When exact names are set they take the run over and
// the code tiers are ignored. Comparison is case-insensitive.
func (f Filters) MatchCode(code string) bool {
	if len(f.Names) > 0 {
		return true
	}
	folded := strings.ToLower(code)
	if len(f.CodeContains) > 0 {
		for _, frag := range f.CodeContains {
			frag = strings.ToLower(strings.TrimSpace(frag))
			if frag != "" && strings.Contains(folded, frag) {
				return true
			}
		}
		return false
	}
	if len(f.CodePrefixes) > 0 {
		for _, prefix := range f.CodePrefixes {
			prefix = strings.ToLower(strings.TrimSpace(prefix))
			if prefix != "" && strings.HasPrefix(folded, prefix) {
				return true
			}
		}
		return false
	}
	return true
}

// FilterWorks drops the works whose codes fail the code criteria. With no
// code criterion set the slice is returned untouched.
func (f Filters) FilterWorks(works []catalog.Work) []catalog.Work {
	if len(f.Names) > 0 || (len(f.CodeContains) == 0 && len(f.CodePrefixes) == 0) {
		return works
	}
	kept := works[:0:0]
	for _, work := range works {
		if f.MatchCode(work.Code) {
			kept = append(kept, work)
		}
	}
	return kept
}
