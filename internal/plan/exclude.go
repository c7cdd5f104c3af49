package plan

import (
	"path"
	"strings"
)

// ExcludeMatcher tests path segments against a set of glob patterns.
//
// Patterns use path.Match syntax and are applied to each path segment
// independently: "__pycache__" removes any directory of that name at any
// depth, "*.pyc" removes matching files wherever they appear. A pattern
// containing a separator (e.g. "lib/vendor") matches the trailing
// segments of a relative path instead of a single segment.
type ExcludeMatcher struct {
	segments []string
	paths    [][]string
}

// NewExcludeMatcher compiles a pattern list. Invalid patterns are kept
// verbatim; path.Match treats them as non-matching rather than failing
// the whole plan.
func NewExcludeMatcher(patterns []string) *ExcludeMatcher {
	m := &ExcludeMatcher{}
	for _, p := range patterns {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			m.paths = append(m.paths, strings.Split(p, "/"))
			continue
		}
		m.segments = append(m.segments, p)
	}
	return m
}

// MatchSegment reports whether a single path segment is excluded.
func (m *ExcludeMatcher) MatchSegment(name string) bool {
	for _, p := range m.segments {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// MatchPath reports whether any segment of a slash-separated relative
// path is excluded, or whether a multi-segment pattern matches a
// trailing run of its segments.
func (m *ExcludeMatcher) MatchPath(rel string) bool {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return false
	}
	segs := strings.Split(rel, "/")

	for _, s := range segs {
		if m.MatchSegment(s) {
			return true
		}
	}

	for _, pat := range m.paths {
		if matchesSuffix(pat, segs) {
			return true
		}
	}
	return false
}

// matchesSuffix reports whether pattern segments match any contiguous
// run of path segments ending anywhere in the path.
func matchesSuffix(pat, segs []string) bool {
	if len(pat) > len(segs) {
		return false
	}
	for start := 0; start+len(pat) <= len(segs); start++ {
		all := true
		for i, p := range pat {
			ok, err := path.Match(p, segs[start+i])
			if err != nil || !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
