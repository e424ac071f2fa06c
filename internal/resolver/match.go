package resolver

import (
	"net/url"
	"path"
	"strings"
)

// Rule is the reason a stored object matched a requested filename. Lower
// values take precedence.
type Rule int

const (
	RuleNone Rule = iota
	// RuleExact: decoded basename equals the decoded request.
	RuleExact
	// RuleBasenameContains: the request is a substring of the basename.
	RuleBasenameContains
	// RuleRequestContains: the basename is a substring of the request.
	RuleRequestContains
)

func (r Rule) String() string {
	switch r {
	case RuleExact:
		return "exact"
	case RuleBasenameContains:
		return "basename_contains_request"
	case RuleRequestContains:
		return "request_contains_basename"
	default:
		return "none"
	}
}

// Classify reports which rule, if any, matches objectPath against requested.
func Classify(requested, objectPath string) Rule {
	want := decode(requested)
	base := basename(objectPath)
	if want == "" || base == "" {
		return RuleNone
	}

	switch {
	case base == want:
		return RuleExact
	case strings.Contains(base, want):
		return RuleBasenameContains
	case strings.Contains(want, base):
		return RuleRequestContains
	default:
		return RuleNone
	}
}

// MatchCandidates picks the object path that best matches requested. An exact
// basename wins over containment of the request, which wins over containment
// of the basename; within a rule the earliest candidate wins.
func MatchCandidates(requested string, candidates []string) (string, bool) {
	best, bestRule := -1, RuleNone
	for i, candidate := range candidates {
		rule := Classify(requested, candidate)
		if rule == RuleNone {
			continue
		}
		if bestRule == RuleNone || rule < bestRule {
			best, bestRule = i, rule
			if rule == RuleExact {
				break
			}
		}
	}
	if best < 0 {
		return "", false
	}
	return candidates[best], true
}

func basename(objectPath string) string {
	if strings.HasSuffix(objectPath, "/") {
		// directory placeholder
		return ""
	}
	base := path.Base(decode(objectPath))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func decode(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}
