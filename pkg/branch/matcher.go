// Package branch decides whether a source->target branch transition should
// trigger an automated review, based on configured glob-like patterns.
package branch

import "strings"

// Kind classifies a configured branch pattern.
type Kind int

const (
	KindExact Kind = iota
	KindWildcardSpecific
	KindWildcardGeneral
	KindContains
	KindExclusion
)

// Specificity scores per kind. Exclusions always outrank inclusions; among
// inclusions, more specific patterns win.
const (
	scoreExclusion        = 100
	scoreExact            = 10
	scoreWildcardSpecific = 8
	scoreContains         = 5
	scoreWildcardGeneral  = 1
)

const containsPrefix = "contains:"

// Rule is one compiled branch pattern.
type Rule struct {
	Pattern string
	Kind    Kind
	Score   int
}

// Compile parses a raw pattern string into a Rule.
func Compile(raw string) Rule {
	pattern := strings.TrimSpace(raw)

	if strings.HasPrefix(pattern, "!") {
		return Rule{
			Pattern: strings.TrimPrefix(pattern, "!"),
			Kind:    KindExclusion,
			Score:   scoreExclusion,
		}
	}
	if strings.HasPrefix(pattern, containsPrefix) {
		return Rule{
			Pattern: strings.TrimPrefix(pattern, containsPrefix),
			Kind:    KindContains,
			Score:   scoreContains,
		}
	}
	if strings.Contains(pattern, "*") {
		if pattern == "*" {
			return Rule{Pattern: pattern, Kind: KindWildcardGeneral, Score: scoreWildcardGeneral}
		}
		return Rule{Pattern: pattern, Kind: KindWildcardSpecific, Score: scoreWildcardSpecific}
	}
	return Rule{Pattern: pattern, Kind: KindExact, Score: scoreExact}
}

// Matches reports whether the rule's pattern matches the target branch.
// Wildcards use single-star glob semantics over the full string, not per
// path segment.
func (r Rule) Matches(target string) bool {
	switch r.Kind {
	case KindContains:
		return strings.Contains(target, r.Pattern)
	case KindWildcardGeneral:
		return true
	case KindWildcardSpecific:
		return globMatch(r.Pattern, target)
	default:
		// Exclusion patterns may themselves carry wildcards or contains:.
		if strings.Contains(r.Pattern, "*") {
			if r.Pattern == "*" {
				return true
			}
			return globMatch(r.Pattern, target)
		}
		if strings.HasPrefix(r.Pattern, containsPrefix) {
			return strings.Contains(target, strings.TrimPrefix(r.Pattern, containsPrefix))
		}
		return r.Pattern == target
	}
}

// Eligible reports whether a (source, target) branch pair warrants a review
// under the given raw patterns. The source branch is implicitly
// wildcard-matched; only the target branch is tested against the rules.
//
// An empty pattern list means no restriction is configured, so everything
// is eligible. Otherwise the highest-scored matching rule decides: an
// exclusion at the top blocks, anything else permits, no match blocks.
func Eligible(source, target string, patterns []string) bool {
	_ = source

	if len(patterns) == 0 {
		return true
	}

	best := -1
	bestKind := KindExact
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rule := Compile(raw)
		if !rule.Matches(target) {
			continue
		}
		if rule.Score > best {
			best = rule.Score
			bestKind = rule.Kind
		}
	}

	if best < 0 {
		return false
	}
	return bestKind != KindExclusion
}

// globMatch implements single-star glob matching: the text before the first
// "*" must be a prefix of target and the text after it must be a suffix.
// Patterns with multiple stars are matched segment by segment in order.
func globMatch(pattern, target string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == target
	}

	if !strings.HasPrefix(target, parts[0]) {
		return false
	}
	rest := target[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(rest, last) {
		return false
	}
	rest = rest[:len(rest)-len(last)]

	for _, mid := range parts[1 : len(parts)-1] {
		if mid == "" {
			continue
		}
		idx := strings.Index(rest, mid)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(mid):]
	}
	return true
}
