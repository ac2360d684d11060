package branch

import "testing"

// TestEligibleEmptyPatterns tests that an empty pattern list allows every target.
func TestEligibleEmptyPatterns(t *testing.T) {
	if !Eligible("feature/x", "main", nil) {
		t.Fatalf("expected empty pattern list to be eligible")
	}
	if !Eligible("feature/x", "anything", []string{}) {
		t.Fatalf("expected empty pattern list to be eligible")
	}
}

// TestEligibleExclusionPrecedence tests that an exclusion always beats a
// wildcard inclusion, regardless of pattern order.
func TestEligibleExclusionPrecedence(t *testing.T) {
	if Eligible("feature/x", "main", []string{"*", "!main"}) {
		t.Fatalf("expected !main to block review on main")
	}
	if Eligible("feature/x", "main", []string{"!main", "*"}) {
		t.Fatalf("expected !main to block review on main in reverse order")
	}
}

// TestEligibleScenarioExclusions tests the configured default-branch
// exclusion scenario.
func TestEligibleScenarioExclusions(t *testing.T) {
	patterns := []string{"*", "!main", "!develop"}

	if Eligible("feature/x", "main", patterns) {
		t.Fatalf("expected main to be excluded")
	}
	if Eligible("feature/x", "develop", patterns) {
		t.Fatalf("expected develop to be excluded")
	}
	if !Eligible("feature/x", "staging", patterns) {
		t.Fatalf("expected staging to be eligible")
	}
}

// TestEligibleScenarioInclusionsOnly tests that with inclusion-only patterns
// an unmatched target is not eligible.
func TestEligibleScenarioInclusionsOnly(t *testing.T) {
	patterns := []string{"develop", "feature/*", "main"}

	if !Eligible("x", "feature/abc", patterns) {
		t.Fatalf("expected feature/abc to match feature/*")
	}
	if !Eligible("x", "main", patterns) {
		t.Fatalf("expected main to match exactly")
	}
	if Eligible("x", "staging", patterns) {
		t.Fatalf("expected staging to have no matching rule")
	}
}

// TestEligibleSpecificityOrdering tests that a general wildcard covers
// targets a specific wildcard does not.
func TestEligibleSpecificityOrdering(t *testing.T) {
	if !Eligible("x", "anything/not-feature", []string{"feature/*", "*"}) {
		t.Fatalf("expected * to cover anything/not-feature")
	}
	if Eligible("x", "other", []string{"feature/*"}) {
		t.Fatalf("expected feature/* alone not to cover other")
	}
}

// TestEligibleContains tests substring patterns.
func TestEligibleContains(t *testing.T) {
	if !Eligible("x", "release-2024-01", []string{"contains:release"}) {
		t.Fatalf("expected contains:release to match release-2024-01")
	}
	if Eligible("x", "hotfix/1", []string{"contains:release"}) {
		t.Fatalf("expected contains:release not to match hotfix/1")
	}
}

// TestEligibleExclusionWildcard tests exclusions that carry wildcards.
func TestEligibleExclusionWildcard(t *testing.T) {
	patterns := []string{"*", "!release/*"}

	if Eligible("x", "release/1.2", patterns) {
		t.Fatalf("expected release/1.2 to be excluded by !release/*")
	}
	if !Eligible("x", "feature/a", patterns) {
		t.Fatalf("expected feature/a to be eligible")
	}
}

// TestEligibleInclusionTie tests that two equal-score matching inclusions
// still grant eligibility.
func TestEligibleInclusionTie(t *testing.T) {
	if !Eligible("x", "team/feature/a", []string{"team/*", "*/feature/*"}) {
		t.Fatalf("expected tied inclusion matches to grant eligibility")
	}
}

// TestCompileKinds tests pattern classification and scores.
func TestCompileKinds(t *testing.T) {
	cases := []struct {
		raw   string
		kind  Kind
		score int
	}{
		{"main", KindExact, 10},
		{"feature/*", KindWildcardSpecific, 8},
		{"*", KindWildcardGeneral, 1},
		{"contains:rel", KindContains, 5},
		{"!main", KindExclusion, 100},
	}
	for _, tc := range cases {
		rule := Compile(tc.raw)
		if rule.Kind != tc.kind {
			t.Fatalf("pattern %q: expected kind %v, got %v", tc.raw, tc.kind, rule.Kind)
		}
		if rule.Score != tc.score {
			t.Fatalf("pattern %q: expected score %d, got %d", tc.raw, tc.score, rule.Score)
		}
	}
}

// TestGlobMatch tests single-star glob semantics over the full string.
func TestGlobMatch(t *testing.T) {
	if !globMatch("feature/*", "feature/a/b") {
		t.Fatalf("expected * to span path segments")
	}
	if !globMatch("release/*-rc", "release/1.2-rc") {
		t.Fatalf("expected prefix and suffix match")
	}
	if globMatch("release/*-rc", "release/1.2") {
		t.Fatalf("expected suffix mismatch to fail")
	}
	if globMatch("feature/*", "hotfix/a") {
		t.Fatalf("expected prefix mismatch to fail")
	}
}
