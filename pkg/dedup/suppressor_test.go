package dedup

import (
	"testing"
	"time"

	"reviewhook/pkg/event"
)

// TestIsDuplicateRegistersFirstSighting tests that the first call registers
// and the second call suppresses.
func TestIsDuplicateRegistersFirstSighting(t *testing.T) {
	s := New(event.PlatformGitHub, time.Minute)
	fp := map[string]interface{}{"created_date": "2024-01-01T10:00:00Z"}

	if s.IsDuplicate("42", "pull_request", fp) {
		t.Fatalf("expected first sighting not to be a duplicate")
	}
	if !s.IsDuplicate("42", "pull_request", fp) {
		t.Fatalf("expected second sighting to be a duplicate")
	}
}

// TestIsDuplicateDistinguishesContent tests that differing fingerprints do
// not suppress each other.
func TestIsDuplicateDistinguishesContent(t *testing.T) {
	s := New(event.PlatformAzureRepos, time.Minute)

	if s.IsDuplicate("42", "git.pullrequest.updated", map[string]interface{}{"ts": "1"}) {
		t.Fatalf("expected first delivery to pass")
	}
	if s.IsDuplicate("42", "git.pullrequest.updated", map[string]interface{}{"ts": "2"}) {
		t.Fatalf("expected delivery with different content to pass")
	}
	if s.IsDuplicate("43", "git.pullrequest.updated", map[string]interface{}{"ts": "1"}) {
		t.Fatalf("expected delivery for different resource to pass")
	}
}

// TestIsDuplicateExpiry tests that a fingerprint is forgotten after the TTL.
func TestIsDuplicateExpiry(t *testing.T) {
	s := New(event.PlatformGitLab, 30*time.Millisecond)
	fp := map[string]interface{}{"oldrev": "abc"}

	if s.IsDuplicate("7", "Merge Request Hook", fp) {
		t.Fatalf("expected first sighting to pass")
	}
	time.Sleep(80 * time.Millisecond)
	if s.IsDuplicate("7", "Merge Request Hook", fp) {
		t.Fatalf("expected sighting after expiry to pass again")
	}
}

// TestFingerprintStableAcrossOrdering tests that map iteration order does
// not change the hash.
func TestFingerprintStableAcrossOrdering(t *testing.T) {
	a := Fingerprint("1", "pr", map[string]interface{}{"x": 1, "y": "two", "z": true})
	b := Fingerprint("1", "pr", map[string]interface{}{"z": true, "y": "two", "x": 1})
	if a != b {
		t.Fatalf("expected identical fingerprints, got %q and %q", a, b)
	}

	c := Fingerprint("1", "pr", map[string]interface{}{"x": 2, "y": "two", "z": true})
	if a == c {
		t.Fatalf("expected differing content to change the fingerprint")
	}
}

// TestPlatformScoping tests that the same resource on different platforms
// does not collide.
func TestPlatformScoping(t *testing.T) {
	gh := New(event.PlatformGitHub, time.Minute)
	gl := New(event.PlatformGitLab, time.Minute)
	fp := map[string]interface{}{"id": "d1"}

	if gh.IsDuplicate("9", "pull_request", fp) {
		t.Fatalf("expected github first sighting to pass")
	}
	if gl.IsDuplicate("9", "pull_request", fp) {
		t.Fatalf("expected gitlab first sighting to pass despite github entry")
	}
}
