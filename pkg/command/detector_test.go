package command

import (
	"testing"

	"reviewhook/pkg/event"
)

// TestClassifyStartCommand tests that a bare start command is not also a mention.
func TestClassifyStartCommand(t *testing.T) {
	detector, err := NewDetector("")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	got := detector.Classify("@kody start-review", event.PlatformGitHub)
	if !got.IsStartCommand {
		t.Fatalf("expected start command")
	}
	if got.IsMention {
		t.Fatalf("expected start command not to classify as mention")
	}
	if got.HasReviewMarker {
		t.Fatalf("expected no review marker")
	}
}

// TestClassifyMention tests that a plain mention is not a start command.
func TestClassifyMention(t *testing.T) {
	detector, err := NewDetector("@kody")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	got := detector.Classify("@kody please explain", event.PlatformGitHub)
	if got.IsStartCommand {
		t.Fatalf("expected no start command")
	}
	if !got.IsMention {
		t.Fatalf("expected mention")
	}
}

// TestClassifyCaseAndWhitespace tests case-insensitive matching with leading whitespace.
func TestClassifyCaseAndWhitespace(t *testing.T) {
	detector, err := NewDetector("")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	got := detector.Classify("   @Kody   START-REVIEW now", event.PlatformGitLab)
	if !got.IsStartCommand {
		t.Fatalf("expected case-insensitive start command with leading whitespace")
	}
}

// TestClassifyReviewMarker tests HTML-comment marker detection.
func TestClassifyReviewMarker(t *testing.T) {
	detector, err := NewDetector("")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	body := "Here is my review.\n<!-- kody-codereview -->"
	got := detector.Classify(body, event.PlatformGitHub)
	if !got.HasReviewMarker {
		t.Fatalf("expected review marker to be detected")
	}
}

// TestClassifyBitbucketMarker tests the emoji/signature heuristic used on
// Bitbucket, where HTML comments are unreliable.
func TestClassifyBitbucketMarker(t *testing.T) {
	detector, err := NewDetector("")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	if !detector.Classify("looks good \U0001F44D", event.PlatformBitbucket).HasReviewMarker {
		t.Fatalf("expected thumbs-up to count as marker on bitbucket")
	}
	if !detector.Classify("Kody Code-Review finished", event.PlatformBitbucket).HasReviewMarker {
		t.Fatalf("expected signature to count as marker on bitbucket")
	}
	if detector.Classify("<!-- kody-codereview -->", event.PlatformBitbucket).HasReviewMarker {
		t.Fatalf("expected html marker to be ignored on bitbucket")
	}
}

// TestClassifyUnrelatedBody tests that unrelated comments classify as nothing.
func TestClassifyUnrelatedBody(t *testing.T) {
	detector, err := NewDetector("")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	got := detector.Classify("ship it", event.PlatformGitHub)
	if got.IsStartCommand || got.IsMention || got.HasReviewMarker {
		t.Fatalf("expected unrelated body to classify as nothing, got %+v", got)
	}
}

// TestClassifyMidBodyMention tests that the mention must lead the comment.
func TestClassifyMidBodyMention(t *testing.T) {
	detector, err := NewDetector("")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	got := detector.Classify("thanks @kody", event.PlatformGitHub)
	if got.IsMention || got.IsStartCommand {
		t.Fatalf("expected mid-body mention to be ignored")
	}
}

// TestCustomMentionToken tests a non-default mention token.
func TestCustomMentionToken(t *testing.T) {
	detector, err := NewDetector("@reviewbot")
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	if !detector.Classify("@reviewbot start-review", event.PlatformGitHub).IsStartCommand {
		t.Fatalf("expected custom token start command")
	}
	if detector.Classify("@kody start-review", event.PlatformGitHub).IsStartCommand {
		t.Fatalf("expected default token to be inert with custom token configured")
	}
}
