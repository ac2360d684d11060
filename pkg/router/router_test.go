package router

import (
	"context"
	"testing"

	"reviewhook/pkg/event"
)

type recordingProcessor struct {
	pullRequests int
	comments     int
	err          error
}

func (p *recordingProcessor) ProcessPullRequest(ctx context.Context, evt event.WebhookEvent) error {
	p.pullRequests++
	return p.err
}

func (p *recordingProcessor) ProcessComment(ctx context.Context, evt event.WebhookEvent) error {
	p.comments++
	return p.err
}

// TestCanHandleGitHub tests the GitHub allow-list including the per-action
// pull_request gate.
func TestCanHandleGitHub(t *testing.T) {
	for _, action := range []string{"opened", "synchronize", "closed", "reopened", "ready_for_review"} {
		if !CanHandle(event.PlatformGitHub, "pull_request", action) {
			t.Fatalf("expected pull_request %s to be handled", action)
		}
	}
	if CanHandle(event.PlatformGitHub, "pull_request", "labeled") {
		t.Fatalf("expected labeled action to be rejected")
	}
	if !CanHandle(event.PlatformGitHub, "issue_comment", "created") {
		t.Fatalf("expected issue_comment to be handled")
	}
	if !CanHandle(event.PlatformGitHub, "pull_request_review_comment", "") {
		t.Fatalf("expected review comment to be handled")
	}
	if CanHandle(event.PlatformGitHub, "push", "") {
		t.Fatalf("expected push to be rejected")
	}
}

// TestCanHandleGitLab tests the Note Hook create-only gate.
func TestCanHandleGitLab(t *testing.T) {
	if !CanHandle(event.PlatformGitLab, "Merge Request Hook", "update") {
		t.Fatalf("expected merge request hook to be handled")
	}
	if !CanHandle(event.PlatformGitLab, "Note Hook", "create") {
		t.Fatalf("expected created note to be handled")
	}
	if CanHandle(event.PlatformGitLab, "Note Hook", "update") {
		t.Fatalf("expected edited note to be rejected")
	}
	if CanHandle(event.PlatformGitLab, "Push Hook", "") {
		t.Fatalf("expected push hook to be rejected")
	}
}

// TestCanHandleBitbucketAndAzure tests the remaining allow-lists.
func TestCanHandleBitbucketAndAzure(t *testing.T) {
	for _, name := range []string{"pullrequest:created", "pullrequest:updated", "pullrequest:fulfilled", "pullrequest:rejected", "pullrequest:comment_created"} {
		if !CanHandle(event.PlatformBitbucket, name, "") {
			t.Fatalf("expected %s to be handled", name)
		}
	}
	if CanHandle(event.PlatformBitbucket, "repo:push", "") {
		t.Fatalf("expected repo:push to be rejected")
	}

	for _, name := range []string{"git.pullrequest.created", "git.pullrequest.updated", "git.pullrequest.merge.attempted", "ms.vss-code.git-pullrequest-comment-event"} {
		if !CanHandle(event.PlatformAzureRepos, name, "") {
			t.Fatalf("expected %s to be handled", name)
		}
	}
	if CanHandle(event.PlatformAzureRepos, "git.push", "") {
		t.Fatalf("expected git.push to be rejected")
	}
}

// TestDispatchSplitsCommentEvents tests that comment events route to the
// comment path and PR events to the PR path.
func TestDispatchSplitsCommentEvents(t *testing.T) {
	p := &recordingProcessor{}
	r := New(p, nil)

	r.Dispatch(context.Background(), event.WebhookEvent{
		Platform:  event.PlatformGitHub,
		EventName: "pull_request",
		Payload:   map[string]interface{}{"action": "opened"},
	})
	r.Dispatch(context.Background(), event.WebhookEvent{
		Platform:  event.PlatformGitHub,
		EventName: "issue_comment",
		Payload:   map[string]interface{}{"action": "created"},
	})

	if p.pullRequests != 1 {
		t.Fatalf("expected one pull request dispatch, got %d", p.pullRequests)
	}
	if p.comments != 1 {
		t.Fatalf("expected one comment dispatch, got %d", p.comments)
	}
}

// TestDispatchDropsUnhandled tests that off-list events never reach the
// processor.
func TestDispatchDropsUnhandled(t *testing.T) {
	p := &recordingProcessor{}
	r := New(p, nil)

	r.Dispatch(context.Background(), event.WebhookEvent{
		Platform:  event.PlatformGitHub,
		EventName: "pull_request",
		Payload:   map[string]interface{}{"action": "labeled"},
	})
	r.Dispatch(context.Background(), event.WebhookEvent{
		Platform:  event.PlatformGitLab,
		EventName: "Note Hook",
		Payload: map[string]interface{}{
			"object_attributes": map[string]interface{}{"action": "update"},
		},
	})

	if p.pullRequests != 0 || p.comments != 0 {
		t.Fatalf("expected no dispatches, got pr=%d comments=%d", p.pullRequests, p.comments)
	}
}

// TestDispatchSurvivesPanic tests that a panicking processor does not
// escape the dispatch boundary.
func TestDispatchSurvivesPanic(t *testing.T) {
	r := New(panickingProcessor{}, nil)
	r.Dispatch(context.Background(), event.WebhookEvent{
		Platform:  event.PlatformBitbucket,
		EventName: "pullrequest:created",
		Payload:   map[string]interface{}{},
	})
}

type panickingProcessor struct{}

func (panickingProcessor) ProcessPullRequest(ctx context.Context, evt event.WebhookEvent) error {
	panic("mapper exploded")
}

func (panickingProcessor) ProcessComment(ctx context.Context, evt event.WebhookEvent) error {
	panic("mapper exploded")
}
