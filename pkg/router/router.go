// Package router decides which inbound webhook deliveries are handled and
// hands them to the pull-request or comment processing path.
package router

import (
	"context"
	"log"

	"reviewhook/pkg/event"
)

// Processor consumes admitted webhook events. Implementations catch their
// own failures; errors returned here are logged, never propagated to the
// HTTP layer.
type Processor interface {
	ProcessPullRequest(ctx context.Context, evt event.WebhookEvent) error
	ProcessComment(ctx context.Context, evt event.WebhookEvent) error
}

// githubPRActions are the only pull_request actions we process.
var githubPRActions = map[string]struct{}{
	"opened":           {},
	"synchronize":      {},
	"closed":           {},
	"reopened":         {},
	"ready_for_review": {},
}

var bitbucketEvents = map[string]struct{}{
	"pullrequest:created":         {},
	"pullrequest:updated":         {},
	"pullrequest:fulfilled":       {},
	"pullrequest:rejected":        {},
	"pullrequest:comment_created": {},
}

var azureEvents = map[string]struct{}{
	"git.pullrequest.created":                   {},
	"git.pullrequest.updated":                   {},
	"git.pullrequest.merge.attempted":           {},
	"ms.vss-code.git-pullrequest-comment-event": {},
}

// Router screens deliveries against per-platform allow-lists and splits
// comment events from pull-request events.
type Router struct {
	processor Processor
	logger    *log.Logger
}

// New creates a Router.
func New(processor Processor, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{processor: processor, logger: logger}
}

// CanHandle reports whether a (platform, event, action-or-state) triple is
// on the platform's allow-list.
func CanHandle(platform event.Platform, eventName, actionOrState string) bool {
	switch platform {
	case event.PlatformGitHub:
		switch eventName {
		case "pull_request":
			_, ok := githubPRActions[actionOrState]
			return ok
		case "issue_comment", "pull_request_review_comment":
			return true
		}
		return false
	case event.PlatformGitLab:
		switch eventName {
		case "Merge Request Hook":
			return true
		case "Note Hook":
			// Only note creation is processed; edits and system notes
			// carry other actions.
			return actionOrState == "create"
		}
		return false
	case event.PlatformBitbucket:
		_, ok := bitbucketEvents[eventName]
		return ok
	case event.PlatformAzureRepos:
		_, ok := azureEvents[eventName]
		return ok
	default:
		return false
	}
}

// IsCommentEvent reports whether the event name is a comment event for the
// platform.
func IsCommentEvent(platform event.Platform, eventName string) bool {
	switch platform {
	case event.PlatformGitHub:
		return eventName == "issue_comment" || eventName == "pull_request_review_comment"
	case event.PlatformGitLab:
		return eventName == "Note Hook"
	case event.PlatformBitbucket:
		return eventName == "pullrequest:comment_created"
	case event.PlatformAzureRepos:
		return eventName == "ms.vss-code.git-pullrequest-comment-event"
	default:
		return false
	}
}

// Dispatch routes one delivery. Unhandled events are dropped silently;
// processing failures are logged with full context and swallowed so the
// webhook response path always succeeds.
func (r *Router) Dispatch(ctx context.Context, evt event.WebhookEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("panic handling webhook platform=%s event=%s: %v", evt.Platform, evt.EventName, rec)
		}
	}()

	if !CanHandle(evt.Platform, evt.EventName, actionOrState(evt)) {
		return
	}

	var err error
	if IsCommentEvent(evt.Platform, evt.EventName) {
		err = r.processor.ProcessComment(ctx, evt)
	} else {
		err = r.processor.ProcessPullRequest(ctx, evt)
	}
	if err != nil {
		r.logger.Printf("webhook processing failed platform=%s event=%s: %v", evt.Platform, evt.EventName, err)
	}
}

// actionOrState pulls the field the allow-list gates on for the platform.
func actionOrState(evt event.WebhookEvent) string {
	switch evt.Platform {
	case event.PlatformGitHub:
		action, _ := evt.Payload["action"].(string)
		return action
	case event.PlatformGitLab:
		attrs, _ := evt.Payload["object_attributes"].(map[string]interface{})
		if attrs == nil {
			return ""
		}
		action, _ := attrs["action"].(string)
		return action
	default:
		return ""
	}
}
