package event

import (
	"encoding/json"
	"time"
)

// Platform identifies the source-control platform a webhook came from.
type Platform string

const (
	PlatformGitHub     Platform = "github"
	PlatformGitLab     Platform = "gitlab"
	PlatformBitbucket  Platform = "bitbucket"
	PlatformAzureRepos Platform = "azure_repos"
)

// Action is the unified classification of a pull-request webhook event.
type Action string

const (
	ActionOpened  Action = "opened"
	ActionUpdated Action = "updated"
	ActionClosed  Action = "closed"
	ActionMerged  Action = "merged"
	ActionCommand Action = "command"
	ActionComment Action = "comment"
)

// Origin records what caused a ReviewTrigger to be emitted.
type Origin string

const (
	OriginWebhook Origin = "webhook"
	OriginCommand Origin = "command"
)

// PullRequestState is the normalized lifecycle state of a pull request.
type PullRequestState string

const (
	StateOpen   PullRequestState = "open"
	StateClosed PullRequestState = "closed"
	StateMerged PullRequestState = "merged"
)

// WebhookEvent is a single raw inbound delivery. It is built once per HTTP
// request and never mutated afterwards.
type WebhookEvent struct {
	Platform   Platform               `json:"platform"`
	EventName  string                 `json:"event_name"`
	Payload    map[string]interface{} `json:"payload"`
	RawPayload json.RawMessage        `json:"raw_payload,omitempty"`
	ReceivedAt time.Time              `json:"received_at"`
}

// User is a platform user reference.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// PullRequest is the mapper output for a pull request. Number is required;
// a payload that cannot produce a number does not map at all.
type PullRequest struct {
	Number           int              `json:"number"`
	Title            string           `json:"title"`
	Body             string           `json:"body"`
	State            PullRequestState `json:"state"`
	IsDraft          bool             `json:"is_draft"`
	HeadRef          string           `json:"head_ref"`
	BaseRef          string           `json:"base_ref"`
	HeadRepoFullName string           `json:"head_repo_full_name"`
	BaseRepoFullName string           `json:"base_repo_full_name"`
	Author           User             `json:"author"`
	URL              string           `json:"url"`
	// HeadSHA is the latest commit on the source branch when the platform
	// includes it in the webhook.
	HeadSHA string `json:"head_sha,omitempty"`
}

// Repository is the mapper output for the repository a PR belongs to.
// ID is the platform-native identifier and is required.
type Repository struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	// Language is only present on GitHub webhooks. Other platforms need a
	// follow-up API call to fill it.
	Language string `json:"language,omitempty"`
}

// Comment is the mapper output for a PR comment event.
type Comment struct {
	Body     string `json:"body"`
	AuthorID string `json:"author_id"`
	// IsDeletedAction is true when the webhook action indicates the comment
	// was deleted. Such comments are always ignored.
	IsDeletedAction bool `json:"is_deleted_action"`
}

// OrgTeam is the onboarding context resolved for a repository.
type OrgTeam struct {
	OrganizationID string `json:"organization_id"`
	TeamID         string `json:"team_id,omitempty"`
}

// ReviewTrigger is the normalized output handed to the automation
// collaborator. The processor constructs it and does not own its lifecycle
// beyond that.
type ReviewTrigger struct {
	OrgTeam     OrgTeam     `json:"org_team"`
	Platform    Platform    `json:"platform"`
	Repository  Repository  `json:"repository"`
	PullRequest PullRequest `json:"pull_request"`
	Action      Action      `json:"action"`
	Origin      Origin      `json:"origin"`
}
