package mapper

import "reviewhook/pkg/event"

// AzureRepos maps Azure DevOps service-hook payloads. Everything of
// interest lives under resource; branch refs arrive fully qualified as
// refs/heads/<name>.
type AzureRepos struct{}

const azureCommentEvent = "ms.vss-code.git-pullrequest-comment-event"

func (AzureRepos) Action(payload map[string]interface{}, eventName string) event.Action {
	switch eventName {
	case azureCommentEvent:
		return event.ActionComment
	case "git.pullrequest.created":
		return event.ActionOpened
	case "git.pullrequest.merge.attempted":
		return event.ActionUpdated
	case "git.pullrequest.updated":
	default:
		return ""
	}

	switch getString(azureResourcePR(payload), "status") {
	case "completed":
		return event.ActionMerged
	case "abandoned":
		return event.ActionClosed
	default:
		return event.ActionUpdated
	}
}

func (AzureRepos) PullRequest(payload map[string]interface{}) *event.PullRequest {
	pr := azureResourcePR(payload)
	if pr == nil {
		return nil
	}
	number, ok := getNumber(pr, "pullRequestId")
	if !ok || number <= 0 {
		return nil
	}

	state := event.StateOpen
	switch getString(pr, "status") {
	case "completed":
		state = event.StateMerged
	case "abandoned":
		state = event.StateClosed
	}

	createdBy := getMap(pr, "createdBy")
	repoFullName := azureRepoFullName(getMap(pr, "repository"))

	return &event.PullRequest{
		Number:           number,
		Title:            getString(pr, "title"),
		Body:             getString(pr, "description"),
		State:            state,
		IsDraft:          getBool(pr, "isDraft"),
		HeadRef:          TrimRefPrefix(getString(pr, "sourceRefName")),
		BaseRef:          TrimRefPrefix(getString(pr, "targetRefName")),
		HeadRepoFullName: repoFullName,
		BaseRepoFullName: repoFullName,
		HeadSHA:          getString(getMap(pr, "lastMergeSourceCommit"), "commitId"),
		Author: event.User{
			ID:          getString(createdBy, "id"),
			Username:    getString(createdBy, "uniqueName"),
			DisplayName: getString(createdBy, "displayName"),
		},
		URL: getString(pr, "url"),
	}
}

func (AzureRepos) Repository(payload map[string]interface{}) *event.Repository {
	repo := getMap(azureResourcePR(payload), "repository")
	if repo == nil {
		repo = getMap(getMap(payload, "resource"), "repository")
	}
	if repo == nil {
		return nil
	}
	id := getString(repo, "id")
	if id == "" {
		return nil
	}
	return &event.Repository{
		ID:       id,
		Name:     getString(repo, "name"),
		FullName: azureRepoFullName(repo),
	}
}

func (AzureRepos) Users(payload map[string]interface{}) Users {
	createdBy := getMap(azureResourcePR(payload), "createdBy")
	author := event.User{
		ID:          getString(createdBy, "id"),
		Username:    getString(createdBy, "uniqueName"),
		DisplayName: getString(createdBy, "displayName"),
	}
	return Users{Author: author, Actor: author}
}

func (AzureRepos) Comment(payload map[string]interface{}) *event.Comment {
	comment := getMap(getMap(payload, "resource"), "comment")
	if comment == nil {
		return nil
	}
	body := getString(comment, "content")
	return &event.Comment{
		Body:            body,
		AuthorID:        getString(getMap(comment, "author"), "id"),
		IsDeletedAction: getBool(comment, "isDeleted") || body == "",
	}
}

// azureResourcePR returns the pull request object: resource itself for PR
// events, resource.pullRequest for comment events.
func azureResourcePR(payload map[string]interface{}) map[string]interface{} {
	resource := getMap(payload, "resource")
	if resource == nil {
		return nil
	}
	if pr := getMap(resource, "pullRequest"); pr != nil {
		return pr
	}
	if _, ok := resource["pullRequestId"]; ok {
		return resource
	}
	return nil
}

func azureRepoFullName(repo map[string]interface{}) string {
	if repo == nil {
		return ""
	}
	project := getString(getMap(repo, "project"), "name")
	name := getString(repo, "name")
	if project == "" {
		return name
	}
	return project + "/" + name
}
