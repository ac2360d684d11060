package mapper

import "reviewhook/pkg/event"

// GitHub maps pull_request, issue_comment, and pull_request_review_comment
// webhook payloads.
type GitHub struct{}

func (GitHub) Action(payload map[string]interface{}, eventName string) event.Action {
	action := getString(payload, "action")

	switch eventName {
	case "issue_comment", "pull_request_review_comment":
		return event.ActionComment
	case "pull_request":
	default:
		return ""
	}

	switch action {
	case "opened", "reopened":
		return event.ActionOpened
	case "synchronize", "ready_for_review":
		return event.ActionUpdated
	case "closed":
		if getBool(getMap(payload, "pull_request"), "merged") {
			return event.ActionMerged
		}
		return event.ActionClosed
	default:
		return ""
	}
}

func (GitHub) PullRequest(payload map[string]interface{}) *event.PullRequest {
	pr := getMap(payload, "pull_request")
	if pr == nil {
		// issue_comment payloads only carry the PR number, on the issue.
		issue := getMap(payload, "issue")
		number, ok := getNumber(issue, "number")
		if !ok || number <= 0 {
			return nil
		}
		return &event.PullRequest{
			Number: number,
			Title:  getString(issue, "title"),
			URL:    getString(issue, "html_url"),
		}
	}
	number, ok := getNumber(pr, "number")
	if !ok || number <= 0 {
		return nil
	}

	state := event.StateOpen
	if getString(pr, "state") == "closed" {
		state = event.StateClosed
		if getBool(pr, "merged") {
			state = event.StateMerged
		}
	}

	head := getMap(pr, "head")
	base := getMap(pr, "base")
	user := getMap(pr, "user")

	return &event.PullRequest{
		Number:           number,
		Title:            getString(pr, "title"),
		Body:             getString(pr, "body"),
		State:            state,
		IsDraft:          getBool(pr, "draft"),
		HeadRef:          getString(head, "ref"),
		BaseRef:          getString(base, "ref"),
		HeadRepoFullName: getString(getMap(head, "repo"), "full_name"),
		BaseRepoFullName: getString(getMap(base, "repo"), "full_name"),
		HeadSHA:          getString(head, "sha"),
		Author: event.User{
			ID:          stringID(user, "id"),
			Username:    getString(user, "login"),
			DisplayName: getString(user, "login"),
		},
		URL: getString(pr, "html_url"),
	}
}

func (GitHub) Repository(payload map[string]interface{}) *event.Repository {
	repo := getMap(payload, "repository")
	if repo == nil {
		return nil
	}
	id := stringID(repo, "id")
	if id == "" {
		return nil
	}
	return &event.Repository{
		ID:       id,
		Name:     getString(repo, "name"),
		FullName: getString(repo, "full_name"),
		Language: getString(repo, "language"),
	}
}

func (GitHub) Users(payload map[string]interface{}) Users {
	author := getMap(getMap(payload, "pull_request"), "user")
	sender := getMap(payload, "sender")
	return Users{
		Author: event.User{
			ID:          stringID(author, "id"),
			Username:    getString(author, "login"),
			DisplayName: getString(author, "login"),
		},
		Actor: event.User{
			ID:          stringID(sender, "id"),
			Username:    getString(sender, "login"),
			DisplayName: getString(sender, "login"),
		},
	}
}

func (GitHub) Comment(payload map[string]interface{}) *event.Comment {
	comment := getMap(payload, "comment")
	if comment == nil {
		return nil
	}
	return &event.Comment{
		Body:            getString(comment, "body"),
		AuthorID:        stringID(getMap(comment, "user"), "id"),
		IsDeletedAction: getString(payload, "action") == "deleted",
	}
}
