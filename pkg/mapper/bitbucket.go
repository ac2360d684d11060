package mapper

import (
	"regexp"
	"strings"

	"reviewhook/pkg/event"
)

// Bitbucket maps pullrequest:* webhook payloads. Bitbucket wraps UUID
// identifiers in curly braces; SanitizeUUIDs strips them once per payload
// before any mapping runs.
type Bitbucket struct{}

var uuidBraces = regexp.MustCompile(`^\{[0-9a-fA-F-]{36}\}$`)

// SanitizeUUIDs walks the payload and strips curly braces from UUID-shaped
// string values, in place. Applied once per payload prior to mapping.
func SanitizeUUIDs(payload map[string]interface{}) {
	for key, value := range payload {
		switch typed := value.(type) {
		case string:
			if uuidBraces.MatchString(typed) {
				payload[key] = strings.Trim(typed, "{}")
			}
		case map[string]interface{}:
			SanitizeUUIDs(typed)
		case []interface{}:
			for _, item := range typed {
				if child, ok := item.(map[string]interface{}); ok {
					SanitizeUUIDs(child)
				}
			}
		}
	}
}

func (Bitbucket) Action(payload map[string]interface{}, eventName string) event.Action {
	switch eventName {
	case "pullrequest:created":
		return event.ActionOpened
	case "pullrequest:updated":
		return event.ActionUpdated
	case "pullrequest:fulfilled":
		return event.ActionMerged
	case "pullrequest:rejected":
		return event.ActionClosed
	case "pullrequest:comment_created":
		return event.ActionComment
	default:
		return ""
	}
}

func (Bitbucket) PullRequest(payload map[string]interface{}) *event.PullRequest {
	pr := getMap(payload, "pullrequest")
	if pr == nil {
		return nil
	}
	number, ok := getNumber(pr, "id")
	if !ok || number <= 0 {
		return nil
	}

	state := event.StateOpen
	switch getString(pr, "state") {
	case "MERGED":
		state = event.StateMerged
	case "DECLINED", "SUPERSEDED":
		state = event.StateClosed
	}

	source := getMap(pr, "source")
	destination := getMap(pr, "destination")
	author := getMap(pr, "author")

	return &event.PullRequest{
		Number:           number,
		Title:            getString(pr, "title"),
		Body:             getString(pr, "description"),
		State:            state,
		IsDraft:          getBool(pr, "draft"),
		HeadRef:          getString(getMap(source, "branch"), "name"),
		BaseRef:          getString(getMap(destination, "branch"), "name"),
		HeadRepoFullName: getString(getMap(source, "repository"), "full_name"),
		BaseRepoFullName: getString(getMap(destination, "repository"), "full_name"),
		HeadSHA:          getString(getMap(source, "commit"), "hash"),
		Author: event.User{
			ID:          getString(author, "uuid"),
			Username:    getString(author, "nickname"),
			DisplayName: getString(author, "display_name"),
		},
		URL: getString(getMap(getMap(pr, "links"), "html"), "href"),
	}
}

func (Bitbucket) Repository(payload map[string]interface{}) *event.Repository {
	repo := getMap(payload, "repository")
	if repo == nil {
		return nil
	}
	id := getString(repo, "uuid")
	if id == "" {
		return nil
	}
	return &event.Repository{
		ID:       id,
		Name:     getString(repo, "name"),
		FullName: getString(repo, "full_name"),
	}
}

func (Bitbucket) Users(payload map[string]interface{}) Users {
	author := getMap(getMap(payload, "pullrequest"), "author")
	actor := getMap(payload, "actor")
	return Users{
		Author: event.User{
			ID:          getString(author, "uuid"),
			Username:    getString(author, "nickname"),
			DisplayName: getString(author, "display_name"),
		},
		Actor: event.User{
			ID:          getString(actor, "uuid"),
			Username:    getString(actor, "nickname"),
			DisplayName: getString(actor, "display_name"),
		},
	}
}

func (Bitbucket) Comment(payload map[string]interface{}) *event.Comment {
	comment := getMap(payload, "comment")
	if comment == nil {
		return nil
	}
	return &event.Comment{
		Body:     getString(getMap(comment, "content"), "raw"),
		AuthorID: getString(getMap(comment, "user"), "uuid"),
		// Bitbucket sends comment deletions as a distinct event key that
		// the router never admits, so a mapped comment is never deleted.
		IsDeletedAction: false,
	}
}
