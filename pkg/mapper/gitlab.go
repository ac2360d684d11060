package mapper

import "reviewhook/pkg/event"

// GitLab maps Merge Request Hook and Note Hook payloads. GitLab nests the
// interesting fields under object_attributes and numbers MRs with iid.
type GitLab struct{}

func (GitLab) Action(payload map[string]interface{}, eventName string) event.Action {
	attrs := getMap(payload, "object_attributes")

	switch eventName {
	case "Note Hook":
		return event.ActionComment
	case "Merge Request Hook":
	default:
		return ""
	}

	switch getString(attrs, "action") {
	case "open", "reopen":
		return event.ActionOpened
	case "update":
		return event.ActionUpdated
	case "merge":
		return event.ActionMerged
	case "close":
		return event.ActionClosed
	default:
		// Some hooks omit action; fall back to state.
		switch getString(attrs, "state") {
		case "merged":
			return event.ActionMerged
		case "closed":
			return event.ActionClosed
		}
		return ""
	}
}

func (GitLab) PullRequest(payload map[string]interface{}) *event.PullRequest {
	attrs := getMap(payload, "object_attributes")
	if _, ok := attrs["iid"]; !ok {
		// Note Hooks carry the MR under merge_request; object_attributes
		// is the note itself there.
		attrs = getMap(payload, "merge_request")
	}
	if attrs == nil {
		return nil
	}
	number, ok := getNumber(attrs, "iid")
	if !ok || number <= 0 {
		return nil
	}

	state := event.StateOpen
	switch getString(attrs, "state") {
	case "closed":
		state = event.StateClosed
	case "merged":
		state = event.StateMerged
	}

	user := getMap(payload, "user")
	return &event.PullRequest{
		Number:           number,
		Title:            getString(attrs, "title"),
		Body:             getString(attrs, "description"),
		State:            state,
		IsDraft:          getBool(attrs, "draft") || getBool(attrs, "work_in_progress"),
		HeadRef:          getString(attrs, "source_branch"),
		BaseRef:          getString(attrs, "target_branch"),
		HeadRepoFullName: getString(getMap(attrs, "source"), "path_with_namespace"),
		BaseRepoFullName: getString(getMap(attrs, "target"), "path_with_namespace"),
		HeadSHA:          getString(getMap(attrs, "last_commit"), "id"),
		Author: event.User{
			ID:          stringID(user, "id"),
			Username:    getString(user, "username"),
			DisplayName: getString(user, "name"),
		},
		URL: getString(attrs, "url"),
	}
}

func (GitLab) Repository(payload map[string]interface{}) *event.Repository {
	project := getMap(payload, "project")
	if project == nil {
		return nil
	}
	id := stringID(project, "id")
	if id == "" {
		return nil
	}
	return &event.Repository{
		ID:       id,
		Name:     getString(project, "name"),
		FullName: getString(project, "path_with_namespace"),
	}
}

func (GitLab) Users(payload map[string]interface{}) Users {
	user := getMap(payload, "user")
	actor := event.User{
		ID:          stringID(user, "id"),
		Username:    getString(user, "username"),
		DisplayName: getString(user, "name"),
	}
	// Merge Request Hooks do not carry a separate author object; the hook
	// user is both author (on open) and actor.
	return Users{Author: actor, Actor: actor}
}

func (GitLab) Comment(payload map[string]interface{}) *event.Comment {
	attrs := getMap(payload, "object_attributes")
	if attrs == nil {
		return nil
	}
	body := getString(attrs, "note")
	if body == "" {
		return nil
	}
	return &event.Comment{
		Body:     body,
		AuthorID: stringID(getMap(payload, "user"), "id"),
		// GitLab does not deliver Note Hooks for deletions; only created
		// notes arrive (the router additionally gates on action=create).
		IsDeletedAction: false,
	}
}

// GitLabNoteAction returns the Note Hook action field. Comment events are
// only processed when this is "create".
func GitLabNoteAction(payload map[string]interface{}) string {
	return getString(getMap(payload, "object_attributes"), "action")
}

// GitLabOldRev returns the oldrev field set when an MR update carries new
// commits. An update whose last_commit.id differs from oldrev re-triggers
// review.
func GitLabOldRev(payload map[string]interface{}) string {
	return getString(getMap(payload, "object_attributes"), "oldrev")
}

// GitLabChangedFields reports which MR fields changed in an update hook.
func GitLabChangedFields(payload map[string]interface{}) []string {
	changes := getMap(payload, "changes")
	if changes == nil {
		return nil
	}
	fields := make([]string, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	return fields
}
