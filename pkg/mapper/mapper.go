// Package mapper normalizes raw webhook payloads from each platform into
// the unified event model. All mapping methods return nil instead of
// failing when required fields are missing; callers treat nil as "cannot
// process this event".
package mapper

import (
	"strconv"
	"strings"

	"reviewhook/pkg/event"
)

// Users holds the two user references a payload can carry.
type Users struct {
	Author event.User
	Actor  event.User
}

// Mapper translates one platform's payload shapes. No component outside
// this package inspects raw payload layout.
type Mapper interface {
	// Action classifies the webhook into the unified action model, or ""
	// when the event is not one we understand.
	Action(payload map[string]interface{}, eventName string) event.Action
	// PullRequest extracts the normalized pull request, or nil when the
	// payload is missing its PR number.
	PullRequest(payload map[string]interface{}) *event.PullRequest
	// Repository extracts the normalized repository, or nil when the
	// platform-native id is absent.
	Repository(payload map[string]interface{}) *event.Repository
	// Users extracts the PR author and the acting user.
	Users(payload map[string]interface{}) Users
	// Comment extracts the comment for comment events, or nil.
	Comment(payload map[string]interface{}) *event.Comment
}

var registry = map[event.Platform]Mapper{
	event.PlatformGitHub:     GitHub{},
	event.PlatformGitLab:     GitLab{},
	event.PlatformBitbucket:  Bitbucket{},
	event.PlatformAzureRepos: AzureRepos{},
}

// For returns the mapper for a platform, or nil for unknown platforms.
func For(platform event.Platform) Mapper {
	return registry[platform]
}

// TrimRefPrefix strips a leading refs/heads/ from a branch ref. Azure and
// git-native payloads carry fully qualified refs; branch comparison works
// on short names.
func TrimRefPrefix(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

// payload field helpers. Webhook payloads decode to map[string]interface{}
// with float64 numbers, so every accessor tolerates missing keys and
// JSON's number type.

func getMap(m map[string]interface{}, keys ...string) map[string]interface{} {
	current := m
	for _, key := range keys {
		if current == nil {
			return nil
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

func getString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

// getNumber returns (0, false) unless the key holds a JSON number or a
// numeric string.
func getNumber(m map[string]interface{}, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// stringID renders a platform-native identifier, which may arrive as a
// number or a string, as a stable string.
func stringID(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
