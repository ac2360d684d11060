package internal

import (
	"context"
	"encoding/json"
	"log"

	"reviewhook/pkg/event"
	"reviewhook/pkg/scm"
)

// RuleSyncPublisher forwards the changed files of a merged pull request to
// the rule-ingestion topic.
type RuleSyncPublisher struct {
	publisher Publisher
	topic     string
	logger    *log.Logger
}

// NewRuleSyncPublisher creates a RuleSyncPublisher. An empty topic falls
// back to "review.rules_sync".
func NewRuleSyncPublisher(publisher Publisher, topic string, logger *log.Logger) *RuleSyncPublisher {
	if topic == "" {
		topic = "review.rules_sync"
	}
	if logger == nil {
		logger = NewLogger("rulesync")
	}
	return &RuleSyncPublisher{publisher: publisher, topic: topic, logger: logger}
}

// SyncRulesFromChangedFiles publishes one sync message per merged pull
// request.
func (s *RuleSyncPublisher) SyncRulesFromChangedFiles(ctx context.Context, team event.OrgTeam, repo event.Repository, number int, files []scm.PullRequestFile) error {
	payload := map[string]interface{}{
		"org_team":            team,
		"repository":          repo,
		"pull_request_number": number,
		"files":               files,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var object map[string]interface{}
	if err := json.Unmarshal(raw, &object); err != nil {
		return err
	}

	evt := Event{
		Name:       "rules.sync",
		Data:       Flatten(object),
		RawPayload: raw,
		RawObject:  object,
	}
	s.logger.Printf("rules sync repo=%s pr=%d files=%d", repo.FullName, number, len(files))
	return s.publisher.Publish(ctx, s.topic, evt)
}
