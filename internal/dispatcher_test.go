package internal

import (
	"context"
	"testing"

	"reviewhook/pkg/event"
)

// recordingPublisher captures published topics for assertions.
type recordingPublisher struct {
	topics  []string
	drivers [][]string
	events  []Event
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, evt Event) error {
	return r.PublishForDrivers(ctx, topic, evt, nil)
}

func (r *recordingPublisher) PublishForDrivers(ctx context.Context, topic string, evt Event, drivers []string) error {
	r.topics = append(r.topics, topic)
	r.drivers = append(r.drivers, drivers)
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) Close() error {
	return nil
}

func sampleTrigger() event.ReviewTrigger {
	return event.ReviewTrigger{
		OrgTeam:  event.OrgTeam{OrganizationID: "acme", TeamID: "platform"},
		Platform: event.PlatformGitHub,
		Repository: event.Repository{
			ID:       "1001",
			FullName: "acme/widgets",
		},
		PullRequest: event.PullRequest{
			Number:  42,
			Title:   "Add retry to uploader",
			BaseRef: "main",
			HeadRef: "feature/retry",
		},
		Action: event.ActionOpened,
		Origin: event.OriginWebhook,
	}
}

// TestDispatcherMatchingRule tests that a matching rule routes the trigger to its topic.
func TestDispatcherMatchingRule(t *testing.T) {
	pub := &recordingPublisher{}
	cfg := Config{
		Rules: []Rule{
			{When: `action == "opened"`, Emit: EmitList{"review.opened"}, Drivers: []string{"gochannel"}},
		},
	}
	cfg.Review.DefaultTopic = "review.trigger"

	dispatcher, err := NewTriggerDispatcher(cfg, pub, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	if err := dispatcher.TriggerReviewAutomation(context.Background(), sampleTrigger()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(pub.topics) != 1 || pub.topics[0] != "review.opened" {
		t.Fatalf("expected publish to review.opened, got %v", pub.topics)
	}
	if len(pub.drivers[0]) != 1 || pub.drivers[0][0] != "gochannel" {
		t.Fatalf("expected gochannel driver selection, got %v", pub.drivers[0])
	}
	if pub.events[0].Platform != "github" {
		t.Fatalf("expected github platform on event, got %q", pub.events[0].Platform)
	}
}

// TestDispatcherDefaultTopic tests that an unmatched trigger falls back to the default topic.
func TestDispatcherDefaultTopic(t *testing.T) {
	pub := &recordingPublisher{}
	cfg := Config{
		Rules: []Rule{
			{When: `action == "closed"`, Emit: EmitList{"review.closed"}},
		},
	}
	cfg.Review.DefaultTopic = "review.trigger"

	dispatcher, err := NewTriggerDispatcher(cfg, pub, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	if err := dispatcher.TriggerReviewAutomation(context.Background(), sampleTrigger()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(pub.topics) != 1 || pub.topics[0] != "review.trigger" {
		t.Fatalf("expected fallback to review.trigger, got %v", pub.topics)
	}
}

// TestDispatcherFanout tests that a trigger matching multiple rules is published to every topic.
func TestDispatcherFanout(t *testing.T) {
	pub := &recordingPublisher{}
	cfg := Config{
		Rules: []Rule{
			{When: `platform == "github"`, Emit: EmitList{"review.github"}},
			{When: `pull_request.base_ref == "main"`, Emit: EmitList{"review.mainline", "audit.mainline"}},
		},
	}

	dispatcher, err := NewTriggerDispatcher(cfg, pub, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	if err := dispatcher.TriggerReviewAutomation(context.Background(), sampleTrigger()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(pub.topics) != 3 {
		t.Fatalf("expected three publishes, got %v", pub.topics)
	}
}
