package internal

import (
	"context"
	"log"

	"reviewhook/pkg/event"
)

// TriggerDispatcher evaluates dispatch rules against a review trigger and
// publishes the resulting topics. When no rule matches, the trigger is
// published to the default topic so a misconfigured rule set never drops
// work silently.
type TriggerDispatcher struct {
	engine       *RuleEngine
	publisher    Publisher
	defaultTopic string
	logger       *log.Logger
}

// NewTriggerDispatcher builds a dispatcher from the loaded configuration.
func NewTriggerDispatcher(cfg Config, publisher Publisher, logger *log.Logger) (*TriggerDispatcher, error) {
	if logger == nil {
		logger = NewLogger("dispatcher")
	}
	engine, err := NewRuleEngine(RulesConfig{
		Rules:  cfg.Rules,
		Strict: cfg.RulesStrict,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &TriggerDispatcher{
		engine:       engine,
		publisher:    publisher,
		defaultTopic: cfg.Review.DefaultTopic,
		logger:       logger,
	}, nil
}

// TriggerReviewAutomation publishes a trigger to every topic its matching
// rules emit. Publish failures for one topic do not stop the others.
func (d *TriggerDispatcher) TriggerReviewAutomation(ctx context.Context, trigger event.ReviewTrigger) error {
	evt, err := NewTriggerEvent(trigger)
	if err != nil {
		return err
	}

	matches := d.engine.Evaluate(evt)
	if len(matches) == 0 && d.defaultTopic != "" {
		matches = []Match{{Topic: d.defaultTopic}}
	}

	var lastErr error
	for _, match := range matches {
		if err := d.publisher.PublishForDrivers(ctx, match.Topic, evt, match.Drivers); err != nil {
			d.logger.Printf("publish %s failed: %v", match.Topic, err)
			lastErr = err
			continue
		}
		IncTrigger(evt.Platform)
	}
	return lastErr
}

// Close releases the underlying publisher.
func (d *TriggerDispatcher) Close() error {
	return d.publisher.Close()
}
