package worker

import (
	"encoding/json"

	"reviewhook/pkg/event"
)

// Event represents a message received by the worker.
type Event struct {
	// Platform is the source-control platform the trigger came from.
	Platform string `json:"platform"`
	// Type is the trigger action (e.g., "opened", "command").
	Type string `json:"type"`
	// Topic is the name of the topic the message was received on.
	Topic string `json:"topic"`
	// Metadata contains message-broker-specific metadata.
	Metadata map[string]string `json:"metadata"`
	// Payload is the raw JSON payload of the message.
	Payload json.RawMessage `json:"payload"`
	// Normalized is the decoded JSON payload of the message.
	Normalized map[string]interface{} `json:"normalized"`
	// Client is an API client for the platform, if available.
	Client interface{} `json:"-"`
}

// ReviewTrigger decodes the payload into a review trigger. The second
// return is false when the payload is not a trigger envelope.
func (e *Event) ReviewTrigger() (event.ReviewTrigger, bool) {
	var trigger event.ReviewTrigger
	if len(e.Payload) == 0 {
		return trigger, false
	}
	if err := json.Unmarshal(e.Payload, &trigger); err != nil {
		return trigger, false
	}
	if trigger.PullRequest.Number == 0 {
		return trigger, false
	}
	return trigger, true
}
