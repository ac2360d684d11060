package internal

import (
	"encoding/json"

	"reviewhook/pkg/event"
)

// Event is the envelope the dispatch layer evaluates rules against and
// publishes to downstream drivers.
type Event struct {
	Platform   string                 `json:"platform"`
	Name       string                 `json:"name"`
	Data       map[string]interface{} `json:"data,omitempty"`
	RawPayload json.RawMessage        `json:"payload,omitempty"`
	RawObject  interface{}            `json:"-"`
}

// NewTriggerEvent wraps a ReviewTrigger for rule evaluation and publish.
// Data holds the flattened trigger so rules can address fields with
// dotted paths.
func NewTriggerEvent(trigger event.ReviewTrigger) (Event, error) {
	raw, err := json.Marshal(trigger)
	if err != nil {
		return Event{}, err
	}
	var object map[string]interface{}
	if err := json.Unmarshal(raw, &object); err != nil {
		return Event{}, err
	}
	return Event{
		Platform:   string(trigger.Platform),
		Name:       string(trigger.Action),
		Data:       Flatten(object),
		RawPayload: raw,
		RawObject:  object,
	}, nil
}
