// Package webhook exposes the HTTP endpoints that receive platform
// deliveries, verify them, and hand them to the router.
package webhook

import (
	"context"
	"encoding/json"
	"time"

	"reviewhook/pkg/event"
)

// Dispatcher admits one parsed delivery. Satisfied by router.Router.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt event.WebhookEvent)
}

func decodePayload(raw []byte) (map[string]interface{}, bool) {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func newWebhookEvent(platform event.Platform, name string, payload map[string]interface{}, raw []byte) event.WebhookEvent {
	return event.WebhookEvent{
		Platform:   platform,
		EventName:  name,
		Payload:    payload,
		RawPayload: append(json.RawMessage(nil), raw...),
		ReceivedAt: time.Now().UTC(),
	}
}
