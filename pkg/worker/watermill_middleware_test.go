package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

// TestMiddlewareFromWatermill confirms the adapter exposes the event's
// payload and metadata to the watermill middleware and still invokes the
// wrapped handler.
func TestMiddlewareFromWatermill(t *testing.T) {
	var seenPayload string
	var seenPlatform string
	mw := MiddlewareFromWatermill(func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			seenPayload = string(msg.Payload)
			seenPlatform = msg.Metadata.Get("platform")
			return h(msg)
		}
	})

	called := false
	handler := mw(func(ctx context.Context, evt *Event) error {
		called = true
		return nil
	})

	evt := &Event{
		Topic:    "review.trigger",
		Payload:  []byte(`{"platform":"github"}`),
		Metadata: map[string]string{"platform": "github"},
	}
	if err := handler(context.Background(), evt); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if !called {
		t.Fatal("wrapped handler was not invoked")
	}
	if seenPayload != `{"platform":"github"}` {
		t.Fatalf("middleware saw payload %q", seenPayload)
	}
	if seenPlatform != "github" {
		t.Fatalf("middleware saw platform %q", seenPlatform)
	}
}

// TestMiddlewareFromWatermillPropagatesError checks handler errors survive
// the message round trip.
func TestMiddlewareFromWatermillPropagatesError(t *testing.T) {
	mw := MiddlewareFromWatermill(func(h message.HandlerFunc) message.HandlerFunc {
		return h
	})
	want := errors.New("boom")
	handler := mw(func(ctx context.Context, evt *Event) error {
		return want
	})
	err := handler(context.Background(), &Event{Payload: []byte(`{}`)})
	if !errors.Is(err, want) {
		t.Fatalf("expected the handler error, got %v", err)
	}
}
