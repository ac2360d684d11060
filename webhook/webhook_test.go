package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reviewhook/pkg/event"
)

// captureDispatcher records dispatched events for assertions.
type captureDispatcher struct {
	events []event.WebhookEvent
}

func (c *captureDispatcher) Dispatch(ctx context.Context, evt event.WebhookEvent) {
	c.events = append(c.events, evt)
}

// TestGitHubHandlerDispatches tests that a pull_request delivery reaches the dispatcher.
func TestGitHubHandlerDispatches(t *testing.T) {
	capture := &captureDispatcher{}
	handler, err := NewGitHubHandler("", capture, nil, 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"action":"opened","number":7,"pull_request":{"number":7},"repository":{"id":1}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(capture.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(capture.events))
	}
	evt := capture.events[0]
	if evt.Platform != event.PlatformGitHub || evt.EventName != "pull_request" {
		t.Fatalf("unexpected event: platform=%s name=%s", evt.Platform, evt.EventName)
	}
	if evt.Payload["action"] != "opened" {
		t.Fatalf("expected decoded payload, got %v", evt.Payload["action"])
	}
	if len(evt.RawPayload) == 0 {
		t.Fatalf("expected raw payload to be retained")
	}
}

// TestGitHubHandlerPing tests that ping deliveries return 200 without dispatching.
func TestGitHubHandlerPing(t *testing.T) {
	capture := &captureDispatcher{}
	handler, err := NewGitHubHandler("", capture, nil, 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"zen":"Design for failure.","hook_id":1}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "ping")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(capture.events) != 0 {
		t.Fatalf("expected no dispatch for ping, got %d", len(capture.events))
	}
}

// TestGitLabHandlerSecret tests that a wrong token is rejected before dispatch.
func TestGitLabHandlerSecret(t *testing.T) {
	capture := &captureDispatcher{}
	handler, err := NewGitLabHandler("expected-token", capture, nil, 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"object_kind":"merge_request","object_attributes":{"iid":3,"action":"open"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gitlab-Event", "Merge Request Hook")
	req.Header.Set("X-Gitlab-Token", "wrong-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad token, got %d", rec.Code)
	}
	if len(capture.events) != 0 {
		t.Fatalf("expected no dispatch, got %d", len(capture.events))
	}
}

// TestBitbucketHandlerSanitizesUUIDs tests that braces are stripped from payload UUIDs.
func TestBitbucketHandlerSanitizesUUIDs(t *testing.T) {
	capture := &captureDispatcher{}
	handler, err := NewBitbucketHandler("", capture, nil, 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"pullrequest":{"id":9,"state":"OPEN"},"repository":{"uuid":"{8a1b2c3d-1111-2222-3333-444455556666}"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bitbucket", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Key", "pullrequest:created")
	req.Header.Set("X-Hook-UUID", "hook-uuid")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(capture.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(capture.events))
	}
	repo := capture.events[0].Payload["repository"].(map[string]interface{})
	if repo["uuid"] != "8a1b2c3d-1111-2222-3333-444455556666" {
		t.Fatalf("expected sanitized uuid, got %v", repo["uuid"])
	}
}

// TestAzureHandlerBasicAuth tests that the configured secret gates the endpoint.
func TestAzureHandlerBasicAuth(t *testing.T) {
	capture := &captureDispatcher{}
	handler := NewAzureHandler("hook-pass", capture, nil, 1<<20)

	body := `{"eventType":"git.pullrequest.created","resource":{"pullRequestId":4}}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/azure", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/azure", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("hooks", "hook-pass")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
	if len(capture.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(capture.events))
	}
	if capture.events[0].EventName != "git.pullrequest.created" {
		t.Fatalf("unexpected event name %q", capture.events[0].EventName)
	}
}

// TestAzureHandlerRejectsMissingEventType tests that a payload without eventType is a 400.
func TestAzureHandlerRejectsMissingEventType(t *testing.T) {
	capture := &captureDispatcher{}
	handler := NewAzureHandler("", capture, nil, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/azure", strings.NewReader(`{"resource":{}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(capture.events) != 0 {
		t.Fatalf("expected no dispatch, got %d", len(capture.events))
	}
}
