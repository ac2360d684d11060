package webhook

import (
	"bytes"
	"io"
	"log"
	"net/http"

	"reviewhook/internal"
	"reviewhook/pkg/event"

	"github.com/go-playground/webhooks/v6/gitlab"
)

// GitLabHandler verifies and admits GitLab webhook deliveries.
type GitLabHandler struct {
	hook       *gitlab.Webhook
	dispatcher Dispatcher
	logger     *log.Logger
	maxBody    int64
}

var gitlabEvents = []gitlab.Event{
	gitlab.PushEvents,
	gitlab.CommentEvents,
	gitlab.ConfidentialCommentEvents,
	gitlab.MergeRequestEvents,
	gitlab.SystemHookEvents,
}

// NewGitLabHandler creates a new GitLabHandler.
func NewGitLabHandler(secret string, dispatcher Dispatcher, logger *log.Logger, maxBody int64) (*GitLabHandler, error) {
	options := make([]gitlab.Option, 0, 1)
	if secret != "" {
		options = append(options, gitlab.Options.Secret(secret))
	}
	hook, err := gitlab.New(options...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewLogger("webhook/gitlab")
	}
	return &GitLabHandler{hook: hook, dispatcher: dispatcher, logger: logger, maxBody: maxBody}, nil
}

// ServeHTTP handles an incoming HTTP request.
func (h *GitLabHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))
	internal.IncRequest("gitlab")

	if _, err := h.hook.Parse(r, gitlabEvents...); err != nil {
		h.logger.Printf("gitlab parse failed: %v", err)
		internal.IncParseError("gitlab")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	decoded, ok := decodePayload(rawBody)
	if !ok {
		internal.IncParseError("gitlab")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	eventName := r.Header.Get("X-Gitlab-Event")
	h.dispatcher.Dispatch(r.Context(), newWebhookEvent(event.PlatformGitLab, eventName, decoded, rawBody))
	w.WriteHeader(http.StatusOK)
}
