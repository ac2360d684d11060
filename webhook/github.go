package webhook

import (
	"bytes"
	"io"
	"log"
	"net/http"

	"reviewhook/internal"
	"reviewhook/pkg/event"

	"github.com/go-playground/webhooks/v6/github"
)

// GitHubHandler verifies and admits GitHub webhook deliveries.
type GitHubHandler struct {
	hook       *github.Webhook
	dispatcher Dispatcher
	logger     *log.Logger
	maxBody    int64
}

var githubEvents = []github.Event{
	github.InstallationEvent,
	github.InstallationRepositoriesEvent,
	github.IssueCommentEvent,
	github.PingEvent,
	github.PullRequestEvent,
	github.PullRequestReviewEvent,
	github.PullRequestReviewCommentEvent,
	github.PushEvent,
	github.RepositoryEvent,
}

// NewGitHubHandler creates a new GitHubHandler.
func NewGitHubHandler(secret string, dispatcher Dispatcher, logger *log.Logger, maxBody int64) (*GitHubHandler, error) {
	options := make([]github.Option, 0, 1)
	if secret != "" {
		options = append(options, github.Options.Secret(secret))
	}
	hook, err := github.New(options...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewLogger("webhook/github")
	}
	return &GitHubHandler{hook: hook, dispatcher: dispatcher, logger: logger, maxBody: maxBody}, nil
}

// ServeHTTP handles an incoming HTTP request.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))
	internal.IncRequest("github")

	payload, err := h.hook.Parse(r, githubEvents...)
	if err != nil {
		h.logger.Printf("github parse failed: %v", err)
		internal.IncParseError("github")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if _, ok := payload.(github.PingPayload); ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	decoded, ok := decodePayload(rawBody)
	if !ok {
		internal.IncParseError("github")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	eventName := r.Header.Get("X-GitHub-Event")
	h.dispatcher.Dispatch(r.Context(), newWebhookEvent(event.PlatformGitHub, eventName, decoded, rawBody))
	w.WriteHeader(http.StatusOK)
}
