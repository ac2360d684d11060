package webhook

import (
	"bytes"
	"io"
	"log"
	"net/http"

	"reviewhook/internal"
	"reviewhook/pkg/event"
	"reviewhook/pkg/mapper"

	"github.com/go-playground/webhooks/v6/bitbucket"
)

// BitbucketHandler verifies and admits Bitbucket Cloud webhook deliveries.
type BitbucketHandler struct {
	hook       *bitbucket.Webhook
	dispatcher Dispatcher
	logger     *log.Logger
	maxBody    int64
}

var bitbucketEvents = []bitbucket.Event{
	bitbucket.RepoPushEvent,
	bitbucket.PullRequestCreatedEvent,
	bitbucket.PullRequestUpdatedEvent,
	bitbucket.PullRequestApprovedEvent,
	bitbucket.PullRequestUnapprovedEvent,
	bitbucket.PullRequestMergedEvent,
	bitbucket.PullRequestDeclinedEvent,
	bitbucket.PullRequestCommentCreatedEvent,
	bitbucket.PullRequestCommentUpdatedEvent,
	bitbucket.PullRequestCommentDeletedEvent,
}

// NewBitbucketHandler creates a new BitbucketHandler.
func NewBitbucketHandler(secret string, dispatcher Dispatcher, logger *log.Logger, maxBody int64) (*BitbucketHandler, error) {
	options := make([]bitbucket.Option, 0, 1)
	if secret != "" {
		options = append(options, bitbucket.Options.UUID(secret))
	}
	hook, err := bitbucket.New(options...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewLogger("webhook/bitbucket")
	}
	return &BitbucketHandler{hook: hook, dispatcher: dispatcher, logger: logger, maxBody: maxBody}, nil
}

// ServeHTTP handles an incoming HTTP request.
func (h *BitbucketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))
	internal.IncRequest("bitbucket")

	if _, err := h.hook.Parse(r, bitbucketEvents...); err != nil {
		h.logger.Printf("bitbucket parse failed: %v", err)
		internal.IncParseError("bitbucket")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	decoded, ok := decodePayload(rawBody)
	if !ok {
		internal.IncParseError("bitbucket")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	// Bitbucket wraps UUIDs in braces; strip them before anything keys on
	// repository or actor identifiers.
	mapper.SanitizeUUIDs(decoded)

	eventName := r.Header.Get("X-Event-Key")
	h.dispatcher.Dispatch(r.Context(), newWebhookEvent(event.PlatformBitbucket, eventName, decoded, rawBody))
	w.WriteHeader(http.StatusOK)
}
