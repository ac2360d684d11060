package webhook

import (
	"crypto/subtle"
	"io"
	"log"
	"net/http"

	"reviewhook/internal"
	"reviewhook/pkg/event"
)

// AzureHandler admits Azure DevOps service hook deliveries. Azure has no
// payload signature scheme; when a secret is configured the endpoint
// requires it as the basic auth password.
type AzureHandler struct {
	secret     string
	dispatcher Dispatcher
	logger     *log.Logger
	maxBody    int64
}

// NewAzureHandler creates a new AzureHandler.
func NewAzureHandler(secret string, dispatcher Dispatcher, logger *log.Logger, maxBody int64) *AzureHandler {
	if logger == nil {
		logger = internal.NewLogger("webhook/azure")
	}
	return &AzureHandler{secret: secret, dispatcher: dispatcher, logger: logger, maxBody: maxBody}
}

// ServeHTTP handles an incoming HTTP request.
func (h *AzureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		_, password, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(password), []byte(h.secret)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	internal.IncRequest("azure_repos")

	decoded, ok := decodePayload(rawBody)
	if !ok {
		internal.IncParseError("azure_repos")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	eventName, _ := decoded["eventType"].(string)
	if eventName == "" {
		internal.IncParseError("azure_repos")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.dispatcher.Dispatch(r.Context(), newWebhookEvent(event.PlatformAzureRepos, eventName, decoded, rawBody))
	w.WriteHeader(http.StatusOK)
}
