package calcom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/slotline/booking-platform/pkg/logging"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Cal-Signature-256"

// BookingSink consumes verified webhook events. The appointments reconciler
// implements this; the webhook handler stays ignorant of persistence.
type BookingSink interface {
	ApplyWebhookEvent(ctx context.Context, ev WebhookEvent) error
}

// WebhookHandler verifies and dispatches inbound Cal.com webhook events.
type WebhookHandler struct {
	secret string
	sink   BookingSink
	logger *logging.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret disables
// signature verification; that is only acceptable for local development.
func NewWebhookHandler(secret string, sink BookingSink, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if secret == "" {
		logger.Warn("calcom webhook signature verification disabled: no secret configured")
	}
	return &WebhookHandler{secret: secret, sink: sink, logger: logger}
}

// HandleInbound handles POST webhook deliveries from the scheduling system.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("calcom webhook rejected: bad signature")
		writeJSONError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(event.Payload.UID) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing booking uid")
		return
	}

	if err := h.sink.ApplyWebhookEvent(r.Context(), event); err != nil {
		h.logger.Error("calcom webhook upsert failed",
			"trigger", event.TriggerEvent,
			"booking_uid", event.Payload.UID,
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "failed to apply event")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

// VerifySignature checks the hex HMAC-SHA256 signature over the raw body.
// An empty secret means verification is disabled and every payload passes.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}
