package calcom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingSink struct {
	events []WebhookEvent
	err    error
}

func (s *recordingSink) ApplyWebhookEvent(_ context.Context, ev WebhookEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

const webhookBody = `{
	"triggerEvent": "BOOKING_CREATED",
	"payload": {
		"uid": "uid_1",
		"startTime": "2024-01-02T13:00:00Z",
		"endTime": "2024-01-02T13:30:00Z",
		"length": 30,
		"attendees": [{"name": "Jane Doe", "email": "jane@example.com"}]
	}
}`

func TestHandleInboundValidSignature(t *testing.T) {
	sink := &recordingSink{}
	h := NewWebhookHandler("secret", sink, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/calcom", strings.NewReader(webhookBody))
	req.Header.Set(SignatureHeader, sign("secret", []byte(webhookBody)))
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(sink.events) != 1 {
		t.Fatalf("sink calls = %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.TriggerEvent != TriggerBookingCreated || ev.Payload.UID != "uid_1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Payload.DurationMinutes() != 30 {
		t.Fatalf("duration = %d", ev.Payload.DurationMinutes())
	}
}

func TestHandleInboundBadSignature(t *testing.T) {
	sink := &recordingSink{}
	h := NewWebhookHandler("secret", sink, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/calcom", strings.NewReader(webhookBody))
	req.Header.Set(SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Fatal("sink must not see unverified payloads")
	}
}

func TestHandleInboundNoSecretSkipsVerification(t *testing.T) {
	sink := &recordingSink{}
	h := NewWebhookHandler("", sink, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/calcom", strings.NewReader(webhookBody))
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(sink.events) != 1 {
		t.Fatalf("sink calls = %d", len(sink.events))
	}
}

func TestHandleInboundMissingUID(t *testing.T) {
	sink := &recordingSink{}
	h := NewWebhookHandler("", sink, nil)

	body := `{"triggerEvent": "BOOKING_CREATED", "payload": {"startTime": "2024-01-02T13:00:00Z"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/calcom", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Fatal("sink must not see events without a uid")
	}
}

func TestHandleInboundSinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	h := NewWebhookHandler("", sink, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/calcom", strings.NewReader(webhookBody))
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"k":"v"}`)
	good := sign("secret", body)

	if !VerifySignature("secret", body, good) {
		t.Fatal("valid signature rejected")
	}
	if !VerifySignature("secret", body, "sha256="+good) {
		t.Fatal("sha256-prefixed signature rejected")
	}
	if !VerifySignature("secret", body, strings.ToUpper(good)) {
		t.Fatal("uppercase hex signature rejected")
	}
	if VerifySignature("secret", body, "") {
		t.Fatal("empty signature accepted")
	}
	if VerifySignature("secret", []byte(`tampered`), good) {
		t.Fatal("tampered body accepted")
	}
	if !VerifySignature("", body, "anything") {
		t.Fatal("empty secret must disable verification")
	}
}
