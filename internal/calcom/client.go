package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slotline/booking-platform/pkg/logging"
)

const defaultTimeout = 20 * time.Second

// UpstreamError carries the scheduling API's failure status so callers can
// propagate it instead of flattening everything into a 502.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("calcom: status %d: %s", e.StatusCode, e.Body)
}

// Client is an HTTP client for the Cal.com booking API.
type Client struct {
	baseURL     string
	apiKey      string
	eventTypeID int
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewClient creates a Cal.com API client.
func NewClient(baseURL, apiKey string, eventTypeID int, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		eventTypeID: eventTypeID,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// CreateBooking creates a booking in the scheduling system. The returned
// booking carries the uid that keys the local appointment row.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	if req.EventTypeID == 0 {
		req.EventTypeID = c.eventTypeID
	}
	var env bookingEnvelope
	if err := c.do(ctx, http.MethodPost, "/bookings", req, &env); err != nil {
		return nil, err
	}
	if env.Booking == nil || env.Booking.UID == "" {
		return nil, fmt.Errorf("calcom: create booking returned no uid")
	}
	return env.Booking, nil
}

// CancelBooking cancels the booking identified by uid.
func (c *Client) CancelBooking(ctx context.Context, uid, reason string) error {
	if strings.TrimSpace(uid) == "" {
		return fmt.Errorf("calcom: booking uid required")
	}
	body := map[string]string{}
	if reason != "" {
		body["cancellationReason"] = reason
	}
	return c.do(ctx, http.MethodPost, "/bookings/"+uid+"/cancel", body, nil)
}

// RescheduleBooking moves the booking identified by uid to a new start.
func (c *Client) RescheduleBooking(ctx context.Context, uid string, start time.Time, reason string) (*Booking, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, fmt.Errorf("calcom: booking uid required")
	}
	body := map[string]string{
		"start": start.UTC().Format(time.RFC3339),
	}
	if reason != "" {
		body["reschedulingReason"] = reason
	}
	var env bookingEnvelope
	if err := c.do(ctx, http.MethodPost, "/bookings/"+uid+"/reschedule", body, &env); err != nil {
		return nil, err
	}
	if env.Booking == nil {
		return &Booking{UID: uid, StartTime: start.UTC(), Status: "ACCEPTED"}, nil
	}
	return env.Booking, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return fmt.Errorf("calcom: missing api key")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("calcom: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("calcom: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calcom: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("calcom: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return &UpstreamError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("calcom: unmarshal response: %w", err)
	}
	return nil
}
