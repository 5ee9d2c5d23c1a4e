package calcom

import (
	"encoding/json"
	"time"
)

// Booking is the scheduling system's representation of a booking.
type Booking struct {
	ID        int64      `json:"id"`
	UID       string     `json:"uid"`
	Title     string     `json:"title,omitempty"`
	Status    string     `json:"status,omitempty"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Attendees []Attendee `json:"attendees,omitempty"`
}

// Attendee identifies a booking participant.
type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// CreateBookingRequest is the payload for creating a booking.
type CreateBookingRequest struct {
	EventTypeID int       `json:"eventTypeId,omitempty"`
	Start       time.Time `json:"start"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	TimeZone    string    `json:"timeZone,omitempty"`
}

// WebhookEvent is the signed payload delivered on the asynchronous event path.
type WebhookEvent struct {
	TriggerEvent string         `json:"triggerEvent"`
	CreatedAt    time.Time      `json:"createdAt"`
	Payload      WebhookPayload `json:"payload"`
}

// WebhookPayload carries the booking snapshot inside a webhook event.
type WebhookPayload struct {
	UID           string          `json:"uid"`
	BookingID     int64           `json:"bookingId"`
	Title         string          `json:"title,omitempty"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       *time.Time      `json:"endTime,omitempty"`
	Duration      int             `json:"duration,omitempty"`
	Length        int             `json:"length,omitempty"`
	EventTypeID   int             `json:"eventTypeId,omitempty"`
	Location      string          `json:"location,omitempty"`
	Attendees     []Attendee      `json:"attendees,omitempty"`
	VideoCallData json.RawMessage `json:"videoCallData,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Webhook trigger events we act on. Anything else maps to a scheduled status.
const (
	TriggerBookingCreated     = "BOOKING_CREATED"
	TriggerBookingRescheduled = "BOOKING_RESCHEDULED"
	TriggerBookingCancelled   = "BOOKING_CANCELLED"
	TriggerMeetingEnded       = "MEETING_ENDED"
)

// DurationMinutes returns the booking duration, preferring the explicit
// duration field over the legacy length field.
func (p WebhookPayload) DurationMinutes() int {
	if p.Duration > 0 {
		return p.Duration
	}
	return p.Length
}

type bookingEnvelope struct {
	Booking *Booking `json:"booking"`
	Message string   `json:"message,omitempty"`
}
