package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotline/booking-platform/internal/calcom"
)

// Appointment statuses. Rows are never hard-deleted; cancellation and
// completion are status transitions.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment is the locally-owned record of an external booking. The
// external booking uid is the sole join key with the scheduling system and
// is unique across rows.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	BookingUID      string     `json:"booking_uid"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	ContactName     string     `json:"contact_name,omitempty"`
	ContactEmail    string     `json:"contact_email,omitempty"`
	ContactPhone    string     `json:"contact_phone,omitempty"`
	Metadata        []byte     `json:"-"`
	ProjectID       *uuid.UUID `json:"project_id,omitempty"`
	ClientID        *uuid.UUID `json:"client_id,omitempty"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// StatusForTrigger maps a webhook trigger event to an appointment status.
func StatusForTrigger(trigger string) string {
	switch trigger {
	case calcom.TriggerBookingCancelled:
		return StatusCancelled
	case calcom.TriggerMeetingEnded:
		return StatusCompleted
	default:
		return StatusScheduled
	}
}
