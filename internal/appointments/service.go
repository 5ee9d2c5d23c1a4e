package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/slotline/booking-platform/internal/calcom"
	"github.com/slotline/booking-platform/internal/observability/metrics"
	"github.com/slotline/booking-platform/pkg/logging"
)

var reconcilerTracer = otel.Tracer("slotline.internal.appointments")

// Gateway is the external scheduling system. It is the source of truth for
// booking state; local persistence follows its outcomes, never precedes them.
type Gateway interface {
	CreateBooking(ctx context.Context, req calcom.CreateBookingRequest) (*calcom.Booking, error)
	CancelBooking(ctx context.Context, uid, reason string) error
	RescheduleBooking(ctx context.Context, uid string, start time.Time, reason string) (*calcom.Booking, error)
}

// Service reconciles local appointment rows with the external scheduling
// system. Two writers can race on the same booking uid: the direct create
// path and the webhook event path. Convergence relies entirely on the
// store's unique constraint and upsert, not on locks.
type Service struct {
	gateway Gateway
	store   *Store
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

// NewService constructs the booking reconciler.
func NewService(gateway Gateway, store *Store, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if gateway == nil {
		panic("appointments: gateway required")
	}
	if store == nil {
		panic("appointments: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{gateway: gateway, store: store, logger: logger, metrics: m}
}

// CreateInput is the direct-path booking request.
type CreateInput struct {
	Start       time.Time
	Name        string
	Email       string
	Phone       string
	Notes       string
	EventTypeID int
	ProjectID   *uuid.UUID
	ClientID    *uuid.UUID
	UserID      *uuid.UUID
}

// CreateResult reports a direct-path creation. Warning is non-empty when the
// external booking succeeded but local persistence did not.
type CreateResult struct {
	Booking       *calcom.Booking
	AppointmentID uuid.UUID
	Warning       string
}

// MutationResult reports a cancel outcome, with an explicit divergence
// warning when external and local state disagree.
type MutationResult struct {
	Warning string
}

// RescheduleResult reports a reschedule outcome.
type RescheduleResult struct {
	Booking *calcom.Booking
	Warning string
}

// Create books in the external system first, then records the appointment
// locally. A duplicate-key failure means the event path already created the
// row; that is success, not an error, and carries no warning. Any other
// local failure is downgraded to a warning because the external booking
// exists regardless.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	ctx, span := reconcilerTracer.Start(ctx, "appointments.create")
	defer span.End()

	booking, err := s.gateway.CreateBooking(ctx, calcom.CreateBookingRequest{
		Start:       in.Start,
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Notes:       in.Notes,
		EventTypeID: in.EventTypeID,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBookingOp("create", "upstream_error")
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.uid", booking.UID))

	start := booking.StartTime.UTC()
	duration := 0
	if booking.EndTime != nil {
		duration = int(booking.EndTime.Sub(booking.StartTime) / time.Minute)
	}
	snapshot, _ := json.Marshal(booking)

	result := &CreateResult{Booking: booking}
	id, err := s.store.InsertScheduled(ctx, Appointment{
		BookingUID:      booking.UID,
		StartTime:       &start,
		DurationMinutes: duration,
		Status:          StatusScheduled,
		ContactName:     in.Name,
		ContactEmail:    in.Email,
		ContactPhone:    in.Phone,
		Metadata:        snapshot,
		ProjectID:       in.ProjectID,
		ClientID:        in.ClientID,
		UserID:          in.UserID,
	})
	switch {
	case err == nil:
		result.AppointmentID = id
		s.metrics.ObserveBookingOp("create", "ok")
	case errors.Is(err, ErrDuplicateBooking):
		// The event path won the race; the row already reflects this
		// booking. Nothing to retry and nothing to surface.
		s.logger.Info("appointment already recorded by event path", "booking_uid", booking.UID)
		s.metrics.ObserveBookingOp("create", "converged")
	default:
		s.logger.Error("appointment insert failed after external booking succeeded",
			"booking_uid", booking.UID, "error", err)
		s.metrics.ObserveBookingOp("create", "degraded")
		s.metrics.ObserveLocalDivergence()
		result.Warning = "booking confirmed externally but the local appointment record could not be saved; it will be re-synced from the next event"
	}
	return result, nil
}

// ApplyWebhookEvent upserts the appointment row from an event snapshot,
// keyed on the booking uid. Replays are idempotent; arrival order against
// the direct path does not matter.
func (s *Service) ApplyWebhookEvent(ctx context.Context, ev calcom.WebhookEvent) error {
	ctx, span := reconcilerTracer.Start(ctx, "appointments.apply_event")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.uid", ev.Payload.UID),
		attribute.String("booking.trigger", ev.TriggerEvent),
	)

	var contactName, contactEmail, contactPhone string
	if len(ev.Payload.Attendees) > 0 {
		contactName = ev.Payload.Attendees[0].Name
		contactEmail = ev.Payload.Attendees[0].Email
		contactPhone = ev.Payload.Attendees[0].Phone
	}
	start := ev.Payload.StartTime.UTC()
	snapshot, _ := json.Marshal(ev.Payload)

	err := s.store.UpsertByBookingUID(ctx, Appointment{
		BookingUID:      ev.Payload.UID,
		StartTime:       &start,
		DurationMinutes: ev.Payload.DurationMinutes(),
		Status:          StatusForTrigger(ev.TriggerEvent),
		ContactName:     contactName,
		ContactEmail:    contactEmail,
		ContactPhone:    contactPhone,
		Metadata:        snapshot,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveWebhookEvent(ev.TriggerEvent, "error")
		return err
	}
	s.metrics.ObserveWebhookEvent(ev.TriggerEvent, "applied")
	return nil
}

// Get loads the local appointment row for a booking uid.
func (s *Service) Get(ctx context.Context, bookingUID string) (*Appointment, error) {
	return s.store.GetByBookingUID(ctx, bookingUID)
}

// Cancel cancels externally first. If the external call fails nothing is
// mutated locally and the failure surfaces. If the local update fails after
// a confirmed external cancellation, the caller gets success with an
// explicit divergence warning rather than a generic error.
func (s *Service) Cancel(ctx context.Context, bookingUID, reason string) (*MutationResult, error) {
	ctx, span := reconcilerTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking.uid", bookingUID))

	if err := s.gateway.CancelBooking(ctx, bookingUID, reason); err != nil {
		span.RecordError(err)
		s.metrics.ObserveBookingOp("cancel", "upstream_error")
		return nil, err
	}

	result := &MutationResult{}
	if err := s.store.SetStatus(ctx, bookingUID, StatusCancelled); err != nil {
		s.logger.Error("local cancel failed after external cancellation",
			"booking_uid", bookingUID, "error", err)
		s.metrics.ObserveBookingOp("cancel", "degraded")
		s.metrics.ObserveLocalDivergence()
		result.Warning = "booking cancelled externally but the local appointment status could not be updated"
	} else {
		s.metrics.ObserveBookingOp("cancel", "ok")
	}
	return result, nil
}

// Reschedule moves the booking externally first, then updates the local
// start instant and resets the status to scheduled. Local failure after
// external success is a warning, not an error: the external system remains
// authoritative and a later event re-syncs the row.
func (s *Service) Reschedule(ctx context.Context, bookingUID string, start time.Time, reason string) (*RescheduleResult, error) {
	ctx, span := reconcilerTracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("booking.uid", bookingUID))

	booking, err := s.gateway.RescheduleBooking(ctx, bookingUID, start, reason)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBookingOp("reschedule", "upstream_error")
		return nil, err
	}

	result := &RescheduleResult{Booking: booking}
	newStart := start.UTC()
	if booking != nil && !booking.StartTime.IsZero() {
		newStart = booking.StartTime.UTC()
	}
	if err := s.store.Reschedule(ctx, bookingUID, newStart); err != nil {
		s.logger.Error("local reschedule failed after external reschedule",
			"booking_uid", bookingUID, "error", err)
		s.metrics.ObserveBookingOp("reschedule", "degraded")
		s.metrics.ObserveLocalDivergence()
		result.Warning = "booking rescheduled externally but the local appointment could not be updated"
	} else {
		s.metrics.ObserveBookingOp("reschedule", "ok")
	}
	return result, nil
}
