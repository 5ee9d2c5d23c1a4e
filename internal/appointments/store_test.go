package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return &Store{pool: mock}, mock
}

func TestInsertScheduled(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	start := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "uid_1", &start, 30, StatusScheduled,
			"Jane Doe", "jane@example.com", "+15555550123", pgxmock.AnyArg(),
			(*uuid.UUID)(nil), (*uuid.UUID)(nil), (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

	got, err := store.InsertScheduled(context.Background(), Appointment{
		BookingUID:      "uid_1",
		StartTime:       &start,
		DurationMinutes: 30,
		ContactName:     "Jane Doe",
		ContactEmail:    "jane@example.com",
		ContactPhone:    "+15555550123",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got != id {
		t.Fatalf("unexpected id: %v", got)
	}
}

func TestInsertScheduledDuplicateUID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_appointments_booking_uid"})

	_, err := store.InsertScheduled(context.Background(), Appointment{BookingUID: "uid_1"})
	if !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}
}

func TestUpsertByBookingUID(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)

	mock.ExpectExec(`ON CONFLICT \(booking_uid\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "uid_1", &start, 45, StatusCancelled,
			"Jane Doe", "jane@example.com", "", pgxmock.AnyArg(),
			(*uuid.UUID)(nil), (*uuid.UUID)(nil), (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertByBookingUID(context.Background(), Appointment{
		BookingUID:      "uid_1",
		StartTime:       &start,
		DurationMinutes: 45,
		Status:          StatusCancelled,
		ContactName:     "Jane Doe",
		ContactEmail:    "jane@example.com",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("uid_1", StatusCancelled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.SetStatus(context.Background(), "uid_1", StatusCancelled); err != nil {
		t.Fatalf("set status: %v", err)
	}
}

func TestSetStatusNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("missing", StatusCancelled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetStatus(context.Background(), "missing", StatusCancelled)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReschedule(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE appointments SET start_time").
		WithArgs("uid_1", start, StatusScheduled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.Reschedule(context.Background(), "uid_1", start); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
}

func TestStatusForTrigger(t *testing.T) {
	cases := map[string]string{
		"BOOKING_CREATED":     StatusScheduled,
		"BOOKING_RESCHEDULED": StatusScheduled,
		"BOOKING_CANCELLED":   StatusCancelled,
		"MEETING_ENDED":       StatusCompleted,
		"SOMETHING_ELSE":      StatusScheduled,
	}
	for trigger, want := range cases {
		if got := StatusForTrigger(trigger); got != want {
			t.Fatalf("StatusForTrigger(%s) = %s, want %s", trigger, got, want)
		}
	}
}
