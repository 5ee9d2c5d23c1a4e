package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pgx surface the store needs; pgxpool.Pool satisfies it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	// ErrDuplicateBooking signals the unique constraint on booking_uid fired:
	// another writer already owns the row for this uid.
	ErrDuplicateBooking = errors.New("appointments: booking uid already recorded")

	// ErrNotFound signals no row matched the booking uid.
	ErrNotFound = errors.New("appointments: booking uid not found")
)

// Store persists appointments in Postgres. Every write keyed on the external
// booking uid is a single atomic statement; there are no read-then-write
// pairs anywhere in the reconciliation path.
type Store struct {
	pool PgxPool
}

// NewStore creates an appointment store backed by a pgx pool.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Store{pool: pool}
}

// InsertScheduled inserts a freshly created booking's row. A unique-constraint
// violation on booking_uid comes back as ErrDuplicateBooking so the direct
// path can treat the race with the event path as success.
func (s *Store) InsertScheduled(ctx context.Context, appt Appointment) (uuid.UUID, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusScheduled
	}
	query := `
		INSERT INTO appointments (id, booking_uid, start_time, duration_minutes, status,
			contact_name, contact_email, contact_phone, metadata, project_id, client_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query,
		appt.ID,
		appt.BookingUID,
		appt.StartTime,
		appt.DurationMinutes,
		appt.Status,
		appt.ContactName,
		appt.ContactEmail,
		appt.ContactPhone,
		metadataOrEmpty(appt.Metadata),
		appt.ProjectID,
		appt.ClientID,
		appt.UserID,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, ErrDuplicateBooking
		}
		return uuid.Nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return id, nil
}

// UpsertByBookingUID inserts or replaces the row for the booking uid in one
// statement. This is the convergence point for the direct and event paths:
// whichever arrives second overwrites with the event's snapshot, and replays
// of the same event are idempotent.
func (s *Store) UpsertByBookingUID(ctx context.Context, appt Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusScheduled
	}
	query := `
		INSERT INTO appointments (id, booking_uid, start_time, duration_minutes, status,
			contact_name, contact_email, contact_phone, metadata, project_id, client_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (booking_uid) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			duration_minutes = EXCLUDED.duration_minutes,
			status = EXCLUDED.status,
			contact_name = EXCLUDED.contact_name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query,
		appt.ID,
		appt.BookingUID,
		appt.StartTime,
		appt.DurationMinutes,
		appt.Status,
		appt.ContactName,
		appt.ContactEmail,
		appt.ContactPhone,
		metadataOrEmpty(appt.Metadata),
		appt.ProjectID,
		appt.ClientID,
		appt.UserID,
	)
	if err != nil {
		return fmt.Errorf("appointments: upsert by booking uid: %w", err)
	}
	return nil
}

// SetStatus updates the status of the row keyed by booking uid.
func (s *Store) SetStatus(ctx context.Context, bookingUID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE booking_uid = $1`,
		bookingUID, status,
	)
	if err != nil {
		return fmt.Errorf("appointments: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reschedule moves the row's start instant and resets it to scheduled.
func (s *Store) Reschedule(ctx context.Context, bookingUID string, start time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET start_time = $2, status = $3, updated_at = NOW() WHERE booking_uid = $1`,
		bookingUID, start, StatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("appointments: reschedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByBookingUID loads the row for a booking uid.
func (s *Store) GetByBookingUID(ctx context.Context, bookingUID string) (*Appointment, error) {
	query := `
		SELECT id, booking_uid, start_time, duration_minutes, status,
			contact_name, contact_email, contact_phone, metadata,
			project_id, client_id, user_id, created_at, updated_at
		FROM appointments
		WHERE booking_uid = $1
	`
	var appt Appointment
	err := s.pool.QueryRow(ctx, query, bookingUID).Scan(
		&appt.ID,
		&appt.BookingUID,
		&appt.StartTime,
		&appt.DurationMinutes,
		&appt.Status,
		&appt.ContactName,
		&appt.ContactEmail,
		&appt.ContactPhone,
		&appt.Metadata,
		&appt.ProjectID,
		&appt.ClientID,
		&appt.UserID,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select by booking uid: %w", err)
	}
	return &appt, nil
}

func metadataOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
