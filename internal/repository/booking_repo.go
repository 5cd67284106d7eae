package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
)

// BookingRepository is the Booking Store: durable persistence of bookings
// with optimistic-lock updates, row-level lock acquisition, and
// time-overlap queries.
type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// scanBooking scans one bookings row in BookingSelectFields column order.
func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	var outcome sql.NullString
	var cancelledBy sql.NullString
	var packageID uuid.NullUUID
	err := row.Scan(
		&b.ID, &b.Version, &b.StudentID, &b.TutorID, &b.TutorProfileID,
		&b.StartTime, &b.EndTime, &b.TimeZone,
		&b.SessionState, &outcome, &b.PaymentState, &b.DisputeState,
		&b.AmountCents, &b.Currency, &b.PlatformFeeCents,
		&b.MeetingID, &b.MeetingJoinURL, &b.CalendarEventID,
		&b.ExternalCheckoutID, &b.ExternalPaymentIntent,
		&b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.EndedAt,
		&b.CancellationReason, &cancelledBy, &b.ReminderSentAt, &packageID,
	)
	if err != nil {
		return nil, err
	}
	if outcome.Valid {
		o := models.SessionOutcome(outcome.String)
		b.SessionOutcome = &o
	}
	if cancelledBy.Valid {
		role := models.CancelledByRole(cancelledBy.String)
		b.CancelledBy = &role
	}
	if packageID.Valid {
		id := packageID.UUID
		b.PackageID = &id
	}
	return &b, nil
}

// GetByID fetches a booking without locking.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + BookingSelectFields + ` FROM bookings WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, query, id)
	b, err := scanSqlxRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking by id: %w", err)
	}
	return b, nil
}

func scanSqlxRow(row *sqlx.Row) (*models.Booking, error) {
	var b models.Booking
	var outcome sql.NullString
	var cancelledBy sql.NullString
	var packageID uuid.NullUUID
	err := row.Scan(
		&b.ID, &b.Version, &b.StudentID, &b.TutorID, &b.TutorProfileID,
		&b.StartTime, &b.EndTime, &b.TimeZone,
		&b.SessionState, &outcome, &b.PaymentState, &b.DisputeState,
		&b.AmountCents, &b.Currency, &b.PlatformFeeCents,
		&b.MeetingID, &b.MeetingJoinURL, &b.CalendarEventID,
		&b.ExternalCheckoutID, &b.ExternalPaymentIntent,
		&b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.EndedAt,
		&b.CancellationReason, &cancelledBy, &b.ReminderSentAt, &packageID,
	)
	if err != nil {
		return nil, err
	}
	if outcome.Valid {
		o := models.SessionOutcome(outcome.String)
		b.SessionOutcome = &o
	}
	if cancelledBy.Valid {
		role := models.CancelledByRole(cancelledBy.String)
		b.CancelledBy = &role
	}
	if packageID.Valid {
		id := packageID.UUID
		b.PackageID = &id
	}
	return &b, nil
}

// GetWithLock acquires an exclusive row lock held for the lifetime of tx
// (SELECT ... FOR UPDATE). Readers without the lock still see the
// pre-transaction value.
func (r *BookingRepository) GetWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + BookingSelectFields + ` FROM bookings WHERE id = $1 FOR UPDATE`
	row := tx.QueryRow(ctx, query, id)
	b, err := scanBooking(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking with lock: %w", err)
	}
	return b, nil
}

// TimeConflictExists returns true iff any non-terminal booking for tutor
// overlaps the half-open interval [start, end). Must be called inside the
// same transaction as the subsequent insert/update to prevent TOCTOU.
func (r *BookingRepository) TimeConflictExists(ctx context.Context, tx pgx.Tx, tutorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE tutor_id = $1
			  AND session_state NOT IN ($2, $3, $4)
			  AND start_time < $5 AND end_time > $6
			  AND ($7::uuid IS NULL OR id != $7)
		)
	`
	var exists bool
	err := tx.QueryRow(ctx, query,
		tutorID,
		models.SessionStateCancelled, models.SessionStateExpired, models.SessionStateEnded,
		end, start,
		excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check time conflict: %w", err)
	}
	return exists, nil
}

// Create inserts a new booking inside tx, assigning id/version/timestamps.
// A conflicting-window booking for the same tutor must be ruled out by the
// caller via TimeConflictExists in the same transaction; an EXCLUDE
// constraint on (tutor_id, session_window) is kept as a second line of
// defense and surfaces as ErrTimeConflict on violation.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	b.ID = uuid.New()
	b.Version = 1
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	query := `
		INSERT INTO bookings (
			id, version, student_id, tutor_id, tutor_profile_id,
			start_time, end_time, time_zone,
			session_state, payment_state, dispute_state,
			amount_cents, currency, platform_fee_cents,
			created_at, updated_at, package_id
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17
		)
	`
	_, err := tx.Exec(ctx, query,
		b.ID, b.Version, b.StudentID, b.TutorID, b.TutorProfileID,
		b.StartTime, b.EndTime, b.TimeZone,
		b.SessionState, b.PaymentState, b.DisputeState,
		b.AmountCents, b.Currency, b.PlatformFeeCents,
		b.CreatedAt, b.UpdatedAt, b.PackageID,
	)
	if err != nil {
		if IsExclusionViolationError(err) {
			return ErrTimeConflict
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// Update performs the compare-and-swap write: UPDATE ... WHERE id = $1 AND
// version = $expectedVersion. Zero rows affected means another writer won
// the race; the caller (Orchestrator) treats this as ErrOptimisticLockConflict
// and retries.
func (r *BookingRepository) Update(ctx context.Context, tx pgx.Tx, b *models.Booking, expectedVersion int64) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE bookings SET
			version = version + 1,
			session_state = $1, session_outcome = $2, payment_state = $3, dispute_state = $4,
			start_time = $5, end_time = $6,
			meeting_id = $7, meeting_join_url = $8, calendar_event_id = $9,
			external_checkout_session_id = $10, external_payment_intent_id = $11,
			updated_at = $12, confirmed_at = $13, cancelled_at = $14, ended_at = $15,
			cancellation_reason = $16, cancelled_by = $17
		WHERE id = $18 AND version = $19
		RETURNING version
	`
	row := tx.QueryRow(ctx, query,
		b.SessionState, b.SessionOutcome, b.PaymentState, b.DisputeState,
		b.StartTime, b.EndTime,
		b.MeetingID, b.MeetingJoinURL, b.CalendarEventID,
		b.ExternalCheckoutID, b.ExternalPaymentIntent,
		b.UpdatedAt, b.ConfirmedAt, b.CancelledAt, b.EndedAt,
		b.CancellationReason, b.CancelledBy,
		b.ID, expectedVersion,
	)
	var newVersion int64
	if err := row.Scan(&newVersion); err != nil {
		if err == pgx.ErrNoRows {
			return ErrOptimisticLockConflict
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	b.Version = newVersion
	return nil
}

// PendingForExpiry returns REQUESTED bookings older than olderThan, relative
// to asOf (the database clock's NOW(), not the worker's).
func (r *BookingRepository) PendingForExpiry(ctx context.Context, asOf time.Time, olderThan time.Duration) ([]*models.Booking, error) {
	return r.queryByState(ctx, `
		SELECT `+BookingSelectFields+` FROM bookings
		WHERE session_state = $1 AND created_at < $2
		ORDER BY created_at
	`, models.SessionStateRequested, asOf.Add(-olderThan))
}

// ScheduledReadyToStart returns SCHEDULED bookings whose start has arrived.
func (r *BookingRepository) ScheduledReadyToStart(ctx context.Context, asOf time.Time) ([]*models.Booking, error) {
	return r.queryByState(ctx, `
		SELECT `+BookingSelectFields+` FROM bookings
		WHERE session_state = $1 AND start_time <= $2
		ORDER BY start_time
	`, models.SessionStateScheduled, asOf)
}

// ActivePastEnd returns ACTIVE bookings whose end + grace period has passed.
func (r *BookingRepository) ActivePastEnd(ctx context.Context, asOf time.Time, grace time.Duration) ([]*models.Booking, error) {
	return r.queryByState(ctx, `
		SELECT `+BookingSelectFields+` FROM bookings
		WHERE session_state = $1 AND (end_time + $2::interval) <= $3
		ORDER BY end_time
	`, models.SessionStateActive, fmt.Sprintf("%d seconds", int(grace.Seconds())), asOf)
}

// DueForReminder returns SCHEDULED bookings starting within leadTime of asOf
// that have not yet had a reminder sent.
func (r *BookingRepository) DueForReminder(ctx context.Context, asOf time.Time, leadTime time.Duration) ([]*models.Booking, error) {
	return r.queryByState(ctx, `
		SELECT `+BookingSelectFields+` FROM bookings
		WHERE session_state = $1 AND reminder_sent_at IS NULL
		  AND start_time <= $2 AND start_time > $3
		ORDER BY start_time
	`, models.SessionStateScheduled, asOf.Add(leadTime), asOf)
}

// MarkReminderSent stamps reminder_sent_at so SendReminderJob never re-fires
// for the same booking. Not gated on version, since it is an
// out-of-band idempotency marker rather than a state-machine transition.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bookings SET reminder_sent_at = $1 WHERE id = $2 AND reminder_sent_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

// SetPaymentState stamps the booking's payment_state projection from inside
// a refund transaction. Not gated on version: it runs alongside the refund
// ledger write rather than through a state-machine command, and a refund
// only ever moves payment_state strictly forward (captured -> partially
// refunded -> refunded), so a lost race here just means the next refund's
// write supersedes it.
func (r *BookingRepository) SetPaymentState(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PaymentState) error {
	_, err := tx.Exec(ctx, `UPDATE bookings SET payment_state = $1 WHERE id = $2`, state, id)
	if err != nil {
		return fmt.Errorf("failed to set booking payment state: %w", err)
	}
	return nil
}

func (r *BookingRepository) queryByState(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.Booking
	for rows.Next() {
		b, err := scanSqlxRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanSqlxRows(rows *sqlx.Rows) (*models.Booking, error) {
	var b models.Booking
	var outcome sql.NullString
	var cancelledBy sql.NullString
	var packageID uuid.NullUUID
	err := rows.Scan(
		&b.ID, &b.Version, &b.StudentID, &b.TutorID, &b.TutorProfileID,
		&b.StartTime, &b.EndTime, &b.TimeZone,
		&b.SessionState, &outcome, &b.PaymentState, &b.DisputeState,
		&b.AmountCents, &b.Currency, &b.PlatformFeeCents,
		&b.MeetingID, &b.MeetingJoinURL, &b.CalendarEventID,
		&b.ExternalCheckoutID, &b.ExternalPaymentIntent,
		&b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.EndedAt,
		&b.CancellationReason, &cancelledBy, &b.ReminderSentAt, &packageID,
	)
	if err != nil {
		return nil, err
	}
	if outcome.Valid {
		o := models.SessionOutcome(outcome.String)
		b.SessionOutcome = &o
	}
	if packageID.Valid {
		id := packageID.UUID
		b.PackageID = &id
	}
	if cancelledBy.Valid {
		role := models.CancelledByRole(cancelledBy.String)
		b.CancelledBy = &role
	}
	return &b, nil
}

// List returns bookings matching filter, ordered by start time descending —
// the teacher's dynamic-WHERE-building idiom, kept because it is
// parameterized (no string-interpolated values) and therefore not
// injectable.
func (r *BookingRepository) List(ctx context.Context, filter *models.ListBookingsFilter, limit, offset int) ([]*models.Booking, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	idx := 1

	if filter != nil {
		if filter.StudentID != nil {
			where += fmt.Sprintf(` AND student_id = $%d`, idx)
			args = append(args, *filter.StudentID)
			idx++
		}
		if filter.TutorID != nil {
			where += fmt.Sprintf(` AND tutor_id = $%d`, idx)
			args = append(args, *filter.TutorID)
			idx++
		}
		if filter.State != nil {
			where += fmt.Sprintf(` AND session_state = $%d`, idx)
			args = append(args, *filter.State)
			idx++
		}
		if filter.StartDate != nil {
			where += fmt.Sprintf(` AND start_time >= $%d`, idx)
			args = append(args, *filter.StartDate)
			idx++
		}
		if filter.EndDate != nil {
			where += fmt.Sprintf(` AND start_time <= $%d`, idx)
			args = append(args, *filter.EndDate)
			idx++
		}
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM bookings ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	limit = NormalizeLimit(limit)
	dataQuery := `SELECT ` + BookingSelectFields + ` FROM bookings ` + where +
		fmt.Sprintf(` ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	bookings, _, err := r.queryListPage(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *BookingRepository) queryListPage(ctx context.Context, query string, args ...any) ([]*models.Booking, int, error) {
	bookings, err := r.queryByState(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, len(bookings), nil
}
