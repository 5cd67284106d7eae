package repository

import (
	"context"
	"fmt"
	"time"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
)

// AvailabilityRepository reads a tutor's recurring weekly slots and one-off
// blackouts. The Orchestrator does not use it: CreateBooking checks only for
// overlapping bookings, not for availability slots or blackouts.
type AvailabilityRepository struct {
	db *sqlx.DB
}

func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) ListSlotsForTutor(ctx context.Context, tutorID uuid.UUID) ([]models.AvailabilitySlot, error) {
	query := `SELECT ` + AvailabilitySlotSelectFields + ` FROM availability_slots WHERE tutor_id = $1 ORDER BY day_of_week, start_time`
	rows, err := r.db.QueryxContext(ctx, query, tutorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability slots: %w", err)
	}
	defer rows.Close()

	var slots []models.AvailabilitySlot
	for rows.Next() {
		var s models.AvailabilitySlot
		if err := rows.Scan(&s.ID, &s.TutorID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.TimeZone); err != nil {
			return nil, fmt.Errorf("failed to scan availability slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// BlackoutExists reports whether [start, end) overlaps any blackout window
// the tutor has declared (vacation, sick leave, platform-wide freeze).
func (r *AvailabilityRepository) BlackoutExists(ctx context.Context, tx pgx.Tx, tutorID uuid.UUID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blackouts
			WHERE tutor_id = $1 AND start_time < $3 AND end_time > $2
		)
	`
	var exists bool
	if err := tx.QueryRow(ctx, query, tutorID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check blackout overlap: %w", err)
	}
	return exists, nil
}

func (r *AvailabilityRepository) CreateBlackout(ctx context.Context, b *models.Blackout) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO blackouts (id, tutor_id, start_time, end_time, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, b.ID, b.TutorID, b.StartTime, b.EndTime, b.Reason, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create blackout: %w", err)
	}
	return nil
}
