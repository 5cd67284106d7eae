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

// PackageRepository tracks prepaid multi-session packages. A booking paid
// for out of a package consumes one remaining session atomically, the same
// way a wallet deduction is never a read-then-assign.
type PackageRepository struct {
	db *sqlx.DB
}

func NewPackageRepository(db *sqlx.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func scanPackage(row interface {
	Scan(dest ...any) error
}) (*models.Package, error) {
	var p models.Package
	var deletedAt sql.NullTime
	var deletedBy uuid.NullUUID
	err := row.Scan(&p.ID, &p.StudentID, &p.TutorID, &p.TotalSessions, &p.RemainingSessions,
		&p.ExpiresAt, &p.CreatedAt, &deletedAt, &deletedBy)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	if deletedBy.Valid {
		id := deletedBy.UUID
		p.DeletedBy = &id
	}
	return &p, nil
}

func (r *PackageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	query := `SELECT ` + PackageSelectFields + ` FROM packages WHERE id = $1`
	p, err := scanPackage(r.db.QueryRowxContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return p, nil
}

func (r *PackageRepository) Create(ctx context.Context, p *models.Package) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	p.RemainingSessions = p.TotalSessions
	query := `
		INSERT INTO packages (id, student_id, tutor_id, total_sessions, remaining_sessions, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.StudentID, p.TutorID, p.TotalSessions, p.RemainingSessions, p.ExpiresAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

// ConsumeSession atomically decrements remaining_sessions by one, failing
// with ErrPackageExhausted rather than letting the count go negative.
func (r *PackageRepository) ConsumeSession(ctx context.Context, tx pgx.Tx, packageID uuid.UUID) (int, error) {
	query := `
		UPDATE packages
		SET remaining_sessions = remaining_sessions - 1
		WHERE id = $1 AND remaining_sessions > 0 AND deleted_at IS NULL
		RETURNING remaining_sessions
	`
	var remaining int
	err := tx.QueryRow(ctx, query, packageID).Scan(&remaining)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrPackageExhausted
		}
		return 0, fmt.Errorf("failed to consume package session: %w", err)
	}
	return remaining, nil
}

// RestoreSession reverses a consumption, used when a booking that already
// consumed a package session (it reached ENDED/COMPLETED) is later given a
// full refund through a favor-student dispute resolution.
func (r *PackageRepository) RestoreSession(ctx context.Context, tx pgx.Tx, packageID uuid.UUID) (int, error) {
	query := `
		UPDATE packages
		SET remaining_sessions = LEAST(remaining_sessions + 1, total_sessions)
		WHERE id = $1
		RETURNING remaining_sessions
	`
	var remaining int
	err := tx.QueryRow(ctx, query, packageID).Scan(&remaining)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrPackageNotFound
		}
		return 0, fmt.Errorf("failed to restore package session: %w", err)
	}
	return remaining, nil
}

func (r *PackageRepository) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID) error {
	query := `UPDATE packages SET deleted_at = $1, deleted_by = $2 WHERE id = $3`
	tag, err := r.db.ExecContext(ctx, query, time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete package: %w", err)
	}
	if n, _ := tag.RowsAffected(); n == 0 {
		return ErrPackageNotFound
	}
	return nil
}

// ExpiredCandidates returns active packages whose validity window has
// passed asOf and still have sessions left on the clock, for the scheduler's
// package-expiry sweep.
func (r *PackageRepository) ExpiredCandidates(ctx context.Context, asOf time.Time) ([]*models.Package, error) {
	query := `
		SELECT ` + PackageSelectFields + ` FROM packages
		WHERE expires_at <= $1 AND remaining_sessions > 0 AND deleted_at IS NULL
		ORDER BY expires_at
	`
	rows, err := r.db.QueryxContext(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired packages: %w", err)
	}
	defer rows.Close()

	var out []*models.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired package: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkExpired soft-deletes a package with no actor attached (deleted_by left
// NULL), distinguishing the scheduler's system expiry from an admin-initiated
// SoftDelete.
func (r *PackageRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE packages SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	tag, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark package expired: %w", err)
	}
	if n, _ := tag.RowsAffected(); n == 0 {
		return ErrPackageNotFound
	}
	return nil
}
