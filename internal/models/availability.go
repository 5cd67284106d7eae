package models

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilitySlot is a tutor's recurring weekly availability window. It is
// used only by conflict check; it is not itself mutated during booking.
type AvailabilitySlot struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	TutorID   uuid.UUID     `db:"tutor_id" json:"tutor_id"`
	DayOfWeek time.Weekday  `db:"day_of_week" json:"day_of_week"`
	StartTime string        `db:"start_time" json:"start_time"` // "15:04" local to TimeZone
	EndTime   string        `db:"end_time" json:"end_time"`
	TimeZone  string        `db:"time_zone" json:"time_zone"`
}

// Blackout is a one-off window during which a tutor is unavailable,
// overriding their recurring AvailabilitySlot set.
type Blackout struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TutorID   uuid.UUID `db:"tutor_id" json:"tutor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Package is a prepaid bundle of sessions bound to a student-tutor pair. It
// decrements atomically when a bound session reaches ENDED/COMPLETED.
type Package struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	StudentID          uuid.UUID  `db:"student_id" json:"student_id"`
	TutorID            uuid.UUID  `db:"tutor_id" json:"tutor_id"`
	TotalSessions      int        `db:"total_sessions" json:"total_sessions"`
	RemainingSessions  int        `db:"remaining_sessions" json:"remaining_sessions"`
	ExpiresAt          time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	DeletedAt          *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy          *uuid.UUID `db:"deleted_by" json:"deleted_by,omitempty"`
}

// IsExhausted reports whether a package has no sessions left to consume.
func (p *Package) IsExhausted() bool {
	return p.RemainingSessions <= 0
}

// IsExpired reports whether a package's validity window has passed, given
// the caller's notion of "now" (the database clock in production).
func (p *Package) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// IsDeleted applies the mixin-soft-delete-as-explicit-field pattern: callers
// that need "active packages only" compose this with a query filter rather
// than relying on inheritance.
func (p *Package) IsDeleted() bool {
	return p.DeletedAt != nil
}
