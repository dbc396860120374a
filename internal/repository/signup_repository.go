package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/basal-program/admin-api/internal/models"
)

// SignupRepository reads course signups for seat-usage aggregation. A signup
// belongs to the school year of its course start date, not of the moment the
// seat was reserved.
type SignupRepository struct {
	db *sqlx.DB
}

// NewSignupRepository constructs a SignupRepository.
func NewSignupRepository(db *sqlx.DB) *SignupRepository {
	return &SignupRepository{db: db}
}

// CountForSchool counts one school's signups on courses starting within the
// date range, inclusive on both ends.
func (r *SignupRepository) CountForSchool(ctx context.Context, schoolID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM course_signups cs
        JOIN courses c ON c.id = cs.course_id
        WHERE cs.school_id = $1 AND c.starts_on BETWEEN $2 AND $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, from, to); err != nil {
		return 0, fmt.Errorf("count signups: %w", err)
	}
	return count, nil
}

// ListForSchool returns one school's signups on courses starting within the
// date range, joined with course details, earliest course first.
func (r *SignupRepository) ListForSchool(ctx context.Context, schoolID string, from, to time.Time) ([]models.SchoolSignup, error) {
	const query = `SELECT cs.id, cs.course_id, cs.school_id, cs.attendee_name, cs.email, cs.attended, cs.created_at,
            c.name AS course_name, c.starts_on AS course_starts_on, c.location AS course_location
        FROM course_signups cs
        JOIN courses c ON c.id = cs.course_id
        WHERE cs.school_id = $1 AND c.starts_on BETWEEN $2 AND $3
        ORDER BY c.starts_on ASC, cs.created_at ASC`
	var signups []models.SchoolSignup
	if err := r.db.SelectContext(ctx, &signups, query, schoolID, from, to); err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	return signups, nil
}

// ListCourses returns the courses starting within the date range, earliest
// first.
func (r *SignupRepository) ListCourses(ctx context.Context, from, to time.Time) ([]models.Course, error) {
	const query = `SELECT id, name, starts_on, location, capacity, created_at
        FROM courses WHERE starts_on BETWEEN $1 AND $2 ORDER BY starts_on ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, from, to); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// CountBySchool counts signups per school on courses starting within the date
// range. Schools without signups produce no row.
func (r *SignupRepository) CountBySchool(ctx context.Context, from, to time.Time) ([]models.SeatUsage, error) {
	const query = `SELECT cs.school_id, COUNT(*) AS count FROM course_signups cs
        JOIN courses c ON c.id = cs.course_id
        WHERE c.starts_on BETWEEN $1 AND $2
        GROUP BY cs.school_id`
	var usage []models.SeatUsage
	if err := r.db.SelectContext(ctx, &usage, query, from, to); err != nil {
		return nil, fmt.Errorf("aggregate signups: %w", err)
	}
	return usage, nil
}
