package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/basal-program/admin-api/internal/models"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

const schoolColumns = "id, name, address, municipality, enrolled_at, active_from, opted_out_at, version, is_active, signup_token, signup_code, created_at, updated_at"

// SchoolRepository manages persistence for schools and their enrollment
// records. Both live on the schools row; the history has its own table.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching the filter. Status buckets are expressed in
// SQL against the same date comparisons the status derivation uses, with
// yearStart and today supplied by the caller so the database needs no notion
// of school years.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter, yearStart, today time.Time) ([]models.School, int, error) {
	conditions := []string{"is_active = true"}
	args := []interface{}{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(municipality) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Municipality != "" {
		conditions = append(conditions, fmt.Sprintf("municipality = $%d", len(args)+1))
		args = append(args, filter.Municipality)
	}
	if filter.Status != "" {
		condition, statusArgs := statusCondition(filter.Status, len(args), yearStart, today)
		if condition == "" {
			return nil, 0, fmt.Errorf("unknown status filter %q", filter.Status)
		}
		conditions = append(conditions, condition)
		args = append(args, statusArgs...)
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":         "name",
		"municipality": "municipality",
		"created_at":   "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM schools WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		schoolColumns, where, column, order, size, offset)

	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM schools WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}

// statusCondition translates a derived-status bucket into SQL. The clauses
// mirror the first-match-wins order of the status derivation so a school lands
// in exactly one bucket.
func statusCondition(status string, argOffset int, yearStart, today time.Time) (string, []interface{}) {
	enrolled := "enrolled_at IS NOT NULL AND active_from IS NOT NULL"
	notOptedOut := fmt.Sprintf("(opted_out_at IS NULL OR opted_out_at > $%d)", argOffset+1)
	active := fmt.Sprintf("active_from <= $%d", argOffset+1)

	switch status {
	case "never_enrolled":
		return "(enrolled_at IS NULL OR active_from IS NULL)", nil
	case "opted_out":
		return fmt.Sprintf("(%s AND opted_out_at IS NOT NULL AND opted_out_at <= $%d)", enrolled, argOffset+1),
			[]interface{}{today}
	case "pending_next_year":
		return fmt.Sprintf("(%s AND %s AND active_from > $%d)", enrolled, notOptedOut, argOffset+1),
			[]interface{}{today}
	case "first_year":
		return fmt.Sprintf("(%s AND %s AND %s AND active_from >= $%d)", enrolled, notOptedOut, active, argOffset+2),
			[]interface{}{today, yearStart}
	case "anchoring":
		return fmt.Sprintf("(%s AND %s AND %s AND active_from < $%d)", enrolled, notOptedOut, active, argOffset+2),
			[]interface{}{today, yearStart}
	case "enrolled":
		return fmt.Sprintf("(%s AND %s AND %s)", enrolled, notOptedOut, active),
			[]interface{}{today}
	}
	return "", nil
}

// ListActive returns all active schools ordered by name.
func (r *SchoolRepository) ListActive(ctx context.Context) ([]models.School, error) {
	query := fmt.Sprintf("SELECT %s FROM schools WHERE is_active = true ORDER BY name ASC", schoolColumns)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query); err != nil {
		return nil, fmt.Errorf("list active schools: %w", err)
	}
	return schools, nil
}

// FindByID fetches one school by id.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := fmt.Sprintf("SELECT %s FROM schools WHERE id = $1", schoolColumns)
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// Create inserts a new school row.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	const query = `INSERT INTO schools (id, name, address, municipality, enrolled_at, active_from, opted_out_at, version, is_active, signup_token, signup_code, created_at, updated_at)
        VALUES (:id, :name, :address, :municipality, :enrolled_at, :active_from, :opted_out_at, :version, :is_active, :signup_token, :signup_code, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update modifies a school's master data. Enrollment dates are written only
// through SaveRecord.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, address = :address, municipality = :municipality, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// Deactivate marks a school as inactive.
func (r *SchoolRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE schools SET is_active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate school: %w", err)
	}
	return nil
}

// UpdateCredentials replaces the signup code and token.
func (r *SchoolRepository) UpdateCredentials(ctx context.Context, id, signupCode, signupToken string) error {
	const query = `UPDATE schools SET signup_code = $2, signup_token = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, signupCode, signupToken, time.Now().UTC()); err != nil {
		return fmt.Errorf("update school credentials: %w", err)
	}
	return nil
}

// LoadRecord fetches the enrollment record and its history for one school.
// Returns sql.ErrNoRows when the school does not exist.
func (r *SchoolRepository) LoadRecord(ctx context.Context, schoolID string) (*models.EnrollmentRecord, error) {
	const query = `SELECT id, enrolled_at, active_from, opted_out_at, version FROM schools WHERE id = $1`
	var row struct {
		ID         string     `db:"id"`
		EnrolledAt *time.Time `db:"enrolled_at"`
		ActiveFrom *time.Time `db:"active_from"`
		OptedOutAt *time.Time `db:"opted_out_at"`
		Version    int        `db:"version"`
	}
	if err := r.db.GetContext(ctx, &row, query, schoolID); err != nil {
		return nil, err
	}

	const historyQuery = `SELECT id, school_id, event_type, event_date, actor, created_at
        FROM enrollment_events WHERE school_id = $1 ORDER BY event_date ASC, created_at ASC`
	var history []models.EnrollmentEvent
	if err := r.db.SelectContext(ctx, &history, historyQuery, schoolID); err != nil {
		return nil, fmt.Errorf("load enrollment history: %w", err)
	}

	return &models.EnrollmentRecord{
		SchoolID:   row.ID,
		EnrolledAt: row.EnrolledAt,
		ActiveFrom: row.ActiveFrom,
		OptedOutAt: row.OptedOutAt,
		Version:    row.Version,
		History:    history,
	}, nil
}

// SaveRecord persists the record with a compare-and-swap on its version and
// appends the new history events in the same transaction. A stale version
// returns appErrors.ErrConflict and writes nothing.
func (r *SchoolRepository) SaveRecord(ctx context.Context, record *models.EnrollmentRecord, events []models.EnrollmentEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `UPDATE schools
        SET enrolled_at = $2, active_from = $3, opted_out_at = $4, version = version + 1, updated_at = $5
        WHERE id = $1 AND version = $6`
	result, err := tx.ExecContext(ctx, query,
		record.SchoolID, record.EnrolledAt, record.ActiveFrom, record.OptedOutAt, time.Now().UTC(), record.Version)
	if err != nil {
		return fmt.Errorf("save enrollment record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save enrollment record: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrConflict
	}

	const eventQuery = `INSERT INTO enrollment_events (id, school_id, event_type, event_date, actor, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	for _, event := range events {
		if _, err := tx.ExecContext(ctx, eventQuery,
			event.ID, event.SchoolID, event.Type, event.Date, event.Actor, event.CreatedAt); err != nil {
			return fmt.Errorf("append enrollment event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save record: %w", err)
	}
	record.Version++
	return nil
}
