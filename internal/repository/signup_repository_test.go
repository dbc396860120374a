package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newSignupRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSignupRepositoryCountForSchool(t *testing.T) {
	db, mock, cleanup := newSignupRepoMock(t)
	defer cleanup()
	repo := NewSignupRepository(db)

	from := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("c.starts_on BETWEEN $2 AND $3")).
		WithArgs("sch-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountForSchool(context.Background(), "sch-1", from, to)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryListForSchool(t *testing.T) {
	db, mock, cleanup := newSignupRepoMock(t)
	defer cleanup()
	repo := NewSignupRepository(db)

	from := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)
	starts := time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.starts_on ASC, cs.created_at ASC")).
		WithArgs("sch-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "course_id", "school_id", "attendee_name", "email", "attended", "created_at",
			"course_name", "course_starts_on", "course_location",
		}).AddRow("sg-1", "crs-1", "sch-1", "Mette Hansen", "mh@example.dk", nil, starts,
			"Basal grundkursus", starts, "Aarhus"))

	signups, err := repo.ListForSchool(context.Background(), "sch-1", from, to)
	require.NoError(t, err)
	require.Len(t, signups, 1)
	require.Equal(t, "sg-1", signups[0].ID)
	require.Equal(t, "Basal grundkursus", signups[0].CourseName)
	require.Equal(t, "Aarhus", signups[0].CourseLocation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryListCourses(t *testing.T) {
	db, mock, cleanup := newSignupRepoMock(t)
	defer cleanup()
	repo := NewSignupRepository(db)

	from := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)
	starts := time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE starts_on BETWEEN $1 AND $2 ORDER BY starts_on ASC")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "starts_on", "location", "capacity", "created_at"}).
			AddRow("crs-1", "Basal grundkursus", starts, "Aarhus", 24, starts))

	courses, err := repo.ListCourses(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "Basal grundkursus", courses[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
