package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/basal-program/admin-api/internal/models"
)

func newInvoiceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInvoiceRepositoryExistingKeys(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT school_id, kind FROM invoices WHERE school_year = $1")).
		WithArgs("2024/25").
		WillReturnRows(sqlmock.NewRows([]string{"school_id", "kind"}).
			AddRow("sch-1", models.InvoiceKindAnchoring).
			AddRow("sch-1", models.InvoiceKindExtraSeats))

	keys, err := repo.ExistingKeys(context.Background(), "2024/25")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, models.InvoiceKey{SchoolID: "sch-1", Kind: models.InvoiceKindAnchoring}, keys[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryExists(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM invoices WHERE school_id = $1 AND school_year = $2 AND kind = $3 LIMIT 1")).
		WithArgs("sch-1", "2024/25", models.InvoiceKindAnchoring).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.Exists(context.Background(), "sch-1", "2024/25", models.InvoiceKindAnchoring)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
