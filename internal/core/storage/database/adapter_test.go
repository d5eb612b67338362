package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

func TestNewAdapterFromDB_ValidatesSchema(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		mock    func(mock sqlmock.Sqlmock)
		wantErr string
	}{
		{
			name:  "plain table",
			table: "sales_ledger",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryTableExistsPostgres)).
					WithArgs("", "sales_ledger").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectPrepare(regexp.QuoteMeta(fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger")))
			},
		},
		{
			name:  "schema qualified table",
			table: "reporting.sales",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryTableExistsPostgres)).
					WithArgs("reporting", "sales").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectPrepare(regexp.QuoteMeta(fmt.Sprintf(queryLoadRecordsPostgres, "reporting.sales")))
			},
		},
		{
			name:  "missing table",
			table: "sales_ledger",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryTableExistsPostgres)).
					WithArgs("", "sales_ledger").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: "sales_ledger table does not exist",
		},
		{
			name:    "unsafe table name",
			table:   "sales;--",
			mock:    func(mock sqlmock.Sqlmock) {},
			wantErr: "invalid table name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tc.mock(mock)
			adapter, err := NewAdapterFromDB(db, DriverPostgres, tc.table)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				require.Nil(t, adapter)
			} else {
				require.NoError(t, err)
				require.Equal(t, DriverPostgres, adapter.Name())
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_Load(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger"))).
		WillReturnRows(sqlmock.NewRows(recordRowColumns()).
			AddRow("2024-01-15", "SKU1", 10.0, 2.0, 20.0).
			AddRow("2024-01-20", "SKU2", 5.0, 10.0, 50.0),
		).RowsWillBeClosed()

	records, err := adapter.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []v1.Record{
		{Date: "2024-01-15", SKU: "SKU1", UnitPrice: 10, Quantity: 2, TotalPrice: 20},
		{Date: "2024-01-20", SKU: "SKU2", UnitPrice: 5, Quantity: 10, TotalPrice: 50},
	}, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_LoadEmptyTable(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger"))).
		WillReturnRows(sqlmock.NewRows(recordRowColumns()))

	records, err := adapter.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestAdapter_LoadErrors(t *testing.T) {
	t.Run("query fails", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		queryErr := errors.New("connection reset")
		mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger"))).
			WillReturnError(queryErr)

		records, err := adapter.Load(context.Background())
		require.ErrorIs(t, err, queryErr)
		require.Nil(t, records)
	})

	t.Run("bad row", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger"))).
			WillReturnRows(sqlmock.NewRows(recordRowColumns()).
				AddRow("2024-01-15", "SKU1", 10.0, "lots", 20.0))

		records, err := adapter.Load(context.Background())
		require.ErrorContains(t, err, "failed to scan ledger row")
		require.Nil(t, records)
	})

	t.Run("iteration fails", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		rowErr := errors.New("broken pipe")
		mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger"))).
			WillReturnRows(sqlmock.NewRows(recordRowColumns()).
				AddRow("2024-01-15", "SKU1", 10.0, 2.0, 20.0).
				RowError(0, rowErr))

		records, err := adapter.Load(context.Background())
		require.ErrorIs(t, err, rowErr)
		require.Nil(t, records)
	})
}

func TestAdapter_CloseReturnsDBCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbCloseErr := errors.New("db close failed")

	query := fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger")
	mock.ExpectPrepare(regexp.QuoteMeta(query)).WillBeClosed()
	stmtLoad, err := db.Prepare(query)
	require.NoError(t, err)

	mock.ExpectClose().WillReturnError(dbCloseErr)

	adapter := &Adapter{db: db, driver: DriverPostgres, stmtLoad: stmtLoad, ownsDB: true}

	err = adapter.Close()
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to close database")
	require.ErrorIs(t, err, dbCloseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CloseLeavesSharedDBOpen(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	require.NoError(t, adapter.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewAdapter_RejectsUnknownDriver(t *testing.T) {
	_, err := NewAdapter(Options{Driver: "mysql", DSN: "x", Table: "sales_ledger"})
	require.ErrorContains(t, err, `unsupported database driver "mysql"`)
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:       db,
		driver:   DriverPostgres,
		stmtLoad: mustPrepareStmt(t, db, mock, fmt.Sprintf(queryLoadRecordsPostgres, "sales_ledger")),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func recordRowColumns() []string {
	return []string{"date", "sku", "unit_price", "quantity", "total_price"}
}
