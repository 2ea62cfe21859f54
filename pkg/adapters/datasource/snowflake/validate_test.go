package snowflake

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
)

const (
	unquotedFilter = `SELECT "name" FROM TABLE(RESULT_SCAN(LAST_QUERY_ID())) WHERE UPPER("name") = UPPER(?)`
	quotedFilter   = `SELECT "name" FROM TABLE(RESULT_SCAN(LAST_QUERY_ID())) WHERE "name" = ?`
)

func expectProbe(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(ProbeQuery).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
}

func TestTestConnection_MissingTargetMakesNoCall(t *testing.T) {
	tests := []struct {
		name      string
		database  string
		warehouse string
		field     string
	}{
		{name: "database blank", database: "", warehouse: "WH", field: "database"},
		{name: "database whitespace", database: "   ", warehouse: "WH", field: "database"},
		{name: "warehouse blank", database: "DB", warehouse: "", field: "warehouse"},
		{name: "both blank reports database", field: "database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := testCredentials()
			creds.Database = tt.database
			creds.Warehouse = tt.warehouse
			a, mock, calls := newMockAdapter(t, creds)

			err := a.TestConnection(context.Background())

			var missing *apperrors.MissingParameterError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.field, missing.Field)
			assert.Contains(t, err.Error(), tt.field)
			assert.Equal(t, int32(0), calls.Load())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTestConnection_TargetFromOptions(t *testing.T) {
	creds := testCredentials()
	creds.Database = ""
	creds.Options = map[string]any{"Database": "FROM_OPTIONS"}
	assert.NoError(t, creds.RequireTarget())
	assert.Equal(t, "FROM_OPTIONS", creds.EffectiveDatabase())
}

func TestTestConnection_Success(t *testing.T) {
	a, mock, calls := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	expectProbe(mock)
	mock.ExpectQuery("SHOW WAREHOUSES").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("COMPUTE_WH"))
	mock.ExpectQuery(unquotedFilter).WithArgs("COMPUTE_WH").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("COMPUTE_WH"))
	mock.ExpectQuery("SHOW DATABASES").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ANALYTICS"))
	mock.ExpectQuery(unquotedFilter).WithArgs("ANALYTICS").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ANALYTICS"))
	mock.ExpectClose()

	require.NoError(t, a.TestConnection(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	// the test session is separate from the adapter's own
	assert.Equal(t, datasource.StateClosed, a.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestConnection_ProbeFailure(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	mock.ExpectQuery(ProbeQuery).WillReturnError(errors.New("000606 (57P03): No active warehouse selected\nin the current session"))
	mock.ExpectClose()

	err := a.TestConnection(context.Background())

	var probeErr *apperrors.ProbeQueryError
	require.ErrorAs(t, err, &probeErr)
	assert.NotContains(t, probeErr.Message, "\n")
	assert.Contains(t, err.Error(), "No active warehouse")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestConnection_WarehouseNotFound(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	expectProbe(mock)
	mock.ExpectQuery("SHOW WAREHOUSES").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("OTHER_WH"))
	mock.ExpectQuery(unquotedFilter).WithArgs("COMPUTE_WH").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectClose()

	err := a.TestConnection(context.Background())

	require.ErrorIs(t, err, apperrors.ErrNotFound)
	var nf *apperrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "warehouse", nf.Kind)
	assert.Equal(t, "COMPUTE_WH", nf.Name)
	assert.Contains(t, err.Error(), `"COMPUTE_WH"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestConnection_QuotedDatabaseMatchesExactly(t *testing.T) {
	creds := testCredentials()
	creds.Database = `"Mixed Case"`
	a, mock, _ := newMockAdapter(t, creds)
	expectSetup(mock)
	expectProbe(mock)
	mock.ExpectQuery("SHOW WAREHOUSES").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("COMPUTE_WH"))
	mock.ExpectQuery(unquotedFilter).WithArgs("COMPUTE_WH").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("COMPUTE_WH"))
	mock.ExpectQuery("SHOW DATABASES").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("MIXED CASE"))
	mock.ExpectQuery(quotedFilter).WithArgs("Mixed Case").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectClose()

	err := a.TestConnection(context.Background())

	var nf *apperrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "database", nf.Kind)
	assert.Equal(t, `"Mixed Case"`, nf.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestConnection_OpenFailureIsConnectionError(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	mock.ExpectExec(SessionSetup).WillReturnError(errors.New("390100 (08004): Incorrect username or password was specified."))
	mock.ExpectClose()

	err := a.TestConnection(context.Background())

	assert.True(t, apperrors.IsConnectionError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistenceQuery(t *testing.T) {
	sqlText, args, err := ExistenceQuery("analytics").ToSql()
	require.NoError(t, err)
	assert.Equal(t, unquotedFilter, sqlText)
	assert.Equal(t, []any{"analytics"}, args)

	sqlText, args, err = ExistenceQuery(`"Analytics"`).ToSql()
	require.NoError(t, err)
	assert.Equal(t, quotedFilter, sqlText)
	assert.Equal(t, []any{"Analytics"}, args)
}
