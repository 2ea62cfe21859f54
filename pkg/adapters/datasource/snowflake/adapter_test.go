package snowflake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
	"github.com/ekaya-inc/snowflake-catalog/pkg/testhelpers"
)

func TestAdapter_ExecuteTagsConnection(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	mock.ExpectQuery("SELECT CURRENT_ROLE() AS ROLE").
		WillReturnRows(sqlmock.NewRows([]string{"ROLE"}).AddRow("ANALYST"))

	result := a.Execute(context.Background(), "SELECT CURRENT_ROLE() AS ROLE;", nil, "req-7")

	assert.False(t, result.Error)
	assert.Equal(t, "test", result.ConnID)
	assert.Equal(t, "req-7", result.RequestID)
	assert.Equal(t, []string{"ROLE"}, result.Cols)

	mock.ExpectClose()
	require.NoError(t, a.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ShowRecords(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	rc := RecordsContext{Table: ordersTable}
	mock.ExpectQuery(normalized(t, Queries.FetchRecords.MustRender(rc))).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "AMOUNT"}).AddRow(int64(1), "9.99").AddRow(int64(2), "5.00"))
	mock.ExpectQuery(normalized(t, Queries.CountRecords.MustRender(rc))).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(120)))

	result := a.ShowRecords(context.Background(), ordersTable, 0, 0)

	require.False(t, result.Error)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, int64(120), result.Total)
	assert.Equal(t, []string{"Query ok with 2 results", "Showing 2 of 120 records"}, result.Messages)

	mock.ExpectClose()
	require.NoError(t, a.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ShowRecordsFailure(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	rc := RecordsContext{Table: ordersTable, Limit: 10, Offset: 20}
	mock.ExpectQuery(normalized(t, Queries.FetchRecords.MustRender(rc))).
		WillReturnError(errors.New("insufficient privileges"))

	result := a.ShowRecords(context.Background(), ordersTable, 10, 20)

	assert.True(t, result.Error)
	assert.Equal(t, []string{"insufficient privileges"}, result.Messages)
	assert.Zero(t, result.Total)

	mock.ExpectClose()
	require.NoError(t, a.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_DescribeTable(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	mock.ExpectQuery(Queries.DescribeTable.MustRender(ordersTable)).
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE"}).AddRow("ID", "NUMBER"))

	result := a.DescribeTable(context.Background(), ordersTable)

	require.False(t, result.Error)
	assert.Equal(t, "ID", result.Results[0]["COLUMN_NAME"])

	mock.ExpectClose()
	require.NoError(t, a.Close())
}

func TestAdapter_SearchItemsRunsSearchStatements(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	mock.ExpectQuery(normalized(t, Queries.SearchTables.MustRender(SearchContext{}))).
		WillReturnRows(sqlmock.NewRows([]string{"label", "type", "schema", "database", "isView", "detail"}))
	mock.ExpectQuery(normalized(t, Queries.SearchColumns.MustRender(SearchContext{}))).
		WillReturnRows(sqlmock.NewRows([]string{"label", "table", "dataType"}))

	tables, err := a.SearchItems(context.Background(), datasource.NodeTable, "ord")
	require.NoError(t, err)
	assert.NotNil(t, tables)
	assert.Empty(t, tables)

	columns, err := a.SearchItems(context.Background(), datasource.NodeColumn, "id")
	require.NoError(t, err)
	assert.NotNil(t, columns)
	assert.Empty(t, columns)

	mock.ExpectClose()
	require.NoError(t, a.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SearchItemsMapsRows(t *testing.T) {
	a, mock, _ := newMockAdapter(t, testCredentials())
	expectSetup(mock)
	mock.ExpectQuery(normalized(t, Queries.SearchTables.MustRender(SearchContext{}))).
		WillReturnRows(sqlmock.NewRows([]string{"label", "type", "schema", "database", "isView", "detail"}).
			AddRow("ORDERS", "table", "PUBLIC", "ANALYTICS", false, "PUBLIC.ANALYTICS.ORDERS").
			AddRow("ORDERS_V", "view", "PUBLIC", "ANALYTICS", true, "PUBLIC.ANALYTICS.ORDERS_V"))
	mock.ExpectQuery(normalized(t, Queries.SearchColumns.MustRender(SearchContext{}))).
		WillReturnRows(sqlmock.NewRows([]string{"label", "table", "dataType"}).AddRow("ID", "ORDERS", "NUMBER"))

	tables, err := a.SearchItems(context.Background(), datasource.NodeView, "ord")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, datasource.NodeTable, tables[0].Type)
	assert.Equal(t, "ANALYTICS", tables[0].Database)
	assert.Equal(t, "PUBLIC", tables[0].Schema)
	assert.Equal(t, datasource.NodeView, tables[1].Type)

	columns, err := a.SearchItems(context.Background(), datasource.NodeColumn, "id")
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.Equal(t, "ID", columns[0].Label)
	assert.Equal(t, "ORDERS", columns[0].Table)
	assert.Equal(t, "NUMBER", columns[0].Detail)

	mock.ExpectClose()
	require.NoError(t, a.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SearchOtherTypesSkipBackend(t *testing.T) {
	a, _, calls := newMockAdapter(t, testCredentials())

	items, err := a.SearchItems(context.Background(), datasource.NodeStage, "st")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Empty(t, a.StaticCompletions())
	assert.Equal(t, int32(0), calls.Load())
}

func TestOpener_ExpiredTokenFailsBeforeDialing(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := testCredentials()
	creds.Authenticator = AuthOAuth
	creds.Token = testhelpers.GenerateOAuthToken("analyst", now.Add(-time.Hour))

	opener := NewOpener(creds, func() time.Time { return now })
	a := newAdapter(creds, opener, zaptest.NewLogger(t))

	err := a.Open(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectionError(err))
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, datasource.StateClosed, a.State())
}

func TestOpener_BuildsLazyHandle(t *testing.T) {
	opener := NewOpener(testCredentials(), time.Now)

	// sql.OpenDB does not dial; nothing reaches the network here
	db, err := opener(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
	require.NoError(t, db.Close())
}

func TestRegistration(t *testing.T) {
	require.True(t, datasource.IsRegistered(AdapterType))

	factory := datasource.GetFactory(AdapterType)
	explorer, err := factory(map[string]any{
		"name":      "reg",
		"account":   "myorg-acct",
		"username":  "analyst",
		"database":  "ANALYTICS",
		"warehouse": "COMPUTE_WH",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, explorer)
	assert.Equal(t, datasource.StateClosed, explorer.State())
	require.NoError(t, explorer.Close())

	_, err = factory(map[string]any{"name": "bad"}, nil)
	assert.Error(t, err)
}
