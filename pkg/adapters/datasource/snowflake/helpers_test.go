package snowflake

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	sqlpkg "github.com/ekaya-inc/snowflake-catalog/pkg/sql"
)

func testCredentials() *Credentials {
	return &Credentials{
		Name:          "test",
		Account:       "myorg-acct",
		Database:      "ANALYTICS",
		Warehouse:     "COMPUTE_WH",
		Username:      "analyst",
		Password:      "s3cret",
		Authenticator: AuthSnowflake,
	}
}

// newMockAdapter builds an adapter whose opener hands out one sqlmock DB.
// Expectations for the session setup statement are left to the caller.
func newMockAdapter(t *testing.T, creds *Credentials) (*Adapter, sqlmock.Sqlmock, *atomic.Int32) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var calls atomic.Int32
	opener := func(context.Context) (*sql.DB, error) {
		calls.Add(1)
		return db, nil
	}
	return newAdapter(creds, opener, zaptest.NewLogger(t)), mock, &calls
}

func expectSetup(mock sqlmock.Sqlmock) {
	mock.ExpectExec(SessionSetup).WillReturnResult(sqlmock.NewResult(0, 0))
}

// normalized is the statement text the backend receives for a rendered
// template, after the trailing semicolon is dropped.
func normalized(t *testing.T, query string) string {
	t.Helper()
	out, err := sqlpkg.NormalizeStatement(query)
	require.NoError(t, err)
	return out
}
