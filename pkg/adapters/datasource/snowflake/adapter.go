package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
)

// SessionSetup is issued once on every new connection so identifier case
// handling is the same regardless of account defaults.
const SessionSetup = "ALTER SESSION SET QUOTED_IDENTIFIERS_IGNORE_CASE = FALSE"

// Adapter is the Snowflake Explorer. It owns one lazily opened session.
type Adapter struct {
	creds   *Credentials
	opener  datasource.Opener
	session *datasource.Session
	logger  *zap.Logger
}

// NewOpener returns an Opener that dials Snowflake with creds.
// The database handle is limited to one connection; the session pins it.
// For externalbrowser the SSO round trip happens when the session takes
// that connection, so the session is not open until the user completes it.
func NewOpener(creds *Credentials, now func() time.Time) datasource.Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		if creds.Authenticator == AuthOAuth {
			if err := CheckTokenExpiry(creds.Token, now()); err != nil {
				return nil, err
			}
		}

		cfg, err := creds.DriverConfig()
		if err != nil {
			return nil, err
		}

		db := sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, *cfg))
		db.SetMaxOpenConns(1)
		return db, nil
	}
}

// NewAdapter creates an unopened Snowflake adapter.
func NewAdapter(creds *Credentials, logger *zap.Logger) *Adapter {
	return newAdapter(creds, NewOpener(creds, time.Now), logger)
}

func newAdapter(creds *Credentials, opener datasource.Opener, logger *zap.Logger) *Adapter {
	logger = logging.OrNop(logger).With(zap.String("connection", creds.Name))
	return &Adapter{
		creds:   creds,
		opener:  opener,
		session: datasource.NewSession(opener, []string{SessionSetup}, logger),
		logger:  logger,
	}
}

func (a *Adapter) Open(ctx context.Context) error {
	return a.session.Open(ctx)
}

func (a *Adapter) Close() error {
	return a.session.Close()
}

func (a *Adapter) State() datasource.SessionState {
	return a.session.State()
}

// Execute runs one ad-hoc statement on the adapter's session.
func (a *Adapter) Execute(ctx context.Context, sqlText string, bindings []any, requestID string) datasource.QueryResult {
	result := datasource.Execute(ctx, a.session, sqlText, bindings, requestID)
	result.ConnID = a.creds.Name
	return result
}

// ShowRecords previews limit rows of table starting at offset. Zero limit
// and offset fall back to 50 and 0. The total row count is attached when
// the count query succeeds.
func (a *Adapter) ShowRecords(ctx context.Context, table datasource.CatalogNode, limit, offset int) datasource.QueryResult {
	rc := RecordsContext{Table: table, Limit: limit, Offset: offset}

	query, err := Queries.FetchRecords.Render(rc)
	if err != nil {
		return datasource.Failed("", Queries.FetchRecords.Name(), err)
	}
	result := a.Execute(ctx, query, nil, "")
	if result.Error {
		return result
	}

	countQuery, err := Queries.CountRecords.Render(rc)
	if err != nil {
		return result
	}
	count := a.Execute(ctx, countQuery, nil, "")
	if count.Error || len(count.Results) == 0 {
		a.logger.Debug("record count unavailable", zap.String("table", table.Name()))
		return result
	}
	if total, ok := toInt64(count.Results[0]["total"]); ok {
		result.Total = total
		result.Messages = append(result.Messages, fmt.Sprintf("Showing %d of %d records", len(result.Results), total))
	}
	return result
}

// DescribeTable returns the INFORMATION_SCHEMA column rows for table.
func (a *Adapter) DescribeTable(ctx context.Context, table datasource.CatalogNode) datasource.QueryResult {
	query, err := Queries.DescribeTable.Render(table)
	if err != nil {
		return datasource.Failed("", Queries.DescribeTable.Name(), err)
	}
	return a.Execute(ctx, query, nil, "")
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

var _ datasource.Explorer = (*Adapter)(nil)
