package snowflake

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
)

// ProbeQuery is the statement used to confirm a session can execute.
const ProbeQuery = "SELECT 1"

// statements are rendered with ? placeholders, which gosnowflake binds.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// TestConnection checks that database and warehouse are set, opens a fresh
// session, runs the probe and confirms both objects exist. The session is
// always closed before returning.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.creds.RequireTarget(); err != nil {
		return err
	}

	session := datasource.NewSession(a.opener, []string{SessionSetup}, a.logger)
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Warn("failed to close test session", zap.Error(err))
		}
	}()

	probe := datasource.Execute(ctx, session, ProbeQuery, nil, "")
	if probe.Error {
		if apperrors.IsConnectionError(probe.RawError) {
			return probe.RawError
		}
		return &apperrors.ProbeQueryError{Message: probe.Messages[0], Cause: probe.RawError}
	}

	return session.Run(ctx, func(ctx context.Context, q datasource.Queryer) error {
		if err := checkExists(ctx, q, "warehouse", "SHOW WAREHOUSES", a.creds.EffectiveWarehouse()); err != nil {
			return err
		}
		return checkExists(ctx, q, "database", "SHOW DATABASES", a.creds.EffectiveDatabase())
	})
}

// checkExists runs show and filters its output with RESULT_SCAN. Both
// statements run on the same connection turn so LAST_QUERY_ID() refers to
// the SHOW.
func checkExists(ctx context.Context, q datasource.Queryer, kind, show, name string) error {
	if _, _, err := datasource.FetchRows(ctx, q, show); err != nil {
		return &apperrors.QueryError{Message: datasource.SingleLine(err.Error()), Cause: err}
	}

	query, args, err := ExistenceQuery(name).ToSql()
	if err != nil {
		return err
	}
	_, rows, err := datasource.FetchRows(ctx, q, query, args...)
	if err != nil {
		return &apperrors.QueryError{Message: datasource.SingleLine(err.Error()), Cause: err}
	}
	if len(rows) == 0 {
		return &apperrors.NotFoundError{Kind: kind, Name: name}
	}
	return nil
}

// ExistenceQuery filters the previous SHOW output by name. Unquoted names
// compare case-insensitively; a double-quoted name is stripped and must
// match exactly.
func ExistenceQuery(name string) sq.SelectBuilder {
	b := psql.Select(`"name"`).From("TABLE(RESULT_SCAN(LAST_QUERY_ID()))")
	if stripped := StripQuotes(name); stripped != name {
		return b.Where(sq.Eq{`"name"`: stripped})
	}
	return b.Where(`UPPER("name") = UPPER(?)`, strings.TrimSpace(name))
}
