package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
	"github.com/ekaya-inc/snowflake-catalog/pkg/metrics"
	sqlpkg "github.com/ekaya-inc/snowflake-catalog/pkg/sql"
)

var newlineCollapser = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Execute runs one statement on session and shapes the outcome into a
// QueryResult. It never returns an error: open failures, rejected
// statements and backend errors all come back with Error set.
//
// The statement is trimmed and its terminating semicolon dropped; text with
// more than one statement is rejected without reaching the backend.
func Execute(ctx context.Context, session *Session, sqlText string, bindings []any, requestID string) QueryResult {
	start := time.Now()
	result := QueryResult{
		RequestID: requestID,
		ResultID:  uuid.NewString(),
		Query:     sqlText,
	}

	stmt, err := sqlpkg.NormalizeStatement(sqlText)
	if err != nil {
		return failed(result, err, start)
	}
	result.Query = stmt

	cols, rows, err := session.Query(ctx, stmt, bindings...)
	if err != nil {
		session.logger.Debug("query failed",
			zap.String("query", logging.SanitizeQuery(stmt)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return failed(result, err, start)
	}

	if len(rows) == 0 {
		cols = []string{}
	}
	result.Cols = cols
	result.Results = rows
	result.Messages = []string{fmt.Sprintf("Query ok with %d results", len(rows))}
	metrics.RecordQuery(time.Since(start).Seconds(), len(rows), false)
	return result
}

// Failed builds the error form of a QueryResult for err.
func Failed(requestID, query string, err error) QueryResult {
	return failed(QueryResult{
		RequestID: requestID,
		ResultID:  uuid.NewString(),
		Query:     query,
	}, err, time.Now())
}

func failed(result QueryResult, err error, start time.Time) QueryResult {
	result.Error = true
	result.RawError = err
	result.Cols = []string{}
	result.Results = []map[string]any{}
	result.Messages = []string{SingleLine(logging.SanitizeError(err))}
	metrics.RecordQuery(time.Since(start).Seconds(), 0, true)
	return result
}

// SingleLine collapses embedded line breaks into spaces.
func SingleLine(msg string) string {
	return newlineCollapser.Replace(msg)
}
