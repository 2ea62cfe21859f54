package tools

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/snowflakedb/gosnowflake"

	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
	sqlpkg "github.com/ekaya-inc/snowflake-catalog/pkg/sql"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can act on are returned as a successful tool call
// carrying this payload so the client shows them instead of swallowing them.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Do NOT use this for internal failures; those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorResult maps the adapter error taxonomy onto tool error codes.
// Anything it does not recognize is returned as a Go error.
func errorResult(err error) (*mcp.CallToolResult, error) {
	var (
		missing  *apperrors.MissingParameterError
		finding  *sqlpkg.InjectionFinding
		notFound *apperrors.NotFoundError
		probe    *apperrors.ProbeQueryError
		queryErr *apperrors.QueryError
		bindErr  *apperrors.TemplateBindingError
	)
	switch {
	case errors.As(err, &missing):
		return NewErrorResult("missing_parameter", err.Error()), nil
	case errors.As(err, &finding):
		return NewErrorResultWithDetails("security_violation", err.Error(),
			map[string]any{"field": finding.Field, "fingerprint": finding.Fingerprint}), nil
	case errors.As(err, &notFound):
		return NewErrorResultWithDetails("not_found", err.Error(),
			map[string]any{"kind": notFound.Kind, "name": notFound.Name}), nil
	case errors.As(err, &probe):
		return NewErrorResult("probe_failed", err.Error()), nil
	case errors.As(err, &queryErr):
		return NewErrorResult(SnowflakeErrorCode(err), queryErr.Message), nil
	case errors.As(err, &bindErr):
		return NewErrorResult("invalid_node", err.Error()), nil
	case apperrors.IsConnectionError(err):
		return NewErrorResult("connection_failed", logging.SanitizeError(err)), nil
	}
	return nil, err
}

// snowflakeErrorPattern matches the "002003 (02000): ..." prefix gosnowflake
// puts on server errors, for errors that were flattened to strings.
var snowflakeErrorPattern = regexp.MustCompile(`^(\d{6}) \(([0-9A-Z]{5})\)`)

// SnowflakeErrorCode returns a short code for a failed statement.
// Returns "query_failed" when the error number is unknown.
func SnowflakeErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		return mapErrorNumber(sfErr.Number)
	}
	if matches := snowflakeErrorPattern.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		n, _ := strconv.Atoi(matches[1])
		return mapErrorNumber(n)
	}
	return "query_failed"
}

func mapErrorNumber(n int) string {
	switch n {
	case 1003: // SQL compilation error: syntax error
		return "syntax_error"
	case 2003: // object does not exist or not authorized
		return "object_not_found"
	case 904: // invalid identifier
		return "invalid_identifier"
	case 606: // no active warehouse selected
		return "no_active_warehouse"
	case 3001: // insufficient privileges
		return "insufficient_privileges"
	case 100038, 100035: // numeric / date value not recognized
		return "invalid_input"
	case 604: // statement cancelled
		return "query_cancelled"
	}
	return "query_failed"
}
