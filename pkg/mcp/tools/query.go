package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
)

// RegisterQueryTools registers the ad-hoc SQL tool.
func RegisterQueryTools(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"run_query",
		mcp.WithDescription(
			"Execute one SQL statement against the connection and return the rows. "+
				"Use ? placeholders with bindings for values. Only one statement per call.",
		),
		connectionArg(),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SQL statement to execute")),
		mcp.WithArray("bindings", mcp.Description("Positional values for ? placeholders")),
		mcp.WithString("request_id", mcp.Description("Opaque id echoed back in the result")),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, err := req.RequireString("sql")
		if err != nil || trimString(sqlText) == "" {
			return errorResult(missingArg("sql"))
		}

		var bindings []any
		if raw, ok := req.GetArguments()["bindings"].([]any); ok {
			bindings = raw
		}

		ex, err := deps.openExplorer(ctx, req)
		if err != nil {
			return errorResult(err)
		}
		return queryResult(ex.Execute(ctx, sqlText, bindings, req.GetString("request_id", "")))
	})
}

// queryResult returns the QueryResult as JSON. Failed statements are
// marked as tool errors with the result attached as details.
func queryResult(result datasource.QueryResult) (*mcp.CallToolResult, error) {
	if !result.Error {
		return jsonResult(result)
	}
	message := ""
	if len(result.Messages) > 0 {
		message = result.Messages[0]
	}
	if apperrors.IsConnectionError(result.RawError) {
		return NewErrorResultWithDetails("connection_failed", message, result), nil
	}
	return NewErrorResultWithDetails(SnowflakeErrorCode(result.RawError), message, result), nil
}

func missingArg(field string) error {
	return &apperrors.MissingParameterError{Field: field}
}
