package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
)

type testConnectionResult struct {
	Connection string `json:"connection,omitempty"`
	Status     string `json:"status"`
}

// RegisterConnectionTools registers test_connection.
func RegisterConnectionTools(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Check that a connection works: database and warehouse are set, the session opens, " +
				"a probe query runs and both the warehouse and database exist.",
		),
		connectionArg(),
	}
	opts = append(opts, readOnly()...)
	tool := mcp.NewTool("test_connection", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := trimString(req.GetString("connection", ""))
		ex, err := deps.Explorers.Explorer(ctx, name)
		if err != nil {
			return errorResult(err)
		}

		if err := ex.TestConnection(ctx); err != nil {
			deps.Logger.Info("connection test failed",
				zap.String("connection", name),
				zap.String("error", logging.SanitizeError(err)),
			)
			return errorResult(err)
		}
		return jsonResult(testConnectionResult{Connection: name, Status: "ok"})
	})
}
