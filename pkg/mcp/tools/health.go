package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
)

type healthResult struct {
	Status      string                      `json:"status"`
	Version     string                      `json:"version"`
	Adapters    []string                    `json:"adapters"`
	Connections *datasource.ConnectionStats `json:"connections,omitempty"`
}

// StatsSource reports managed connection state. *datasource.ConnectionManager satisfies it.
type StatsSource interface {
	Stats() datasource.ConnectionStats
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and open connections.
// stats may be nil.
func RegisterHealthTool(s *server.MCPServer, version string, stats StatsSource) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version, Adapters: []string{}}
		for _, info := range datasource.RegisteredAdapters() {
			result.Adapters = append(result.Adapters, info.Type)
		}
		if stats != nil {
			snapshot := stats.Stats()
			result.Connections = &snapshot
		}
		return jsonResult(result)
	})
}
