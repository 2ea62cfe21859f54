package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/retry"
)

// ExplorerSource resolves connection names to explorers. An empty name
// selects the default connection. Returned explorers are not yet open.
type ExplorerSource interface {
	Explorer(ctx context.Context, name string) (datasource.Explorer, error)
}

// Deps contains dependencies shared by the catalog tools.
type Deps struct {
	Explorers ExplorerSource
	// Retry bounds how often a transient open failure is retried.
	// nil means retry.DefaultConfig.
	Retry  *retry.Config
	Logger *zap.Logger
}

// openExplorer resolves and opens the connection named by the request's
// "connection" argument.
func (d *Deps) openExplorer(ctx context.Context, req mcp.CallToolRequest) (datasource.Explorer, error) {
	ex, err := d.Explorers.Explorer(ctx, trimString(req.GetString("connection", "")))
	if err != nil {
		return nil, err
	}
	_, err = retry.DoIfRetryable(ctx, d.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, ex.Open(ctx)
	})
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// connectionArg is shared by every tool that talks to a warehouse.
func connectionArg() mcp.ToolOption {
	return mcp.WithString("connection",
		mcp.Description("Name of the configured connection. Optional when only one connection is configured or a default is set."),
	)
}

// readOnly marks a tool that never changes warehouse state.
func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	}
}
