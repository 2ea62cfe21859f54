package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/snowflake-catalog/pkg/sql"
)

// RegisterCatalogTools registers the tree navigation and table inspection tools.
func RegisterCatalogTools(s *server.MCPServer, deps *Deps) {
	registerListChildrenTool(s, deps)
	registerDescribeTableTool(s, deps)
	registerPreviewRecordsTool(s, deps)
}

type listChildrenResult struct {
	Node     datasource.CatalogNode   `json:"node"`
	Children []datasource.CatalogNode `json:"children"`
}

func nodeArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("database", mcp.Description("Database the node belongs to")),
		mcp.WithString("schema", mcp.Description("Schema the node belongs to")),
		mcp.WithString("label", mcp.Description("Display label of the node (database, schema, folder or object name)")),
		mcp.WithString("identifier", mcp.Description("Original identifier when it differs from the label, e.g. a quoted stage name")),
	}
}

// nodeFromRequest builds a CatalogNode from tool arguments and screens
// every attribute that templates interpolate.
func nodeFromRequest(req mcp.CallToolRequest, nodeType datasource.NodeType) (datasource.CatalogNode, error) {
	node := datasource.CatalogNode{
		Type:       nodeType,
		Label:      trimString(req.GetString("label", "")),
		Identifier: trimString(req.GetString("identifier", "")),
		Database:   trimString(req.GetString("database", "")),
		Schema:     trimString(req.GetString("schema", "")),
		ChildType:  datasource.ParseNodeType(trimString(req.GetString("child_type", ""))),
	}
	err := sqlpkg.ScreenIdentifiers(map[string]string{
		"database":   node.Database,
		"schema":     node.Schema,
		"label":      node.Label,
		"identifier": node.Identifier,
	})
	return node, err
}

func registerListChildrenTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"List the children of a catalog node. Start with node_type=connection to list databases, " +
				"then walk database -> Schemas folder -> schema -> object folders (Tables, Views, Stages, ...) -> objects -> columns. " +
				"Pass back the node fields returned by the previous call.",
		),
		connectionArg(),
		mcp.WithString("node_type", mcp.Required(),
			mcp.Description("Type of the node to expand: connection, database, schema, resource-group, table, view or materialized-view"),
		),
		mcp.WithString("child_type", mcp.Description("For resource-group nodes, the type of object the folder lists")),
	}
	opts = append(opts, nodeArgs()...)
	opts = append(opts, readOnly()...)
	tool := mcp.NewTool("list_children", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawType, err := req.RequireString("node_type")
		if err != nil {
			return NewErrorResult("missing_parameter", err.Error()), nil
		}

		node, err := nodeFromRequest(req, datasource.ParseNodeType(trimString(rawType)))
		if err != nil {
			deps.Logger.Warn("rejected node attributes", zap.Error(err))
			return errorResult(err)
		}

		ex, err := deps.openExplorer(ctx, req)
		if err != nil {
			return errorResult(err)
		}

		children, err := ex.ChildrenOf(ctx, node, nil)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(listChildrenResult{Node: node, Children: children})
	})
}

func registerDescribeTableTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Return INFORMATION_SCHEMA column metadata for a table or view."),
		connectionArg(),
	}
	opts = append(opts, nodeArgs()...)
	opts = append(opts, readOnly()...)
	tool := mcp.NewTool("describe_table", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := tableFromRequest(req)
		if err != nil {
			return errorResult(err)
		}
		ex, err := deps.openExplorer(ctx, req)
		if err != nil {
			return errorResult(err)
		}
		return queryResult(ex.DescribeTable(ctx, table))
	})
}

func registerPreviewRecordsTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Preview rows of a table or view. Defaults to the first 50 rows."),
		connectionArg(),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Rows to skip (default 0)")),
	}
	opts = append(opts, nodeArgs()...)
	opts = append(opts, readOnly()...)
	tool := mcp.NewTool("preview_records", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := tableFromRequest(req)
		if err != nil {
			return errorResult(err)
		}
		limit := req.GetInt("limit", 0)
		offset := req.GetInt("offset", 0)
		if limit < 0 || offset < 0 {
			return NewErrorResult("invalid_parameter", "limit and offset must not be negative"), nil
		}

		ex, err := deps.openExplorer(ctx, req)
		if err != nil {
			return errorResult(err)
		}
		return queryResult(ex.ShowRecords(ctx, table, limit, offset))
	})
}

func tableFromRequest(req mcp.CallToolRequest) (datasource.CatalogNode, error) {
	table, err := nodeFromRequest(req, datasource.NodeTable)
	if err != nil {
		return table, err
	}
	switch {
	case table.Database == "":
		return table, missingArg("database")
	case table.Schema == "":
		return table, missingArg("schema")
	case table.Label == "":
		return table, missingArg("label")
	}
	return table, nil
}
