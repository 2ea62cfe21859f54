package snowflake

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
	"github.com/ekaya-inc/snowflake-catalog/pkg/metrics"
)

const (
	folderIcon = "folder"
	schemaIcon = "group-by-ref-type"
)

type fetcher func(a *Adapter, ctx context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error)

// objectKind describes one schema-level object folder and how its rows
// become nodes.
type objectKind struct {
	display   string
	nodeType  datasource.NodeType
	childType datasource.NodeType
	query     *nodeTemplate
	// labelColumn is the row key holding the object name.
	labelColumn string
	// stripQuotes removes wrapping double quotes from the displayed label.
	stripQuotes bool
}

// schemaObjects is the fixed folder order under a schema.
var schemaObjects = []objectKind{
	{display: "Table", nodeType: datasource.NodeTable, childType: datasource.NodeColumn, query: Queries.FetchTables, labelColumn: "label"},
	{display: "View", nodeType: datasource.NodeView, childType: datasource.NodeColumn, query: Queries.FetchViews, labelColumn: "label"},
	{display: "Materialized View", nodeType: datasource.NodeMaterializedView, childType: datasource.NodeColumn, query: Queries.FetchMaterializedViews, labelColumn: "label"},
	{display: "Stage", nodeType: datasource.NodeStage, childType: datasource.NodeNoChild, query: Queries.FetchStages, labelColumn: "name", stripQuotes: true},
	{display: "Pipe", nodeType: datasource.NodePipe, childType: datasource.NodeNoChild, query: Queries.FetchPipes, labelColumn: "name"},
	{display: "Stream", nodeType: datasource.NodeStream, childType: datasource.NodeNoChild, query: Queries.FetchStreams, labelColumn: "name"},
	{display: "Task", nodeType: datasource.NodeTask, childType: datasource.NodeNoChild, query: Queries.FetchTasks, labelColumn: "name"},
	{display: "Function", nodeType: datasource.NodeFunction, childType: datasource.NodeNoChild, query: Queries.FetchFunctions, labelColumn: "label"},
	{display: "Procedure", nodeType: datasource.NodeProcedure, childType: datasource.NodeNoChild, query: Queries.FetchProcedures, labelColumn: "label"},
	{display: "File Format", nodeType: datasource.NodeFileFormat, childType: datasource.NodeNoChild, query: Queries.FetchFileFormats, labelColumn: "name", stripQuotes: true},
	{display: "Sequence", nodeType: datasource.NodeSequence, childType: datasource.NodeNoChild, query: Queries.FetchSequences, labelColumn: "label"},
}

// FolderLabel is the display label of the folder listing objects of kind.
func FolderLabel(display string) string {
	return inflection.Plural(display)
}

var (
	// dispatch maps a node's own type to the fetcher producing its children.
	dispatch [datasource.NodeTypeCount]fetcher

	// groupDispatch maps a resource group's child type to its fetcher.
	groupDispatch [datasource.NodeTypeCount]fetcher

	// groupLabels resolves resource groups that arrive without a child type.
	groupLabels = map[string]datasource.NodeType{}
)

func init() {
	dispatch[datasource.NodeConnection] = (*Adapter).databases
	dispatch[datasource.NodeDatabase] = (*Adapter).schemaFolder
	dispatch[datasource.NodeSchema] = (*Adapter).objectFolders
	dispatch[datasource.NodeTable] = (*Adapter).columns
	dispatch[datasource.NodeView] = (*Adapter).columns
	dispatch[datasource.NodeMaterializedView] = (*Adapter).columns
	dispatch[datasource.NodeResourceGroup] = (*Adapter).group

	groupDispatch[datasource.NodeSchema] = (*Adapter).schemas
	groupLabels[FolderLabel("Schema")] = datasource.NodeSchema
	for _, kind := range schemaObjects {
		groupDispatch[kind.nodeType] = func(a *Adapter, ctx context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error) {
			return a.objects(ctx, node, kind)
		}
		groupLabels[FolderLabel(kind.display)] = kind.nodeType
	}
}

// ChildrenOf returns the children of node. The parent argument is accepted
// for host compatibility; folder and object nodes already carry the
// database and schema they belong to.
func (a *Adapter) ChildrenOf(ctx context.Context, node datasource.CatalogNode, parent *datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	if node.Database == "" && parent != nil {
		node.Database = parent.Database
	}
	if node.Schema == "" && parent != nil {
		node.Schema = parent.Schema
	}

	var fn fetcher
	if node.Type < datasource.NodeTypeCount {
		fn = dispatch[node.Type]
	}
	if fn == nil {
		metrics.RecordNavigation(node.Type.String(), "unmatched")
		return []datasource.CatalogNode{}, nil
	}

	children, err := fn(a, ctx, node)
	switch {
	case err == nil:
		metrics.RecordNavigation(node.Type.String(), "ok")
		return children, nil
	case apperrors.IsConnectionError(err):
		metrics.RecordNavigation(node.Type.String(), "connection_error")
		return nil, err
	default:
		metrics.RecordNavigation(node.Type.String(), "query_error")
		return []datasource.CatalogNode{}, err
	}
}

func (a *Adapter) group(ctx context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	childType := node.ChildType
	if childType == datasource.NodeUnknown {
		childType = groupLabels[node.Label]
	}
	fn := groupDispatch[childType]
	if fn == nil {
		return []datasource.CatalogNode{}, nil
	}
	return fn(a, ctx, node)
}

func (a *Adapter) databases(ctx context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	rows, err := a.list(ctx, Queries.FetchDatabases, node)
	if err != nil {
		return nil, err
	}
	children := make([]datasource.CatalogNode, 0, len(rows))
	for _, row := range rows {
		name := stringValue(row["name"])
		children = append(children, datasource.CatalogNode{
			Type:      datasource.NodeDatabase,
			Label:     name,
			ChildType: datasource.NodeSchema,
			Database:  name,
			Detail:    stringValue(row["comment"]),
			IconID:    "database",
		})
	}
	return children, nil
}

func (a *Adapter) schemaFolder(_ context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	database := node.Database
	if database == "" {
		database = node.Name()
	}
	return []datasource.CatalogNode{{
		Type:      datasource.NodeResourceGroup,
		Label:     FolderLabel("Schema"),
		ChildType: datasource.NodeSchema,
		Database:  database,
		IconID:    folderIcon,
	}}, nil
}

func (a *Adapter) schemas(ctx context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	rows, err := a.list(ctx, Queries.FetchSchemas, node)
	if err != nil {
		return nil, err
	}
	children := make([]datasource.CatalogNode, 0, len(rows))
	for _, row := range rows {
		name := stringValue(row["label"])
		children = append(children, datasource.CatalogNode{
			Type:      datasource.NodeSchema,
			Label:     name,
			ChildType: datasource.NodeResourceGroup,
			Database:  node.Database,
			Schema:    name,
			IconID:    schemaIcon,
		})
	}
	return children, nil
}

func (a *Adapter) objectFolders(_ context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	schema := node.Schema
	if schema == "" {
		schema = node.Name()
	}
	folders := make([]datasource.CatalogNode, 0, len(schemaObjects))
	for _, kind := range schemaObjects {
		folders = append(folders, datasource.CatalogNode{
			Type:      datasource.NodeResourceGroup,
			Label:     FolderLabel(kind.display),
			ChildType: kind.nodeType,
			Database:  node.Database,
			Schema:    schema,
			IconID:    folderIcon,
		})
	}
	return folders, nil
}

func (a *Adapter) objects(ctx context.Context, node datasource.CatalogNode, kind objectKind) ([]datasource.CatalogNode, error) {
	rows, err := a.list(ctx, kind.query, node)
	if err != nil {
		return nil, err
	}
	children := make([]datasource.CatalogNode, 0, len(rows))
	for _, row := range rows {
		raw := stringValue(row[kind.labelColumn])
		child := datasource.CatalogNode{
			Type:      kind.nodeType,
			Label:     raw,
			ChildType: kind.childType,
			Database:  node.Database,
			Schema:    node.Schema,
			Detail:    stringValue(row["detail"]),
		}
		if kind.stripQuotes {
			child.Label = StripQuotes(raw)
			child.Identifier = raw
		}
		children = append(children, child)
	}
	return children, nil
}

func (a *Adapter) columns(ctx context.Context, node datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	rows, err := a.list(ctx, Queries.FetchColumns, node)
	if err != nil {
		return nil, err
	}
	children := make([]datasource.CatalogNode, 0, len(rows))
	for _, row := range rows {
		children = append(children, datasource.CatalogNode{
			Type:      datasource.NodeColumn,
			Label:     stringValue(row["label"]),
			ChildType: datasource.NodeNoChild,
			Database:  node.Database,
			Schema:    node.Schema,
			Table:     node.Name(),
			Detail:    stringValue(row["detail"]),
			IconID:    "column",
		})
	}
	return children, nil
}

// list renders tmpl against node and runs it through the result normalizer.
// Session failures come back as ConnectionError, anything else as QueryError.
func (a *Adapter) list(ctx context.Context, tmpl *nodeTemplate, node datasource.CatalogNode) ([]map[string]any, error) {
	query, err := tmpl.Render(node)
	if err != nil {
		return nil, err
	}
	return a.listRows(ctx, tmpl.Name(), query, node.Type)
}

func (a *Adapter) listRows(ctx context.Context, templateName, query string, nodeType datasource.NodeType) ([]map[string]any, error) {
	result := a.Execute(ctx, query, nil, "")
	if !result.Error {
		return result.Results, nil
	}
	if apperrors.IsConnectionError(result.RawError) {
		return nil, result.RawError
	}

	a.logger.Debug("catalog listing failed",
		zap.String("template", templateName),
		zap.String("node_type", nodeType.String()),
	)
	return nil, &apperrors.QueryError{Message: result.Messages[0], Cause: result.RawError}
}

// StripQuotes removes one pair of wrapping double quotes.
func StripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
