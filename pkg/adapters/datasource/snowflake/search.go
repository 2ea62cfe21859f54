package snowflake

import (
	"context"
	"strings"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/snowflake-catalog/pkg/sql"
)

// SearchItems is the completion hook. Tables, views and columns are looked
// up through the search statements, which currently match nothing; other
// item types yield an empty result without touching the session.
func (a *Adapter) SearchItems(ctx context.Context, itemType datasource.NodeType, search string) ([]datasource.CatalogNode, error) {
	sc := SearchContext{ItemType: itemType, Search: search}

	switch itemType {
	case datasource.NodeTable, datasource.NodeView, datasource.NodeMaterializedView:
		rows, err := a.searchRows(ctx, Queries.SearchTables, sc)
		if err != nil {
			return nil, err
		}
		items := make([]datasource.CatalogNode, 0, len(rows))
		for _, row := range rows {
			item := datasource.CatalogNode{
				Type:      datasource.NodeTable,
				Label:     stringValue(row["label"]),
				ChildType: datasource.NodeColumn,
				Database:  stringValue(row["database"]),
				Schema:    stringValue(row["schema"]),
				Detail:    stringValue(row["detail"]),
			}
			if truthy(row["isView"]) {
				item.Type = datasource.NodeView
			}
			items = append(items, item)
		}
		return items, nil

	case datasource.NodeColumn:
		rows, err := a.searchRows(ctx, Queries.SearchColumns, sc)
		if err != nil {
			return nil, err
		}
		items := make([]datasource.CatalogNode, 0, len(rows))
		for _, row := range rows {
			items = append(items, datasource.CatalogNode{
				Type:      datasource.NodeColumn,
				Label:     stringValue(row["label"]),
				ChildType: datasource.NodeNoChild,
				Table:     stringValue(row["table"]),
				Detail:    stringValue(row["dataType"]),
				IconID:    "column",
			})
		}
		return items, nil
	}

	return []datasource.CatalogNode{}, nil
}

func (a *Adapter) searchRows(ctx context.Context, tmpl *sqlpkg.Template[SearchContext], sc SearchContext) ([]map[string]any, error) {
	query, err := tmpl.Render(sc)
	if err != nil {
		return nil, err
	}
	return a.listRows(ctx, tmpl.Name(), query, sc.ItemType)
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	}
	return false
}

// StaticCompletions returns keyword completions; there are none.
func (a *Adapter) StaticCompletions() map[string]string {
	return map[string]string{}
}
