package snowflake

import (
	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/snowflake-catalog/pkg/sql"
)

// RecordsContext is the template context for record previews.
type RecordsContext struct {
	Table  datasource.CatalogNode
	Limit  int
	Offset int
}

// SearchContext is the template context for the completion queries.
type SearchContext struct {
	ItemType datasource.NodeType
	Search   string
}

// DefaultRecordLimit is the page size used when none is given.
const DefaultRecordLimit = 50

type nodeTemplate = sqlpkg.Template[datasource.CatalogNode]

func nodeDatabase(n datasource.CatalogNode) any { return n.Database }
func nodeSchema(n datasource.CatalogNode) any   { return n.Schema }
func nodeName(n datasource.CatalogNode) any     { return n.Name() }

// QueryCatalog holds every statement the adapter renders.
type QueryCatalog struct {
	DescribeTable          *nodeTemplate
	FetchColumns           *nodeTemplate
	FetchRecords           *sqlpkg.Template[RecordsContext]
	CountRecords           *sqlpkg.Template[RecordsContext]
	FetchDatabases         *nodeTemplate
	FetchSchemas           *nodeTemplate
	FetchTables            *nodeTemplate
	FetchViews             *nodeTemplate
	FetchMaterializedViews *nodeTemplate
	FetchStages            *nodeTemplate
	FetchPipes             *nodeTemplate
	FetchStreams           *nodeTemplate
	FetchTasks             *nodeTemplate
	FetchFunctions         *nodeTemplate
	FetchProcedures        *nodeTemplate
	FetchFileFormats       *nodeTemplate
	FetchSequences         *nodeTemplate
	SearchTables           *sqlpkg.Template[SearchContext]
	SearchColumns          *sqlpkg.Template[SearchContext]
}

// Queries is built once at startup; templates are stateless.
var Queries = QueryCatalog{
	DescribeTable: sqlpkg.NewTemplate[datasource.CatalogNode]("describeTable").
		Lit("SELECT C.*\nFROM \"").Val(nodeDatabase).
		Lit("\".information_schema.columns c\nWHERE table_catalog = UPPER('").Val(nodeDatabase).
		Lit("')\n      AND table_schema = UPPER('").Val(nodeSchema).
		Lit("')\n      AND table_name = UPPER('").Val(nodeName).
		Lit("')\nORDER BY ordinal_position"),

	FetchColumns: sqlpkg.NewTemplate[datasource.CatalogNode]("fetchColumns").
		Lit(`SELECT
  column_name AS "label",
  'column' AS "type",
  table_name AS "table",
  data_type AS "dataType",
  UPPER(data_type || (
    CASE WHEN character_maximum_length > 0 THEN (
      '(' || character_maximum_length || ')'
    ) ELSE '' END
  )) AS "detail",
  character_maximum_length AS "size",
  table_catalog AS "database",
  table_schema AS "schema",
  column_default AS "defaultValue",
  is_nullable AS "isNullable"
FROM "`).Val(nodeDatabase).
		Lit("\".information_schema.columns c\nWHERE table_schema = '").Val(nodeSchema).
		Lit("'\n      AND table_name = '").Val(nodeName).
		Lit("'\nORDER BY ordinal_position"),

	FetchRecords: sqlpkg.NewTemplate[RecordsContext]("fetchRecords").
		Lit("SELECT *\nFROM \"").Val(func(c RecordsContext) any { return c.Table.Database }).
		Lit("\".\"").Val(func(c RecordsContext) any { return c.Table.Schema }).
		Lit("\".\"").Val(func(c RecordsContext) any { return c.Table.Name() }).
		Lit("\"\nLIMIT ").Val(func(c RecordsContext) any { return sqlpkg.IntOr(c.Limit, DefaultRecordLimit) }).
		Lit("\nOFFSET ").Val(func(c RecordsContext) any { return sqlpkg.IntOr(c.Offset, 0) }).
		Lit(";"),

	CountRecords: sqlpkg.NewTemplate[RecordsContext]("countRecords").
		Lit("SELECT COUNT(1) AS \"total\"\nFROM \"").Val(func(c RecordsContext) any { return c.Table.Database }).
		Lit("\".\"").Val(func(c RecordsContext) any { return c.Table.Schema }).
		Lit("\".\"").Val(func(c RecordsContext) any { return c.Table.Name() }).
		Lit("\""),

	FetchDatabases: sqlpkg.NewTemplate[datasource.CatalogNode]("fetchDatabases").
		Lit("SHOW DATABASES"),

	FetchSchemas: sqlpkg.NewTemplate[datasource.CatalogNode]("fetchSchemas").
		Lit(`SELECT
  schema_name AS "label",
  schema_name AS "schema",
  'schema' AS "type",
  'group-by-ref-type' AS "iconId",
  catalog_name AS "database"
FROM "`).Val(nodeDatabase).
		Lit(`".information_schema.schemata
WHERE schema_name != 'INFORMATION_SCHEMA'
ORDER BY 2`),

	FetchTables:            tablesOfType("fetchTables", "table", "BASE TABLE"),
	FetchViews:             tablesOfType("fetchViews", "view", "VIEW"),
	FetchMaterializedViews: tablesOfType("fetchMaterializedViews", "materialized-view", "MATERIALIZED VIEW"),

	FetchStages:      showInSchema("fetchStages", "STAGES"),
	FetchPipes:       showInSchema("fetchPipes", "PIPES"),
	FetchStreams:     showInSchema("fetchStreams", "STREAMS"),
	FetchTasks:       showInSchema("fetchTasks", "TASKS"),
	FetchFileFormats: showInSchema("fetchFileFormats", "FILE FORMATS"),

	FetchFunctions:  routines("fetchFunctions", "function", "functions"),
	FetchProcedures: routines("fetchProcedures", "procedure", "procedures"),

	FetchSequences: sqlpkg.NewTemplate[datasource.CatalogNode]("fetchSequences").
		Lit(`SELECT sequence_name AS "label",
  data_type AS "detail"
FROM "`).Val(nodeDatabase).
		Lit("\".information_schema.sequences\nWHERE sequence_schema = '").Val(nodeSchema).
		Lit("'\nORDER BY sequence_name"),

	// Completion is not implemented. Listing through INFORMATION_SCHEMA is too
	// slow for interactive use; a real version would need SHOW ... LIKE plus a
	// RESULT_SCAN follow-up. Both statements return no rows.
	SearchTables: sqlpkg.NewTemplate[SearchContext]("searchTables").
		Lit(`SELECT 'no-table' AS "label",
  'table' AS "type",
  'no-schema' AS "schema",
  'no-db' AS "database",
  FALSE AS "isView",
  'table' AS "description",
  'no-schema.no-db.table' AS "detail"
WHERE 1 = 0`),

	SearchColumns: sqlpkg.NewTemplate[SearchContext]("searchColumns").
		Lit(`SELECT 'no-column' AS "label",
  'no-table' AS "table",
  'no-type' AS "dataType",
  'no-isnull' AS "isNullable",
  'column' AS "description",
  'column' AS "type"
WHERE 1 = 0`),
}

func tablesOfType(templateName, kind, tableType string) *nodeTemplate {
	isView := "FALSE"
	if kind != "table" {
		isView = "TRUE"
	}
	return sqlpkg.NewTemplate[datasource.CatalogNode](templateName).
		Lit(`SELECT table_name AS "label",
  '` + kind + `' AS "type",
  table_schema AS "schema",
  table_catalog AS "database",
  ` + isView + ` AS "isView"
FROM "`).Val(nodeDatabase).
		Lit("\".information_schema.tables\nWHERE table_schema = '").Val(nodeSchema).
		Lit("'\n      AND table_type = '" + tableType + "'\nORDER BY table_name")
}

func showInSchema(templateName, objectType string) *nodeTemplate {
	return sqlpkg.NewTemplate[datasource.CatalogNode](templateName).
		Lit("SHOW " + objectType + " IN SCHEMA \"").Val(nodeDatabase).
		Lit("\".\"").Val(nodeSchema).
		Lit("\"")
}

func routines(templateName, singular, view string) *nodeTemplate {
	return sqlpkg.NewTemplate[datasource.CatalogNode](templateName).
		Lit("SELECT " + singular + `_name AS "label",
  argument_signature AS "detail"
FROM "`).Val(nodeDatabase).
		Lit("\".information_schema." + view + "\nWHERE " + singular + "_schema = '").Val(nodeSchema).
		Lit("'\nORDER BY " + singular + "_name")
}
