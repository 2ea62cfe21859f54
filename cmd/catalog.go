package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
	"github.com/ekaya-inc/snowflake-catalog/pkg/config"
)

// treeConcurrency bounds sibling expansions in flight per level.
const treeConcurrency = 4

var (
	treeDepth int

	nodeType       string
	nodeLabel      string
	nodeIdentifier string
	nodeDatabase   string
	nodeSchema     string
	nodeChildType  string

	recordsLimit  int
	recordsOffset int
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the catalog tree of a connection",
	Long: `Walks the catalog from the connection node down to --depth levels.
A branch whose listing query fails is shown with its error instead of
aborting the walk; connection failures abort.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			profile, err := a.datasources.Profile(connectionName)
			if err != nil {
				return err
			}
			explorer, err := a.datasources.Open(cmd.Context(), profile.Name)
			if err != nil {
				return err
			}

			root := &treeEntry{CatalogNode: connectionNode(profile)}
			if err := expand(cmd.Context(), explorer, root, nil, treeDepth); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ok, err := writeStructured(w, outputFormat, root); ok {
				return err
			}
			return renderTree(w, root)
		})
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children",
	Short: "List the children of one catalog node",
	Example: `  snowflake-catalog children --type connection
  snowflake-catalog children --type database --label ANALYTICS
  snowflake-catalog children --type resource-group --label Stages --database ANALYTICS --schema PUBLIC --child-type stage`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			explorer, err := a.datasources.Open(cmd.Context(), connectionName)
			if err != nil {
				return err
			}
			children, err := explorer.ChildrenOf(cmd.Context(), nodeFromFlags(), nil)
			if err != nil {
				return err
			}
			return writeNodes(cmd.OutOrStdout(), outputFormat, children)
		})
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records TABLE",
	Short: "Preview rows from a table or view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			explorer, table, err := openTable(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			result := explorer.ShowRecords(cmd.Context(), table, recordsLimit, recordsOffset)
			return writeResult(cmd.OutOrStdout(), outputFormat, result)
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe TABLE",
	Short: "Show column metadata for a table or view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			explorer, table, err := openTable(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			result := explorer.DescribeTable(cmd.Context(), table)
			return writeResult(cmd.OutOrStdout(), outputFormat, result)
		})
	},
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List configured connection profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			list := a.datasources.List()
			w := cmd.OutOrStdout()
			if ok, err := writeStructured(w, outputFormat, list); ok {
				return err
			}

			data := pterm.TableData{{"Name", "Account", "Database", "Warehouse", "Authenticator", "Default"}}
			for _, c := range list {
				def := ""
				if c.Default {
					def = "*"
				}
				data = append(data, []string{c.Name, c.Account, c.Database, c.Warehouse, c.Authenticator, def})
			}
			return renderTable(w, data)
		})
	},
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", 3, "Levels to expand below the connection")

	childrenCmd.Flags().StringVar(&nodeType, "type", "connection", "Node type to expand")
	childrenCmd.Flags().StringVar(&nodeLabel, "label", "", "Node label")
	childrenCmd.Flags().StringVar(&nodeIdentifier, "identifier", "", "Backend identifier when it differs from the label")
	childrenCmd.Flags().StringVar(&nodeDatabase, "database", "", "Database the node belongs to")
	childrenCmd.Flags().StringVar(&nodeSchema, "schema", "", "Schema the node belongs to")
	childrenCmd.Flags().StringVar(&nodeChildType, "child-type", "", "Child type (selects the fetcher for resource-group nodes)")

	for _, c := range []*cobra.Command{recordsCmd, describeCmd} {
		c.Flags().StringVar(&nodeDatabase, "database", "", "Database (default: the profile database)")
		c.Flags().StringVar(&nodeSchema, "schema", "", "Schema (default: the profile schema)")
	}
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 50, "Rows to fetch")
	recordsCmd.Flags().IntVar(&recordsOffset, "offset", 0, "Rows to skip")

	rootCmd.AddCommand(treeCmd, childrenCmd, recordsCmd, describeCmd, connectionsCmd)
}

// treeEntry is one expanded node. A failed listing is kept as Error.
type treeEntry struct {
	datasource.CatalogNode `yaml:",inline"`
	Error                  string      `json:"error,omitempty" yaml:"error,omitempty"`
	Children               []treeEntry `json:"children,omitempty" yaml:"children,omitempty"`
}

func connectionNode(p config.ConnectionProfile) datasource.CatalogNode {
	return datasource.CatalogNode{
		Type:      datasource.NodeConnection,
		Label:     p.Name,
		ChildType: datasource.NodeDatabase,
		IconID:    "connection",
	}
}

// expand fills entry.Children down to depth levels. Siblings are expanded
// concurrently; the explorer's single session serializes their statements.
func expand(ctx context.Context, ex datasource.Explorer, entry *treeEntry, parent *datasource.CatalogNode, depth int) error {
	if depth <= 0 || entry.IsLeaf() {
		return nil
	}

	children, err := ex.ChildrenOf(ctx, entry.CatalogNode, parent)
	if err != nil {
		if apperrors.IsConnectionError(err) {
			return err
		}
		entry.Error = err.Error()
		return nil
	}
	if len(children) == 0 {
		return nil
	}

	self := entry.CatalogNode
	entry.Children = make([]treeEntry, len(children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(treeConcurrency)
	for i, child := range children {
		entry.Children[i] = treeEntry{CatalogNode: child}
		g.Go(func() error {
			return expand(gctx, ex, &entry.Children[i], &self, depth-1)
		})
	}
	return g.Wait()
}

func renderTree(w io.Writer, root *treeEntry) error {
	out, err := pterm.DefaultTree.WithRoot(pterm.TreeNode{Children: []pterm.TreeNode{toTreeNode(root)}}).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func toTreeNode(e *treeEntry) pterm.TreeNode {
	text := fmt.Sprintf("%s (%s)", e.Label, e.Type)
	if e.Detail != "" {
		text += " " + e.Detail
	}
	if e.Error != "" {
		text += " [error: " + e.Error + "]"
	}

	node := pterm.TreeNode{Text: text}
	for i := range e.Children {
		node.Children = append(node.Children, toTreeNode(&e.Children[i]))
	}
	return node
}

func nodeFromFlags() datasource.CatalogNode {
	return datasource.CatalogNode{
		Type:       datasource.ParseNodeType(nodeType),
		Label:      nodeLabel,
		Identifier: nodeIdentifier,
		Database:   nodeDatabase,
		Schema:     nodeSchema,
		ChildType:  datasource.ParseNodeType(nodeChildType),
	}
}

// tableNode resolves a table name against the flags and the profile defaults.
func tableNode(p config.ConnectionProfile, name string) (datasource.CatalogNode, error) {
	database := firstNonEmpty(nodeDatabase, p.Database)
	if database == "" {
		return datasource.CatalogNode{}, &apperrors.MissingParameterError{Field: "database"}
	}
	schema := firstNonEmpty(nodeSchema, p.Schema)
	if schema == "" {
		return datasource.CatalogNode{}, &apperrors.MissingParameterError{Field: "schema"}
	}
	return datasource.CatalogNode{
		Type:      datasource.NodeTable,
		Label:     name,
		Database:  database,
		Schema:    schema,
		ChildType: datasource.NodeColumn,
	}, nil
}

func openTable(ctx context.Context, a *app, name string) (datasource.Explorer, datasource.CatalogNode, error) {
	profile, err := a.datasources.Profile(connectionName)
	if err != nil {
		return nil, datasource.CatalogNode{}, err
	}
	table, err := tableNode(profile, name)
	if err != nil {
		return nil, datasource.CatalogNode{}, err
	}
	explorer, err := a.datasources.Open(ctx, profile.Name)
	if err != nil {
		return nil, datasource.CatalogNode{}, err
	}
	return explorer, table, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
