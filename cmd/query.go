package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryFile      string
	queryBindings  []string
	queryRequestID string
)

var queryCmd = &cobra.Command{
	Use:   "query [SQL]",
	Short: "Run one SQL statement",
	Long: `Runs a single statement on the connection. The statement comes from the
argument, --file, or standard input. Positional bindings are passed with
repeated --bind flags and fill ? placeholders in order.`,
	Example: `  snowflake-catalog query "SELECT CURRENT_WAREHOUSE()"
  snowflake-catalog query "SELECT * FROM ORDERS WHERE STATUS = ?" --bind SHIPPED
  echo "SHOW WAREHOUSES" | snowflake-catalog query`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sqlText, err := readSQL(args, queryFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		return withApp(func(a *app) error {
			explorer, err := a.datasources.Open(cmd.Context(), connectionName)
			if err != nil {
				return err
			}
			result := explorer.Execute(cmd.Context(), sqlText, toBindings(queryBindings), queryRequestID)
			return writeResult(cmd.OutOrStdout(), outputFormat, result)
		})
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the statement from a file")
	queryCmd.Flags().StringArrayVar(&queryBindings, "bind", nil, "Positional binding value (repeatable)")
	queryCmd.Flags().StringVar(&queryRequestID, "request-id", "", "Caller request id echoed in the result")
	rootCmd.AddCommand(queryCmd)
}

// readSQL picks the statement from args, a file, or stdin, in that order.
func readSQL(args []string, file string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case len(args) > 0 && file != "":
		return "", errors.New("pass the statement as an argument or with --file, not both")
	case len(args) > 0:
		text = args[0]
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		text = string(b)
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(b)
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.New("no SQL statement given")
	}
	return text, nil
}

func toBindings(values []string) []any {
	if len(values) == 0 {
		return nil
	}
	bindings := make([]any, len(values))
	for i, v := range values {
		bindings[i] = v
	}
	return bindings
}
