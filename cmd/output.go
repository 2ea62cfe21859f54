package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("invalid output format %q (must be table, json or yaml)", format)
}

// writeStructured encodes v as JSON or YAML. It reports false for the table format.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// writeNodes prints catalog nodes in the selected format.
func writeNodes(w io.Writer, format string, nodes []datasource.CatalogNode) error {
	if ok, err := writeStructured(w, format, nodes); ok {
		return err
	}
	if len(nodes) == 0 {
		_, err := fmt.Fprintln(w, "(no children)")
		return err
	}

	data := pterm.TableData{{"Label", "Type", "Child Type", "Database", "Schema", "Detail"}}
	for _, n := range nodes {
		data = append(data, []string{n.Label, n.Type.String(), n.ChildType.String(), n.Database, n.Schema, n.Detail})
	}
	return renderTable(w, data)
}

// writeResult prints a query result in the selected format. Failed results
// print their message and return the cause.
func writeResult(w io.Writer, format string, result datasource.QueryResult) error {
	if ok, err := writeStructured(w, format, result); ok {
		if err != nil {
			return err
		}
		return resultErr(result)
	}

	if result.Error {
		return resultErr(result)
	}

	cols := result.Cols
	if len(cols) == 0 && len(result.Results) > 0 {
		cols = sortedKeys(result.Results[0])
	}
	if len(cols) > 0 {
		data := pterm.TableData{cols}
		for _, row := range result.Results {
			line := make([]string, len(cols))
			for i, col := range cols {
				line[i] = formatValue(row[col])
			}
			data = append(data, line)
		}
		if err := renderTable(w, data); err != nil {
			return err
		}
	}

	for _, msg := range result.Messages {
		if _, err := fmt.Fprintln(w, msg); err != nil {
			return err
		}
	}
	return nil
}

// resultErr turns a failed result into an error carrying its one-line message.
func resultErr(result datasource.QueryResult) error {
	if !result.Error {
		return nil
	}
	msg := ""
	if len(result.Messages) > 0 {
		msg = result.Messages[0]
	}
	return fmt.Errorf("%w: %s", errQueryFailed, msg)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
