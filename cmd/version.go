package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and compiled-in adapters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var adapters []string
		for _, info := range datasource.RegisteredAdapters() {
			adapters = append(adapters, info.Type)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "snowflake-catalog %s\nadapters: %s\n", Version, strings.Join(adapters, ", "))
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
