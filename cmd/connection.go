package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Verify credentials, warehouse and database of a connection",
	Long: `Opens a throwaway session, runs a probe query and checks that the
configured warehouse and database exist. The session is always closed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			profile, err := a.datasources.Profile(connectionName)
			if err != nil {
				return err
			}
			if err := a.datasources.TestConnection(cmd.Context(), profile.Name); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ok, err := writeStructured(w, outputFormat, map[string]string{"connection": profile.Name, "status": "ok"}); ok {
				return err
			}
			_, err = fmt.Fprintln(w, pterm.Success.Sprintf("Connection %q is working", profile.Name))
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(testConnectionCmd)
}
