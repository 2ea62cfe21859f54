package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/snowflake-catalog/pkg/config"
	"github.com/ekaya-inc/snowflake-catalog/pkg/keychain"
)

var passwordStdin bool

// loginCmd stores a connection password in the OS keychain. Profiles read it
// when they set use_keychain.
var loginCmd = &cobra.Command{
	Use:   "login [CONNECTION]",
	Short: "Store a connection password in the OS keychain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := resolveProfile(args)
		if err != nil {
			return err
		}

		var password string
		if passwordStdin {
			password, err = readPassword(cmd.InOrStdin())
		} else {
			password, err = pterm.DefaultInteractiveTextInput.
				WithMask("*").
				Show(fmt.Sprintf("Password for %s@%s", profile.Username, profile.Account))
		}
		if err != nil {
			return err
		}
		if password == "" {
			return errors.New("password is required")
		}

		km, err := keychain.Open()
		if err != nil {
			return err
		}
		if err := km.Set(profile.Name, password); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, pterm.Success.Sprintf("Password for %q saved to the keychain", profile.Name))
		if !profile.UseKeychain {
			fmt.Fprintln(w, pterm.Warning.Sprintf("Connection %q does not set use_keychain; the stored password is ignored until it does", profile.Name))
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout [CONNECTION]",
	Short: "Remove a stored connection password",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := resolveProfile(args)
		if err != nil {
			return err
		}
		km, err := keychain.Open()
		if err != nil {
			return err
		}
		if err := km.Delete(profile.Name); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("Password for %q removed", profile.Name))
		return err
	},
}

func init() {
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from standard input")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

// resolveProfile picks the connection named by args, then --connection, then the default.
func resolveProfile(args []string) (config.ConnectionProfile, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return config.ConnectionProfile{}, err
	}
	name := connectionName
	if len(args) > 0 {
		name = args[0]
	}
	return cfg.Connection(name)
}

// readPassword reads the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
