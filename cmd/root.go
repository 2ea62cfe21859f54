// Package cmd implements the snowflake-catalog command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/config"
	"github.com/ekaya-inc/snowflake-catalog/pkg/keychain"
	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
	"github.com/ekaya-inc/snowflake-catalog/pkg/services"
)

// ConfigEnv overrides the default config path.
const ConfigEnv = "SNOWFLAKE_CATALOG_CONFIG"

var (
	configPath     string
	connectionName string
	logLevel       string
	logFormat      string
	outputFormat   string
)

// rootCmd is the base command. Subcommands that talk to a warehouse build
// their dependencies with newApp, so help and version never read config.
var rootCmd = &cobra.Command{
	Use:   "snowflake-catalog",
	Short: "Browse Snowflake catalogs and run queries",
	Long: `snowflake-catalog walks the object tree of a Snowflake account
(databases, schemas, tables, views, stages, pipes and more), previews records,
runs ad-hoc statements and serves the same operations as MCP tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI application.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, logging.SanitizeError(err))
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", os.Getenv(ConfigEnv), "Config file (default config.yaml)")
	flags.StringVarP(&connectionName, "connection", "c", "", "Connection profile to use")
	flags.StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	flags.StringVar(&logFormat, "log-format", "", "Log format: json or console (overrides config)")
	flags.StringVarP(&outputFormat, "output", "o", formatTable, "Output format: table, json or yaml")
}

// app holds what every warehouse command needs.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	datasources services.DatasourceService
}

func newApp() (*app, error) {
	if err := validateFormat(outputFormat); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	var passwords services.PasswordStore
	if usesKeychain(cfg) {
		km, err := keychain.Open()
		if err != nil {
			logger.Warn("keychain unavailable", zap.String("error", logging.SanitizeError(err)))
		} else {
			passwords = km
		}
	}

	factory := datasource.NewAdapterFactory(logger)
	return &app{
		cfg:         cfg,
		logger:      logger,
		datasources: services.NewDatasourceService(cfg, factory, passwords, logger),
	}, nil
}

// Close releases every open session.
func (a *app) Close() {
	if err := a.datasources.Close(); err != nil {
		a.logger.Warn("failed to close connections", zap.String("error", logging.SanitizeError(err)))
	}
	_ = a.logger.Sync()
}

func usesKeychain(cfg *config.Config) bool {
	for _, p := range cfg.Connections {
		if p.UseKeychain {
			return true
		}
	}
	return false
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

var errQueryFailed = errors.New("query failed")
