package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/snowflake-catalog/pkg/mcp"
	"github.com/ekaya-inc/snowflake-catalog/pkg/mcp/tools"
	"github.com/ekaya-inc/snowflake-catalog/pkg/middleware"
	"github.com/ekaya-inc/snowflake-catalog/pkg/retry"
)

const shutdownTimeout = 10 * time.Second

var (
	serveTransport   string
	serveAddr        string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog as MCP tools",
	Long: `Serves list_children, describe_table, preview_records, run_query,
test_connection and health over MCP. The stdio transport reads JSON-RPC from
standard input; the http transport serves streamable HTTP at /mcp.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveTransport != "stdio" && serveTransport != "http" {
			return fmt.Errorf("invalid transport %q (must be stdio or http)", serveTransport)
		}

		return withApp(func(a *app) error {
			server := mcp.NewServer(a.cfg.MCP.ServerName, Version, a.logger)
			server.RegisterCatalogTools(&tools.Deps{
				Explorers: a.datasources,
				Retry:     retry.WithMaxRetries(a.cfg.Datasource.OpenRetries),
				Logger:    a.logger,
			}, Version, a.datasources)

			metricsAddr := serveMetricsAddr
			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.ListenAddr
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(runCtx)
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				g.Go(func() error { return listen(ctx, a.logger, "metrics", metricsAddr, mux) })
			}

			switch serveTransport {
			case "stdio":
				a.logger.Info("Serving MCP over stdio", zap.String("version", Version))
				g.Go(func() error {
					// stdin closing ends the whole server
					defer cancel()
					err := server.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			case "http":
				mux := http.NewServeMux()
				mux.Handle("/mcp", middleware.RequestLogger(a.logger)(server.NewStreamableHTTPServer()))
				g.Go(func() error { return listen(ctx, a.logger, "mcp", serveAddr, mux) })
			}
			return g.Wait()
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "MCP transport: stdio or http")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:3443", "Listen address for the http transport")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Listen address for /metrics (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// listen serves handler on addr until ctx is cancelled, then shuts down gracefully.
func listen(ctx context.Context, logger *zap.Logger, name, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting listener", zap.String("name", name), zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s listener: %w", name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown: %w", name, err)
	}
	logger.Info("Listener stopped", zap.String("name", name))
	return nil
}
