package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/api"
	"github.com/custodia-labs/sercha-kb/internal/telemetry"
)

var (
	serveAddr     string
	serveManifest string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the knowledge base over HTTP:

  POST /v1/ask           ask a question
  POST /v1/retrieve      show the chunks a question retrieves
  POST /v1/sync          sync a manifest (defaults to --manifest)
  GET  /v1/queries       list recorded questions
  GET  /v1/queries/:id   show one recorded question
  GET  /v1/sync-runs     list sync runs
  GET  /v1/docs          list indexed documents
  GET  /healthz          liveness
  GET  /metrics          Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().StringVarP(&serveManifest, "manifest", "m", "", "manifest synced by POST /v1/sync when none is given")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsHandler http.Handler
	if pipelineMetrics == nil {
		metrics := telemetry.NewMetrics()
		pipelineMetrics = metrics
		metricsHandler = metrics.Handler()
	}

	if err := ensureServices(ctx, true); err != nil {
		return err
	}

	server, err := api.NewServer(api.Ports{
		Query:           queryService,
		Audit:           auditService,
		Indexer:         indexer,
		DefaultManifest: serveManifest,
		Metrics:         metricsHandler,
	})
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = appConfig.Server.Addr
	}
	if addr == "" {
		addr = ":8080"
	}

	cmd.Printf("HTTP API listening on %s\n", addr)
	return server.Run(ctx, addr)
}
