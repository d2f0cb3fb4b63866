package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/memory"
	"github.com/54b3r/raglab-go/internal/pipeline"
	"github.com/54b3r/raglab-go/internal/server"
)

// newServeCmd constructs the `raglab serve` command, which starts the HTTP
// API in front of the pipeline.
func newServeCmd(a *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the raglab HTTP API",
		Long: `Start the HTTP server.

Endpoints:
  POST   /api/chat                 answer a turn (SSE stream)
  POST   /api/route                routing decision for a query
  GET    /api/conversations/{id}   stored turns, oldest first
  DELETE /api/conversations/{id}   forget a conversation
  POST   /api/segment              chunk a posted text
  GET    /api/health, /api/ready   liveness and dependency readiness
  GET    /metrics                  Prometheus metrics

Set RAGLAB_API_KEY to require a Bearer token on /api/* routes.

Examples:
  raglab serve
  raglab serve --port 9090
  MODEL_PROVIDER=azure raglab serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := a.buildRuntime(ctx, pipeline.WithRegisterer(prometheus.DefaultRegisterer))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer rt.close(a.log)

			sc := a.cfg.Server
			if cmd.Flags().Changed("host") {
				sc.Host = host
			}
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}

			deps := server.Deps{Pipeline: rt.pipeline, Router: rt.router}
			if a.cfg.Memory.Backend != memory.BackendDisabled {
				deps.History = rt.memory
			}
			srv, err := server.New(deps, &server.Config{
				Host:      sc.Host,
				Port:      sc.Port,
				Logger:    a.log,
				Pingers:   rt.pingers,
				RateLimit: sc.RateLimit,
				RateBurst: sc.RateBurst,
				APIKey:    sc.APIKey,
				Chunking:  a.cfg.Chunking,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			a.log.Info("serve starting",
				slog.String("provider", string(a.cfg.Model.Backend)),
				slog.String("vector_store", string(a.cfg.VectorStore.Backend)),
				slog.String("memory", string(a.cfg.Memory.Backend)),
				slog.Int("readiness_probes", len(rt.pingers)),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (overrides server.port)")

	return cmd
}
