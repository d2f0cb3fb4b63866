// Package commands defines all Cobra CLI commands for the raglab binary.
package commands

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/audit"
	"github.com/54b3r/raglab-go/internal/config"
	"github.com/54b3r/raglab-go/internal/logging"
	"github.com/54b3r/raglab-go/internal/tracing"
)

// app carries the state resolved once in the root command's pre-run and
// shared by every subcommand.
type app struct {
	// configPath holds the --config flag value.
	configPath string
	// envFile holds the --env-file flag value.
	envFile string
	// cfg is the validated configuration.
	cfg *config.Config
	// log is the process logger, also stored in the command context.
	log *slog.Logger
	// flush drains buffered traces before exit.
	flush func()
}

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	a := &app{flush: func() {}}

	root := &cobra.Command{
		Use:   "raglab",
		Short: "raglab: a retrieval augmented generation lab",
		Long: `raglab ingests documents into a vector store and answers questions with
retrieved context and conversation memory.

Backends are chosen in a YAML or TOML config file (~/.raglab/config.yaml,
./raglab.yaml or ./raglab.toml) and overridden by environment variables such
as MODEL_PROVIDER, VECTOR_STORE and MEMORY_BACKEND. A .env file in the working
directory is loaded first and never overrides variables already set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.flush()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML or TOML config file (default: ~/.raglab/config.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Dotenv file loaded before configuration")

	root.AddCommand(
		newAskCmd(a),
		newChatCmd(a),
		newRouteCmd(a),
		newIngestCmd(a),
		newSegmentCmd(a),
		newHistoryCmd(a),
		newCollectionsCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)

	return root
}

// init loads the environment and configuration, builds the logger and
// enables tracing.
func (a *app) init(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	// Bootstrap logger for config loading; replaced once the config is known.
	boot := logging.New(logging.Config{Level: "warn"})
	cfg, path, err := config.Load(a.configPath, boot)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Logging)
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.log))

	if flush, ok := tracing.Setup(cfg.Tracing); ok {
		a.flush = flush
		a.log.Debug("langfuse tracing enabled")
	}

	audit.LogCommandStart(cmd.Context(), a.log, cmd.Name(), path, cfg)
	return nil
}
