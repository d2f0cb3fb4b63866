package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/ingestion"
)

// newIngestCmd constructs the `raglab ingest` command, which segments,
// embeds and stores documents into a collection.
func newIngestCmd(a *app) *cobra.Command {
	var collection string
	var watch bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "ingest [path|url]...",
		Short: "Ingest documents into a vector store collection",
		Long: `Read .txt, .md and .html files (directories are walked recursively) or
http(s) pages, split them into overlapping chunks, embed the chunks in batches
and upsert them with their metadata. Re-ingesting a source overwrites its
chunks. PDF and other formats are skipped and reported.

With --watch, the directories among the arguments are monitored after the
initial pass and changed files are re-ingested until interrupted.

Examples:
  raglab ingest ./docs
  raglab ingest --collection direito_constitucional ./constituicao.txt
  raglab ingest https://pt.wikipedia.org/wiki/Gera%C3%A7%C3%A3o_aumentada_por_recupera%C3%A7%C3%A3o
  raglab ingest --watch ./notes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			errw := cmd.ErrOrStderr()
			if collection == "" {
				collection = a.cfg.Pipeline.Collection
			}

			emb, err := a.buildEmbedder(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			collections, _, err := a.buildCollections(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = collections.Close() }()

			p, err := ingestion.NewPipeline(emb, collections, a.cfg.Chunking, a.cfg.Ingestion)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			sources, err := ingestion.ExpandSources(args)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(sources) == 0 {
				warnColor.Fprintln(errw, "warning: no supported documents found")
				return nil
			}

			bar := progressbar.NewOptions(len(sources),
				progressbar.OptionSetWriter(errw),
				progressbar.OptionSetDescription("ingesting"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionClearOnFinish(),
			)
			report, err := p.Ingest(ctx, collection, sources, func(e ingestion.Event) {
				switch e.Stage {
				case ingestion.StageStored, ingestion.StageSkipped:
					bar.Describe(filepath.Base(e.Source))
					_ = bar.Add(1)
				}
			})
			_ = bar.Finish()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			labelColor.Fprint(cmd.OutOrStdout(), "ingested ")
			fmt.Fprintf(cmd.OutOrStdout(), "%d source(s), %d chunk(s) into %q\n", report.Sources, report.Chunks, report.Collection)
			for _, s := range report.Skipped {
				warnColor.Fprintln(errw, "skipped (unsupported format):", s)
			}

			if !watch {
				return nil
			}
			dirs := watchDirs(args)
			if len(dirs) == 0 {
				return fmt.Errorf("ingest: --watch needs at least one directory argument")
			}
			dimColor.Fprintf(errw, "watching %d director(ies), Ctrl-C to stop\n", len(dirs))
			return p.Watch(ctx, collection, dirs, debounce, func(e ingestion.Event) {
				switch {
				case e.Err != nil:
					warnColor.Fprintf(errw, "warning: %s: %v\n", e.Source, e.Err)
				case e.Stage == ingestion.StageStored:
					a.log.Info("re-ingested", slog.String("source", e.Source), slog.Int("chunks", e.Chunks))
					fmt.Fprintf(cmd.OutOrStdout(), "re-ingested %s (%d chunks)\n", e.Source, e.Chunks)
				case e.Stage == ingestion.StageRemoved:
					a.log.Info("removed", slog.String("source", e.Source))
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", e.Source)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Target collection (default: pipeline.collection)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep watching directory arguments and re-ingest changed files")
	cmd.Flags().DurationVar(&debounce, "debounce", ingestion.DefaultDebounce, "Quiet period before a changed file is re-ingested")

	return cmd
}

// watchDirs returns the arguments that are existing directories.
func watchDirs(args []string) []string {
	var dirs []string
	for _, arg := range args {
		if st, err := os.Stat(arg); err == nil && st.IsDir() {
			dirs = append(dirs, arg)
		}
	}
	return dirs
}
