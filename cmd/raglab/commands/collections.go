package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/rag"
)

// newCollectionsCmd constructs the `raglab collections` command group.
func newCollectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections and report their size",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the collections of the configured vector store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				collections, _, err := a.buildCollections(ctx)
				if err != nil {
					return fmt.Errorf("collections: %w", err)
				}
				defer func() { _ = collections.Close() }()

				names, err := collections.List(ctx)
				if err != nil {
					return fmt.Errorf("collections: %w", err)
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "info [name]",
			Short: "Report the number of stored chunks of a collection",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				name := a.cfg.Pipeline.Collection
				if len(args) == 1 {
					name = args[0]
				}
				collections, _, err := a.buildCollections(ctx)
				if err != nil {
					return fmt.Errorf("collections: %w", err)
				}
				defer func() { _ = collections.Close() }()

				store, err := collections.Open(ctx, name, false)
				if errors.Is(err, rag.ErrCollectionNotFound) {
					return fmt.Errorf("collections: %q does not exist, run 'raglab ingest --collection %s' first", name, name)
				}
				if err != nil {
					return fmt.Errorf("collections: %w", err)
				}
				count, err := store.Count(ctx)
				if err != nil {
					return fmt.Errorf("collections: %w", err)
				}
				out := cmd.OutOrStdout()
				labelColor.Fprint(out, name)
				fmt.Fprintf(out, ": %d chunk(s), backend %s, %d dimensions\n", count, a.cfg.VectorStore.Backend, a.cfg.Embedding.VectorSize())
				return nil
			},
		},
	)
	return cmd
}
