package commands

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// newHistoryCmd constructs the `raglab history` command group.
func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear conversation memory",
	}
	cmd.AddCommand(newHistoryShowCmd(a), newHistoryClearCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print the stored turns of a conversation, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.buildMemory(ctx)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer func() { _ = store.Close() }()

			turns, err := store.Read(ctx, args[0])
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			turns = slices.Clone(turns)
			slices.Reverse(turns)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(turns)
			}
			if len(turns) == 0 {
				dimColor.Fprintln(out, "no turns stored (unknown or expired conversation)")
				return nil
			}
			for _, t := range turns {
				labelColor.Fprintf(out, "%s: ", t.Role)
				fmt.Fprintln(out, t.Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print turns as JSON")
	return cmd
}

func newHistoryClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.buildMemory(ctx)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
			return nil
		},
	}
}
