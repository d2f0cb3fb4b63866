package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/provider"
	"github.com/54b3r/raglab-go/internal/router"
)

// newRouteCmd constructs the `raglab route` command, which prints the
// routing decision for a query without retrieving or generating.
func newRouteCmd(a *app) *cobra.Command {
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "route [query]",
		Short: "Show which dataset the router picks for a query",
		Long: `Ask the model to choose the dataset, locale and rewritten query for a
request. The decision is printed as JSON. Exits non-zero when the route
cannot be determined.

Examples:
  raglab route "quais são os direitos fundamentais?"
  raglab route --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if listOnly {
				for _, d := range a.cfg.Router.Datasets {
					labelColor.Fprint(out, d.Name)
					fmt.Fprintf(out, " [%s] %s\n", d.Locale, d.Description)
				}
				return nil
			}
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("route: %w", errNoQuestion)
			}

			chatModel, err := provider.New(ctx, a.cfg.Model)
			if err != nil {
				return fmt.Errorf("route: failed to initialise model provider: %w", err)
			}
			r, err := router.New(chatModel, a.cfg.Router)
			if err != nil {
				return fmt.Errorf("route: %w", err)
			}

			decision, err := r.Route(ctx, query)
			if decision == nil {
				return fmt.Errorf("route: route not determined: %w", err)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}

	cmd.Flags().BoolVar(&listOnly, "list", false, "List the configured datasets and exit")

	return cmd
}
