package commands

import (
	"bufio"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/pipeline"
)

// newChatCmd constructs the `raglab chat` command, an interactive loop that
// keeps one conversation id for the whole session.
func newChatCmd(a *app) *cobra.Command {
	var conversationID, dataset string
	var route, verbose bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session with conversation memory",
		Long: `Start an interactive session. Every line is answered with retrieved
context and the recent turns of the session's conversation.

Commands inside the session:
  /history   print the stored turns
  /clear     forget the conversation
  /new       start a new conversation id
  /exit      leave (Ctrl-D also works)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
			if conversationID == "" {
				conversationID = uuid.NewString()
			}

			rt, err := a.buildRuntime(ctx)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer rt.close(a.log)

			dimColor.Fprintf(errw, "conversation %s, /exit to quit\n", conversationID)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for {
				labelColor.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				case "/new":
					conversationID = uuid.NewString()
					dimColor.Fprintf(errw, "conversation %s\n", conversationID)
					continue
				case "/clear":
					if err := rt.memory.Delete(ctx, conversationID); err != nil {
						warnColor.Fprintln(errw, "warning:", err)
					}
					continue
				case "/history":
					turns, err := rt.memory.Read(ctx, conversationID)
					if err != nil {
						warnColor.Fprintln(errw, "warning:", err)
						continue
					}
					turns = slices.Clone(turns)
					slices.Reverse(turns)
					for _, t := range turns {
						labelColor.Fprintf(out, "%s: ", t.Role)
						fmt.Fprintln(out, t.Content)
					}
					continue
				}

				req := pipeline.Request{ConversationID: conversationID, Query: line, Dataset: dataset}
				var res pipeline.Result
				if route {
					res = rt.pipeline.RunRouted(ctx, req)
				} else {
					res = rt.pipeline.Run(ctx, req)
				}
				printResult(out, errw, res, verbose)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Resume an existing conversation id")
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Collection to retrieve from (default: pipeline.collection)")
	cmd.Flags().BoolVarP(&route, "route", "r", false, "Let the router choose the dataset for every message")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print routing, retrieval status and the composed prompt")
	cmd.MarkFlagsMutuallyExclusive("route", "dataset")

	return cmd
}
