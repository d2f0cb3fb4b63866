package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/pipeline"
)

// newAskCmd constructs the `raglab ask` command, which answers a single
// question with retrieved context and prints the answer to stdout.
func newAskCmd(a *app) *cobra.Command {
	var conversationID, dataset string
	var route, verbose bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question with retrieved context",
		Long: `Answer a natural language question using chunks retrieved from a collection
and, when --conversation is given, the recent turns of that conversation.

When retrieval fails or finds nothing, the answer is generated from built-in
fallback chunks and a warning is printed to stderr.

Examples:
  raglab ask "o que é RAG?"
  raglab ask --dataset direito_constitucional "quais são os direitos fundamentais?"
  raglab ask --route --verbose "explain the transformer architecture"
  raglab ask --conversation 3f1c... "e como isso se compara a fine-tuning?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("ask: %w", errNoQuestion)
			}
			if conversationID == "" {
				conversationID = uuid.NewString()
			}

			rt, err := a.buildRuntime(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer rt.close(a.log)

			req := pipeline.Request{ConversationID: conversationID, Query: question, Dataset: dataset}
			var res pipeline.Result
			if route {
				res = rt.pipeline.RunRouted(ctx, req)
			} else {
				res = rt.pipeline.Run(ctx, req)
			}

			printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, verbose)
			if verbose {
				dimColor.Fprintf(cmd.ErrOrStderr(), "conversation: %s\n", conversationID)
			}
			if !res.OK() {
				return ErrReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation id for history (default: a new id)")
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Collection to retrieve from (default: pipeline.collection)")
	cmd.Flags().BoolVarP(&route, "route", "r", false, "Let the router choose the dataset")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print routing, retrieval status and the composed prompt")
	cmd.MarkFlagsMutuallyExclusive("route", "dataset")

	return cmd
}
