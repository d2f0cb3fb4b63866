package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/raglab-go/internal/ingestion"
	"github.com/54b3r/raglab-go/internal/segment"
)

// newSegmentCmd constructs the `raglab segment` command, which shows how a
// document would be chunked without embedding or storing anything.
func newSegmentCmd(a *app) *cobra.Command {
	var chunkSize, overlap int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "segment [file]",
		Short: "Show how a document is split into chunks",
		Long: `Split a .txt, .md or .html file (or stdin when no file is given) with
the configured chunk size and overlap, and print every chunk with its index,
length and estimated start offset.

Examples:
  raglab segment README.md
  raglab segment --chunk-size 800 --overlap 80 notes.txt
  cat page.txt | raglab segment --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, ov := a.cfg.Chunking.ChunkSize, a.cfg.Chunking.Overlap
			if cmd.Flags().Changed("chunk-size") {
				size = chunkSize
			}
			if cmd.Flags().Changed("overlap") {
				ov = overlap
			}
			settings, err := segment.Info(size, ov)
			if err != nil {
				return fmt.Errorf("segment: %w", err)
			}

			var text string
			var source map[string]string
			if len(args) == 1 {
				doc, err := ingestion.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("segment: %w", err)
				}
				text, source = doc.Text, doc.Info.Labels()
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("segment: read stdin: %w", err)
				}
				text, source = string(b), map[string]string{"source": "stdin"}
			}

			chunks, err := segment.SegmentWithMetadata(text, size, ov, source)
			if err != nil {
				return fmt.Errorf("segment: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Settings segment.Settings `json:"settings"`
					Chunks   []segment.Chunk  `json:"chunks"`
				}{settings, chunks})
			}

			labelColor.Fprintf(out, "chunk_size=%d overlap=%d step=%d chunks=%d\n", settings.ChunkSize, settings.Overlap, settings.Step, len(chunks))
			for _, c := range chunks {
				labelColor.Fprintf(out, "\n[%d/%d] ", c.Index+1, c.Total)
				dimColor.Fprintf(out, "length=%d start~%d\n", c.Length, c.StartOffset)
				fmt.Fprintln(out, preview(c.Text, 240))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", segment.DefaultChunkSize, "Maximum characters per chunk")
	cmd.Flags().IntVar(&overlap, "overlap", segment.DefaultOverlap, "Characters shared by consecutive chunks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print chunks and settings as JSON")

	return cmd
}

// preview shortens s to at most n runes on one line.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
